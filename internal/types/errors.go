package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure modes.
var (
	ErrBreakerOpen    = errors.New("circuit breaker is open")
	ErrNoItems        = errors.New("no plausible items extracted")
	ErrTargetUnknown  = errors.New("unknown target")
	ErrBudgetReached  = errors.New("global item budget reached")
	ErrRunStopped     = errors.New("run has been stopped")
	ErrStaleSession   = errors.New("session file is too old to resume")
	ErrNoVectors      = errors.New("target exposes no machine-readable surfaces")
	ErrCatalogNotOpen = errors.New("catalog sink is closed")
)

// ErrorKind classifies a strategy attempt failure for scoring,
// rate limiting and circuit breaking.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindNavigation ErrorKind = "navigation"
	ErrorKindBlocked    ErrorKind = "blocked"
	ErrorKindExtraction ErrorKind = "extraction"
	ErrorKindTimeout    ErrorKind = "timeout"
)

// NavigationError wraps failures to reach a target page.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation error for %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// BlockedError indicates an anti-automation response was detected.
type BlockedError struct {
	URL    string
	Signal string // which marker tripped the detection
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked at %s (signal=%q)", e.URL, e.Signal)
}

// ExtractionError indicates a page was reached but yielded no
// structurally plausible items. Not necessarily a hostile target.
type ExtractionError struct {
	URL      string
	Strategy string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error at %s (strategy=%s): %v", e.URL, e.Strategy, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PersistenceError wraps failures to write progress or report files.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error (%s): %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CatalogError wraps failures in a catalog sink.
type CatalogError struct {
	Sink string
	Err  error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog error (%s): %v", e.Sink, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

// Classify maps an attempt error to its ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return ErrorKindBlocked
	}
	var extraction *ExtractionError
	if errors.As(err, &extraction) {
		return ErrorKindExtraction
	}
	if errors.Is(err, ErrNoItems) {
		return ErrorKindExtraction
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	var nav *NavigationError
	if errors.As(err, &nav) {
		if errors.Is(nav.Err, context.DeadlineExceeded) {
			return ErrorKindTimeout
		}
		return ErrorKindNavigation
	}
	return ErrorKindNavigation
}

// blockSignals are content markers of anti-automation interstitials.
var blockSignals = []string{
	"captcha",
	"are you a robot",
	"access denied",
	"unusual traffic",
	"pardon our interruption",
	"request blocked",
	"verify you are human",
	"attention required",
	"too many requests",
}

// BlockSignal scans page content for anti-automation markers and
// returns the first one found, or "" if none matched.
func BlockSignal(content string) string {
	lower := strings.ToLower(content)
	for _, sig := range blockSignals {
		if strings.Contains(lower, sig) {
			return sig
		}
	}
	return ""
}

// IsTransient reports whether an attempt failure is worth retrying
// on the same target after a backoff.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRunStopped) || errors.Is(err, ErrBudgetReached) {
		return false
	}
	return true
}
