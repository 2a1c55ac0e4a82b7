// Package strategy implements the polymorphic extraction attempts and
// the heuristic selector that orders them per target.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forager-sh/forager/internal/fingerprint"
	"github.com/forager-sh/forager/internal/types"
)

// Strategy names. These are stable identifiers: they appear in target
// bonus maps, outcome history, session files and reports.
const (
	NameStealth     = "stealth"
	NameBruteForce  = "brute-force"
	NameEvasion     = "evasion"
	NameMultiVector = "multi-vector"
	NameHybrid      = "hybrid"
)

// Browser is the navigation capability a strategy consumes.
type Browser interface {
	Open(ctx context.Context, fp *fingerprint.Fingerprint, url string, timeout time.Duration) (Page, error)
}

// Page is one rendered page a strategy reads from.
type Page interface {
	HTML() (string, error)
	ScrollCycle(n int) error
	FinalURL() string
	Close() error
}

// Vector is the non-browser acquisition capability.
type Vector interface {
	FetchAPI(ctx context.Context, fp *fingerprint.Fingerprint, target *types.Target, category string) ([]types.RawItem, error)
	FetchMobile(ctx context.Context, fp *fingerprint.Fingerprint, url string) (string, error)
	Sitemap(ctx context.Context, fp *fingerprint.Fingerprint, target *types.Target) ([]string, error)
}

// Deps carries the collaborators every strategy draws on. One Deps
// value is shared across all strategies in a run.
type Deps struct {
	Browser      Browser
	Vector       Vector
	Fingerprints *fingerprint.Provider
	Logger       *slog.Logger

	Timeout      time.Duration
	ScrollCycles int
	MinViable    int
}

// Strategy is one distinct method of accessing and extracting data
// from a target. Attempt reports failures as typed errors; it never
// panics past its boundary (Run guards that).
type Strategy interface {
	Name() string

	// Aggressive marks strategies that trade subtlety for recall.
	// The selector penalizes them during the target's business hours.
	Aggressive() bool

	Attempt(ctx context.Context, deps *Deps, target *types.Target, category string) ([]types.RawItem, error)
}

// Run executes one strategy attempt and folds the result into a
// StrategyOutcome. Panics inside an attempt are recovered and recorded
// as extraction failures so a misbehaving strategy cannot take the
// worker down.
func Run(ctx context.Context, s Strategy, deps *Deps, target *types.Target, category string) (items []types.RawItem, outcome types.StrategyOutcome, err error) {
	outcome = types.StrategyOutcome{
		Target:    target.ID,
		Strategy:  s.Name(),
		Category:  category,
		StartedAt: time.Now(),
	}
	defer func() {
		if r := recover(); r != nil {
			err = &types.ExtractionError{
				Strategy: s.Name(),
				Err:      fmt.Errorf("panic: %v", r),
			}
			items = nil
		}
		outcome.Duration = time.Since(outcome.StartedAt)
		outcome.ItemCount = len(items)
		outcome.Success = err == nil && len(items) > 0
		outcome.ErrorKind = types.Classify(err)
	}()

	items, err = s.Attempt(ctx, deps, target, category)
	if err == nil && len(items) == 0 {
		err = &types.ExtractionError{Strategy: s.Name(), Err: types.ErrNoItems}
	}
	return items, outcome, err
}

// Registry returns the full strategy set in registration order. The
// order is the selector's deterministic tie-break.
func Registry() []Strategy {
	return []Strategy{
		&StandardStealth{},
		&BruteForceSweep{},
		&EvasionFirst{},
		&MultiVector{},
		&Hybrid{},
	}
}

// ByName resolves a single strategy from the registry.
func ByName(name string) (Strategy, bool) {
	for _, s := range Registry() {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// sleepCtx pauses for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
