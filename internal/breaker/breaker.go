// Package breaker implements the per-target failure-isolation state
// machine. A tripped target fails fast without touching the network, so
// one hostile site cannot starve the run.
package breaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/forager-sh/forager/internal/types"
)

// State is the breaker's position for one target.
type State int32

const (
	StateClosed   State = 0
	StateOpen     State = 1
	StateHalfOpen State = 2
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker isolates failing targets. State is keyed and locked per
// target id and mutated only here.
type Breaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration
	logger           *slog.Logger

	mu     sync.Mutex
	states map[string]*targetState
}

type targetState struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureAt       time.Time
}

// New creates a Breaker that opens after failureThreshold consecutive
// failures and probes again after recoveryTimeout.
func New(failureThreshold int, recoveryTimeout time.Duration, logger *slog.Logger) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		logger:           logger.With("component", "breaker"),
		states:           make(map[string]*targetState),
	}
}

func (b *Breaker) target(id string) *targetState {
	b.mu.Lock()
	defer b.mu.Unlock()

	ts, ok := b.states[id]
	if !ok {
		ts = &targetState{state: StateClosed}
		b.states[id] = ts
	}
	return ts
}

// Execute runs op under the target's breaker. While OPEN and inside the
// recovery window it returns ErrBreakerOpen immediately and op never
// runs; that is the isolation guarantee.
func (b *Breaker) Execute(targetID string, op func() error) error {
	ts := b.target(targetID)

	ts.mu.Lock()
	switch ts.state {
	case StateOpen:
		if time.Since(ts.lastFailureAt) < b.recoveryTimeout {
			ts.mu.Unlock()
			return types.ErrBreakerOpen
		}
		ts.state = StateHalfOpen
		b.logger.Info("breaker half-open, probing", "target", targetID)
	case StateHalfOpen, StateClosed:
	}
	ts.mu.Unlock()

	err := op()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if err == nil {
		if ts.state == StateHalfOpen {
			b.logger.Info("breaker closed after successful probe", "target", targetID)
		}
		ts.state = StateClosed
		ts.consecutiveFailures = 0
		return nil
	}

	ts.consecutiveFailures++
	ts.lastFailureAt = time.Now()

	if ts.state == StateHalfOpen {
		ts.state = StateOpen
		b.logger.Warn("breaker re-opened after failed probe", "target", targetID, "error", err)
	} else if ts.consecutiveFailures >= b.failureThreshold {
		ts.state = StateOpen
		b.logger.Warn("breaker tripped open",
			"target", targetID,
			"consecutive_failures", ts.consecutiveFailures,
			"error", err,
		)
	}
	return err
}

// State returns the target's current breaker position.
func (b *Breaker) State(targetID string) State {
	ts := b.target(targetID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.state
}

// Failures returns the target's consecutive failure count.
func (b *Breaker) Failures(targetID string) int {
	ts := b.target(targetID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.consecutiveFailures
}
