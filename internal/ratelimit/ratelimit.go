// Package ratelimit implements the per-target adaptive delay controller.
// Delays speed up slowly on sustained fast successes and back off hard on
// block signals, always staying inside the target's rate profile.
package ratelimit

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/forager-sh/forager/internal/types"
)

// Limiter paces requests per target. State is keyed and locked per
// target id; concurrent attempts against the same target are forbidden
// upstream, so one mutex per target suffices.
type Limiter struct {
	fastThreshold time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	states map[string]*state
}

type state struct {
	mu      sync.Mutex
	profile types.RateProfile
	current time.Duration

	lastRequest time.Time
	fastStreak  int
	failStreak  int
}

// New creates a Limiter. Successful attempts faster than fastThreshold
// count toward the speed-up streak.
func New(fastThreshold time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{
		fastThreshold: fastThreshold,
		logger:        logger.With("component", "ratelimit"),
		states:        make(map[string]*state),
	}
}

func (l *Limiter) state(t *types.Target) *state {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.states[t.ID]
	if !ok {
		s = &state{
			profile: t.RateProfile,
			current: t.RateProfile.InitialDelay,
		}
		if s.current == 0 {
			s.current = t.RateProfile.MinDelay
		}
		l.states[t.ID] = s
	}
	return s
}

// Wait blocks until the target's current delay has elapsed since its
// last request, or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context, t *types.Target) error {
	s := l.state(t)

	s.mu.Lock()
	elapsed := time.Since(s.lastRequest)
	delay := s.current
	s.mu.Unlock()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	s.mu.Lock()
	s.lastRequest = time.Now()
	s.mu.Unlock()
	return nil
}

// Report adjusts the target's delay from an attempt outcome.
func (l *Limiter) Report(t *types.Target, outcome *types.StrategyOutcome) {
	s := l.state(t)

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.current

	switch {
	case outcome.Success:
		s.failStreak = 0
		if outcome.Fast(l.fastThreshold) {
			s.fastStreak++
			if s.fastStreak >= 5 {
				s.current = clamp(time.Duration(float64(s.current)*0.9), s.profile)
			}
		} else {
			s.fastStreak = 0
		}

	case outcome.ErrorKind == types.ErrorKindBlocked:
		s.fastStreak = 0
		s.failStreak++
		// Strong slowdown: a block signal means the target noticed us.
		factor := 2.5 + rand.Float64()*0.5
		s.current = clamp(time.Duration(float64(s.current)*factor), s.profile)

	case outcome.ErrorKind == types.ErrorKindTimeout,
		outcome.ErrorKind == types.ErrorKindNavigation:
		s.fastStreak = 0
		s.failStreak++
		factor := 1.2 + rand.Float64()*0.3
		s.current = clamp(time.Duration(float64(s.current)*factor), s.profile)

	default:
		// Extraction failures say nothing about pacing.
		s.fastStreak = 0
	}

	if s.current != before {
		l.logger.Debug("delay adjusted",
			"target", t.ID,
			"from", before,
			"to", s.current,
			"outcome", outcome.ErrorKind,
			"success", outcome.Success,
		)
	}
}

// Delay returns the target's current delay; used by the report and tests.
func (l *Limiter) Delay(t *types.Target) time.Duration {
	s := l.state(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func clamp(d time.Duration, p types.RateProfile) time.Duration {
	if d < p.MinDelay {
		return p.MinDelay
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
