package strategy

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/forager-sh/forager/internal/types"
)

// Selector scores and orders strategies per target per attempt. The
// scoring is an explicit heuristic, not a bandit policy: base score,
// recent success on this target, operator-configured bonuses, a
// penalty for strategies that already failed in this target run, and a
// daytime penalty for the noisy variants.
type Selector struct {
	registry []Strategy
	history  *History
	logger   *slog.Logger

	// now is injectable for the business-hours tests.
	now func() time.Time
}

// NewSelector builds a selector over the given registry slice. The
// slice order is the deterministic tie-break.
func NewSelector(registry []Strategy, history *History, logger *slog.Logger) *Selector {
	return &Selector{
		registry: registry,
		history:  history,
		logger:   logger.With("component", "selector"),
		now:      time.Now,
	}
}

// Rank returns the registry ordered by descending score for one
// attempt against target. sessionFailures holds the strategy names
// that already failed for this target within the current target run.
func (s *Selector) Rank(target *types.Target, sessionFailures map[string]bool) []Strategy {
	type scored struct {
		strat Strategy
		score float64
	}
	list := make([]scored, 0, len(s.registry))
	for _, strat := range s.registry {
		score := 50.0
		rate := s.history.SuccessRate(target.ID, strat.Name())
		score += min(30, 30*rate)
		score += target.Bonus(strat.Name())
		if sessionFailures[strat.Name()] {
			score -= 20
		}
		if strat.Aggressive() && businessHours(s.now()) {
			score -= 10
		}
		list = append(list, scored{strat, score})
	}

	// Stable sort keeps registration order for equal scores.
	sort.SliceStable(list, func(i, j int) bool { return list[i].score > list[j].score })

	ranked := make([]Strategy, len(list))
	for i, e := range list {
		ranked[i] = e.strat
	}
	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		names := make([]string, len(list))
		for i, e := range list {
			names[i] = e.strat.Name()
		}
		s.logger.Debug("ranked strategies", "target", target.ID, "order", names)
	}
	return ranked
}

// businessHours reports whether t falls in the weekday daytime window
// when noisy traffic stands out most against human browsing patterns.
func businessHours(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := t.Hour()
	return h >= 9 && h < 18
}
