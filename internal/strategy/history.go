package strategy

import (
	"sync"

	"github.com/forager-sh/forager/internal/types"
)

// defaultWindow is how many recent outcomes per (target, strategy)
// pair feed the selector's success rate.
const defaultWindow = 20

// History is the bounded per-target per-strategy outcome record.
type History struct {
	mu      sync.Mutex
	window  int
	records map[string][]types.StrategyOutcome
}

// NewHistory returns a History keeping the last window outcomes per
// pair. A non-positive window falls back to the default.
func NewHistory(window int) *History {
	if window <= 0 {
		window = defaultWindow
	}
	return &History{
		window:  window,
		records: make(map[string][]types.StrategyOutcome),
	}
}

func historyKey(target, strat string) string {
	return target + "\x00" + strat
}

// Record appends one outcome, evicting the oldest past the window.
func (h *History) Record(o types.StrategyOutcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := historyKey(o.Target, o.Strategy)
	recs := append(h.records[key], o)
	if len(recs) > h.window {
		recs = recs[len(recs)-h.window:]
	}
	h.records[key] = recs
}

// SuccessRate returns the fraction of recent successful outcomes for a
// (target, strategy) pair. A pair with no history reads as 0.5 so an
// untried strategy is neither favored over a proven one nor starved
// behind a failing one.
func (h *History) SuccessRate(target, strat string) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	recs := h.records[historyKey(target, strat)]
	if len(recs) == 0 {
		return 0.5
	}
	var ok int
	for _, r := range recs {
		if r.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(recs))
}

// Outcomes returns a copy of the recorded outcomes for reporting.
func (h *History) Outcomes() []types.StrategyOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	var all []types.StrategyOutcome
	for _, recs := range h.records {
		all = append(all, recs...)
	}
	return all
}
