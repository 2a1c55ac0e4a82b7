package types

import "time"

// StrategyOutcome records the result of one strategy attempt against one
// target. Appended after every attempt; feeds historical scoring and the
// run report.
type StrategyOutcome struct {
	Target    string        `json:"target"`
	Strategy  string        `json:"strategy"`
	Category  string        `json:"category,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	ItemCount int           `json:"item_count"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
}

// Fast reports whether a successful attempt finished under the given
// threshold; feeds the rate limiter's speed-up path.
func (o *StrategyOutcome) Fast(threshold time.Duration) bool {
	return o.Success && o.Duration < threshold
}
