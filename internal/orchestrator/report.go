package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/forager-sh/forager/internal/types"
)

// TargetReport aggregates one target's run.
type TargetReport struct {
	Attempts      int     `json:"attempts"`
	Successes     int     `json:"successes"`
	Failures      int     `json:"failures"`
	ItemsAccepted int     `json:"items_accepted"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// StrategyReport aggregates one strategy across all targets.
type StrategyReport struct {
	Attempts      int     `json:"attempts"`
	Successes     int     `json:"successes"`
	ItemsRaw      int     `json:"items_raw"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// Report is the read-only run summary derived from the outcome
// history and the pipeline at run end.
type Report struct {
	SessionID  string        `json:"session_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	ItemsAccepted   int `json:"items_accepted"`
	ItemsRejected   int `json:"items_rejected"`
	ItemsDuplicated int `json:"items_duplicated"`

	TargetsSucceeded int `json:"targets_succeeded"`
	TargetsFailed    int `json:"targets_failed"`

	AvgQuality float64 `json:"avg_quality"`

	Targets    map[string]*TargetReport   `json:"targets"`
	Strategies map[string]*StrategyReport `json:"strategies"`
	Categories map[string]int             `json:"categories"`
}

// Partial reports whether some targets produced nothing while others
// succeeded or the run still wrote a catalog; drives the CLI exit
// code.
func (r *Report) Partial() bool {
	return r.TargetsFailed > 0
}

func (o *Orchestrator) buildReport(started time.Time) *Report {
	r := &Report{
		SessionID:  o.state.SessionID,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Targets:    make(map[string]*TargetReport),
		Strategies: make(map[string]*StrategyReport),
		Categories: make(map[string]int),
	}
	r.Duration = r.FinishedAt.Sub(started)

	stats := o.pipe.Stats()
	r.ItemsAccepted = int(stats.Accepted)
	r.ItemsRejected = int(stats.Rejected)
	r.ItemsDuplicated = int(stats.Duplicates)

	for _, out := range o.history.Outcomes() {
		tr := r.Targets[out.Target]
		if tr == nil {
			tr = &TargetReport{}
			r.Targets[out.Target] = tr
		}
		tr.Attempts++
		tr.AvgDurationMs += float64(out.Duration.Milliseconds())
		sr := r.Strategies[out.Strategy]
		if sr == nil {
			sr = &StrategyReport{}
			r.Strategies[out.Strategy] = sr
		}
		sr.Attempts++
		sr.AvgDurationMs += float64(out.Duration.Milliseconds())
		sr.ItemsRaw += out.ItemCount
		if out.Success {
			tr.Successes++
			sr.Successes++
		} else {
			tr.Failures++
		}
	}
	for _, tr := range r.Targets {
		if tr.Attempts > 0 {
			tr.AvgDurationMs /= float64(tr.Attempts)
		}
	}
	for _, sr := range r.Strategies {
		if sr.Attempts > 0 {
			sr.SuccessRate = float64(sr.Successes) / float64(sr.Attempts)
			sr.AvgDurationMs /= float64(sr.Attempts)
		}
	}

	var quality int
	items := o.pipe.Items()
	for _, it := range items {
		quality += it.QualityScore
		r.Categories[it.Category]++
	}
	if len(items) > 0 {
		r.AvgQuality = float64(quality) / float64(len(items))
	}

	for id, tr := range r.Targets {
		var accepted int
		for _, it := range items {
			if it.SourceTarget == id {
				accepted++
			}
		}
		tr.ItemsAccepted = accepted
		if tr.Successes == 0 {
			r.TargetsFailed++
		} else {
			r.TargetsSucceeded++
		}
	}
	return r
}

// WriteReport persists the report next to the catalog output.
func WriteReport(r *Report, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &types.PersistenceError{Path: dir, Err: err}
	}
	path := filepath.Join(dir, "run_report.json")
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", &types.PersistenceError{Path: path, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", &types.PersistenceError{Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", &types.PersistenceError{Path: path, Err: err}
	}
	return path, nil
}
