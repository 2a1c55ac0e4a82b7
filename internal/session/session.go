// Package session persists run progress so an interrupted run can be
// resumed without redoing completed target/category pairs.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TargetProgress tracks one target within a session.
type TargetProgress struct {
	Items          int             `json:"items"`
	DoneCategories map[string]bool `json:"done_categories"`
	Completed      bool            `json:"completed"`
	LastTouched    time.Time       `json:"last_touched"`
}

// State is the resumable session record. All mutation goes through
// its methods; the orchestrator is the only writer.
type State struct {
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	TotalItems int       `json:"total_items"`

	Targets map[string]*TargetProgress `json:"targets"`

	mu sync.Mutex
}

// NewState starts a fresh session.
func NewState() *State {
	return &State{
		SessionID: uuid.NewString(),
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
		Targets:   make(map[string]*TargetProgress),
	}
}

func (s *State) progress(target string) *TargetProgress {
	p, ok := s.Targets[target]
	if !ok {
		p = &TargetProgress{DoneCategories: make(map[string]bool)}
		s.Targets[target] = p
	}
	if p.DoneCategories == nil {
		p.DoneCategories = make(map[string]bool)
	}
	return p
}

// MarkCategoryDone records one completed target/category unit.
func (s *State) MarkCategoryDone(target, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.progress(target)
	p.DoneCategories[category] = true
	p.LastTouched = time.Now()
	s.UpdatedAt = p.LastTouched
}

// IsCategoryDone reports whether a target/category pair already
// completed, in this run or a resumed one.
func (s *State) IsCategoryDone(target, category string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Targets[target]
	return ok && p.DoneCategories[category]
}

// MarkTargetCompleted flags a target as fully processed.
func (s *State) MarkTargetCompleted(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.progress(target)
	p.Completed = true
	p.LastTouched = time.Now()
	s.UpdatedAt = p.LastTouched
}

// IsTargetCompleted reports whether the target finished in a previous
// or the current run.
func (s *State) IsTargetCompleted(target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Targets[target]
	return ok && p.Completed
}

// AddItems accumulates accepted item counts for a target and the run.
func (s *State) AddItems(target string, n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.progress(target)
	p.Items += n
	p.LastTouched = time.Now()
	s.TotalItems += n
	s.UpdatedAt = p.LastTouched
}

// Total returns the run-wide accepted item count.
func (s *State) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TotalItems
}
