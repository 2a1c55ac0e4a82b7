package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/forager-sh/forager/internal/types"
)

// Store reads and writes session files. Writes go through a temp file
// and rename so a crash mid-flush never corrupts the resume state.
type Store struct {
	path   string
	maxAge time.Duration
	logger *slog.Logger
}

// NewStore builds a store for the session file at path. Sessions older
// than maxAge are treated as stale on load.
func NewStore(path string, maxAge time.Duration, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		maxAge: maxAge,
		logger: logger.With("component", "session"),
	}
}

// Save persists the state atomically.
func (st *Store) Save(s *State) error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return &types.PersistenceError{Path: st.path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return &types.PersistenceError{Path: st.path, Err: err}
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &types.PersistenceError{Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, st.path); err != nil {
		return &types.PersistenceError{Path: st.path, Err: err}
	}
	return nil
}

// Load reads a previous session. A missing file or a session older
// than maxAge returns ErrStaleSession; a fresh run should start clean
// in both cases.
func (st *Store) Load() (*State, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.ErrStaleSession
		}
		return nil, &types.PersistenceError{Path: st.path, Err: err}
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		st.logger.Warn("session file unreadable, starting fresh", "path", st.path, "error", err)
		return nil, types.ErrStaleSession
	}
	if s.Targets == nil {
		s.Targets = make(map[string]*TargetProgress)
	}

	age := time.Since(s.UpdatedAt)
	if s.UpdatedAt.IsZero() {
		age = time.Since(s.StartedAt)
	}
	if age > st.maxAge {
		st.logger.Info("session too old to resume", "age", age, "max_age", st.maxAge)
		return nil, types.ErrStaleSession
	}
	st.logger.Info("resuming session", "session_id", s.SessionID, "items", s.TotalItems)
	return &s, nil
}

// Remove deletes the session file, used after a fully completed run.
func (st *Store) Remove() error {
	if err := os.Remove(st.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &types.PersistenceError{Path: st.path, Err: err}
	}
	return nil
}
