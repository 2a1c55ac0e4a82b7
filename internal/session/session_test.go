package session

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forager-sh/forager/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path, 24*time.Hour, discardLogger())

	s := NewState()
	s.MarkCategoryDone("shopco", "beverages")
	s.MarkCategoryDone("shopco", "snacks")
	s.AddItems("shopco", 17)
	s.MarkTargetCompleted("megamart")

	if err := store.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SessionID != s.SessionID {
		t.Errorf("session id changed across reload")
	}
	if !loaded.IsCategoryDone("shopco", "beverages") || !loaded.IsCategoryDone("shopco", "snacks") {
		t.Error("completed categories lost")
	}
	if loaded.IsCategoryDone("shopco", "dairy") {
		t.Error("phantom completed category")
	}
	if !loaded.IsTargetCompleted("megamart") {
		t.Error("completed target lost")
	}
	if loaded.Total() != 17 {
		t.Errorf("total = %d, want 17", loaded.Total())
	}
}

func TestLoadMissingFileIsStale(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "none.json"), time.Hour, discardLogger())
	if _, err := store.Load(); !errors.Is(err, types.ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession, got %v", err)
	}
}

func TestLoadRejectsExpiredSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path, time.Hour, discardLogger())

	s := NewState()
	s.StartedAt = time.Now().Add(-26 * time.Hour)
	s.UpdatedAt = time.Now().Add(-25 * time.Hour)
	s.MarkCategoryDone("shopco", "beverages")
	s.UpdatedAt = time.Now().Add(-25 * time.Hour)
	if err := store.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := store.Load(); !errors.Is(err, types.ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession for old session, got %v", err)
	}
}

func TestLoadToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(path, time.Hour, discardLogger())
	if _, err := store.Load(); !errors.Is(err, types.ErrStaleSession) {
		t.Fatalf("corrupt file should read as stale, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path, time.Hour, discardLogger())
	if err := store.Save(NewState()); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("session file still present")
	}
	// Removing twice is fine.
	if err := store.Remove(); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}
