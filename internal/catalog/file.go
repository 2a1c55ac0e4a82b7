package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/forager-sh/forager/internal/types"
)

// File writes per-target JSON files plus one merged catalog file into
// the output directory. It is the default sink and needs no external
// services.
type File struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	items map[string]types.CanonicalItem
}

// NewFile builds the file sink rooted at dir.
func NewFile(dir string, logger *slog.Logger) *File {
	return &File{
		dir:    dir,
		logger: logger.With("component", "catalog", "sink", "file"),
		items:  make(map[string]types.CanonicalItem),
	}
}

func (f *File) Name() string { return "file" }

// Upsert merges items into the in-memory set; Flush makes them
// durable.
func (f *File) Upsert(_ context.Context, items []types.CanonicalItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		if prev, ok := f.items[it.ID]; ok {
			it.FirstSeenAt = prev.FirstSeenAt
		}
		f.items[it.ID] = it
	}
	return nil
}

// Flush writes every file atomically via a temp file and rename so a
// crash mid-write never leaves a truncated catalog behind.
func (f *File) Flush(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return &types.PersistenceError{Path: f.dir, Err: err}
	}

	byTarget := make(map[string][]types.CanonicalItem)
	var all []types.CanonicalItem
	for _, it := range f.items {
		byTarget[it.SourceTarget] = append(byTarget[it.SourceTarget], it)
		all = append(all, it)
	}

	for target, items := range byTarget {
		path := filepath.Join(f.dir, fmt.Sprintf("catalog_%s.json", target))
		if err := writeJSON(path, sorted(items)); err != nil {
			return err
		}
	}
	if err := writeJSON(filepath.Join(f.dir, "catalog.json"), sorted(all)); err != nil {
		return err
	}
	f.logger.Debug("catalog flushed", "items", len(all), "targets", len(byTarget))
	return nil
}

func (f *File) Close(ctx context.Context) error {
	return f.Flush(ctx)
}

func sorted(items []types.CanonicalItem) []types.CanonicalItem {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &types.PersistenceError{Path: path, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &types.PersistenceError{Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &types.PersistenceError{Path: path, Err: err}
	}
	return nil
}
