package catalog

import (
	"context"
	"encoding/json"
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

func item(id, name, target string) types.CanonicalItem {
	now := time.Now()
	return types.CanonicalItem{
		ID: id, Name: name, Brand: "BrandCo", Category: "general",
		Price: 4.99, Currency: "USD", QualityScore: 9,
		SourceTarget: target, SourceURL: "https://x.example/p",
		FirstSeenAt: now, LastSeenAt: now,
	}
}

func readCatalog(t *testing.T, path string) []types.CanonicalItem {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var items []types.CanonicalItem
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return items
}

func TestFileWritesPerTargetAndMerged(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(dir, discardLogger())
	ctx := context.Background()

	err := f.Upsert(ctx, []types.CanonicalItem{
		item("aaa", "Cola", "shopco"),
		item("bbb", "Chips", "megamart"),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := f.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	merged := readCatalog(t, filepath.Join(dir, "catalog.json"))
	if len(merged) != 2 {
		t.Fatalf("merged catalog has %d items, want 2", len(merged))
	}
	shopco := readCatalog(t, filepath.Join(dir, "catalog_shopco.json"))
	if len(shopco) != 1 || shopco[0].Name != "Cola" {
		t.Fatalf("unexpected per-target catalog: %+v", shopco)
	}
}

func TestFileUpsertReplacesByID(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(dir, discardLogger())
	ctx := context.Background()

	first := item("aaa", "Cola", "shopco")
	f.Upsert(ctx, []types.CanonicalItem{first})

	updated := first
	updated.Price = 5.49
	updated.FirstSeenAt = time.Now().Add(time.Hour)
	f.Upsert(ctx, []types.CanonicalItem{updated})
	f.Flush(ctx)

	items := readCatalog(t, filepath.Join(dir, "catalog.json"))
	if len(items) != 1 {
		t.Fatalf("expected 1 item after upsert, got %d", len(items))
	}
	if items[0].Price != 5.49 {
		t.Errorf("price not updated: %v", items[0].Price)
	}
	if !items[0].FirstSeenAt.Equal(first.FirstSeenAt) {
		t.Errorf("firstSeenAt must survive upserts: got %v, want %v", items[0].FirstSeenAt, first.FirstSeenAt)
	}
}

func TestFileFlushLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(dir, discardLogger())
	ctx := context.Background()
	f.Upsert(ctx, []types.CanonicalItem{item("aaa", "Cola", "shopco")})
	if err := f.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

type failingSink struct{ Catalog }

func (failingSink) Name() string { return "failing" }
func (failingSink) Upsert(context.Context, []types.CanonicalItem) error {
	return errors.New("sink down")
}

func TestMultiContinuesPastFailingSink(t *testing.T) {
	dir := t.TempDir()
	file := NewFile(dir, discardLogger())
	m := NewMulti([]Catalog{failingSink{}, file}, discardLogger())
	ctx := context.Background()

	err := m.Upsert(ctx, []types.CanonicalItem{item("aaa", "Cola", "shopco")})
	if err == nil {
		t.Fatal("expected joined error from failing sink")
	}
	file.Flush(ctx)
	if got := readCatalog(t, filepath.Join(dir, "catalog.json")); len(got) != 1 {
		t.Fatalf("healthy sink should still have received the item, got %d", len(got))
	}
}
