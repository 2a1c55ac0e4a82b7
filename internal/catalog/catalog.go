// Package catalog persists canonical items. Sinks share one upsert
// contract so the same item re-extracted in a later run updates in
// place instead of duplicating.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forager-sh/forager/internal/config"
	"github.com/forager-sh/forager/internal/types"
)

// Catalog is one persistence backend for canonical items.
type Catalog interface {
	// Upsert writes items keyed by their canonical ID.
	Upsert(ctx context.Context, items []types.CanonicalItem) error

	// Flush forces buffered state to durable storage.
	Flush(ctx context.Context) error

	Close(ctx context.Context) error
	Name() string
}

// Open builds the configured sink set. Multiple sinks are wrapped in
// a fan-out catalog; zero valid sinks is a setup error.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Catalog, error) {
	var sinks []Catalog
	for _, name := range cfg.Catalog.Sinks {
		switch name {
		case "file":
			sinks = append(sinks, NewFile(cfg.Run.OutputDir, logger))
		case "mongo":
			m, err := OpenMongo(ctx, &cfg.Catalog, logger)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, m)
		case "postgres":
			p, err := OpenPostgres(ctx, &cfg.Catalog, logger)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, p)
		default:
			return nil, fmt.Errorf("unknown catalog sink %q", name)
		}
	}
	if len(sinks) == 0 {
		return nil, types.ErrCatalogNotOpen
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMulti(sinks, logger), nil
}
