package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forager-sh/forager/internal/config"
	"github.com/forager-sh/forager/internal/types"
)

// Postgres upserts canonical items into a relational table with ON
// CONFLICT on the canonical ID.
type Postgres struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

const createTableStmt = `CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	brand         TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT 'general',
	price         DOUBLE PRECISION,
	currency      TEXT NOT NULL DEFAULT '',
	image_url     TEXT NOT NULL DEFAULT '',
	quality_score INTEGER NOT NULL,
	source_target TEXT NOT NULL,
	source_url    TEXT NOT NULL DEFAULT '',
	first_seen_at TIMESTAMPTZ NOT NULL,
	last_seen_at  TIMESTAMPTZ NOT NULL
)`

const upsertStmt = `INSERT INTO %s
	(id, name, brand, category, price, currency, image_url, quality_score, source_target, source_url, first_seen_at, last_seen_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	brand = EXCLUDED.brand,
	category = EXCLUDED.category,
	price = EXCLUDED.price,
	currency = EXCLUDED.currency,
	image_url = EXCLUDED.image_url,
	quality_score = EXCLUDED.quality_score,
	source_url = EXCLUDED.source_url,
	last_seen_at = EXCLUDED.last_seen_at`

// OpenPostgres connects, verifies the connection, and ensures the
// catalog table exists.
func OpenPostgres(ctx context.Context, cfg *config.CatalogConfig, logger *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, &types.CatalogError{Sink: "postgres", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &types.CatalogError{Sink: "postgres", Err: err}
	}
	p := &Postgres{
		pool:   pool,
		table:  cfg.PostgresTable,
		logger: logger.With("component", "catalog", "sink", "postgres"),
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(createTableStmt, p.table)); err != nil {
		pool.Close()
		return nil, &types.CatalogError{Sink: "postgres", Err: err}
	}
	return p, nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Upsert(ctx context.Context, items []types.CanonicalItem) error {
	if len(items) == 0 {
		return nil
	}
	stmt := fmt.Sprintf(upsertStmt, p.table)
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return &types.CatalogError{Sink: "postgres", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, it := range items {
		var price any
		if it.Price > 0 {
			price = it.Price
		}
		_, err := tx.Exec(ctx, stmt,
			it.ID, it.Name, it.Brand, it.Category, price, it.Currency,
			it.ImageURL, it.QualityScore, it.SourceTarget, it.SourceURL,
			it.FirstSeenAt, it.LastSeenAt)
		if err != nil {
			return &types.CatalogError{Sink: "postgres", Err: err}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return &types.CatalogError{Sink: "postgres", Err: err}
	}
	p.logger.Debug("upserted batch", "items", len(items))
	return nil
}

// Flush is a no-op; upserts commit per batch.
func (p *Postgres) Flush(context.Context) error { return nil }

func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}
