package catalog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/forager-sh/forager/internal/types"
)

// Multi fans every call out to all configured sinks. One sink failing
// does not stop the others; the joined error carries every failure.
type Multi struct {
	sinks  []Catalog
	logger *slog.Logger
}

// NewMulti wraps the given sinks.
func NewMulti(sinks []Catalog, logger *slog.Logger) *Multi {
	return &Multi{sinks: sinks, logger: logger.With("component", "catalog", "sink", "multi")}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Upsert(ctx context.Context, items []types.CanonicalItem) error {
	return m.each(func(c Catalog) error { return c.Upsert(ctx, items) })
}

func (m *Multi) Flush(ctx context.Context) error {
	return m.each(func(c Catalog) error { return c.Flush(ctx) })
}

func (m *Multi) Close(ctx context.Context) error {
	return m.each(func(c Catalog) error { return c.Close(ctx) })
}

func (m *Multi) each(op func(Catalog) error) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := op(sink); err != nil {
			m.logger.Warn("sink failed", "sink", sink.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
