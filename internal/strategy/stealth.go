package strategy

import (
	"context"
	"errors"

	"github.com/forager-sh/forager/internal/extract"
	"github.com/forager-sh/forager/internal/types"
)

// StandardStealth navigates the target's entry points with a
// randomized fingerprint, forces lazy content with bounded scroll
// cycles, and extracts through the target's ranked selector hints.
type StandardStealth struct{}

func (*StandardStealth) Name() string     { return NameStealth }
func (*StandardStealth) Aggressive() bool { return false }

func (s *StandardStealth) Attempt(ctx context.Context, deps *Deps, target *types.Target, category string) ([]types.RawItem, error) {
	fp := deps.Fingerprints.Generate()
	var lastErr error
	for _, url := range target.EntryURLs(category) {
		page, err := deps.Browser.Open(ctx, fp, url, deps.Timeout)
		if err != nil {
			lastErr = err
			// A block on one entry point usually means a block on
			// all of them; stop probing and let evasion take over.
			var blocked *types.BlockedError
			if errors.As(err, &blocked) {
				return nil, err
			}
			continue
		}

		items, err := extractHinted(page, deps, target, s.Name())
		page.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if len(items) > 0 {
			return items, nil
		}
		lastErr = &types.ExtractionError{URL: url, Strategy: s.Name(), Err: types.ErrNoItems}
	}
	if lastErr == nil {
		lastErr = &types.ExtractionError{Strategy: s.Name(), Err: types.ErrNoItems}
	}
	return nil, lastErr
}

// extractHinted scrolls a page out and runs the hint ladder on the
// final markup.
func extractHinted(page Page, deps *Deps, target *types.Target, by string) ([]types.RawItem, error) {
	if err := page.ScrollCycle(deps.ScrollCycles); err != nil {
		deps.Logger.Warn("scroll cycle failed, extracting anyway", "error", err)
	}
	html, err := page.HTML()
	if err != nil {
		return nil, &types.ExtractionError{URL: page.FinalURL(), Strategy: by, Err: err}
	}
	return extract.ByHints(html, target.SelectorHints, page.FinalURL(), by), nil
}
