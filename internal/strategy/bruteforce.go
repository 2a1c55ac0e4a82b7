package strategy

import (
	"context"

	"github.com/forager-sh/forager/internal/extract"
	"github.com/forager-sh/forager/internal/types"
)

// BruteForceSweep scans broad low-specificity selectors when the
// curated hints come up empty. It trades precision for recall, so its
// items carry the lowest confidence and the pipeline caps their score
// contribution.
type BruteForceSweep struct{}

func (*BruteForceSweep) Name() string     { return NameBruteForce }
func (*BruteForceSweep) Aggressive() bool { return true }

func (b *BruteForceSweep) Attempt(ctx context.Context, deps *Deps, target *types.Target, category string) ([]types.RawItem, error) {
	fp := deps.Fingerprints.Generate()
	var lastErr error
	for _, url := range target.EntryURLs(category) {
		page, err := deps.Browser.Open(ctx, fp, url, deps.Timeout)
		if err != nil {
			lastErr = err
			continue
		}
		if err := page.ScrollCycle(deps.ScrollCycles); err != nil {
			deps.Logger.Warn("scroll cycle failed, sweeping anyway", "error", err)
		}
		html, err := page.HTML()
		final := page.FinalURL()
		page.Close()
		if err != nil {
			lastErr = &types.ExtractionError{URL: final, Strategy: b.Name(), Err: err}
			continue
		}

		// Hints first even here: a precise hit beats a sweep.
		items := extract.ByHints(html, target.SelectorHints, final, b.Name())
		if len(items) == 0 {
			items = extract.Sweep(html, final, b.Name())
		}
		if len(items) > 0 {
			return items, nil
		}
		lastErr = &types.ExtractionError{URL: final, Strategy: b.Name(), Err: types.ErrNoItems}
	}
	if lastErr == nil {
		lastErr = &types.ExtractionError{Strategy: b.Name(), Err: types.ErrNoItems}
	}
	return nil, lastErr
}
