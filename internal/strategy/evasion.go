package strategy

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/forager-sh/forager/internal/types"
)

// EvasionFirst assumes the target is watching. It uses a noisy
// fingerprint (canvas and WebGL entropy, scrubbed automation markers),
// pauses a human-like random interval before each navigation, and
// after a block retries through alternate entry points: the mobile
// subdomain, then the site root.
type EvasionFirst struct{}

func (*EvasionFirst) Name() string     { return NameEvasion }
func (*EvasionFirst) Aggressive() bool { return true }

const (
	humanPauseMin = 800 * time.Millisecond
	humanPauseMax = 2600 * time.Millisecond
)

func (e *EvasionFirst) Attempt(ctx context.Context, deps *Deps, target *types.Target, category string) ([]types.RawItem, error) {
	fp := deps.Fingerprints.GenerateNoisy()
	var lastErr error
	for _, url := range target.EntryURLs(category) {
		for _, candidate := range e.entryLadder(target, url) {
			if err := humanPause(ctx); err != nil {
				return nil, &types.NavigationError{URL: candidate, Err: err}
			}

			page, err := deps.Browser.Open(ctx, fp, candidate, deps.Timeout)
			if err != nil {
				lastErr = err
				var blocked *types.BlockedError
				if errors.As(err, &blocked) {
					deps.Logger.Info("blocked, trying alternate entry",
						"target", target.ID, "url", candidate, "signal", blocked.Signal)
					// Rotate the fingerprint before the next ladder
					// rung; the blocked one is burned.
					fp = deps.Fingerprints.GenerateNoisy()
					continue
				}
				continue
			}

			items, err := extractHinted(page, deps, target, e.Name())
			page.Close()
			if err != nil {
				lastErr = err
				continue
			}
			if len(items) > 0 {
				return items, nil
			}
			lastErr = &types.ExtractionError{URL: candidate, Strategy: e.Name(), Err: types.ErrNoItems}
		}
	}
	if lastErr == nil {
		lastErr = &types.ExtractionError{Strategy: e.Name(), Err: types.ErrNoItems}
	}
	return nil, lastErr
}

// entryLadder orders the fallback entry points for one URL: the URL
// itself, the target's configured mobile URL or a derived m.
// subdomain, then the site root.
func (*EvasionFirst) entryLadder(target *types.Target, url string) []string {
	ladder := []string{url}
	if target.MobileURL != "" {
		ladder = append(ladder, target.MobileURL)
	} else if m := types.MobileVariant(url); m != "" {
		ladder = append(ladder, m)
	}
	if root := types.RootVariant(url); root != "" && root != url {
		ladder = append(ladder, root)
	}
	return ladder
}

func humanPause(ctx context.Context) error {
	span := humanPauseMax - humanPauseMin
	return sleepCtx(ctx, humanPauseMin+time.Duration(rand.Int63n(int64(span))))
}
