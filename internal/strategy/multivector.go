package strategy

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/forager-sh/forager/internal/extract"
	"github.com/forager-sh/forager/internal/fingerprint"
	"github.com/forager-sh/forager/internal/types"
)

// sitemapSampleSize bounds how many sitemap-discovered pages one
// attempt fetches.
const sitemapSampleSize = 5

// MultiVector skips the browser entirely and fans out over the
// target's machine-readable surfaces: the JSON endpoint, the mobile
// pages, and the sitemap. Vectors run independently and the attempt
// unions whatever each returns; one vector failing never blocks the
// others.
type MultiVector struct{}

func (*MultiVector) Name() string     { return NameMultiVector }
func (*MultiVector) Aggressive() bool { return false }

func (m *MultiVector) Attempt(ctx context.Context, deps *Deps, target *types.Target, category string) ([]types.RawItem, error) {
	fp := deps.Fingerprints.Generate()

	vectors := []func() ([]types.RawItem, error){
		func() ([]types.RawItem, error) { return deps.Vector.FetchAPI(ctx, fp, target, category) },
		func() ([]types.RawItem, error) { return m.mobileVector(ctx, deps, fp, target, category) },
		func() ([]types.RawItem, error) { return m.sitemapVector(ctx, deps, fp, target) },
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		union   []types.RawItem
		seen    = make(map[string]bool)
		lastErr error
	)
	for _, vec := range vectors {
		wg.Add(1)
		go func(run func() ([]types.RawItem, error)) {
			defer wg.Done()
			items, err := run()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// A target simply lacking a vector is not a failure
				// worth reporting over a real error.
				if lastErr == nil || errors.Is(lastErr, types.ErrNoVectors) {
					lastErr = err
				}
				return
			}
			for _, it := range items {
				key := strings.ToLower(it.Name)
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true
				union = append(union, it)
			}
		}(vec)
	}
	wg.Wait()

	if len(union) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &types.ExtractionError{Strategy: m.Name(), Err: types.ErrNoItems}
	}
	return union, nil
}

// mobileVector hits the mobile rendition of the category entry points
// and runs hint extraction with a sweep fallback.
func (m *MultiVector) mobileVector(ctx context.Context, deps *Deps, fp *fingerprint.Fingerprint, target *types.Target, category string) ([]types.RawItem, error) {
	var lastErr error
	for _, url := range target.EntryURLs(category) {
		mobile := target.MobileURL
		if mobile == "" {
			mobile = types.MobileVariant(url)
		}
		if mobile == "" {
			return nil, types.ErrNoVectors
		}
		html, err := deps.Vector.FetchMobile(ctx, fp, mobile)
		if err != nil {
			lastErr = err
			continue
		}
		items := extract.ByHints(html, target.SelectorHints, mobile, m.Name())
		if len(items) == 0 {
			items = extract.Sweep(html, mobile, m.Name())
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	if lastErr == nil {
		lastErr = types.ErrNoVectors
	}
	return nil, lastErr
}

// sitemapVector samples product URLs from the sitemap and extracts
// from each fetched page.
func (m *MultiVector) sitemapVector(ctx context.Context, deps *Deps, fp *fingerprint.Fingerprint, target *types.Target) ([]types.RawItem, error) {
	urls, err := deps.Vector.Sitemap(ctx, fp, target)
	if err != nil {
		return nil, err
	}
	if len(urls) > sitemapSampleSize {
		urls = urls[:sitemapSampleSize]
	}
	var (
		items   []types.RawItem
		lastErr error
	)
	for _, u := range urls {
		html, err := deps.Vector.FetchMobile(ctx, fp, u)
		if err != nil {
			lastErr = err
			continue
		}
		page := extract.ByHints(html, target.SelectorHints, u, m.Name())
		if len(page) == 0 {
			page = extract.Sweep(html, u, m.Name())
		}
		items = append(items, page...)
	}
	if len(items) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return items, nil
}
