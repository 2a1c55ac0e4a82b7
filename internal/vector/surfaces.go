package vector

import (
	"context"
	"encoding/xml"
	"strings"

	"github.com/forager-sh/forager/internal/fingerprint"
	"github.com/forager-sh/forager/internal/types"
)

// FetchMobile grabs the target's lightweight mobile rendition of a
// page. Mobile markup is usually simpler and served with far less
// scripting, so hint extraction applied to it often works when the
// desktop page resists.
func (c *Client) FetchMobile(ctx context.Context, fp *fingerprint.Fingerprint, url string) (string, error) {
	body, err := c.Fetch(ctx, fp, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

type sitemapIndex struct {
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type urlSet struct {
	URLs []sitemapLoc `xml:"url"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// URL path fragments that mark a sitemap entry as a product page.
var productPathMarkers = []string{"/product", "/p/", "/item", "/dp/", "/sku"}

// Sitemap returns the product-page URLs listed in the target's
// sitemap, following one level of sitemap-index indirection. Results
// are cached per sitemap URL for the lifetime of the run since
// sitemaps change far slower than runs repeat.
func (c *Client) Sitemap(ctx context.Context, fp *fingerprint.Fingerprint, target *types.Target) ([]string, error) {
	if target.SitemapURL == "" {
		return nil, types.ErrNoVectors
	}
	if cached, ok := c.sitemapLRU.Get(target.SitemapURL); ok {
		return cached, nil
	}

	urls, err := c.fetchSitemap(ctx, fp, target.SitemapURL, true)
	if err != nil {
		return nil, err
	}
	if len(urls) > c.cfg.MaxSitemapURLs {
		urls = urls[:c.cfg.MaxSitemapURLs]
	}
	c.sitemapLRU.Add(target.SitemapURL, urls)
	c.logger.Debug("sitemap resolved", "target", target.ID, "urls", len(urls))
	return urls, nil
}

func (c *Client) fetchSitemap(ctx context.Context, fp *fingerprint.Fingerprint, url string, followIndex bool) ([]string, error) {
	body, err := c.Fetch(ctx, fp, url)
	if err != nil {
		return nil, err
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err == nil && len(set.URLs) > 0 {
		var urls []string
		for _, u := range set.URLs {
			if isProductURL(u.Loc) {
				urls = append(urls, strings.TrimSpace(u.Loc))
			}
		}
		return urls, nil
	}

	if !followIndex {
		return nil, nil
	}
	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, &types.ExtractionError{URL: url, Strategy: "multi-vector", Err: err}
	}
	var urls []string
	for _, sm := range index.Sitemaps {
		// Only descend into child sitemaps that advertise products;
		// category and editorial sitemaps are skipped outright.
		if !strings.Contains(strings.ToLower(sm.Loc), "product") {
			continue
		}
		child, err := c.fetchSitemap(ctx, fp, strings.TrimSpace(sm.Loc), false)
		if err != nil {
			c.logger.Warn("child sitemap failed", "url", sm.Loc, "error", err)
			continue
		}
		urls = append(urls, child...)
		if len(urls) >= c.cfg.MaxSitemapURLs {
			break
		}
	}
	return urls, nil
}

func isProductURL(u string) bool {
	lower := strings.ToLower(u)
	for _, marker := range productPathMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
