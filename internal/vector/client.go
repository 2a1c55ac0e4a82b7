// Package vector implements the non-browser acquisition surfaces: the
// target's JSON endpoints, its lightweight mobile pages, and its
// sitemaps. These paths skip rendering entirely and are much cheaper
// than a browser round trip when they work.
package vector

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"github.com/andybalholm/brotli"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/publicsuffix"

	"github.com/forager-sh/forager/internal/config"
	"github.com/forager-sh/forager/internal/fingerprint"
	"github.com/forager-sh/forager/internal/types"
)

// Client issues browser-shaped plain HTTP requests. Headers come from
// the active fingerprint so the traffic profile matches the browser
// sessions hitting the same target.
type Client struct {
	http        *http.Client
	cfg         *config.VectorConfig
	logger      *slog.Logger
	sitemapLRU  *lru.Cache[string, []string]
	maxBodySize int64
}

// NewClient builds the vector client with a publicsuffix-aware cookie
// jar so per-site cookies persist across requests within a run.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	cache, err := lru.New[string, []string](cfg.Vector.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("sitemap cache: %w", err)
	}
	return &Client{
		http: &http.Client{
			Timeout: cfg.Vector.Timeout,
			Jar:     jar,
		},
		cfg:         &cfg.Vector,
		logger:      logger.With("component", "vector"),
		sitemapLRU:  cache,
		maxBodySize: cfg.Vector.MaxBodySize,
	}, nil
}

// Fetch performs one fingerprinted GET and returns the decoded body.
// Block pages and rate-limit responses surface as BlockedError so the
// limiter and breaker treat vector traffic like browser traffic.
func (c *Client) Fetch(ctx context.Context, fp *fingerprint.Fingerprint, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &types.NavigationError{URL: url, Err: err}
	}
	if fp != nil {
		req.Header = fp.Headers()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &types.NavigationError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		if d := retryAfter(resp); d > 0 {
			c.logger.Warn("rate limited", "url", url, "status", resp.StatusCode, "retry_after", d)
		}
		return nil, &types.BlockedError{URL: url, Signal: fmt.Sprintf("http %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &types.NavigationError{URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := decodeBody(resp, c.maxBodySize)
	if err != nil {
		return nil, &types.NavigationError{URL: url, Err: err}
	}
	if sig := types.BlockSignal(string(body)); sig != "" {
		return nil, &types.BlockedError{URL: url, Signal: sig}
	}
	return body, nil
}

// FetchJSON fetches url and unmarshals the response into v.
func (c *Client) FetchJSON(ctx context.Context, fp *fingerprint.Fingerprint, url string, v any) error {
	body, err := c.Fetch(ctx, fp, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &types.ExtractionError{URL: url, Strategy: "multi-vector", Err: fmt.Errorf("decode json: %w", err)}
	}
	return nil
}

// decodeBody decompresses the response according to Content-Encoding
// and caps the read at maxSize.
func decodeBody(resp *http.Response, maxSize int64) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fr := flate.NewReader(resp.Body)
		defer fr.Close()
		reader = fr
	}
	if maxSize > 0 {
		reader = io.LimitReader(reader, maxSize)
	}
	return io.ReadAll(reader)
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}
