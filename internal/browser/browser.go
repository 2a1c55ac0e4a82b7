// Package browser wraps the headless-browser automation collaborator.
// The engine consumes navigation and raw DOM extraction through this
// package and never reimplements the capability itself.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/forager-sh/forager/internal/config"
	"github.com/forager-sh/forager/internal/fingerprint"
	"github.com/forager-sh/forager/internal/types"
)

// Browser owns one Chromium instance and hands out fingerprinted pages.
type Browser struct {
	browser *rod.Browser
	cfg     *config.BrowserConfig
	logger  *slog.Logger
	slots   chan struct{}
}

// New launches Chromium and connects to it.
func New(cfg *config.Config, logger *slog.Logger) (*Browser, error) {
	b := &Browser{
		cfg:    &cfg.Browser,
		logger: logger.With("component", "browser"),
		slots:  make(chan struct{}, cfg.Browser.MaxPages),
	}

	l := launcher.New().
		Headless(cfg.Browser.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if cfg.Browser.UserDataDir != "" {
		l = l.UserDataDir(cfg.Browser.UserDataDir)
	}

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	b.browser = browser

	b.logger.Info("browser ready", "headless", cfg.Browser.Headless, "max_pages", cfg.Browser.MaxPages)
	return b, nil
}

// Open navigates a fresh fingerprinted page to url. A blocked response
// is detected from the rendered content and returned as a BlockedError;
// navigation failures come back as NavigationError.
func (b *Browser) Open(ctx context.Context, fp *fingerprint.Fingerprint, url string, timeout time.Duration) (*Page, error) {
	select {
	case b.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, &types.NavigationError{URL: url, Err: ctx.Err()}
	}

	page, err := stealth.Page(b.browser)
	if err != nil {
		<-b.slots
		return nil, &types.NavigationError{URL: url, Err: fmt.Errorf("stealth page: %w", err)}
	}

	p := &Page{page: page.Context(ctx), browser: b, url: url, cfg: b.cfg}
	if err := p.applyFingerprint(fp); err != nil {
		p.Close()
		return nil, &types.NavigationError{URL: url, Err: err}
	}

	if err := p.page.Timeout(timeout).Navigate(url); err != nil {
		p.Close()
		return nil, &types.NavigationError{URL: url, Err: err}
	}
	if err := p.page.Timeout(timeout).WaitStable(b.cfg.StableWait); err != nil {
		b.logger.Warn("page stability timeout, continuing", "url", url, "error", err)
	}

	html, err := p.HTML()
	if err != nil {
		p.Close()
		return nil, &types.NavigationError{URL: url, Err: err}
	}
	if sig := types.BlockSignal(html); sig != "" {
		p.Close()
		return nil, &types.BlockedError{URL: url, Signal: sig}
	}

	return p, nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	if b.browser != nil {
		return b.browser.Close()
	}
	return nil
}

// Page is one open, fingerprinted browser page.
type Page struct {
	page    *rod.Page
	browser *Browser
	cfg     *config.BrowserConfig
	url     string
	closed  bool
}

func (p *Page) applyFingerprint(fp *fingerprint.Fingerprint) error {
	if fp == nil {
		return nil
	}
	err := p.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      fp.UserAgent,
		AcceptLanguage: fp.Language,
		Platform:       fp.Platform,
	})
	if err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}
	err = p.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             fp.ViewportWidth,
		Height:            fp.ViewportHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	_, err = p.page.EvalOnNewDocument(fp.StealthJS())
	if err != nil {
		return fmt.Errorf("inject stealth js: %w", err)
	}
	return nil
}

// HTML returns the rendered page content.
func (p *Page) HTML() (string, error) {
	html, err := p.page.HTML()
	if err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return html, nil
}

// ScrollToBottom scrolls to the end of the page to force lazy content.
func (p *Page) ScrollToBottom() error {
	_, err := p.page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

// ScrollCycle performs n scroll-and-settle rounds.
func (p *Page) ScrollCycle(n int) error {
	for i := 0; i < n; i++ {
		if err := p.ScrollToBottom(); err != nil {
			return err
		}
		time.Sleep(p.cfg.ScrollPause)
	}
	return nil
}

// WaitStable waits for the DOM to settle after dynamic loads.
func (p *Page) WaitStable(d time.Duration) error {
	return p.page.WaitStable(d)
}

// FinalURL returns the page URL after any redirects.
func (p *Page) FinalURL() string {
	info, err := p.page.Info()
	if err != nil || info == nil {
		return p.url
	}
	return info.URL
}

// Close releases the page and its concurrency slot.
func (p *Page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	<-p.browser.slots
	return p.page.Close()
}
