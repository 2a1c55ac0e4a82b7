package orchestrator

import (
	"context"
	"time"

	"github.com/forager-sh/forager/internal/browser"
	"github.com/forager-sh/forager/internal/fingerprint"
	"github.com/forager-sh/forager/internal/strategy"
)

// browserAdapter bridges the concrete browser to the interface the
// strategies consume.
type browserAdapter struct {
	b *browser.Browser
}

// AdaptBrowser wraps b for strategy use.
func AdaptBrowser(b *browser.Browser) strategy.Browser {
	return browserAdapter{b: b}
}

func (a browserAdapter) Open(ctx context.Context, fp *fingerprint.Fingerprint, url string, timeout time.Duration) (strategy.Page, error) {
	page, err := a.b.Open(ctx, fp, url, timeout)
	if err != nil {
		return nil, err
	}
	return page, nil
}
