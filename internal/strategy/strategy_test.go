package strategy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/forager-sh/forager/internal/fingerprint"
	"github.com/forager-sh/forager/internal/types"
)

const productPage = `<html><body>
<div class="tile">
  <span class="nm">Dark Roast Coffee 500g</span>
  <span class="pr">$11.90</span>
</div>
<div class="tile">
  <span class="nm">Light Roast Coffee 500g</span>
  <span class="pr">$10.90</span>
</div>
</body></html>`

var coffeeHints = []types.SelectorHint{{
	Kind: types.HintCSS, Container: "div.tile", Name: ".nm", Price: ".pr",
}}

type fakePage struct {
	html string
	url  string
}

func (p *fakePage) HTML() (string, error) { return p.html, nil }
func (p *fakePage) ScrollCycle(int) error { return nil }
func (p *fakePage) FinalURL() string      { return p.url }
func (p *fakePage) Close() error          { return nil }

// fakeBrowser serves canned HTML per URL and records navigations.
type fakeBrowser struct {
	pages  map[string]string
	errs   map[string]error
	visits []string
}

func (b *fakeBrowser) Open(_ context.Context, _ *fingerprint.Fingerprint, url string, _ time.Duration) (Page, error) {
	b.visits = append(b.visits, url)
	if err, ok := b.errs[url]; ok {
		return nil, err
	}
	if html, ok := b.pages[url]; ok {
		return &fakePage{html: html, url: url}, nil
	}
	return nil, &types.NavigationError{URL: url, Err: errors.New("no such page")}
}

type fakeVector struct {
	apiItems []types.RawItem
	apiErr   error
	mobile   map[string]string
	sitemap  []string
}

func (v *fakeVector) FetchAPI(context.Context, *fingerprint.Fingerprint, *types.Target, string) ([]types.RawItem, error) {
	return v.apiItems, v.apiErr
}

func (v *fakeVector) FetchMobile(_ context.Context, _ *fingerprint.Fingerprint, url string) (string, error) {
	if html, ok := v.mobile[url]; ok {
		return html, nil
	}
	return "", &types.NavigationError{URL: url, Err: errors.New("no mobile page")}
}

func (v *fakeVector) Sitemap(context.Context, *fingerprint.Fingerprint, *types.Target) ([]string, error) {
	if v.sitemap == nil {
		return nil, types.ErrNoVectors
	}
	return v.sitemap, nil
}

func testDeps(b Browser, v Vector) *Deps {
	return &Deps{
		Browser:      b,
		Vector:       v,
		Fingerprints: fingerprint.NewProvider(42),
		Logger:       discardLogger(),
		Timeout:      5 * time.Second,
		ScrollCycles: 1,
		MinViable:    2,
	}
}

func coffeeTarget() *types.Target {
	return &types.Target{
		ID:            "beanhaus",
		BaseURLs:      []string{"https://beanhaus.example/shop/{category}"},
		SelectorHints: coffeeHints,
	}
}

func TestStealthExtractsFromFirstWorkingEntry(t *testing.T) {
	target := coffeeTarget()
	target.BaseURLs = []string{
		"https://beanhaus.example/dead/{category}",
		"https://beanhaus.example/shop/{category}",
	}
	b := &fakeBrowser{pages: map[string]string{
		"https://beanhaus.example/shop/coffee": productPage,
	}}

	items, err := (&StandardStealth{}).Attempt(context.Background(), testDeps(b, &fakeVector{}), target, "coffee")
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ExtractedBy != NameStealth {
		t.Errorf("ExtractedBy = %q, want %q", items[0].ExtractedBy, NameStealth)
	}
}

func TestStealthStopsProbingOnBlock(t *testing.T) {
	target := coffeeTarget()
	target.BaseURLs = []string{
		"https://beanhaus.example/a/{category}",
		"https://beanhaus.example/b/{category}",
	}
	b := &fakeBrowser{errs: map[string]error{
		"https://beanhaus.example/a/coffee": &types.BlockedError{URL: "a", Signal: "captcha"},
	}}

	_, err := (&StandardStealth{}).Attempt(context.Background(), testDeps(b, &fakeVector{}), target, "coffee")
	var blocked *types.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError, got %v", err)
	}
	if len(b.visits) != 1 {
		t.Fatalf("block should stop entry probing, saw %d visits", len(b.visits))
	}
}

func TestEvasionFallsBackToAlternateEntries(t *testing.T) {
	target := coffeeTarget()
	desktop := "https://beanhaus.example/shop/coffee"
	mobile := "https://m.beanhaus.example/shop/coffee"
	b := &fakeBrowser{
		errs:  map[string]error{desktop: &types.BlockedError{URL: desktop, Signal: "access denied"}},
		pages: map[string]string{mobile: productPage},
	}

	items, err := (&EvasionFirst{}).Attempt(context.Background(), testDeps(b, &fakeVector{}), target, "coffee")
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items from mobile fallback, got %d", len(items))
	}
	if len(b.visits) < 2 || b.visits[1] != mobile {
		t.Fatalf("expected mobile retry after block, visits: %v", b.visits)
	}
}

func TestMultiVectorUnionsIndependentVectors(t *testing.T) {
	target := coffeeTarget()
	target.MobileURL = "https://m.beanhaus.example/shop"
	v := &fakeVector{
		apiErr: &types.NavigationError{URL: "api", Err: errors.New("down")},
		mobile: map[string]string{"https://m.beanhaus.example/shop": productPage},
	}

	items, err := (&MultiVector{}).Attempt(context.Background(), testDeps(&fakeBrowser{}, v), target, "coffee")
	if err != nil {
		t.Fatalf("one failing vector must not sink the attempt: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestMultiVectorDeduplicatesAcrossVectors(t *testing.T) {
	target := coffeeTarget()
	target.MobileURL = "https://m.beanhaus.example/shop"
	v := &fakeVector{
		apiItems: []types.RawItem{
			{Name: "Dark Roast Coffee 500g", PriceText: "11.90", Confidence: 2},
			{Name: "Espresso Beans 1kg", PriceText: "18.00", Confidence: 2},
		},
		mobile: map[string]string{"https://m.beanhaus.example/shop": productPage},
	}

	items, err := (&MultiVector{}).Attempt(context.Background(), testDeps(&fakeBrowser{}, v), target, "coffee")
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("union should dedup by name, got %d items", len(items))
	}
}

func TestHybridStopsOnceViable(t *testing.T) {
	target := coffeeTarget()
	b := &fakeBrowser{pages: map[string]string{
		"https://beanhaus.example/shop/coffee": productPage,
	}}
	v := &fakeVector{apiErr: errors.New("api vector must not be reached")}

	deps := testDeps(b, v)
	deps.MinViable = 2
	items, err := (&Hybrid{}).Attempt(context.Background(), deps, target, "coffee")
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if len(b.visits) != 1 {
		t.Fatalf("hybrid should stop after the first viable step, visits: %v", b.visits)
	}
}

func TestRunCapturesOutcome(t *testing.T) {
	target := coffeeTarget()
	b := &fakeBrowser{pages: map[string]string{
		"https://beanhaus.example/shop/coffee": productPage,
	}}

	items, outcome, err := Run(context.Background(), &StandardStealth{}, testDeps(b, &fakeVector{}), target, "coffee")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !outcome.Success || outcome.ItemCount != len(items) || outcome.Strategy != NameStealth {
		t.Fatalf("bad outcome: %+v", outcome)
	}
	if outcome.ErrorKind != types.ErrorKindNone {
		t.Fatalf("ErrorKind = %q, want none", outcome.ErrorKind)
	}
}

func TestRunClassifiesBlockedFailure(t *testing.T) {
	target := coffeeTarget()
	b := &fakeBrowser{errs: map[string]error{
		"https://beanhaus.example/shop/coffee": &types.BlockedError{URL: "x", Signal: "captcha"},
	}}

	_, outcome, err := Run(context.Background(), &StandardStealth{}, testDeps(b, &fakeVector{}), target, "coffee")
	if err == nil {
		t.Fatal("expected error")
	}
	if outcome.Success || outcome.ErrorKind != types.ErrorKindBlocked {
		t.Fatalf("bad outcome: %+v", outcome)
	}
}

type panicStrategy struct{}

func (panicStrategy) Name() string     { return "panic" }
func (panicStrategy) Aggressive() bool { return false }
func (panicStrategy) Attempt(context.Context, *Deps, *types.Target, string) ([]types.RawItem, error) {
	panic(fmt.Errorf("selector engine exploded"))
}

func TestRunRecoversPanics(t *testing.T) {
	_, outcome, err := Run(context.Background(), panicStrategy{}, testDeps(&fakeBrowser{}, &fakeVector{}), coffeeTarget(), "coffee")
	if err == nil {
		t.Fatal("panic must surface as an error")
	}
	if outcome.Success || outcome.ErrorKind != types.ErrorKindExtraction {
		t.Fatalf("bad outcome after panic: %+v", outcome)
	}
}
