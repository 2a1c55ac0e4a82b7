package extract

import (
	"testing"

	"github.com/forager-sh/forager/internal/types"
)

const hintedPage = `<html><body>
<div class="plp">
  <div class="tile">
    <span class="tile-name">Oat Milk 1L</span>
    <span class="tile-price">$3.49</span>
    <img class="tile-img" src="https://cdn.example.com/oat.jpg">
    <span class="tile-brand">Oatly</span>
  </div>
  <div class="tile">
    <span class="tile-name">Almond Milk 1L</span>
    <span class="tile-price">$4.99</span>
    <img class="tile-img" data-src="https://cdn.example.com/almond.jpg">
  </div>
  <div class="tile">
    <span class="tile-name"></span>
    <span class="tile-price">$1.00</span>
  </div>
</div>
</body></html>`

func TestByHintsCSS(t *testing.T) {
	hints := []types.SelectorHint{{
		Kind:      types.HintCSS,
		Container: "div.tile",
		Name:      ".tile-name",
		Price:     ".tile-price",
		Image:     "img.tile-img",
		Brand:     ".tile-brand",
	}}
	items := ByHints(hintedPage, hints, "https://example.com/milk", "stealth")
	if len(items) != 2 {
		t.Fatalf("expected 2 plausible items, got %d", len(items))
	}
	if items[0].Name != "Oat Milk 1L" || items[0].PriceText != "$3.49" {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[0].BrandText != "Oatly" {
		t.Errorf("brand not extracted: %q", items[0].BrandText)
	}
	if items[1].ImageURL != "https://cdn.example.com/almond.jpg" {
		t.Errorf("data-src fallback not used: %q", items[1].ImageURL)
	}
	if items[0].Confidence != 3 {
		t.Errorf("hinted extraction should carry confidence 3, got %d", items[0].Confidence)
	}
}

func TestByHintsFirstMatchingHintWins(t *testing.T) {
	hints := []types.SelectorHint{
		{Kind: types.HintCSS, Container: "div.gone", Name: ".x", Price: ".y"},
		{Kind: types.HintCSS, Container: "div.tile", Name: ".tile-name", Price: ".tile-price"},
		{Kind: types.HintCSS, Container: "div.plp", Name: ".tile-name", Price: ".tile-price"},
	}
	items := ByHints(hintedPage, hints, "u", "stealth")
	if len(items) != 2 {
		t.Fatalf("second hint should have produced 2 items, got %d", len(items))
	}
}

func TestByHintsXPath(t *testing.T) {
	hints := []types.SelectorHint{{
		Kind:      types.HintXPath,
		Container: `//div[@class="tile"]`,
		Name:      `.//span[@class="tile-name"]`,
		Price:     `.//span[@class="tile-price"]`,
		Image:     `.//img`,
	}}
	items := ByHints(hintedPage, hints, "u", "stealth")
	if len(items) != 2 {
		t.Fatalf("expected 2 items via xpath, got %d", len(items))
	}
	if items[0].Name != "Oat Milk 1L" {
		t.Errorf("unexpected name: %q", items[0].Name)
	}
}

func TestSweepFindsUnhintedLayout(t *testing.T) {
	page := `<html><body>
	<div class="search-results">
	  <div class="product-box">
	    <h3>Sparkling Water 500ml</h3>
	    <div class="box-amount">€0,89</div>
	    <img src="/img/water.jpg">
	  </div>
	  <div class="product-box">
	    <h3>Sparkling Water 500ml</h3>
	    <div class="box-amount">€0,89</div>
	  </div>
	  <div class="product-box">
	    <h3>Tonic Water 1L</h3>
	    <div>from €2,10 per bottle</div>
	  </div>
	</div>
	</body></html>`
	items := Sweep(page, "https://example.com/water", "brute-force")
	if len(items) != 2 {
		t.Fatalf("expected 2 deduped items, got %d: %+v", len(items), items)
	}
	for _, it := range items {
		if it.Confidence != 1 {
			t.Errorf("sweep items must carry confidence 1, got %d", it.Confidence)
		}
	}
	if items[1].PriceText == "" {
		t.Errorf("regex fallback should have found a price for %q", items[1].Name)
	}
}

func TestSweepEmptyPage(t *testing.T) {
	if items := Sweep("<html><body><p>nothing here</p></body></html>", "u", "brute-force"); len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in       string
		value    float64
		currency string
		ok       bool
	}{
		{"$3.49", 3.49, "USD", true},
		{"€1.299,90", 1299.90, "EUR", true},
		{"1,299.90 USD", 1299.90, "USD", true},
		{"R$ 12,50", 12.50, "BRL", true},
		{"£1,299", 1299, "GBP", true},
		{"9,99", 9.99, "", true},
		{"from €2,10 per bottle", 2.10, "EUR", true},
		{"call for price", 0, "", false},
		{"", 0, "", false},
		{"$0.00", 0, "", false},
	}
	for _, c := range cases {
		value, currency, ok := ParsePrice(c.in)
		if ok != c.ok {
			t.Errorf("ParsePrice(%q) ok = %v, want %v", c.in, ok, c.ok)
			continue
		}
		if !ok {
			continue
		}
		if value != c.value || currency != c.currency {
			t.Errorf("ParsePrice(%q) = (%v, %q), want (%v, %q)", c.in, value, currency, c.value, c.currency)
		}
	}
}
