package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/forager-sh/forager/internal/types"
)

// sweepContainers are the broad structural selectors the brute-force
// pass walks when no curated hint matches a page.
var sweepContainers = []string{
	"[class*='product']",
	"[class*='item']",
	"[class*='card']",
	"[data-product-id]",
	"article",
	"li[class*='grid']",
}

var sweepNameSelectors = []string{
	"[class*='name']", "[class*='title']", "h2", "h3", "h4", "a[title]",
}

var sweepPriceSelectors = []string{
	"[class*='price']", "[data-price]", "[class*='amount']",
}

// priceRe matches a currency-marked amount anywhere in a text blob.
// It is the last resort when no price selector hits inside a container.
var priceRe = regexp.MustCompile(`(?:[$€£¥₹]|USD|EUR|GBP|BRL|R\$)\s*\d{1,3}(?:[.,\s]\d{3})*(?:[.,]\d{1,2})?|\d{1,3}(?:[.,\s]\d{3})*(?:[.,]\d{1,2})?\s*(?:[$€£¥₹]|USD|EUR|GBP|BRL|kr|zł)`)

// Sweep brute-forces item extraction from html using broad structural
// patterns instead of curated hints. Results carry low confidence; the
// pipeline caps their quality score accordingly.
func Sweep(html, sourceURL, extractedBy string) []types.RawItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	now := time.Now()
	seen := make(map[string]bool)
	var items []types.RawItem

	for _, container := range sweepContainers {
		doc.Find(container).Each(func(_ int, s *goquery.Selection) {
			name := firstText(s, sweepNameSelectors)
			if name == "" {
				if t, ok := s.Find("a[title]").First().Attr("title"); ok {
					name = clean(t)
				}
			}
			price := firstText(s, sweepPriceSelectors)
			if price == "" {
				price = priceRe.FindString(s.Text())
			}
			item := types.RawItem{
				Name:        name,
				PriceText:   clean(price),
				SourceURL:   sourceURL,
				ExtractedBy: extractedBy,
				Confidence:  1,
				CapturedAt:  now,
			}
			if src, ok := s.Find("img").First().Attr("src"); ok {
				item.ImageURL = src
			}
			if !item.Plausible() {
				return
			}
			key := strings.ToLower(item.Name)
			if seen[key] {
				return
			}
			seen[key] = true
			items = append(items, item)
		})
		// One matching container family is enough; broader ones
		// below it would mostly re-match the same nodes.
		if len(items) > 0 {
			return items
		}
	}
	return items
}

func firstText(s *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if t := clean(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}
