// Package extract holds the shared DOM-to-item helpers. Both the
// browser strategies and the non-browser vectors feed rendered or
// fetched HTML through these functions.
package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/forager-sh/forager/internal/types"
)

// ByHints runs the target's curated selector hints against html.
// Hints are tried in order and the first one yielding at least one
// plausible item wins; later hints are fallbacks, not supplements.
func ByHints(html string, hints []types.SelectorHint, sourceURL, extractedBy string) []types.RawItem {
	for _, h := range hints {
		var items []types.RawItem
		switch h.Kind {
		case types.HintXPath:
			items = byXPath(html, h, sourceURL, extractedBy)
		default:
			items = byCSS(html, h, sourceURL, extractedBy)
		}
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

func byCSS(html string, h types.SelectorHint, sourceURL, extractedBy string) []types.RawItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	now := time.Now()
	var items []types.RawItem
	doc.Find(h.Container).Each(func(_ int, s *goquery.Selection) {
		item := types.RawItem{
			Name:        clean(s.Find(h.Name).First().Text()),
			PriceText:   clean(s.Find(h.Price).First().Text()),
			SourceURL:   sourceURL,
			ExtractedBy: extractedBy,
			Confidence:  3,
			CapturedAt:  now,
		}
		if h.Brand != "" {
			item.BrandText = clean(s.Find(h.Brand).First().Text())
		}
		if h.Image != "" {
			img := s.Find(h.Image).First()
			if src, ok := img.Attr("src"); ok {
				item.ImageURL = src
			} else if src, ok := img.Attr("data-src"); ok {
				item.ImageURL = src
			}
		}
		if item.Plausible() {
			items = append(items, item)
		}
	})
	return items
}

func byXPath(html string, h types.SelectorHint, sourceURL, extractedBy string) []types.RawItem {
	doc, err := htmlquery.Parse(strings.NewReader(html))
	if err != nil {
		return nil
	}
	containers, err := htmlquery.QueryAll(doc, h.Container)
	if err != nil {
		return nil
	}
	now := time.Now()
	var items []types.RawItem
	for _, c := range containers {
		item := types.RawItem{
			SourceURL:   sourceURL,
			ExtractedBy: extractedBy,
			Confidence:  3,
			CapturedAt:  now,
		}
		if n, err := htmlquery.Query(c, h.Name); err == nil && n != nil {
			item.Name = clean(htmlquery.InnerText(n))
		}
		if n, err := htmlquery.Query(c, h.Price); err == nil && n != nil {
			item.PriceText = clean(htmlquery.InnerText(n))
		}
		if h.Brand != "" {
			if n, err := htmlquery.Query(c, h.Brand); err == nil && n != nil {
				item.BrandText = clean(htmlquery.InnerText(n))
			}
		}
		if h.Image != "" {
			if n, err := htmlquery.Query(c, h.Image); err == nil && n != nil {
				item.ImageURL = htmlquery.SelectAttr(n, "src")
				if item.ImageURL == "" {
					item.ImageURL = htmlquery.SelectAttr(n, "data-src")
				}
			}
		}
		if item.Plausible() {
			items = append(items, item)
		}
	}
	return items
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
