package vector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forager-sh/forager/internal/fingerprint"
	"github.com/forager-sh/forager/internal/types"
)

// Key aliases tolerated when walking unknown JSON product payloads.
var (
	nameKeys  = []string{"name", "title", "productName", "displayName", "product_name"}
	priceKeys = []string{"price", "salePrice", "currentPrice", "sale_price", "price_value", "amount"}
	imageKeys = []string{"image", "imageUrl", "image_url", "thumbnail", "img"}
	brandKeys = []string{"brand", "brandName", "brand_name", "manufacturer"}
)

// FetchAPI hits the target's JSON endpoint for a category and mines
// product records out of whatever shape comes back. The walk is
// schema-free: it looks for arrays of objects carrying name-like and
// price-like keys anywhere in the document.
func (c *Client) FetchAPI(ctx context.Context, fp *fingerprint.Fingerprint, target *types.Target, category string) ([]types.RawItem, error) {
	if target.APIEndpoint == "" {
		return nil, types.ErrNoVectors
	}
	url := strings.ReplaceAll(target.APIEndpoint, "{category}", category)

	var payload any
	if err := c.FetchJSON(ctx, fp, url, &payload); err != nil {
		return nil, err
	}

	now := time.Now()
	var items []types.RawItem
	walkProducts(payload, func(obj map[string]any) {
		item := types.RawItem{
			Name:        stringField(obj, nameKeys),
			PriceText:   priceField(obj),
			ImageURL:    stringField(obj, imageKeys),
			BrandText:   stringField(obj, brandKeys),
			SourceURL:   url,
			ExtractedBy: "multi-vector",
			Confidence:  2,
			CapturedAt:  now,
		}
		if item.Plausible() {
			items = append(items, item)
		}
	})
	if len(items) == 0 {
		return nil, &types.ExtractionError{URL: url, Strategy: "multi-vector", Err: types.ErrNoItems}
	}
	c.logger.Debug("api vector produced items", "target", target.ID, "category", category, "count", len(items))
	return items, nil
}

// walkProducts finds every JSON object that looks like a product and
// hands it to fn. Arrays and nested objects are descended into; a node
// counts as a product when it has both a name-like and a price-like
// key so container objects are not misread as products.
func walkProducts(node any, fn func(map[string]any)) {
	switch v := node.(type) {
	case []any:
		for _, e := range v {
			walkProducts(e, fn)
		}
	case map[string]any:
		if stringField(v, nameKeys) != "" && priceField(v) != "" {
			fn(v)
			return
		}
		for _, child := range v {
			walkProducts(child, fn)
		}
	}
}

func stringField(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func priceField(obj map[string]any) string {
	for _, k := range priceKeys {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v > 0 {
				return fmt.Sprintf("%.2f", v)
			}
		case map[string]any:
			// Nested money objects: {"price": {"value": 3.49, ...}}.
			if inner, ok := v["value"].(float64); ok && inner > 0 {
				return fmt.Sprintf("%.2f", inner)
			}
		}
	}
	return ""
}
