package types

import (
	"net/url"
	"time"
)

// RawItem is an unvalidated candidate product record straight from
// extraction. Ephemeral: produced by strategies, consumed by the pipeline.
type RawItem struct {
	Name      string `json:"name"`
	PriceText string `json:"price_text,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	BrandText string `json:"brand_text,omitempty"`
	SourceURL string `json:"source_url"`

	// ExtractedBy names the strategy that produced the item.
	ExtractedBy string `json:"extracted_by"`

	// Confidence is the strategy's own quality contribution, 0-3.
	// The brute-force sweep caps this at 1.
	Confidence int `json:"confidence"`

	CapturedAt time.Time `json:"captured_at"`
}

// Plausible reports whether the raw capture is worth pipelining at all:
// it must have a name and at least one of price text or image URL.
func (r *RawItem) Plausible() bool {
	return r.Name != "" && (r.PriceText != "" || r.ImageURL != "")
}

// CanonicalItem is a validated, enriched, deduplicated product record
// ready for catalog ingestion. Owned by the pipeline; never mutated by
// strategies directly.
type CanonicalItem struct {
	// ID is a stable hash of (target, normalized name, brand).
	ID string `json:"id" bson:"_id"`

	Name     string  `json:"name"            bson:"name"`
	Brand    string  `json:"brand"           bson:"brand"`
	Category string  `json:"category"        bson:"category"`
	Price    float64 `json:"price,omitempty" bson:"price,omitempty"`
	Currency string  `json:"currency"        bson:"currency"`
	ImageURL string  `json:"image_url,omitempty" bson:"image_url,omitempty"`

	QualityScore int    `json:"quality_score" bson:"quality_score"`
	SourceTarget string `json:"source_target" bson:"source_target"`
	SourceURL    string `json:"source_url"    bson:"source_url"`

	FirstSeenAt time.Time `json:"first_seen_at" bson:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"  bson:"last_seen_at"`
}

// HasAbsoluteImage reports whether the item carries an absolute image URL.
func (c *CanonicalItem) HasAbsoluteImage() bool {
	if c.ImageURL == "" {
		return false
	}
	u, err := url.Parse(c.ImageURL)
	return err == nil && u.IsAbs()
}
