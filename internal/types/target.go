package types

import (
	"net/url"
	"strings"
	"time"
)

// RateProfile bounds the adaptive pacing for one target.
type RateProfile struct {
	MinDelay     time.Duration `mapstructure:"min_delay"     yaml:"min_delay"     json:"min_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"     yaml:"max_delay"     json:"max_delay"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay" json:"initial_delay"`
}

// Selector hint kinds.
const (
	HintCSS   = "css"
	HintXPath = "xpath"
)

// SelectorHint is one ranked structural extraction hint: a repeated
// container element plus field selectors relative to it.
type SelectorHint struct {
	// Kind is the selector language: "css" (default) or "xpath".
	Kind string `mapstructure:"kind" yaml:"kind" json:"kind"`

	// Container matches one element per product card.
	Container string `mapstructure:"container" yaml:"container" json:"container"`

	// Field selectors, resolved relative to the container.
	Name  string `mapstructure:"name"  yaml:"name"  json:"name"`
	Price string `mapstructure:"price" yaml:"price" json:"price"`
	Image string `mapstructure:"image" yaml:"image" json:"image"`
	Brand string `mapstructure:"brand" yaml:"brand" json:"brand"`
}

// Target is a curated external source the engine extracts product data
// from. Immutable configuration, loaded once at run start.
type Target struct {
	ID          string `mapstructure:"id"           yaml:"id"           json:"id"`
	DisplayName string `mapstructure:"display_name" yaml:"display_name" json:"display_name"`

	// BaseURLs are ordered entry points; earlier entries are tried first.
	BaseURLs []string `mapstructure:"base_urls" yaml:"base_urls" json:"base_urls"`

	// Machine-readable surfaces for the multi-vector strategy. Any of
	// these may be empty when the target does not expose that surface.
	APIEndpoint string `mapstructure:"api_endpoint" yaml:"api_endpoint" json:"api_endpoint,omitempty"`
	MobileURL   string `mapstructure:"mobile_url"   yaml:"mobile_url"   json:"mobile_url,omitempty"`
	SitemapURL  string `mapstructure:"sitemap_url"  yaml:"sitemap_url"  json:"sitemap_url,omitempty"`

	// CategoryHints are the category slugs this target is known to carry.
	CategoryHints []string `mapstructure:"category_hints" yaml:"category_hints" json:"category_hints"`

	RateProfile RateProfile `mapstructure:"rate_profile" yaml:"rate_profile" json:"rate_profile"`

	// StrategyBonuses adjusts the selector score per strategy name.
	StrategyBonuses map[string]float64 `mapstructure:"strategy_bonuses" yaml:"strategy_bonuses" json:"strategy_bonuses,omitempty"`

	// SelectorHints are ranked; the first hint yielding at least one
	// plausible item wins.
	SelectorHints []SelectorHint `mapstructure:"selector_hints" yaml:"selector_hints" json:"selector_hints"`
}

// Bonus returns the configured score bonus for a strategy name.
func (t *Target) Bonus(strategy string) float64 {
	if t.StrategyBonuses == nil {
		return 0
	}
	return t.StrategyBonuses[strategy]
}

// HasCategory reports whether the target carries the given category slug.
func (t *Target) HasCategory(category string) bool {
	for _, c := range t.CategoryHints {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// EntryURLs expands the ordered base URLs for one category. A base URL
// containing a "{category}" placeholder is substituted; otherwise the
// category slug is appended as a path segment. An empty category yields
// the base URLs unchanged.
func (t *Target) EntryURLs(category string) []string {
	urls := make([]string, 0, len(t.BaseURLs))
	for _, base := range t.BaseURLs {
		urls = append(urls, expandEntryURL(base, category))
	}
	return urls
}

func expandEntryURL(base, category string) string {
	if category == "" {
		return strings.ReplaceAll(base, "{category}", "")
	}
	if strings.Contains(base, "{category}") {
		return strings.ReplaceAll(base, "{category}", url.PathEscape(category))
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(category)
}

// MobileVariant derives an "m." subdomain URL from a page URL; used by
// the evasion strategy as an alternate entry point after a block.
func MobileVariant(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Host
	if strings.HasPrefix(host, "m.") {
		return ""
	}
	host = strings.TrimPrefix(host, "www.")
	u.Host = "m." + host
	return u.String()
}

// RootVariant strips the path from a page URL, leaving the site root.
func RootVariant(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Path = "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
