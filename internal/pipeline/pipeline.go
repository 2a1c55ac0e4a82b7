// Package pipeline turns raw strategy output into the deduplicated,
// quality-scored catalog records. Items flow validate, enrich, score,
// dedup; the same pipeline instance is reused across targets so the
// dedup index spans the whole run.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/forager-sh/forager/internal/config"
	"github.com/forager-sh/forager/internal/extract"
	"github.com/forager-sh/forager/internal/types"
)

// Stats counts what one pipeline instance has seen.
type Stats struct {
	Accepted   int64
	Rejected   int64
	Duplicates int64
}

// Pipeline validates, enriches, scores and deduplicates raw items.
type Pipeline struct {
	minQuality      int
	defaultCurrency string
	logger          *slog.Logger

	mu    sync.Mutex
	index map[string]*types.CanonicalItem
	stats Stats
}

// New builds a pipeline with an empty dedup index.
func New(cfg *config.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		minQuality:      cfg.Pipeline.MinQuality,
		defaultCurrency: cfg.Pipeline.DefaultCurrency,
		logger:          logger.With("component", "pipeline"),
		index:           make(map[string]*types.CanonicalItem),
	}
}

// Process runs one batch of raw items through the full pipeline and
// returns the newly accepted canonical items. Re-feeding the same
// batch yields no new items; duplicates only refresh lastSeenAt.
func (p *Pipeline) Process(raw []types.RawItem, target *types.Target) []types.CanonicalItem {
	var fresh []types.CanonicalItem
	now := time.Now()

	for i := range raw {
		item, ok := p.build(&raw[i], target, now)
		if !ok {
			p.mu.Lock()
			p.stats.Rejected++
			p.mu.Unlock()
			continue
		}

		p.mu.Lock()
		if existing := p.lookup(item); existing != nil {
			existing.LastSeenAt = now
			p.stats.Duplicates++
			p.mu.Unlock()
			continue
		}
		p.store(item)
		p.stats.Accepted++
		p.mu.Unlock()
		fresh = append(fresh, *item)
	}

	p.logger.Debug("batch processed",
		"target", target.ID, "in", len(raw), "accepted", len(fresh))
	return fresh
}

// Items returns every item accepted so far, for the run-end global
// pass and the report.
func (p *Pipeline) Items() []types.CanonicalItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[string]bool, len(p.index))
	items := make([]types.CanonicalItem, 0, len(p.index))
	for _, it := range p.index {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		items = append(items, *it)
	}
	return items
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// build runs validate, enrich and score for one raw item.
func (p *Pipeline) build(raw *types.RawItem, target *types.Target, now time.Time) (*types.CanonicalItem, bool) {
	name := cleanText(raw.Name)
	if len(name) < 3 {
		return nil, false
	}

	price, currency, priceOK := extract.ParsePrice(raw.PriceText)
	if !priceOK && raw.ImageURL == "" {
		return nil, false
	}
	if currency == "" {
		currency = p.defaultCurrency
	}

	item := &types.CanonicalItem{
		Name:         name,
		Brand:        resolveBrand(name, cleanText(raw.BrandText)),
		Category:     inferCategory(name),
		ImageURL:     strings.TrimSpace(raw.ImageURL),
		SourceTarget: target.ID,
		SourceURL:    raw.SourceURL,
		FirstSeenAt:  now,
		LastSeenAt:   now,
	}
	if priceOK {
		item.Price = price
		item.Currency = currency
	}
	item.ID = CanonicalID(target.ID, item.Name, item.Brand)
	item.QualityScore = score(item, raw)

	return item, item.QualityScore >= p.minQuality
}

// score implements the additive quality formula. The strategy's own
// confidence contributes at most 3, and sweep output is capped at 1 of
// that 3 regardless of what the sweep claimed.
func score(item *types.CanonicalItem, raw *types.RawItem) int {
	s := 0
	if len(item.Name) >= 3 {
		s += 2
	}
	if item.Price > 0 {
		s += 2
	}
	if item.HasAbsoluteImage() {
		s += 2
	}
	if item.Brand != "" {
		s++
	}
	if item.SourceURL != "" {
		s++
	}
	conf := raw.Confidence
	if conf > 3 {
		conf = 3
	}
	if raw.ExtractedBy == "brute-force" && conf > 1 {
		conf = 1
	}
	if conf > 0 {
		s += conf
	}
	return s
}

// lookup checks both dedup scopes and must be called with the lock
// held.
func (p *Pipeline) lookup(item *types.CanonicalItem) *types.CanonicalItem {
	if hit := p.index[targetKey(item)]; hit != nil {
		return hit
	}
	return p.index[globalKey(item)]
}

func (p *Pipeline) store(item *types.CanonicalItem) {
	p.index[targetKey(item)] = item
	p.index[globalKey(item)] = item
}

// targetKey scopes dedup to one target, globalKey catches the same
// product showing up on different targets under the same brand.
func targetKey(item *types.CanonicalItem) string {
	return "t\x00" + Normalize(item.Name) + "\x00" + item.SourceTarget
}

func globalKey(item *types.CanonicalItem) string {
	return "g\x00" + Normalize(item.Name) + "\x00" + strings.ToLower(item.Brand)
}

// CanonicalID derives the stable item identity from target, normalized
// name and brand. The same product re-extracted later maps to the same
// ID, which is what makes catalog upserts idempotent.
func CanonicalID(targetID, name, brand string) string {
	h := sha256.New()
	h.Write([]byte(targetID))
	h.Write([]byte{0})
	h.Write([]byte(Normalize(name)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(brand)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Normalize lower-cases, strips punctuation and collapses whitespace
// so cosmetic listing differences do not defeat dedup.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// cleanText trims, collapses whitespace and drops control characters.
func cleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
