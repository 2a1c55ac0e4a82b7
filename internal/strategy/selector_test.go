package strategy

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/forager-sh/forager/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// offHours is a Sunday night; no business-hours penalty applies.
var offHours = time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)

// midWeekday is a Wednesday at 11:00; the penalty applies.
var midWeekday = time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC)

func fixedSelector(h *History, at time.Time) *Selector {
	s := NewSelector(Registry(), h, discardLogger())
	s.now = func() time.Time { return at }
	return s
}

func record(h *History, target, strat string, successes, failures int) {
	for i := 0; i < successes; i++ {
		h.Record(types.StrategyOutcome{Target: target, Strategy: strat, Success: true})
	}
	for i := 0; i < failures; i++ {
		h.Record(types.StrategyOutcome{Target: target, Strategy: strat, Success: false})
	}
}

func TestRankFavorsHistoricalWinner(t *testing.T) {
	h := NewHistory(20)
	target := &types.Target{ID: "shopco"}
	// 90% success for multi-vector, 20% for stealth, 0% for the rest.
	record(h, "shopco", NameMultiVector, 9, 1)
	record(h, "shopco", NameStealth, 2, 8)
	record(h, "shopco", NameBruteForce, 0, 10)
	record(h, "shopco", NameEvasion, 0, 10)
	record(h, "shopco", NameHybrid, 0, 10)

	ranked := fixedSelector(h, offHours).Rank(target, nil)
	if ranked[0].Name() != NameMultiVector {
		t.Fatalf("expected %s first, got %s", NameMultiVector, ranked[0].Name())
	}
	if ranked[1].Name() != NameStealth {
		t.Fatalf("expected %s second, got %s", NameStealth, ranked[1].Name())
	}
}

func TestRankTieBreaksByRegistrationOrder(t *testing.T) {
	h := NewHistory(20)
	ranked := fixedSelector(h, offHours).Rank(&types.Target{ID: "fresh"}, nil)
	want := []string{NameStealth, NameBruteForce, NameEvasion, NameMultiVector, NameHybrid}
	for i, s := range ranked {
		if s.Name() != want[i] {
			t.Fatalf("position %d: got %s, want %s (full order %v)", i, s.Name(), want[i], names(ranked))
		}
	}
}

func TestRankPenalizesSessionFailures(t *testing.T) {
	h := NewHistory(20)
	failures := map[string]bool{NameStealth: true}
	ranked := fixedSelector(h, offHours).Rank(&types.Target{ID: "shopco"}, failures)
	if ranked[0].Name() == NameStealth {
		t.Fatal("a strategy that failed this session should not rank first against untried peers")
	}
	if last := ranked[len(ranked)-1].Name(); last != NameStealth {
		t.Fatalf("expected %s last, got %s", NameStealth, last)
	}
}

func TestRankPenalizesAggressiveDuringBusinessHours(t *testing.T) {
	h := NewHistory(20)
	target := &types.Target{ID: "shopco"}

	day := fixedSelector(h, midWeekday).Rank(target, nil)
	night := fixedSelector(h, offHours).Rank(target, nil)

	if pos(day, NameBruteForce) <= pos(night, NameBruteForce) &&
		pos(day, NameEvasion) <= pos(night, NameEvasion) {
		t.Fatalf("aggressive strategies should drop during business hours: day=%v night=%v",
			names(day), names(night))
	}
}

func TestRankAppliesTargetBonus(t *testing.T) {
	h := NewHistory(20)
	target := &types.Target{
		ID:              "apifirst",
		StrategyBonuses: map[string]float64{NameMultiVector: 25},
	}
	ranked := fixedSelector(h, offHours).Rank(target, nil)
	if ranked[0].Name() != NameMultiVector {
		t.Fatalf("bonus should put %s first, got %v", NameMultiVector, names(ranked))
	}
}

func TestSuccessRateWindowAndDefault(t *testing.T) {
	h := NewHistory(4)
	if got := h.SuccessRate("t", "s"); got != 0.5 {
		t.Fatalf("empty history rate = %v, want 0.5", got)
	}
	// Four failures, then four successes: the window must forget the
	// failures entirely.
	record(h, "t", "s", 0, 4)
	record(h, "t", "s", 4, 0)
	if got := h.SuccessRate("t", "s"); got != 1.0 {
		t.Fatalf("windowed rate = %v, want 1.0", got)
	}
}

func names(list []Strategy) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Name()
	}
	return out
}

func pos(list []Strategy, name string) int {
	for i, s := range list {
		if s.Name() == name {
			return i
		}
	}
	return -1
}
