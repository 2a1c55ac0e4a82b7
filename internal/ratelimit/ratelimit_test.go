package ratelimit

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/forager-sh/forager/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testTarget() *types.Target {
	return &types.Target{
		ID: "shop-a",
		RateProfile: types.RateProfile{
			MinDelay:     1000 * time.Millisecond,
			MaxDelay:     30 * time.Second,
			InitialDelay: 2000 * time.Millisecond,
		},
	}
}

func success(d time.Duration) *types.StrategyOutcome {
	return &types.StrategyOutcome{Success: true, Duration: d, ItemCount: 1}
}

func failure(kind types.ErrorKind) *types.StrategyOutcome {
	return &types.StrategyOutcome{Success: false, ErrorKind: kind}
}

func TestFastSuccessesReduceDelayFloored(t *testing.T) {
	l := New(3*time.Second, testLogger)
	tgt := testTarget()

	if got := l.Delay(tgt); got != 2000*time.Millisecond {
		t.Fatalf("initial delay = %v, want 2s", got)
	}

	// 5 consecutive fast successes start shrinking the delay.
	for i := 0; i < 5; i++ {
		l.Report(tgt, success(100*time.Millisecond))
	}
	after5 := l.Delay(tgt)
	if after5 >= 2000*time.Millisecond {
		t.Errorf("delay after 5 fast successes = %v, want < 2s", after5)
	}

	// Many more never push it below the profile floor.
	for i := 0; i < 200; i++ {
		l.Report(tgt, success(100*time.Millisecond))
	}
	if got := l.Delay(tgt); got < tgt.RateProfile.MinDelay {
		t.Errorf("delay = %v, below min %v", got, tgt.RateProfile.MinDelay)
	}
}

func TestBlockBacksOffHardCeiled(t *testing.T) {
	l := New(3*time.Second, testLogger)
	tgt := testTarget()

	l.Report(tgt, failure(types.ErrorKindBlocked))
	after := l.Delay(tgt)
	if after < 5000*time.Millisecond { // 2s × at least 2.5
		t.Errorf("delay after block = %v, want >= 5s", after)
	}

	for i := 0; i < 50; i++ {
		l.Report(tgt, failure(types.ErrorKindBlocked))
	}
	if got := l.Delay(tgt); got > tgt.RateProfile.MaxDelay {
		t.Errorf("delay = %v, above max %v", got, tgt.RateProfile.MaxDelay)
	}
}

func TestTimeoutBacksOffGently(t *testing.T) {
	l := New(3*time.Second, testLogger)
	tgt := testTarget()

	l.Report(tgt, failure(types.ErrorKindTimeout))
	after := l.Delay(tgt)
	if after < 2400*time.Millisecond || after > 3000*time.Millisecond {
		t.Errorf("delay after timeout = %v, want within [2.4s, 3s]", after)
	}
}

func TestStreakResetsOnOppositeOutcome(t *testing.T) {
	l := New(3*time.Second, testLogger)
	tgt := testTarget()

	// 4 fast successes, then a failure: the next success must not
	// count as the 5th of a streak.
	for i := 0; i < 4; i++ {
		l.Report(tgt, success(100*time.Millisecond))
	}
	before := l.Delay(tgt)
	l.Report(tgt, failure(types.ErrorKindExtraction))
	l.Report(tgt, success(100*time.Millisecond))
	if got := l.Delay(tgt); got < before {
		t.Errorf("delay shrank to %v after a broken streak", got)
	}
}

func TestExtractionFailureDoesNotSlowDown(t *testing.T) {
	l := New(3*time.Second, testLogger)
	tgt := testTarget()

	before := l.Delay(tgt)
	l.Report(tgt, failure(types.ErrorKindExtraction))
	if got := l.Delay(tgt); got != before {
		t.Errorf("extraction failure changed delay from %v to %v", before, got)
	}
}

func TestDelayAlwaysWithinProfile(t *testing.T) {
	l := New(3*time.Second, testLogger)
	tgt := testTarget()

	outcomes := []*types.StrategyOutcome{
		success(100 * time.Millisecond),
		failure(types.ErrorKindBlocked),
		failure(types.ErrorKindTimeout),
		success(10 * time.Second),
		failure(types.ErrorKindNavigation),
		failure(types.ErrorKindExtraction),
	}

	for i := 0; i < 500; i++ {
		l.Report(tgt, outcomes[i%len(outcomes)])
		got := l.Delay(tgt)
		if got < tgt.RateProfile.MinDelay || got > tgt.RateProfile.MaxDelay {
			t.Fatalf("iteration %d: delay %v escaped [%v, %v]",
				i, got, tgt.RateProfile.MinDelay, tgt.RateProfile.MaxDelay)
		}
	}
}

func TestWaitHonorsContext(t *testing.T) {
	l := New(3*time.Second, testLogger)
	tgt := testTarget()

	// Set the last-request clock by performing a first wait.
	if err := l.Wait(context.Background(), tgt); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Wait(ctx, tgt)
	if err == nil {
		t.Fatal("expected context error while waiting out a 2s delay")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("wait did not return promptly on cancellation: %v", elapsed)
	}
}

func TestWaitEnforcesSpacing(t *testing.T) {
	l := New(3*time.Second, testLogger)
	tgt := &types.Target{
		ID: "quick",
		RateProfile: types.RateProfile{
			MinDelay:     30 * time.Millisecond,
			MaxDelay:     100 * time.Millisecond,
			InitialDelay: 30 * time.Millisecond,
		},
	}

	if err := l.Wait(context.Background(), tgt); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(context.Background(), tgt); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("second request after %v, want >= ~30ms spacing", elapsed)
	}
}
