// Package orchestrator drives the whole run: a bounded worker pool
// over targets, per-target attempt loops through the strategy
// selector, breaker and limiter, and the pipeline-to-catalog flow for
// whatever the strategies bring back.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forager-sh/forager/internal/breaker"
	"github.com/forager-sh/forager/internal/catalog"
	"github.com/forager-sh/forager/internal/config"
	"github.com/forager-sh/forager/internal/observability"
	"github.com/forager-sh/forager/internal/pipeline"
	"github.com/forager-sh/forager/internal/ratelimit"
	"github.com/forager-sh/forager/internal/session"
	"github.com/forager-sh/forager/internal/strategy"
	"github.com/forager-sh/forager/internal/types"
)

// Orchestrator owns one run.
type Orchestrator struct {
	cfg      *config.Config
	targets  []*types.Target
	selector *strategy.Selector
	history  *strategy.History
	registry []strategy.Strategy
	deps     *strategy.Deps
	limiter  *ratelimit.Limiter
	breaker  *breaker.Breaker
	pipe     *pipeline.Pipeline
	sink     catalog.Catalog
	state    *session.State
	store    *session.Store
	metrics  *observability.Metrics
	logger   *slog.Logger

	stopped atomic.Bool

	rejectedMu   sync.Mutex
	rejectedSeen int64
}

// Options bundles the collaborators the orchestrator drives. The
// caller wires them so tests can substitute any piece.
type Options struct {
	Config   *config.Config
	Targets  []*types.Target
	Registry []strategy.Strategy
	Deps     *strategy.Deps
	History  *strategy.History
	Limiter  *ratelimit.Limiter
	Breaker  *breaker.Breaker
	Pipeline *pipeline.Pipeline
	Catalog  catalog.Catalog
	State    *session.State
	Store    *session.Store
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// New assembles an orchestrator from pre-built collaborators.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:      opts.Config,
		targets:  opts.Targets,
		selector: strategy.NewSelector(opts.Registry, opts.History, opts.Logger),
		history:  opts.History,
		registry: opts.Registry,
		deps:     opts.Deps,
		limiter:  opts.Limiter,
		breaker:  opts.Breaker,
		pipe:     opts.Pipeline,
		sink:     opts.Catalog,
		state:    opts.State,
		store:    opts.Store,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With("component", "orchestrator"),
	}
}

// Stop requests a graceful stop: in-flight attempts finish, no new
// work starts.
func (o *Orchestrator) Stop() {
	o.stopped.Store(true)
}

// shouldStop is checked before every new unit of work.
func (o *Orchestrator) shouldStop(ctx context.Context) bool {
	if o.stopped.Load() || ctx.Err() != nil {
		return true
	}
	if o.cfg.Run.MaxItems > 0 && o.state.Total() >= o.cfg.Run.MaxItems {
		return true
	}
	return false
}

// Run processes every target through the worker pool and returns the
// aggregated report. A context cancellation or budget stop is not an
// error; the report carries what was harvested.
func (o *Orchestrator) Run(ctx context.Context, categories []string) (*Report, error) {
	started := time.Now()
	o.logger.Info("run starting",
		"targets", len(o.targets),
		"concurrency", o.cfg.Run.Concurrency,
		"session", o.state.SessionID)

	flushDone := o.startPeriodicFlush(ctx)

	work := make(chan *types.Target)
	var wg sync.WaitGroup
	for w := 0; w < o.cfg.Run.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range work {
				if o.shouldStop(ctx) {
					continue
				}
				o.runTarget(ctx, t, categories)
			}
		}()
	}
	for _, t := range o.targets {
		work <- t
	}
	close(work)
	wg.Wait()
	flushDone()

	if err := o.store.Save(o.state); err != nil {
		o.logger.Error("final session save failed", "error", err)
	}
	if err := o.sink.Flush(ctx); err != nil {
		o.logger.Error("catalog flush failed", "error", err)
	}

	report := o.buildReport(started)
	o.logger.Info("run finished",
		"duration", report.Duration,
		"items", report.ItemsAccepted,
		"targets_ok", report.TargetsSucceeded,
		"targets_failed", report.TargetsFailed)
	return report, nil
}

// runTarget works through one target's categories sequentially.
// Concurrent attempts against one target are forbidden so the breaker
// and limiter stay authoritative for it.
func (o *Orchestrator) runTarget(ctx context.Context, target *types.Target, categories []string) {
	if o.state.IsTargetCompleted(target.ID) {
		o.logger.Info("target already completed, skipping", "target", target.ID)
		return
	}

	cats := targetCategories(target, categories)
	allDone := true
	for _, category := range cats {
		if o.shouldStop(ctx) {
			return
		}
		if o.state.IsCategoryDone(target.ID, category) {
			o.logger.Debug("category already done, skipping", "target", target.ID, "category", category)
			continue
		}
		if o.harvestCategory(ctx, target, category) {
			o.state.MarkCategoryDone(target.ID, category)
			if err := o.store.Save(o.state); err != nil {
				o.logger.Warn("session save failed", "error", err)
			}
		} else {
			allDone = false
		}
	}
	if allDone {
		o.state.MarkTargetCompleted(target.ID)
	}
}

// harvestCategory runs the attempt loop for one target/category unit
// and reports whether it produced accepted items.
func (o *Orchestrator) harvestCategory(ctx context.Context, target *types.Target, category string) bool {
	sessionFailures := make(map[string]bool)
	log := o.logger.With("target", target.ID, "category", category)

	for attempt := 0; attempt < o.cfg.Run.MaxAttempts; attempt++ {
		if o.shouldStop(ctx) {
			return false
		}

		accepted, err := o.runAttempt(ctx, target, category, sessionFailures)
		if err != nil && !types.IsTransient(err) {
			return false
		}
		if err == nil {
			if accepted > 0 {
				log.Info("category harvested", "attempt", attempt+1, "accepted", accepted)
				return true
			}
			// Everything extracted was rejected or duplicate; the
			// unit is done even though nothing new landed.
			return true
		}

		log.Warn("attempt failed", "attempt", attempt+1, "error", err)
		if attempt == o.cfg.Run.MaxAttempts-1 {
			break
		}
		// A fast-failed breaker call never reached the target, so
		// pacing it with backoff gains nothing.
		if !errors.Is(err, types.ErrBreakerOpen) {
			if err := o.backoff(ctx, attempt); err != nil {
				return false
			}
		}
	}
	log.Error("category exhausted all attempts")
	return false
}

// runAttempt walks the ranked strategies once. Extraction failures
// fall through to the next-ranked strategy within the same attempt;
// blocked, navigation and timeout failures end the attempt so backoff
// and the breaker can do their work.
func (o *Orchestrator) runAttempt(ctx context.Context, target *types.Target, category string, sessionFailures map[string]bool) (int, error) {
	ranked := o.selector.Rank(target, sessionFailures)

	var lastErr error
	for _, strat := range ranked {
		if o.shouldStop(ctx) {
			if o.cfg.Run.MaxItems > 0 && o.state.Total() >= o.cfg.Run.MaxItems {
				return 0, types.ErrBudgetReached
			}
			return 0, types.ErrRunStopped
		}

		var (
			items   []types.RawItem
			outcome types.StrategyOutcome
		)
		execErr := o.breaker.Execute(target.ID, func() error {
			if err := o.limiter.Wait(ctx, target); err != nil {
				return err
			}
			var err error
			items, outcome, err = strategy.Run(ctx, strat, o.deps, target, category)
			o.limiter.Report(target, &outcome)
			return err
		})

		o.observe(target, strat.Name(), &outcome, execErr)
		if outcome.Strategy != "" {
			o.history.Record(outcome)
		}

		if execErr != nil {
			lastErr = execErr
			if errors.Is(execErr, types.ErrBreakerOpen) {
				return 0, execErr
			}
			sessionFailures[strat.Name()] = true
			if types.Classify(execErr) == types.ErrorKindExtraction {
				continue
			}
			return 0, execErr
		}

		accepted := o.pipe.Process(items, target)
		o.observeRejected()
		if len(accepted) > 0 {
			if err := o.sink.Upsert(ctx, accepted); err != nil {
				o.logger.Error("catalog upsert failed", "target", target.ID, "error", err)
			}
			o.state.AddItems(target.ID, len(accepted))
		}
		if o.metrics != nil {
			o.metrics.ItemsAccepted.WithLabelValues(target.ID).Add(float64(len(accepted)))
		}
		return len(accepted), nil
	}
	if lastErr == nil {
		lastErr = &types.ExtractionError{Strategy: "none", Err: types.ErrNoItems}
	}
	return 0, lastErr
}

// observeRejected advances the rejected-items counter to the
// pipeline's cumulative total. The seen marker is guarded so
// concurrent workers never count the same batch twice.
func (o *Orchestrator) observeRejected() {
	if o.metrics == nil {
		return
	}
	total := o.pipe.Stats().Rejected
	o.rejectedMu.Lock()
	delta := total - o.rejectedSeen
	if delta > 0 {
		o.rejectedSeen = total
	}
	o.rejectedMu.Unlock()
	if delta > 0 {
		o.metrics.ItemsRejected.Add(float64(delta))
	}
}

// observe updates metrics for one attempt.
func (o *Orchestrator) observe(target *types.Target, strat string, outcome *types.StrategyOutcome, err error) {
	if o.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = string(types.Classify(err))
		if errors.Is(err, types.ErrBreakerOpen) {
			result = "breaker_open"
		}
	}
	o.metrics.AttemptsTotal.WithLabelValues(target.ID, strat, result).Inc()
	if outcome.Strategy != "" {
		o.metrics.AttemptDuration.WithLabelValues(strat).Observe(outcome.Duration.Seconds())
		o.metrics.ItemsExtracted.WithLabelValues(target.ID, strat).Add(float64(outcome.ItemCount))
	}
	o.metrics.BreakerState.WithLabelValues(target.ID).Set(float64(o.breaker.State(target.ID)))
	o.metrics.CurrentDelay.WithLabelValues(target.ID).Set(o.limiter.Delay(target).Seconds())
}

// backoff sleeps base*2^attempt capped, with ±30% jitter.
func (o *Orchestrator) backoff(ctx context.Context, attempt int) error {
	d := o.cfg.Run.BackoffBase << attempt
	if d > o.cfg.Run.BackoffCap {
		d = o.cfg.Run.BackoffCap
	}
	jitter := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * jitter)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startPeriodicFlush persists the session on an interval until the
// returned stop function is called.
func (o *Orchestrator) startPeriodicFlush(ctx context.Context) func() {
	interval := o.cfg.Session.FlushInterval
	if interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := o.store.Save(o.state); err != nil {
					o.logger.Warn("periodic session save failed", "error", err)
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// targetCategories intersects the requested categories with the
// target's hints. No requested categories means all the target's
// hints; a target with no hints gets one uncategorized pass.
func targetCategories(target *types.Target, requested []string) []string {
	if len(requested) == 0 {
		if len(target.CategoryHints) == 0 {
			return []string{""}
		}
		return target.CategoryHints
	}
	if len(target.CategoryHints) == 0 {
		return requested
	}
	var cats []string
	for _, c := range requested {
		if target.HasCategory(c) {
			cats = append(cats, c)
		}
	}
	return cats
}
