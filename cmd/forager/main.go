package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forager-sh/forager/internal/breaker"
	"github.com/forager-sh/forager/internal/browser"
	"github.com/forager-sh/forager/internal/catalog"
	"github.com/forager-sh/forager/internal/config"
	"github.com/forager-sh/forager/internal/fingerprint"
	"github.com/forager-sh/forager/internal/observability"
	"github.com/forager-sh/forager/internal/orchestrator"
	"github.com/forager-sh/forager/internal/pipeline"
	"github.com/forager-sh/forager/internal/ratelimit"
	"github.com/forager-sh/forager/internal/session"
	"github.com/forager-sh/forager/internal/strategy"
	"github.com/forager-sh/forager/internal/types"
	"github.com/forager-sh/forager/internal/vector"
)

// Exit codes.
const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

var (
	cfgFile      string
	verbose      bool
	strategyMode string
	targetsCSV   string
	categories   string
	maxItems     int
	concurrency  int
	outputDir    string
	resume       bool
	noResume     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "forager",
		Short: "Forager is an adaptive product-data extraction engine",
		Long: `Forager harvests structured product records (name, price, image,
brand, category) from anti-automation-protected web targets and turns
the raw harvest into a deduplicated, quality-scored catalog.

Features:
  • Five extraction strategies behind one heuristic selector
  • Per-target adaptive rate limiting and circuit breaking
  • Randomized browser fingerprints with stealth hardening
  • Non-browser vectors: JSON endpoints, mobile pages, sitemaps
  • Resumable sessions with per-category progress
  • File, MongoDB and PostgreSQL catalog sinks
  • Prometheus metrics endpoint`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(targetsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitFatal)
	}
}

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an extraction session over the configured targets",
		Long:  "Run the full extraction session: select strategies per target, harvest, pipeline and persist the catalog.",
		RunE:  runRun,
	}

	cmd.Flags().StringVarP(&strategyMode, "strategy", "s", "intelligent", "strategy mode: intelligent, standard, aggressive, evasive, multi-vector, hybrid")
	cmd.Flags().StringVarP(&targetsCSV, "targets", "t", "", "comma-separated target ids (default: all configured)")
	cmd.Flags().StringVar(&categories, "categories", "", "comma-separated category slugs (default: each target's hints)")
	cmd.Flags().IntVarP(&maxItems, "max-items", "m", 0, "global item budget (0 = unlimited)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "worker pool width (0 = config default)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&resume, "resume", false, "force resuming a previous session")
	cmd.Flags().BoolVar(&noResume, "no-resume", false, "ignore any previous session")

	return cmd
}

// runRun executes the run command.
func runRun(cmd *cobra.Command, args []string) error {
	// Configuration errors surface through a plain stderr logger;
	// the configured logger only exists once the config is valid.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fatal(logger, "load config", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		fatal(logger, "invalid config", err)
	}
	logger = setupLogger(cfg)

	targets, err := config.LoadTargets(cfg.Run.TargetsFile)
	if err != nil {
		fatal(logger, "load targets", err)
	}
	targets, err = config.FilterTargets(targets, targetsCSV)
	if err != nil {
		fatal(logger, "filter targets", err)
	}
	if len(targets) == 0 {
		fatal(logger, "no targets selected", types.ErrTargetUnknown)
	}

	registry, err := registryForMode(cfg.Run.Strategy)
	if err != nil {
		fatal(logger, "strategy mode", err)
	}

	logger.Info("starting run",
		"strategy", cfg.Run.Strategy,
		"targets", len(targets),
		"concurrency", cfg.Run.Concurrency,
		"max_items", cfg.Run.MaxItems,
		"output", cfg.Run.OutputDir,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collaborators.
	br, err := browser.New(cfg, logger)
	if err != nil {
		fatal(logger, "launch browser", err)
	}
	defer br.Close()

	vec, err := vector.NewClient(cfg, logger)
	if err != nil {
		fatal(logger, "vector client", err)
	}

	sink, err := catalog.Open(ctx, cfg, logger)
	if err != nil {
		fatal(logger, "open catalog", err)
	}
	defer sink.Close(context.Background())

	metrics := observability.NewMetrics()
	metricsSrv := observability.StartServer(&cfg.Metrics, metrics, logger)
	defer metricsSrv.Shutdown(context.Background())

	store := session.NewStore(filepath.Join(cfg.Run.OutputDir, "session.json"), cfg.Session.MaxAge, logger)
	state := loadSession(store, cfg, logger)

	deps := &strategy.Deps{
		Browser:      orchestrator.AdaptBrowser(br),
		Vector:       vec,
		Fingerprints: fingerprint.NewProvider(time.Now().UnixNano()),
		Logger:       logger,
		Timeout:      cfg.Run.RequestTimeout,
		ScrollCycles: cfg.Browser.ScrollCycles,
		MinViable:    cfg.Run.MinViableItems,
	}

	orch := orchestrator.New(orchestrator.Options{
		Config:   cfg,
		Targets:  targets,
		Registry: registry,
		Deps:     deps,
		History:  strategy.NewHistory(0),
		Limiter:  ratelimit.New(cfg.Limiter.FastThreshold, logger),
		Breaker:  breaker.New(cfg.Breaker.FailureThreshold, cfg.Breaker.RecoveryTimeout, logger),
		Pipeline: pipeline.New(cfg, logger),
		Catalog:  sink,
		State:    state,
		Store:    store,
		Metrics:  metrics,
		Logger:   logger,
	})

	// Graceful shutdown: in-flight attempts finish, no new work starts.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, stopping...", "signal", sig)
		orch.Stop()
		<-sigCh
		logger.Warn("second signal, aborting")
		cancel()
	}()

	report, err := orch.Run(ctx, splitCSV(categories))
	if err != nil {
		fatal(logger, "run", err)
	}

	reportPath, err := orchestrator.WriteReport(report, cfg.Run.OutputDir)
	if err != nil {
		logger.Error("write report failed", "error", err)
	}

	fmt.Printf("\nRun complete in %s\n", report.Duration.Round(time.Millisecond))
	fmt.Printf("   Items:     %d accepted, %d rejected, %d duplicates\n",
		report.ItemsAccepted, report.ItemsRejected, report.ItemsDuplicated)
	fmt.Printf("   Targets:   %d succeeded, %d failed\n", report.TargetsSucceeded, report.TargetsFailed)
	fmt.Printf("   Quality:   %.1f average score\n", report.AvgQuality)
	fmt.Printf("   Output:    %s\n", cfg.Run.OutputDir)
	if reportPath != "" {
		fmt.Printf("   Report:    %s\n", reportPath)
	}

	if report.Partial() {
		os.Exit(exitPartial)
	}
	return nil
}

// fatal logs a setup error and exits with the fatal code; setup
// problems never produce a partial report.
func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	fmt.Fprintf(os.Stderr, "forager: %s: %v\n", msg, err)
	os.Exit(exitFatal)
}

// loadSession resumes a previous session when allowed, else starts
// fresh.
func loadSession(store *session.Store, cfg *config.Config, logger *slog.Logger) *session.State {
	wantResume := cfg.Session.Resume
	if resume {
		wantResume = true
	}
	if noResume {
		wantResume = false
	}
	if wantResume {
		if state, err := store.Load(); err == nil {
			return state
		}
		logger.Info("no resumable session, starting fresh")
	}
	return session.NewState()
}

// registryForMode maps the CLI strategy mode onto the strategy set
// the selector ranks.
func registryForMode(mode string) ([]strategy.Strategy, error) {
	if mode == "intelligent" {
		return strategy.Registry(), nil
	}
	name := map[string]string{
		"standard":     strategy.NameStealth,
		"aggressive":   strategy.NameBruteForce,
		"evasive":      strategy.NameEvasion,
		"multi-vector": strategy.NameMultiVector,
		"hybrid":       strategy.NameHybrid,
	}[mode]
	if name == "" {
		return nil, fmt.Errorf("unknown strategy mode %q", mode)
	}
	s, ok := strategy.ByName(name)
	if !ok {
		return nil, fmt.Errorf("strategy %q not registered", name)
	}
	return []strategy.Strategy{s}, nil
}

// applyCLIOverrides merges command line flags over the loaded config.
func applyCLIOverrides(cfg *config.Config) {
	if strategyMode != "" {
		cfg.Run.Strategy = strategyMode
	}
	if maxItems > 0 {
		cfg.Run.MaxItems = maxItems
	}
	if concurrency > 0 {
		cfg.Run.Concurrency = concurrency
	}
	if outputDir != "" {
		cfg.Run.OutputDir = outputDir
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// setupLogger builds the run logger from the validated logging
// config, teeing to a per-run log file when the output directory is
// writable.
func setupLogger(cfg *config.Config) *slog.Logger {
	var w io.Writer = os.Stderr
	if err := os.MkdirAll(cfg.Run.OutputDir, 0o755); err == nil {
		name := fmt.Sprintf("forager_%s.log", time.Now().Format("20060102_150405"))
		if f, err := os.Create(filepath.Join(cfg.Run.OutputDir, name)); err == nil {
			w = io.MultiWriter(os.Stderr, f)
		}
	}
	return slog.New(newLogHandler(w, cfg.Logging))
}

// newLogHandler maps the logging config onto a slog handler.
func newLogHandler(w io.Writer, cfg config.LoggingConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLevel maps a config level name onto a slog level. Unknown
// names fall back to info; Validate rejects them before this runs.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// targetsCmd creates the "targets" subcommand for inspecting the
// configured target list.
func targetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List configured targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			targets, err := config.LoadTargets(cfg.Run.TargetsFile)
			if err != nil {
				return err
			}
			for _, t := range targets {
				status := "ok"
				if err := config.ValidateTarget(t); err != nil {
					status = err.Error()
				}
				fmt.Printf("%-20s %-30s categories=%d hints=%d [%s]\n",
					t.ID, t.DisplayName, len(t.CategoryHints), len(t.SelectorHints), status)
			}
			return nil
		},
	}
}

// configCmd creates the "config" subcommand.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Run:\n")
			fmt.Printf("  Strategy:          %s\n", cfg.Run.Strategy)
			fmt.Printf("  Concurrency:       %d\n", cfg.Run.Concurrency)
			fmt.Printf("  Max Attempts:      %d\n", cfg.Run.MaxAttempts)
			fmt.Printf("  Max Items:         %d\n", cfg.Run.MaxItems)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Run.RequestTimeout)
			fmt.Printf("  Targets File:      %s\n", cfg.Run.TargetsFile)
			fmt.Printf("  Output Dir:        %s\n", cfg.Run.OutputDir)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Printf("  Max Pages:         %d\n", cfg.Browser.MaxPages)
			fmt.Printf("  Scroll Cycles:     %d\n", cfg.Browser.ScrollCycles)
			fmt.Printf("\nBreaker:\n")
			fmt.Printf("  Failure Threshold: %d\n", cfg.Breaker.FailureThreshold)
			fmt.Printf("  Recovery Timeout:  %s\n", cfg.Breaker.RecoveryTimeout)
			fmt.Printf("\nPipeline:\n")
			fmt.Printf("  Min Quality:       %d\n", cfg.Pipeline.MinQuality)
			fmt.Printf("  Default Currency:  %s\n", cfg.Pipeline.DefaultCurrency)
			fmt.Printf("\nCatalog:\n")
			fmt.Printf("  Sinks:             %s\n", strings.Join(cfg.Catalog.Sinks, ", "))
			fmt.Printf("\nSession:\n")
			fmt.Printf("  Resume:            %v\n", cfg.Session.Resume)
			fmt.Printf("  Max Age:           %s\n", cfg.Session.MaxAge)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Forager %s\n", config.Version)
		},
	}
}
