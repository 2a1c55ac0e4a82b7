package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
// CLI flag overrides are applied by the caller after Load.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("FORAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("forager")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".forager"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("run.concurrency", cfg.Run.Concurrency)
	v.SetDefault("run.max_attempts", cfg.Run.MaxAttempts)
	v.SetDefault("run.max_items", cfg.Run.MaxItems)
	v.SetDefault("run.request_timeout", cfg.Run.RequestTimeout)
	v.SetDefault("run.backoff_base", cfg.Run.BackoffBase)
	v.SetDefault("run.backoff_cap", cfg.Run.BackoffCap)
	v.SetDefault("run.targets_file", cfg.Run.TargetsFile)
	v.SetDefault("run.output_dir", cfg.Run.OutputDir)
	v.SetDefault("run.strategy", cfg.Run.Strategy)
	v.SetDefault("run.min_viable_items", cfg.Run.MinViableItems)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.max_pages", cfg.Browser.MaxPages)
	v.SetDefault("browser.stable_wait", cfg.Browser.StableWait)
	v.SetDefault("browser.scroll_cycles", cfg.Browser.ScrollCycles)
	v.SetDefault("browser.scroll_pause", cfg.Browser.ScrollPause)

	v.SetDefault("vector.timeout", cfg.Vector.Timeout)
	v.SetDefault("vector.max_body_size", cfg.Vector.MaxBodySize)
	v.SetDefault("vector.cache_size", cfg.Vector.CacheSize)
	v.SetDefault("vector.max_sitemap_urls", cfg.Vector.MaxSitemapURLs)

	v.SetDefault("breaker.failure_threshold", cfg.Breaker.FailureThreshold)
	v.SetDefault("breaker.recovery_timeout", cfg.Breaker.RecoveryTimeout)

	v.SetDefault("limiter.fast_threshold", cfg.Limiter.FastThreshold)

	v.SetDefault("pipeline.min_quality", cfg.Pipeline.MinQuality)
	v.SetDefault("pipeline.default_currency", cfg.Pipeline.DefaultCurrency)

	v.SetDefault("catalog.sinks", cfg.Catalog.Sinks)
	v.SetDefault("catalog.mongo_database", cfg.Catalog.MongoDatabase)
	v.SetDefault("catalog.mongo_collection", cfg.Catalog.MongoCollection)
	v.SetDefault("catalog.postgres_table", cfg.Catalog.PostgresTable)

	v.SetDefault("session.resume", cfg.Session.Resume)
	v.SetDefault("session.max_age", cfg.Session.MaxAge)
	v.SetDefault("session.flush_interval", cfg.Session.FlushInterval)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
