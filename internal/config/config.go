package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for Forager.
type Config struct {
	Run      RunConfig      `mapstructure:"run"      yaml:"run"`
	Browser  BrowserConfig  `mapstructure:"browser"  yaml:"browser"`
	Vector   VectorConfig   `mapstructure:"vector"   yaml:"vector"`
	Breaker  BreakerConfig  `mapstructure:"breaker"  yaml:"breaker"`
	Limiter  LimiterConfig  `mapstructure:"limiter"  yaml:"limiter"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Catalog  CatalogConfig  `mapstructure:"catalog"  yaml:"catalog"`
	Session  SessionConfig  `mapstructure:"session"  yaml:"session"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// RunConfig controls the orchestrator.
type RunConfig struct {
	Concurrency    int           `mapstructure:"concurrency"     yaml:"concurrency"`
	MaxAttempts    int           `mapstructure:"max_attempts"    yaml:"max_attempts"`
	MaxItems       int           `mapstructure:"max_items"       yaml:"max_items"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"    yaml:"backoff_base"`
	BackoffCap     time.Duration `mapstructure:"backoff_cap"     yaml:"backoff_cap"`
	TargetsFile    string        `mapstructure:"targets_file"    yaml:"targets_file"`
	OutputDir      string        `mapstructure:"output_dir"      yaml:"output_dir"`
	Strategy       string        `mapstructure:"strategy"        yaml:"strategy"`

	// MinViableItems is the threshold below which the hybrid strategy
	// falls through to its next step.
	MinViableItems int `mapstructure:"min_viable_items" yaml:"min_viable_items"`
}

// BrowserConfig controls the headless browser collaborator.
type BrowserConfig struct {
	Headless     bool          `mapstructure:"headless"      yaml:"headless"`
	MaxPages     int           `mapstructure:"max_pages"     yaml:"max_pages"`
	StableWait   time.Duration `mapstructure:"stable_wait"   yaml:"stable_wait"`
	ScrollCycles int           `mapstructure:"scroll_cycles" yaml:"scroll_cycles"`
	ScrollPause  time.Duration `mapstructure:"scroll_pause"  yaml:"scroll_pause"`
	UserDataDir  string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
}

// VectorConfig controls the machine-readable-surface client.
type VectorConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"          yaml:"timeout"`
	MaxBodySize    int64         `mapstructure:"max_body_size"    yaml:"max_body_size"`
	CacheSize      int           `mapstructure:"cache_size"       yaml:"cache_size"`
	MaxSitemapURLs int           `mapstructure:"max_sitemap_urls" yaml:"max_sitemap_urls"`
}

// BreakerConfig controls per-target failure isolation.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"  yaml:"recovery_timeout"`
}

// LimiterConfig controls adaptive pacing.
type LimiterConfig struct {
	FastThreshold time.Duration `mapstructure:"fast_threshold" yaml:"fast_threshold"`
}

// PipelineConfig controls validation, enrichment and quality scoring.
type PipelineConfig struct {
	MinQuality      int    `mapstructure:"min_quality"      yaml:"min_quality"`
	DefaultCurrency string `mapstructure:"default_currency" yaml:"default_currency"`
}

// CatalogConfig controls canonical-item sinks.
type CatalogConfig struct {
	// Sinks lists enabled backends: "file", "mongo", "postgres".
	Sinks []string `mapstructure:"sinks" yaml:"sinks"`

	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`

	PostgresDSN   string `mapstructure:"postgres_dsn"   yaml:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table" yaml:"postgres_table"`
}

// SessionConfig controls resumable progress persistence.
type SessionConfig struct {
	Resume        bool          `mapstructure:"resume"         yaml:"resume"`
	MaxAge        time.Duration `mapstructure:"max_age"        yaml:"max_age"`
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Concurrency:    3,
			MaxAttempts:    4,
			MaxItems:       0,
			RequestTimeout: 45 * time.Second,
			BackoffBase:    2 * time.Second,
			BackoffCap:     60 * time.Second,
			TargetsFile:    "targets.yaml",
			OutputDir:      "./output",
			Strategy:       "intelligent",
			MinViableItems: 5,
		},
		Browser: BrowserConfig{
			Headless:     true,
			MaxPages:     3,
			StableWait:   300 * time.Millisecond,
			ScrollCycles: 4,
			ScrollPause:  700 * time.Millisecond,
		},
		Vector: VectorConfig{
			Timeout:        20 * time.Second,
			MaxBodySize:    10 * 1024 * 1024,
			CacheSize:      128,
			MaxSitemapURLs: 25,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  5 * time.Minute,
		},
		Limiter: LimiterConfig{
			FastThreshold: 3 * time.Second,
		},
		Pipeline: PipelineConfig{
			MinQuality:      6,
			DefaultCurrency: "USD",
		},
		Catalog: CatalogConfig{
			Sinks:           []string{"file"},
			MongoDatabase:   "forager",
			MongoCollection: "catalog",
			PostgresTable:   "catalog_items",
		},
		Session: SessionConfig{
			Resume:        true,
			MaxAge:        24 * time.Hour,
			FlushInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
