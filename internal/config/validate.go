package config

import (
	"fmt"
	"net/url"

	"github.com/forager-sh/forager/internal/types"
)

// RunStrategies are the accepted values for run.strategy / --strategy.
var RunStrategies = []string{
	"intelligent", "standard", "aggressive", "evasive", "multi-vector", "hybrid",
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Run.Concurrency < 1 {
		return fmt.Errorf("run.concurrency must be >= 1, got %d", cfg.Run.Concurrency)
	}
	if cfg.Run.Concurrency > 16 {
		return fmt.Errorf("run.concurrency must be <= 16 (each worker drives a browsing session), got %d", cfg.Run.Concurrency)
	}
	if cfg.Run.MaxAttempts < 1 {
		return fmt.Errorf("run.max_attempts must be >= 1, got %d", cfg.Run.MaxAttempts)
	}
	if cfg.Run.MaxItems < 0 {
		return fmt.Errorf("run.max_items must be >= 0, got %d", cfg.Run.MaxItems)
	}
	if cfg.Run.RequestTimeout <= 0 {
		return fmt.Errorf("run.request_timeout must be > 0")
	}
	if cfg.Run.BackoffBase <= 0 || cfg.Run.BackoffCap < cfg.Run.BackoffBase {
		return fmt.Errorf("run.backoff_base must be > 0 and <= run.backoff_cap")
	}

	valid := false
	for _, s := range RunStrategies {
		if cfg.Run.Strategy == s {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("run.strategy must be one of %v, got %q", RunStrategies, cfg.Run.Strategy)
	}

	if cfg.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be >= 1, got %d", cfg.Breaker.FailureThreshold)
	}
	if cfg.Breaker.RecoveryTimeout <= 0 {
		return fmt.Errorf("breaker.recovery_timeout must be > 0")
	}
	if cfg.Limiter.FastThreshold <= 0 {
		return fmt.Errorf("limiter.fast_threshold must be > 0")
	}
	if cfg.Pipeline.MinQuality < 0 || cfg.Pipeline.MinQuality > 11 {
		return fmt.Errorf("pipeline.min_quality must be 0-11, got %d", cfg.Pipeline.MinQuality)
	}

	validSinks := map[string]bool{"file": true, "mongo": true, "postgres": true}
	if len(cfg.Catalog.Sinks) == 0 {
		return fmt.Errorf("catalog.sinks must list at least one sink")
	}
	for _, sink := range cfg.Catalog.Sinks {
		if !validSinks[sink] {
			return fmt.Errorf("catalog sink %q is not supported (valid: file, mongo, postgres)", sink)
		}
	}
	for _, sink := range cfg.Catalog.Sinks {
		if sink == "mongo" && cfg.Catalog.MongoURI == "" {
			return fmt.Errorf("catalog.mongo_uri is required when the mongo sink is enabled")
		}
		if sink == "postgres" && cfg.Catalog.PostgresDSN == "" {
			return fmt.Errorf("catalog.postgres_dsn is required when the postgres sink is enabled")
		}
	}

	if cfg.Session.MaxAge <= 0 {
		return fmt.Errorf("session.max_age must be > 0")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateTarget checks a single target definition.
func ValidateTarget(t *types.Target) error {
	if t.ID == "" {
		return fmt.Errorf("target id must not be empty")
	}
	if len(t.BaseURLs) == 0 && t.APIEndpoint == "" {
		return fmt.Errorf("target %q: needs at least one base URL or an API endpoint", t.ID)
	}
	for _, raw := range t.BaseURLs {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("target %q: %w", t.ID, err)
		}
	}
	rp := t.RateProfile
	if rp.MinDelay <= 0 || rp.MaxDelay < rp.MinDelay {
		return fmt.Errorf("target %q: rate profile needs 0 < min_delay <= max_delay", t.ID)
	}
	if rp.InitialDelay < rp.MinDelay || rp.InitialDelay > rp.MaxDelay {
		return fmt.Errorf("target %q: initial_delay must be within [min_delay, max_delay]", t.ID)
	}
	for i, hint := range t.SelectorHints {
		if hint.Container == "" || hint.Name == "" {
			return fmt.Errorf("target %q: selector hint %d needs container and name selectors", t.ID, i)
		}
		if hint.Kind != "" && hint.Kind != "css" && hint.Kind != "xpath" {
			return fmt.Errorf("target %q: selector hint %d kind must be css or xpath", t.ID, i)
		}
	}
	return nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q must have a host", rawURL)
	}
	return nil
}
