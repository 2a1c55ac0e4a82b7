// Package observability exposes run metrics over Prometheus.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forager-sh/forager/internal/config"
)

// Metrics holds every collector on a dedicated registry so tests and
// embedded use never collide with the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	AttemptsTotal   *prometheus.CounterVec
	ItemsExtracted  *prometheus.CounterVec
	ItemsAccepted   *prometheus.CounterVec
	ItemsRejected   prometheus.Counter
	AttemptDuration *prometheus.HistogramVec
	BreakerState    *prometheus.GaugeVec
	CurrentDelay    *prometheus.GaugeVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forager_attempts_total",
			Help: "Strategy attempts by target, strategy and result.",
		}, []string{"target", "strategy", "result"}),
		ItemsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forager_items_extracted_total",
			Help: "Raw items produced by strategies before the pipeline.",
		}, []string{"target", "strategy"}),
		ItemsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forager_items_accepted_total",
			Help: "Canonical items accepted by the pipeline.",
		}, []string{"target"}),
		ItemsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forager_items_rejected_total",
			Help: "Raw items dropped by validation or the quality floor.",
		}),
		AttemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forager_attempt_duration_seconds",
			Help:    "Wall time of one strategy attempt.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"strategy"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "forager_breaker_state",
			Help: "Circuit breaker state per target (0 closed, 1 open, 2 half-open).",
		}, []string{"target"}),
		CurrentDelay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "forager_rate_delay_seconds",
			Help: "Current adaptive delay per target.",
		}, []string{"target"}),
	}
	reg.MustRegister(
		m.AttemptsTotal, m.ItemsExtracted, m.ItemsAccepted, m.ItemsRejected,
		m.AttemptDuration, m.BreakerState, m.CurrentDelay,
	)
	return m
}

// Registry exposes the underlying registry for test scraping.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Server serves the metrics endpoint.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// StartServer begins serving metrics in the background when enabled;
// it returns nil when metrics are off.
func StartServer(cfg *config.MetricsConfig, m *Metrics, logger *slog.Logger) *Server {
	if !cfg.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	s := &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With("component", "metrics"),
	}
	go func() {
		s.logger.Info("metrics listening", "addr", s.srv.Addr, "path", cfg.Path)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()
	return s
}

// Shutdown stops the metrics server gracefully; safe on a nil server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
