// Package metrics is the pipeline's Prometheus instrumentation surface: a
// handful of named collectors registered on a dedicated registry and served
// over HTTP with promhttp.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace is the common prefix for every metric this package exposes.
const Namespace = "powerosm"

// Registry bundles every collector the pipeline emits to, backed by its own
// prometheus.Registry rather than the global default, so a batch run never
// pollutes (or is polluted by) an unrelated process-wide registry.
type Registry struct {
	reg *prometheus.Registry

	CacheEntries       *prometheus.GaugeVec
	CacheDirtySaves    *prometheus.CounterVec
	UnitsEmitted       *prometheus.CounterVec
	Rejections         *prometheus.CounterVec
	CountryRunDuration *prometheus.HistogramVec
}

// NewRegistry builds and registers every collector.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		CacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "cache", Name: "entries",
			Help: "Number of elements currently held in one ElementCache class.",
		}, []string{"class"}),
		CacheDirtySaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "cache", Name: "dirty_saves_total",
			Help: "Number of times a cache class was written to disk because it was dirty.",
		}, []string{"class"}),
		UnitsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "units_emitted_total",
			Help: "Number of units.Unit records emitted, by country and capacity source.",
		}, []string{"country", "capacity_source"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "rejections_total",
			Help: "Number of rejection events recorded, by country and reason.",
		}, []string{"country", "reason"}),
		CountryRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Name: "country_run_duration_seconds",
			Help:    "Wall-clock duration of one country's Workflow.RunCountry call.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"country"}),
	}

	reg.MustRegister(m.CacheEntries, m.CacheDirtySaves, m.UnitsEmitted, m.Rejections, m.CountryRunDuration)

	return m
}

// ObserveRunDuration records one country run's wall-clock duration.
func (m *Registry) ObserveRunDuration(country string, d time.Duration) {
	if m == nil {
		return
	}

	m.CountryRunDuration.WithLabelValues(country).Observe(d.Seconds())
}

// RecordUnitsEmitted increments the units-emitted counter once per unit,
// labelled by its capacity source.
func (m *Registry) RecordUnitsEmitted(country string, capacitySources []string) {
	if m == nil {
		return
	}

	for _, src := range capacitySources {
		m.UnitsEmitted.WithLabelValues(country, src).Inc()
	}
}

// RecordRejections adds count rejection events for (country, reason).
func (m *Registry) RecordRejections(country, reason string, count int) {
	if m == nil || count == 0 {
		return
	}

	m.Rejections.WithLabelValues(country, reason).Add(float64(count))
}

// SetCacheEntries sets the current size of one ElementCache class.
func (m *Registry) SetCacheEntries(class string, n int) {
	if m == nil {
		return
	}

	m.CacheEntries.WithLabelValues(class).Set(float64(n))
}

// IncCacheDirtySave records one dirty-class write during SaveAll.
func (m *Registry) IncCacheDirtySave(class string) {
	if m == nil {
		return
	}

	m.CacheDirtySaves.WithLabelValues(class).Inc()
}

// Handler returns the promhttp handler for this registry's metrics.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ListenAndServe starts a minimal metrics-only HTTP server, blocking until
// ctx is cancelled.
func (m *Registry) ListenAndServe(ctx context.Context, addr string, logger log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		level.Info(logger).Log("msg", "metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
