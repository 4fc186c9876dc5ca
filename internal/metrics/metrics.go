// Package metrics provides Prometheus metrics for appforge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	CompletionsTotal *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	Observers        prometheus.Gauge
	ArchiveBytes     prometheus.Histogram

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appforge_runs_total",
				Help: "Generation runs by terminal status.",
			},
			[]string{"status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appforge_stage_duration_seconds",
				Help:    "Specialist stage duration by stage and result status.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
			},
			[]string{"stage", "status"},
		),
		CompletionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appforge_completions_total",
				Help: "Completion calls by provider and outcome.",
			},
			[]string{"provider", "status"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appforge_http_requests_total",
				Help: "API requests by method and response status.",
			},
			[]string{"method", "status"},
		),
		Observers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "appforge_observers",
				Help: "Connected event stream observers.",
			},
		),
		ArchiveBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "appforge_archive_bytes",
				Help:    "Size of packaged archives.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.RunsTotal)
	reg.MustRegister(m.StageDuration)
	reg.MustRegister(m.CompletionsTotal)
	reg.MustRegister(m.HTTPRequests)
	reg.MustRegister(m.Observers)
	reg.MustRegister(m.ArchiveBytes)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (for tests and extra collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun increments the run counter.
func (m *Metrics) RecordRun(status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records a stage duration.
func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// RecordCompletion increments the completion counter.
func (m *Metrics) RecordCompletion(provider, status string) {
	if m == nil {
		return
	}
	m.CompletionsTotal.WithLabelValues(provider, status).Inc()
}

// RecordHTTP increments the API request counter.
func (m *Metrics) RecordHTTP(method, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, status).Inc()
}

// AddObservers adjusts the observer gauge.
func (m *Metrics) AddObservers(delta float64) {
	if m == nil {
		return
	}
	m.Observers.Add(delta)
}

// ObserveArchive records the size of a produced archive.
func (m *Metrics) ObserveArchive(bytes int64) {
	if m == nil {
		return
	}
	m.ArchiveBytes.Observe(float64(bytes))
}
