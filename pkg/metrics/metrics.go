// Package metrics defines the Prometheus metric collectors used by the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion outcomes recorded in IngestMessagesTotal.
const (
	OutcomeStored      = "stored"
	OutcomeSkipped     = "skipped"
	OutcomeMalformed   = "malformed"
	OutcomeFailed      = "failed"
	OutcomeInterrupted = "interrupted"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	IngestMessagesTotal   *prometheus.CounterVec
	IngestPollErrorsTotal prometheus.Counter
	IngestPersistDuration prometheus.Histogram
	ConsumerState         prometheus.Gauge
	ResultsCreatedTotal   *prometheus.CounterVec
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		IngestMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_messages_total",
				Help: "Consumed stream messages by outcome (stored, skipped, malformed, failed, interrupted).",
			},
			[]string{"outcome"},
		),
		IngestPollErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_poll_errors_total",
				Help: "Poll attempts that returned a broker or transport error.",
			},
		),
		IngestPersistDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_persist_duration_seconds",
				Help:    "Time spent writing a derived result record.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
			},
		),
		ConsumerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_consumer_state",
				Help: "Consumer loop state (0=idle, 1=subscribed, 2=polling, 3=stopped).",
			},
		),
		ResultsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "results_created_total",
				Help: "Result records created by source (api, stream).",
			},
			[]string{"source"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.IngestMessagesTotal,
		m.IngestPollErrorsTotal,
		m.IngestPersistDuration,
		m.ConsumerState,
		m.ResultsCreatedTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}
