// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	CompileLatency       *prometheus.HistogramVec
	FragmentsPerCompile  prometheus.Histogram
	FragmentKindTotal    *prometheus.CounterVec
	ZeroFragmentTotal    prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CatalogSearchLatency prometheus.Histogram
	LookupRefreshTotal   *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests served, by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "End-to-end HTTP request latency.",
				Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Requests currently being processed.",
			},
		),
		CompileLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "query_compile_latency_seconds",
				Help:    "Query compile latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"cache_status"},
		),
		FragmentsPerCompile: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_fragments_per_compile",
				Help:    "Number of fragments extracted per compile call.",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 7, 10},
			},
		),
		FragmentKindTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_fragment_kind_total",
				Help: "Total fragments extracted by kind.",
			},
			[]string{"kind"},
		),
		ZeroFragmentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_zero_fragment_total",
				Help: "Total compile calls that extracted no fragments.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of compile-cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of compile-cache misses.",
			},
		),
		CatalogSearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_search_latency_seconds",
				Help:    "Catalog search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		LookupRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_lookup_refresh_total",
				Help: "Total catalog lookup refresh attempts by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.CompileLatency,
		m.FragmentsPerCompile,
		m.FragmentKindTotal,
		m.ZeroFragmentTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CatalogSearchLatency,
		m.LookupRefreshTotal,
		m.CircuitBreakerState,
	} {
		prometheus.MustRegister(c)
	}

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
