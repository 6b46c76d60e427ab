// Package metrics defines the Prometheus collectors of the search service and
// exposes an HTTP handler for scraping.
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

	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  prometheus.Histogram
	SearchStageDuration *prometheus.HistogramVec
	QuerySlots          prometheus.Histogram
	QueryCandidates     prometheus.Histogram
	CandidateDocuments  prometheus.Histogram
	QueryRejections     *prometheus.CounterVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	CatalogEntries      prometheus.Gauge
	CatalogReloadsTotal *prometheus.CounterVec
	CorpusEventsTotal   *prometheus.CounterVec

	CircuitBreakerState *prometheus.GaugeVec
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
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
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by outcome (ok, zero_result, invalid_syntax, too_complex, ...).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of matching documents per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
			},
		),
		SearchStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_stage_duration_seconds",
				Help:    "Duration of each search pipeline stage.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"stage"},
		),
		QuerySlots: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_query_slots",
				Help:    "Number of sign slots per compiled query.",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 48},
			},
		),
		QueryCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_query_candidates",
				Help:    "Number of literal candidates produced by wildcard expansion per query.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		CandidateDocuments: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_candidate_documents",
				Help:    "Documents surviving the reading prefilter per query.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 9),
			},
		),
		QueryRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_query_rejections_total",
				Help: "Queries rejected before matching, by reason.",
			},
			[]string{"reason"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		CatalogEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_entries",
				Help: "Reading catalog entries held in the in-memory snapshot.",
			},
		),
		CatalogReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_reloads_total",
				Help: "Reading catalog snapshot reloads by status.",
			},
			[]string{"status"},
		),
		CorpusEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_events_total",
				Help: "Corpus change events consumed, by type.",
			},
			[]string{"type"},
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
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.SearchStageDuration,
		m.QuerySlots,
		m.QueryCandidates,
		m.CandidateDocuments,
		m.QueryRejections,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CatalogEntries,
		m.CatalogReloadsTotal,
		m.CorpusEventsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
