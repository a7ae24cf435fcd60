// Package metrics defines the Prometheus collectors shared by the ranking,
// ingestion and analytics services and serves them for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	rankBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
)

// Metrics groups every collector a service may touch. Services that do not
// rank simply leave the ranking series at zero.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	RankQueriesTotal *prometheus.CounterVec
	RankLatency      *prometheus.HistogramVec
	RankResultsCount prometheus.Histogram
	SimilarityTotal  prometheus.Counter
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	CorpusSentences  prometheus.Gauge
	CorpusVocabulary prometheus.Gauge
	IDFCacheSize     prometheus.Gauge

	RankEventsTotal     *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a private registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the collectors on reg. When reg can also gather,
// Handler serves it; otherwise Handler falls back to the default gatherer.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by method, route and status code.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_request_duration_seconds", Help: "HTTP handler latency.", Buckets: httpBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight", Help: "Requests currently inside a handler.",
		}),

		RankQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rank_queries_total",
			Help: "Rank queries by outcome: hit, miss, zero_result or error.",
		}, []string{"result_type"}),
		RankLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "rank_latency_seconds", Help: "Time spent ranking one query.", Buckets: rankBuckets,
		}, []string{"cache_status"}),
		RankResultsCount: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rank_results_count",
			Help:    "Sentences returned per rank query.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		SimilarityTotal:  f.NewCounter(prometheus.CounterOpts{Name: "similarity_requests_total", Help: "Pairwise similarity requests."}),
		CacheHitsTotal:   f.NewCounter(prometheus.CounterOpts{Name: "cache_hits_total", Help: "Rank responses served from the cache."}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{Name: "cache_misses_total", Help: "Rank responses computed from scratch."}),

		CorpusSentences:  f.NewGauge(prometheus.GaugeOpts{Name: "corpus_sentences", Help: "Sentences in the active corpus snapshot."}),
		CorpusVocabulary: f.NewGauge(prometheus.GaugeOpts{Name: "corpus_vocabulary_size", Help: "Distinct stemmed tokens in the active snapshot."}),
		IDFCacheSize:     f.NewGauge(prometheus.GaugeOpts{Name: "idf_cache_entries", Help: "Memoized inverse document frequencies."}),

		RankEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rank_events_total",
			Help: "Analytics events by outcome: published, dropped or consumed.",
		}, []string{"outcome"}),
		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Breaker position per dependency: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),

		gatherer: prometheus.DefaultGatherer,
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}
