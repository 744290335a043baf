package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbsearch",
			Name:      "search_requests_total",
			Help:      "Total number of retrieval pipeline runs",
		},
		[]string{"status"}, // "ok" / "degraded" / "error"
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kbsearch",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"}, // "sparse", "dense", "fuse", "rerank", "filter_extract"
	)

	RerankDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kbsearch",
			Name:      "rerank_degraded_total",
			Help:      "Total reranks that fell back to fused order",
		},
	)

	FilterExtractionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kbsearch",
			Name:      "filter_extraction_failures_total",
			Help:      "Total filter extractions that fell back to the empty predicate",
		},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbsearch",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbsearch",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"model"},
	)

	RerankRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kbsearch",
			Name:      "rerank_request_duration_seconds",
			Help:      "Cross-encoder request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(RerankDegradedTotal)
	prometheus.MustRegister(FilterExtractionFailuresTotal)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(RerankRequestDuration)
	retrievalMetricsRegistered = true
}
