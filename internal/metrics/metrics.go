package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CompletionRequestsTotal counts completion provider calls by caller and outcome.
	CompletionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripdex",
			Name:      "completion_requests_total",
			Help:      "Total completion provider requests",
		},
		[]string{"model", "status"},
	)

	// EmbeddingRequestsTotal counts embedding provider calls by outcome.
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripdex",
			Name:      "embedding_requests_total",
			Help:      "Total embedding provider requests",
		},
		[]string{"model", "status"},
	)

	// EmbeddingRequestDuration observes embedding provider latency.
	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tripdex",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	// EmbeddingCacheTotal counts embedding cache lookups ("hit"/"miss").
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripdex",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by result",
		},
		[]string{"result"},
	)

	// RewriteTotal counts query rewrites by outcome ("success"/"degraded").
	RewriteTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripdex",
			Name:      "query_rewrites_total",
			Help:      "Query rewrites by outcome",
		},
		[]string{"outcome"},
	)

	// ExtractTotal counts field extractions by path ("llm"/"heuristic").
	ExtractTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripdex",
			Name:      "field_extractions_total",
			Help:      "Field extractions by path",
		},
		[]string{"path"},
	)

	// SearchTotal counts retrieval calls by mode and outcome ("success"/"partial"/"error").
	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripdex",
			Name:      "searches_total",
			Help:      "Retrieval calls by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// IndexedDocsTotal counts pipeline documents by terminal state.
	IndexedDocsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripdex",
			Name:      "indexed_documents_total",
			Help:      "Pipeline documents by terminal state",
		},
		[]string{"state"},
	)
)

var registered bool

// RegisterCoreMetrics registers every tripdex collector, HTTP middleware
// series included. Must be called once from main; repeated calls are no-ops.
func RegisterCoreMetrics() {
	if registered {
		return
	}
	prometheus.MustRegister(
		CompletionRequestsTotal,
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingCacheTotal,
		RewriteTotal,
		ExtractTotal,
		SearchTotal,
		IndexedDocsTotal,
		httpRequestDuration,
		httpRequestsTotal,
	)
	registered = true
}
