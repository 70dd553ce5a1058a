package metrics

import "github.com/prometheus/client_golang/prometheus"

// Embedding provider and cache metrics. Status is "success" or the failure
// kind ("api_error", "empty_response", "count_mismatch").
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqbot",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Embedding provider requests by outcome",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faqbot",
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Duration of successful embedding provider requests",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faqbot",
			Subsystem: "embedding",
			Name:      "batch_texts",
			Help:      "Texts sent per embedding provider request",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 9), // 1..256
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqbot",
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Embedding tokens consumed",
		},
		[]string{"provider", "model", "type"}, // "prompt" / "total"
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqbot",
			Subsystem: "embedding",
			Name:      "cache_total",
			Help:      "Embedding cache lookups by result",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var embMetricsRegistered bool

// RegisterEmbeddingMetrics registers the embedding metrics. Must be called once from main.
func RegisterEmbeddingMetrics() {
	if embMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingBatchSize,
		EmbeddingTokensTotal,
		EmbeddingCacheTotal,
	)
	embMetricsRegistered = true
}
