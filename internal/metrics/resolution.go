package metrics

import "github.com/prometheus/client_golang/prometheus"

// Resolution pipeline Prometheus metrics.
var (
	ResolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqbot",
			Name:      "resolution_total",
			Help:      "Messages resolved, by the tier that produced the reply",
		},
		[]string{"tier"},
	)

	ResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "faqbot",
			Name:      "resolution_duration_seconds",
			Help:      "End-to-end message resolution time in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	CollaboratorErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqbot",
			Name:      "collaborator_errors_total",
			Help:      "Language model and vector store failures treated as tier misses",
		},
		[]string{"collaborator"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faqbot",
			Name:      "llm_request_duration_seconds",
			Help:      "Chat completion duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model", "status"},
	)

	CatalogRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "faqbot",
			Name:      "catalog_rows",
			Help:      "Rows in the active catalog snapshot",
		},
		[]string{"catalog"},
	)

	CatalogRowsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqbot",
			Name:      "catalog_rows_skipped_total",
			Help:      "Catalog rows rejected by strict parsing",
		},
		[]string{"catalog"},
	)

	CatalogReloadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqbot",
			Name:      "catalog_reload_total",
			Help:      "Catalog reload attempts",
		},
		[]string{"catalog", "status"},
	)

	KnowledgeCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqbot",
			Name:      "knowledge_cache_total",
			Help:      "Knowledge match cache hits and misses",
		},
		[]string{"result"},
	)

	StateStoreDegraded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "faqbot",
			Name:      "state_store_degraded",
			Help:      "1 while conversation state is kept in process memory",
		},
	)
)

var resolutionMetricsRegistered bool

// RegisterResolutionMetrics registers the resolution metrics. Must be called once from main.
func RegisterResolutionMetrics() {
	if resolutionMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		ResolutionTotal,
		ResolutionDuration,
		CollaboratorErrorsTotal,
		LLMRequestDuration,
		CatalogRows,
		CatalogRowsSkippedTotal,
		CatalogReloadTotal,
		KnowledgeCacheTotal,
		StateStoreDegraded,
	)
	resolutionMetricsRegistered = true
}
