package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vitrine",
			Name:      "search_requests_total",
			Help:      "Total number of similarity searches",
		},
		[]string{"modality", "status"}, // modality: text / image / multimodal
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vitrine",
			Name:      "search_duration_seconds",
			Help:      "End-to-end similarity search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"modality"},
	)

	SearchHitsBelowThreshold = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vitrine",
			Name:      "search_hits_after_filter",
			Help:      "Number of hits surviving the score threshold",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50, 100},
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchHitsBelowThreshold)
	searchMetricsRegistered = true
}
