package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ItemDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediascribe_item_processing_duration_seconds",
		Help:    "Duration of one media item from staging to classification",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"provider", "outcome"})

	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediascribe_items_processed_total",
		Help: "Media items processed, by outcome",
	}, []string{"provider", "outcome"})

	RunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediascribe_runs_completed_total",
		Help: "Batch runs that reached the completed state",
	})

	ExportFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediascribe_export_failures_total",
		Help: "Export or fan-out steps that failed after a run",
	}, []string{"target"})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
