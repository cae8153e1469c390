// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "intake"

// Metric names.
const (
	MetricRequests     = "requests_total"
	MetricTasks        = "tasks_total"
	MetricTaskDuration = "task_duration_seconds"
	MetricTasksRunning = "tasks_in_flight"
	MetricRowsWritten  = "rows_written_total"
	MetricQueueLag     = "queue_lag_seconds"
)

// CounterRequests counts intake requests by auth decision.
var CounterRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRequests,
		Help:      "Intake requests by authorization decision.",
	},
	[]string{"decision"},
)

// CounterTasks counts finished intake tasks by outcome.
var CounterTasks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricTasks,
		Help:      "Finished intake tasks by outcome.",
	},
	[]string{"outcome"},
)

// HistogramTaskDuration observes intake task wall time, queueing included.
var HistogramTaskDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricTaskDuration,
		Help:      "Intake task duration from submission to outcome.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"outcome"},
)

// GaugeTasksInFlight tracks submitted tasks that have not finished.
var GaugeTasksInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      MetricTasksRunning,
		Help:      "Intake tasks submitted and not yet finished.",
	},
)

// CounterRowsWritten counts rows landed per collection.
var CounterRowsWritten = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRowsWritten,
		Help:      "Rows written to the storage backend.",
	},
	[]string{"collection"},
)

// HistogramQueueLag observes how long a message waited between being
// received and getting a task slot.
var HistogramQueueLag = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricQueueLag,
		Help:      "Time from request receipt to the start of build and write.",
		Buckets:   prometheus.DefBuckets,
	},
)

func init() {
	prometheus.MustRegister(CounterRequests)
	prometheus.MustRegister(CounterTasks)
	prometheus.MustRegister(HistogramTaskDuration)
	prometheus.MustRegister(GaugeTasksInFlight)
	prometheus.MustRegister(CounterRowsWritten)
	prometheus.MustRegister(HistogramQueueLag)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
