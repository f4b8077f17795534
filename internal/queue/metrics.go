package queue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the queue's Prometheus instruments. Counters follow the
// task lifecycle (submitted, completed, failed) and the histogram tracks
// execution latency of completed tasks.
type Metrics struct {
	tasksSubmitted prometheus.Counter
	tasksCompleted prometheus.Counter
	tasksFailed    prometheus.Counter
	queueDepth     prometheus.Gauge
	taskDuration   prometheus.Histogram
}

// NewMetrics registers the queue instruments with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		tasksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockpulse_tasks_submitted_total",
			Help: "Number of analysis tasks submitted to the queue.",
		}),
		tasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockpulse_tasks_completed_total",
			Help: "Number of analysis tasks that completed successfully.",
		}),
		tasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockpulse_tasks_failed_total",
			Help: "Number of analysis tasks that reached the failed state.",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stockpulse_queue_depth",
			Help: "Number of task IDs currently waiting in the pending queue.",
		}),
		taskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockpulse_task_duration_seconds",
			Help:    "Execution time of completed analysis tasks.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// TaskSubmitted records a submission.
func (m *Metrics) TaskSubmitted() {
	if m == nil {
		return
	}
	m.tasksSubmitted.Inc()
}

// TaskCompleted records a successful execution and its duration.
func (m *Metrics) TaskCompleted(duration time.Duration) {
	if m == nil {
		return
	}
	m.tasksCompleted.Inc()
	m.taskDuration.Observe(duration.Seconds())
}

// TaskFailed records a failed execution.
func (m *Metrics) TaskFailed() {
	if m == nil {
		return
	}
	m.tasksFailed.Inc()
}

// SetQueueDepth publishes the current pending queue length.
func (m *Metrics) SetQueueDepth(depth int64) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
