package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Query metrics
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lakerunner_queries_total",
			Help: "Total number of queries submitted, by terminal status",
		},
		[]string{"status"},
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lakerunner_query_duration_seconds",
			Help:    "Time taken to fully materialize a query, in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 900},
		},
	)

	// Stage metrics
	StagesActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lakerunner_stages_active",
			Help: "Number of stages currently executing, by kind",
		},
		[]string{"kind"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lakerunner_stage_duration_seconds",
			Help:    "Time taken to execute a stage's tasks, by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	StagesFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lakerunner_stages_failed_total",
			Help: "Total number of stages that failed",
		},
		[]string{"kind"},
	)

	// Task metrics
	TasksDispatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakerunner_tasks_dispatched_total",
			Help: "Total number of tasks dispatched to workers",
		},
	)

	TasksCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakerunner_tasks_completed_total",
			Help: "Total number of tasks that completed successfully",
		},
	)

	TasksFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakerunner_tasks_failed_total",
			Help: "Total number of tasks that failed",
		},
	)

	TaskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lakerunner_task_duration_seconds",
			Help:    "Time from dispatch to completion for a single task, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Cache metrics
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakerunner_cache_hits_total",
			Help: "Total number of tasks skipped because a valid cache entry existed",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakerunner_cache_misses_total",
			Help: "Total number of tasks executed because no valid cache entry existed",
		},
	)

	CacheEntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lakerunner_cache_entries_total",
			Help: "Current number of entries in the cache index",
		},
	)

	// Dispatch / worker pool metrics
	DispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lakerunner_dispatch_queue_depth",
			Help: "Number of dispatched tasks whose completion has not yet been received",
		},
	)

	WorkerPoolActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lakerunner_worker_pool_active",
			Help: "Number of workers currently executing a task",
		},
	)

	// Dataset materialization metrics
	DatasetMaterializeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lakerunner_dataset_materialize_duration_seconds",
			Help:    "Time taken to materialize a dataset to its destination prefix",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(StagesActive)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(StagesFailedTotal)
	prometheus.MustRegister(TasksDispatchedTotal)
	prometheus.MustRegister(TasksCompletedTotal)
	prometheus.MustRegister(TasksFailedTotal)
	prometheus.MustRegister(TaskDuration)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheEntriesTotal)
	prometheus.MustRegister(DispatchQueueDepth)
	prometheus.MustRegister(WorkerPoolActive)
	prometheus.MustRegister(DatasetMaterializeDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
