package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task queue metrics
var (
	QueueTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_queue_tasks_total",
			Help: "Total number of tasks enqueued, by priority and outcome",
		},
		[]string{"priority", "status"},
	)

	QueueActiveTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_sync_queue_active_tasks",
			Help: "Number of tasks currently executing",
		},
	)

	QueueWaitingTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_sync_queue_waiting_tasks",
			Help: "Number of tasks waiting for a worker slot",
		},
	)

	QueueMergedTasks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_sync_queue_merged_tasks_total",
			Help: "Total number of enqueues merged into an existing task by key",
		},
	)

	QueueTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_sync_queue_task_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"priority"},
	)
)

// Reconciler metrics
var (
	ReconcilerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_sync_reconciler_runs_total",
			Help: "Total number of folder reconciliation passes",
		},
	)

	ReconcilerRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_sync_reconciler_run_duration_seconds",
			Help:    "Duration of a single folder reconciliation pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconcilerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_sync_reconciler_errors_total",
			Help: "Total number of reconciliation errors",
		},
	)

	ReconcilerObjects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_reconciler_objects_total",
			Help: "Index mutations applied by the reconciler",
		},
		[]string{"object", "action"}, // object: file|folder, action: added|deleted
	)
)

// Cache pipeline metrics
var (
	CacheArtifactsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_cache_artifacts_generated_total",
			Help: "Derived artifacts generated, by kind and status",
		},
		[]string{"artifact", "status"}, // artifact: thumbnail|preview_image|preview_video
	)

	CacheGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_sync_cache_generation_duration_seconds",
			Help:    "Artifact generation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"artifact"},
	)

	CacheCleanupRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_sync_cache_cleanup_removed_total",
			Help: "Cached artifact directories removed because the source file is gone",
		},
	)
)

// Scheduler metrics
var (
	SchedulerSweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_sync_scheduler_sweeps_total",
			Help: "Total number of full account sweeps",
		},
	)

	SchedulerInterval = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_sync_scheduler_interval_seconds",
			Help: "Current adaptive sweep interval in seconds",
		},
	)

	SchedulerLastSweepTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_sync_scheduler_last_sweep_timestamp",
			Help: "Timestamp of the last completed sweep",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_sync_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_sync_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Backend metrics
var (
	BackendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sync_backend_calls_total",
			Help: "Backend operations, by backend type, operation and status",
		},
		[]string{"backend", "operation", "status"},
	)

	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_sync_backend_call_duration_seconds",
			Help:    "Backend operation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"backend", "operation"},
	)
)
