package models

import (
	"time"
)

// QueueMetrics is a read-only snapshot of one queue's accumulated counters
// and derived rolling values. Execution time and queue latency use a
// cumulative running average; downstream dashboards assume this smoothing.
type QueueMetrics struct {
	TotalJobs            int64         `json:"total_jobs"`
	CompletedJobs        int64         `json:"completed_jobs"`
	FailedJobs           int64         `json:"failed_jobs"`
	CancelledJobs        int64         `json:"cancelled_jobs"`
	PendingCount         int           `json:"pending_count"`
	ActiveCount          int           `json:"active_count"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	QueueLatency         time.Duration `json:"queue_latency"`
	Throughput           int           `json:"throughput"` // Completions in the last 60s
	ErrorRate            float64       `json:"error_rate"`
	PeakConcurrency      int           `json:"peak_concurrency"`
}

// WorkerMetrics is a read-only snapshot of one worker's state
type WorkerMetrics struct {
	Running       bool  `json:"running"`
	ActiveJobs    int   `json:"active_jobs"`
	Concurrency   int   `json:"concurrency"`
	ProcessedJobs int64 `json:"processed_jobs"`
	RetriedJobs   int64 `json:"retried_jobs"`
	TimeoutJobs   int64 `json:"timeout_jobs"`
}

// SchedulerStats is a read-only snapshot of the scheduler's state
type SchedulerStats struct {
	Running         bool       `json:"running"`
	ScheduledJobs   int        `json:"scheduled_jobs"`
	DispatchedTotal int64      `json:"dispatched_total"`
	RequeuedStale   int64      `json:"requeued_stale"`
	LastCheck       *time.Time `json:"last_check,omitempty"`
}

// ManagerMetrics aggregates per-component snapshots into one view
type ManagerMetrics struct {
	ScrapingQueue  QueueMetrics   `json:"scraping_queue"`
	AIQueue        QueueMetrics   `json:"ai_queue"`
	ScrapingWorker WorkerMetrics  `json:"scraping_worker"`
	AIWorker       WorkerMetrics  `json:"ai_worker"`
	Scheduler      SchedulerStats `json:"scheduler"`
	CollectedAt    time.Time      `json:"collected_at"`
}

// HealthState is the coarse health classification of the manager
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// ComponentHealth describes one component's contribution to a health check
type ComponentHealth struct {
	Name   string      `json:"name"`
	State  HealthState `json:"state"`
	Detail string      `json:"detail,omitempty"`
}

// HealthReport is the result of a manager health check
type HealthReport struct {
	State      HealthState       `json:"state"`
	Components []ComponentHealth `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}
