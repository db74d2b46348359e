package models

import (
	"time"
)

// Priority orders retrieval within a queue. Higher numeric value wins;
// ties fall back to FIFO by CreatedAt.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 8
	PriorityUrgent Priority = 10
)

// String returns the human-readable priority name
func (p Priority) String() string {
	switch {
	case p >= PriorityUrgent:
		return "urgent"
	case p >= PriorityHigh:
		return "high"
	case p >= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// JobType identifies which queue a job belongs to
type JobType string

const (
	JobTypeScraping     JobType = "scraping"
	JobTypeAIProcessing JobType = "ai_processing"
)

// JobState is the lifecycle state reported by status queries
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
	JobStateUnknown   JobState = "unknown"
)

// Job is a unit of requested work. The payload is treated as immutable
// after enqueue; the ID is generated at enqueue time and never reused
// within the owning queue's lifetime.
type Job[T any] struct {
	ID        string    `json:"id"`
	Type      JobType   `json:"type"`
	Payload   T         `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	Priority  Priority  `json:"priority"`
}

// JobResult is created once by the worker at the terminal transition and
// is immutable thereafter.
type JobResult struct {
	Success     bool          `json:"success"`
	Data        any           `json:"data,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	ProcessedAt time.Time     `json:"processed_at"`
}

// FailureRecord captures a terminal failure in the queue's bounded
// failed-history map. Retryable is metadata for the caller; the queue
// itself never re-enqueues.
type FailureRecord struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Retryable bool      `json:"retryable"`
}

// AIOperation names one of the supported AI-enrichment operations
type AIOperation string

const (
	OpAnalyze       AIOperation = "ANALYZE"
	OpScore         AIOperation = "SCORE"
	OpGeneratePitch AIOperation = "GENERATE_PITCH"
	OpEnrich        AIOperation = "ENRICH"
	OpClassify      AIOperation = "CLASSIFY"
	OpValidate      AIOperation = "VALIDATE"
)

// ValidOperation reports whether op is one of the supported operations
func ValidOperation(op AIOperation) bool {
	switch op {
	case OpAnalyze, OpScore, OpGeneratePitch, OpEnrich, OpClassify, OpValidate:
		return true
	}
	return false
}

// ScrapingJobPayload is the payload carried by jobs on the scraping queue.
// Sources lists the capability keys to dispatch to; Strategy selects the
// multi-source dispatch strategy when more than one source is named.
type ScrapingJobPayload struct {
	SourceID  string        `json:"source_id,omitempty"` // Recurring source that spawned this job, if any
	Sources   []string      `json:"sources"`
	Query     string        `json:"query"`
	Filters   ScrapeFilters `json:"filters"`
	Config    ScrapeConfig  `json:"config"`
	Strategy  string        `json:"strategy,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
}

// AIJobPayload is the payload carried by jobs on the AI-processing queue
type AIJobPayload struct {
	Operation AIOperation       `json:"operation"`
	LeadID    string            `json:"lead_id"`
	Options   map[string]string `json:"options,omitempty"`
}

// JobStatusInfo is the snapshot returned by status queries
type JobStatusInfo struct {
	JobID     string         `json:"job_id"`
	Queue     JobType        `json:"queue"`
	State     JobState       `json:"state"`
	Result    *JobResult     `json:"result,omitempty"`
	Failure   *FailureRecord `json:"failure,omitempty"`
	Priority  Priority       `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
}
