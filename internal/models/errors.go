package models

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the failure taxonomy shared by queues, workers,
// the scheduler, and the scraper layer. Callers classify with errors.Is.
var (
	// ErrCapacityExceeded is returned when a queue is at maxSize.
	// Retryable by the caller after backoff.
	ErrCapacityExceeded = errors.New("queue capacity exceeded")

	// ErrNotFound is returned when a job, lead, source, or capability
	// does not exist. Non-retryable.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when a capability reports itself
	// unavailable. Retryable after the capability's own cooldown.
	ErrUnavailable = errors.New("capability unavailable")

	// ErrRateLimitExceeded is returned when a capability is at or above
	// its per-minute budget. Retryable after cooldown.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrTimeout is returned when a job's unit of work exceeds its hard
	// deadline. Non-retryable by policy: a slow operation is assumed
	// likely to stay slow.
	ErrTimeout = errors.New("job timed out")

	// ErrValidation is returned for malformed payloads. Non-retryable.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedOperation is returned for unknown AI operations or
	// job types. Non-retryable.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrNotStarted is returned when the manager is asked for work
	// before Start or after Stop.
	ErrNotStarted = errors.New("manager not started")
)

// JobError wraps a sentinel with job context so callers keep both the
// classification and the human-readable detail.
type JobError struct {
	Kind  error
	JobID string
	Msg   string
}

func (e *JobError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("%s: job %s: %s", e.Kind, e.JobID, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *JobError) Unwrap() error {
	return e.Kind
}

// NewJobError creates a classified job error
func NewJobError(kind error, jobID, msg string) *JobError {
	return &JobError{Kind: kind, JobID: jobID, Msg: msg}
}
