package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
)

const drainTimeout = 30 * time.Second

// Options configures a queue instance
type Options struct {
	Name            string        // Queue name for logs, events, and metrics labels
	JobType         models.JobType
	MaxSize         int           // Pending+active capacity
	Retention       time.Duration // Completed/failed history retention
	CleanupInterval time.Duration // Internal cleanup timer period (0 disables the timer)
}

// BulkItem is one entry in an AddBulk call
type BulkItem[T any] struct {
	Payload  T
	Priority models.Priority
}

// completedEntry pairs a result with its insertion time for retention purging
type completedEntry struct {
	result *models.JobResult
}

// Queue holds pending/active/completed/failed job state for one job type.
// A job id appears in exactly one of pending+active, completed, or failed
// at any time. All maps are mutated only by the queue's own methods.
//
// IndexKey, when set, maintains a secondary index over pending jobs so
// parameterizations can retrieve the next job matching a key (the AI queue
// indexes by operation).
type Queue[T any] struct {
	opts     Options
	IndexKey func(T) string

	mu        sync.RWMutex
	pending   map[string]*models.Job[T]
	active    map[string]struct{}
	completed map[string]completedEntry
	failed    map[string]*models.FailureRecord
	index     map[string]map[string]struct{} // index key -> pending job ids

	metrics *queueMetrics
	events  interfaces.EventService
	status  interfaces.JobStatusStorage // Optional status mirror; nil disables
	logger  arbor.ILogger

	cleanupStop chan struct{}
	cleanupWG   sync.WaitGroup
	shutdown    bool
}

// New creates a queue. The status storage is optional: when nil, status
// mirroring and progress side effects are skipped.
func New[T any](opts Options, events interfaces.EventService, status interfaces.JobStatusStorage, logger arbor.ILogger) *Queue[T] {
	q := &Queue[T]{
		opts:      opts,
		pending:   make(map[string]*models.Job[T]),
		active:    make(map[string]struct{}),
		completed: make(map[string]completedEntry),
		failed:    make(map[string]*models.FailureRecord),
		index:     make(map[string]map[string]struct{}),
		metrics:   newQueueMetrics(opts.Name),
		events:    events,
		status:    status,
		logger:    logger,
	}

	if opts.CleanupInterval > 0 {
		q.cleanupStop = make(chan struct{})
		q.cleanupWG.Add(1)
		go q.cleanupLoop()
	}

	return q
}

// Name returns the queue's configured name
func (q *Queue[T]) Name() string {
	return q.opts.Name
}

// Add enqueues a payload and returns the generated job id. Fails with
// ErrCapacityExceeded when pending+active is at MaxSize.
func (q *Queue[T]) Add(payload T, priority models.Priority) (string, error) {
	q.mu.Lock()

	if q.shutdown {
		q.mu.Unlock()
		return "", models.NewJobError(models.ErrUnavailable, "", fmt.Sprintf("queue %s is shut down", q.opts.Name))
	}

	// pending retains claimed jobs until their terminal transition, so its
	// size is the queue's total occupancy (unclaimed + active).
	if len(q.pending) >= q.opts.MaxSize {
		q.mu.Unlock()
		return "", models.NewJobError(models.ErrCapacityExceeded, "",
			fmt.Sprintf("queue %s is at capacity (%d)", q.opts.Name, q.opts.MaxSize))
	}

	job := &models.Job[T]{
		ID:        common.NewJobID(),
		Type:      q.opts.JobType,
		Payload:   payload,
		CreatedAt: time.Now(),
		Priority:  priority,
	}
	q.pending[job.ID] = job
	q.indexAdd(job)
	q.metrics.recordAdded(len(q.pending), len(q.active))
	q.mu.Unlock()

	q.logger.Debug().
		Str("queue", q.opts.Name).
		Str("job_id", job.ID).
		Str("priority", priority.String()).
		Msg("Job enqueued")

	q.mirrorStatus(job.ID, models.JobStatePending, "")
	q.emit(interfaces.EventJobCreated, job.ID, map[string]any{"priority": priority})

	return job.ID, nil
}

// AddBulk enqueues items best-effort: a single item's failure is logged
// and skipped, never propagated. Returns only the successfully created ids.
func (q *Queue[T]) AddBulk(items []BulkItem[T]) []string {
	ids := make([]string, 0, len(items))
	for i, item := range items {
		id, err := q.Add(item.Payload, item.Priority)
		if err != nil {
			q.logger.Warn().
				Err(err).
				Str("queue", q.opts.Name).
				Int("item", i).
				Msg("Bulk add item skipped")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// GetNext returns the highest-priority, then oldest, job among pending
// jobs not yet claimed. It does not mutate state. Returns nil when no
// job is eligible.
func (q *Queue[T]) GetNext() *models.Job[T] {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.selectNext(nil)
}

// GetNextByKey returns the next eligible job whose index key matches.
// Requires IndexKey to be configured.
func (q *Queue[T]) GetNextByKey(key string) *models.Job[T] {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ids, ok := q.index[key]
	if !ok {
		return nil
	}
	return q.selectNext(ids)
}

// selectNext picks priority-desc then createdAt-asc from pending minus
// active, optionally restricted to a candidate id set. Caller holds a lock.
func (q *Queue[T]) selectNext(candidates map[string]struct{}) *models.Job[T] {
	var best *models.Job[T]
	consider := func(job *models.Job[T]) {
		if _, claimed := q.active[job.ID]; claimed {
			return
		}
		if best == nil ||
			job.Priority > best.Priority ||
			(job.Priority == best.Priority && job.CreatedAt.Before(best.CreatedAt)) {
			best = job
		}
	}

	if candidates != nil {
		for id := range candidates {
			if job, ok := q.pending[id]; ok {
				consider(job)
			}
		}
	} else {
		for _, job := range q.pending {
			consider(job)
		}
	}
	return best
}

// StartProcessing claims a pending job for a worker. Fails with
// ErrNotFound when the job is not pending.
func (q *Queue[T]) StartProcessing(jobID string) error {
	q.mu.Lock()
	job, ok := q.pending[jobID]
	if !ok {
		q.mu.Unlock()
		return models.NewJobError(models.ErrNotFound, jobID, "job not pending")
	}
	if _, claimed := q.active[jobID]; claimed {
		q.mu.Unlock()
		return models.NewJobError(models.ErrNotFound, jobID, "job already claimed")
	}

	q.active[jobID] = struct{}{}
	q.indexRemove(job)
	latency := time.Since(job.CreatedAt)
	q.metrics.recordStarted(latency, len(q.active))
	q.mu.Unlock()

	q.mirrorStatus(jobID, models.JobStateActive, "")
	q.emit(interfaces.EventJobStarted, jobID, nil)

	return nil
}

// UpdateProgress is a best-effort side-channel update. Failures are
// logged, never returned, so progress reporting can never abort a job.
func (q *Queue[T]) UpdateProgress(jobID string, pct int, message string) {
	if q.status != nil {
		if err := q.status.UpdateJobProgress(context.Background(), jobID, pct, message); err != nil {
			q.logger.Warn().
				Err(err).
				Str("queue", q.opts.Name).
				Str("job_id", jobID).
				Msg("Progress update failed")
		}
	}
	q.emit(interfaces.EventJobProgress, jobID, map[string]any{"progress": pct, "message": message})
}

// Complete performs the terminal success transition: the job leaves
// pending and active, the result enters the bounded completed history.
func (q *Queue[T]) Complete(jobID string, result *models.JobResult) error {
	q.mu.Lock()
	job, ok := q.pending[jobID]
	if !ok {
		q.mu.Unlock()
		return models.NewJobError(models.ErrNotFound, jobID, "job not owned by queue")
	}
	q.indexRemove(job)
	delete(q.pending, jobID)
	delete(q.active, jobID)
	q.completed[jobID] = completedEntry{result: result}
	q.metrics.recordCompleted(result.Duration, len(q.pending), len(q.active))
	q.mu.Unlock()

	q.logger.Debug().
		Str("queue", q.opts.Name).
		Str("job_id", jobID).
		Dur("duration", result.Duration).
		Msg("Job completed")

	q.mirrorStatus(jobID, models.JobStateCompleted, "")
	q.emit(interfaces.EventJobCompleted, jobID, result.Data)

	return nil
}

// Fail performs the terminal failure transition. Retryable is recorded as
// metadata for the caller; the queue never re-enqueues.
func (q *Queue[T]) Fail(jobID string, jobErr error, retryable bool) error {
	q.mu.Lock()
	job, ok := q.pending[jobID]
	if !ok {
		q.mu.Unlock()
		return models.NewJobError(models.ErrNotFound, jobID, "job not owned by queue")
	}
	q.indexRemove(job)
	delete(q.pending, jobID)
	delete(q.active, jobID)
	record := &models.FailureRecord{
		Error:     jobErr.Error(),
		Timestamp: time.Now(),
		Retryable: retryable,
	}
	q.failed[jobID] = record
	q.metrics.recordFailed(len(q.pending), len(q.active))
	q.mu.Unlock()

	q.logger.Warn().
		Err(jobErr).
		Str("queue", q.opts.Name).
		Str("job_id", jobID).
		Bool("retryable", retryable).
		Msg("Job failed")

	q.mirrorStatus(jobID, models.JobStateFailed, jobErr.Error())
	q.emit(interfaces.EventJobFailed, jobID, map[string]any{"error": jobErr.Error(), "retryable": retryable})

	return nil
}

// Cancel removes a pending job. Returns false without mutating state when
// the job is active (in-flight work is never cancelled, only allowed to
// finish or fail) or already absent.
func (q *Queue[T]) Cancel(jobID string) bool {
	q.mu.Lock()
	if _, claimed := q.active[jobID]; claimed {
		q.mu.Unlock()
		return false
	}
	job, ok := q.pending[jobID]
	if !ok {
		q.mu.Unlock()
		return false
	}
	q.indexRemove(job)
	delete(q.pending, jobID)
	q.metrics.recordCancelled(len(q.pending), len(q.active))
	q.mu.Unlock()

	q.logger.Debug().
		Str("queue", q.opts.Name).
		Str("job_id", jobID).
		Msg("Job cancelled")

	q.mirrorStatus(jobID, models.JobStateCancelled, "")
	q.emit(interfaces.EventJobCancelled, jobID, nil)

	return true
}

// Status reports a job's lifecycle state and terminal outcome, if known
func (q *Queue[T]) Status(jobID string) (*models.JobStatusInfo, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if job, ok := q.pending[jobID]; ok {
		state := models.JobStatePending
		if _, claimed := q.active[jobID]; claimed {
			state = models.JobStateActive
		}
		return &models.JobStatusInfo{
			JobID:     jobID,
			Queue:     q.opts.JobType,
			State:     state,
			Priority:  job.Priority,
			CreatedAt: job.CreatedAt,
		}, true
	}
	if entry, ok := q.completed[jobID]; ok {
		return &models.JobStatusInfo{
			JobID:  jobID,
			Queue:  q.opts.JobType,
			State:  models.JobStateCompleted,
			Result: entry.result,
		}, true
	}
	if record, ok := q.failed[jobID]; ok {
		return &models.JobStatusInfo{
			JobID:   jobID,
			Queue:   q.opts.JobType,
			State:   models.JobStateFailed,
			Failure: record,
		}, true
	}
	return nil, false
}

// Cleanup purges completed and failed entries older than maxAge and
// returns the count purged. Runs on the internal timer in addition to
// being externally callable.
func (q *Queue[T]) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	purged := 0

	q.mu.Lock()
	for id, entry := range q.completed {
		if entry.result.ProcessedAt.Before(cutoff) {
			delete(q.completed, id)
			purged++
		}
	}
	for id, record := range q.failed {
		if record.Timestamp.Before(cutoff) {
			delete(q.failed, id)
			purged++
		}
	}
	q.mu.Unlock()

	if purged > 0 {
		q.logger.Info().
			Str("queue", q.opts.Name).
			Int("purged", purged).
			Msg("Queue history cleaned up")
	}
	return purged
}

// Shutdown stops the cleanup timer, then waits (bounded) for active jobs
// to drain. Logs a warning, does not error, when jobs are still active at
// the deadline.
func (q *Queue[T]) Shutdown(ctx context.Context) {
	q.mu.Lock()
	q.shutdown = true
	q.mu.Unlock()

	if q.cleanupStop != nil {
		close(q.cleanupStop)
		q.cleanupWG.Wait()
		q.cleanupStop = nil
	}

	deadline := time.After(drainTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.warnActiveRemaining()
			return
		case <-deadline:
			q.warnActiveRemaining()
			return
		case <-ticker.C:
			q.mu.RLock()
			remaining := len(q.active)
			q.mu.RUnlock()
			if remaining == 0 {
				q.logger.Info().Str("queue", q.opts.Name).Msg("Queue drained")
				return
			}
		}
	}
}

func (q *Queue[T]) warnActiveRemaining() {
	q.mu.RLock()
	remaining := len(q.active)
	q.mu.RUnlock()
	if remaining > 0 {
		q.logger.Warn().
			Str("queue", q.opts.Name).
			Int("active", remaining).
			Msg("Shutdown timeout reached with jobs still active")
	}
}

// PendingCount returns the number of unclaimed plus claimed-but-pending jobs
func (q *Queue[T]) PendingCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending) - len(q.active)
}

// ActiveCount returns the number of claimed jobs
func (q *Queue[T]) ActiveCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.active)
}

// Size returns pending+active occupancy
func (q *Queue[T]) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending)
}

// MaxSize returns the configured capacity
func (q *Queue[T]) MaxSize() int {
	return q.opts.MaxSize
}

// IsFull reports whether the queue is at capacity
func (q *Queue[T]) IsFull() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending) >= q.opts.MaxSize
}

// Metrics returns a snapshot of the queue's counters
func (q *Queue[T]) Metrics() models.QueueMetrics {
	q.mu.RLock()
	pending := len(q.pending) - len(q.active)
	active := len(q.active)
	q.mu.RUnlock()
	return q.metrics.snapshot(pending, active)
}

// cleanupLoop runs the internal retention timer
func (q *Queue[T]) cleanupLoop() {
	defer q.cleanupWG.Done()

	ticker := time.NewTicker(q.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.cleanupStop:
			return
		case <-ticker.C:
			q.Cleanup(q.opts.Retention)
		}
	}
}

// indexAdd registers a pending job in the secondary index. Caller holds the lock.
func (q *Queue[T]) indexAdd(job *models.Job[T]) {
	if q.IndexKey == nil {
		return
	}
	key := q.IndexKey(job.Payload)
	ids, ok := q.index[key]
	if !ok {
		ids = make(map[string]struct{})
		q.index[key] = ids
	}
	ids[job.ID] = struct{}{}
}

// indexRemove drops a job from the secondary index. Caller holds the lock.
func (q *Queue[T]) indexRemove(job *models.Job[T]) {
	if q.IndexKey == nil {
		return
	}
	key := q.IndexKey(job.Payload)
	if ids, ok := q.index[key]; ok {
		delete(ids, job.ID)
		if len(ids) == 0 {
			delete(q.index, key)
		}
	}
}

// mirrorStatus writes the job state to the status mirror. Mirror failures
// are logged and swallowed: observability gaps never abort transitions.
func (q *Queue[T]) mirrorStatus(jobID string, state models.JobState, detail string) {
	if q.status == nil {
		return
	}
	if err := q.status.UpsertJobStatus(context.Background(), jobID, state, detail); err != nil {
		q.logger.Warn().
			Err(err).
			Str("queue", q.opts.Name).
			Str("job_id", jobID).
			Str("state", string(state)).
			Msg("Status mirror update failed")
	}
}

// emit publishes a lifecycle event. Emission is asynchronous per listener;
// a listener failure never aborts the emitting operation.
func (q *Queue[T]) emit(eventType interfaces.EventType, jobID string, data any) {
	if q.events == nil {
		return
	}
	event := interfaces.Event{
		Type:      eventType,
		JobID:     jobID,
		Queue:     q.opts.Name,
		Data:      data,
		Timestamp: time.Now(),
	}
	if err := q.events.Publish(context.Background(), event); err != nil {
		q.logger.Warn().
			Err(err).
			Str("queue", q.opts.Name).
			Str("event_type", string(eventType)).
			Msg("Event publish failed")
	}
}
