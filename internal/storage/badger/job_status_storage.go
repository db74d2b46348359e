package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// jobStatusRecord is the persisted mirror of a queue job's visible state
type jobStatusRecord struct {
	JobID     string          `badgerhold:"key"`
	State     models.JobState `badgerhold:"index"`
	Detail    string
	Progress  int
	Message   string
	UpdatedAt time.Time
}

// JobStatusStorage implements the JobStatusStorage interface for Badger.
// Every write here is a best-effort mirror; callers log and continue on
// failure rather than aborting queue transitions.
type JobStatusStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStatusStorage creates a new JobStatusStorage instance
func NewJobStatusStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStatusStorage {
	return &JobStatusStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStatusStorage) UpsertJobStatus(ctx context.Context, jobID string, state models.JobState, detail string) error {
	record := jobStatusRecord{
		JobID:     jobID,
		State:     state,
		Detail:    detail,
		UpdatedAt: time.Now(),
	}
	if err := s.db.Store().Upsert(jobID, &record); err != nil {
		return fmt.Errorf("failed to upsert job status: %w", err)
	}
	return nil
}

func (s *JobStatusStorage) UpdateJobProgress(ctx context.Context, jobID string, pct int, message string) error {
	var record jobStatusRecord
	if err := s.db.Store().Get(jobID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			record = jobStatusRecord{JobID: jobID, State: models.JobStateActive}
		} else {
			return fmt.Errorf("failed to get job status: %w", err)
		}
	}

	record.Progress = pct
	record.Message = message
	record.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(jobID, &record); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

func (s *JobStatusStorage) DeleteJobStatus(ctx context.Context, jobID string) error {
	if err := s.db.Store().Delete(jobID, &jobStatusRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete job status: %w", err)
	}
	return nil
}
