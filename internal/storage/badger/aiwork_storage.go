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

// AIWorkStorage implements the AIWorkStorage interface for Badger
type AIWorkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAIWorkStorage creates a new AIWorkStorage instance
func NewAIWorkStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AIWorkStorage {
	return &AIWorkStorage{
		db:     db,
		logger: logger,
	}
}

func (s *AIWorkStorage) CreatePendingWork(ctx context.Context, work *models.PendingAIWork) error {
	if work.ID == "" {
		return fmt.Errorf("pending work ID is required")
	}
	if work.CreatedAt.IsZero() {
		work.CreatedAt = time.Now()
	}

	if err := s.db.Store().Insert(work.ID, work); err != nil {
		return fmt.Errorf("failed to create pending work: %w", err)
	}
	return nil
}

func (s *AIWorkStorage) FindStalePending(ctx context.Context, maxAge time.Duration, limit int) ([]*models.PendingAIWork, error) {
	cutoff := time.Now().Add(-maxAge)
	query := badgerhold.Where("Requeued").Eq(false).Index("Requeued").
		And("CreatedAt").Lt(cutoff).
		SortBy("CreatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var stale []models.PendingAIWork
	if err := s.db.Store().Find(&stale, query); err != nil {
		return nil, fmt.Errorf("failed to find stale pending work: %w", err)
	}

	result := make([]*models.PendingAIWork, len(stale))
	for i := range stale {
		result[i] = &stale[i]
	}
	return result, nil
}

func (s *AIWorkStorage) MarkRequeued(ctx context.Context, id string) error {
	var work models.PendingAIWork
	if err := s.db.Store().Get(id, &work); err != nil {
		if err == badgerhold.ErrNotFound {
			return models.NewJobError(models.ErrNotFound, "", "pending work "+id+" not found")
		}
		return fmt.Errorf("failed to get pending work: %w", err)
	}

	work.Requeued = true
	if err := s.db.Store().Update(id, &work); err != nil {
		return fmt.Errorf("failed to mark pending work requeued: %w", err)
	}
	return nil
}

func (s *AIWorkStorage) DeletePendingWorkForLead(ctx context.Context, leadID string, op models.AIOperation) error {
	query := badgerhold.Where("LeadID").Eq(leadID).Index("LeadID").
		And("Operation").Eq(op)
	if err := s.db.Store().DeleteMatching(&models.PendingAIWork{}, query); err != nil {
		return fmt.Errorf("failed to delete pending work for lead %s: %w", leadID, err)
	}
	return nil
}

func (s *AIWorkStorage) DeletePendingWork(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.PendingAIWork{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete pending work: %w", err)
	}
	return nil
}
