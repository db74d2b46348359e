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

// LeadStorage implements the LeadStorage interface for Badger
type LeadStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLeadStorage creates a new LeadStorage instance
func NewLeadStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LeadStorage {
	return &LeadStorage{
		db:     db,
		logger: logger,
	}
}

func (s *LeadStorage) CreateLead(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		return fmt.Errorf("lead ID is required")
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	lead.UpdatedAt = time.Now()

	if err := s.db.Store().Insert(lead.ID, lead); err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

func (s *LeadStorage) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.Store().Get(id, &lead); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

func (s *LeadStorage) UpdateLead(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		return fmt.Errorf("lead ID is required")
	}
	lead.UpdatedAt = time.Now()

	if err := s.db.Store().Update(lead.ID, lead); err != nil {
		if err == badgerhold.ErrNotFound {
			return models.NewJobError(models.ErrNotFound, "", "lead "+lead.ID+" not found")
		}
		return fmt.Errorf("failed to update lead: %w", err)
	}
	return nil
}

// UpdateLeadAIFields reads the stored lead, applies mutate, and writes it
// back. Read-modify-write keeps concurrent enrichment of different fields
// on the same lead from clobbering each other's results.
func (s *LeadStorage) UpdateLeadAIFields(ctx context.Context, id string, mutate func(*models.Lead)) error {
	var lead models.Lead
	if err := s.db.Store().Get(id, &lead); err != nil {
		if err == badgerhold.ErrNotFound {
			return models.NewJobError(models.ErrNotFound, "", "lead "+id+" not found")
		}
		return fmt.Errorf("failed to get lead for update: %w", err)
	}

	mutate(&lead)
	lead.UpdatedAt = time.Now()

	if err := s.db.Store().Update(id, &lead); err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	return nil
}

func (s *LeadStorage) ListLeadsBySource(ctx context.Context, source string, limit int) ([]*models.Lead, error) {
	query := badgerhold.Where("Source").Eq(source).Index("Source").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var leads []models.Lead
	if err := s.db.Store().Find(&leads, query); err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	result := make([]*models.Lead, len(leads))
	for i := range leads {
		result[i] = &leads[i]
	}
	return result, nil
}
