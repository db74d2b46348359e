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

// SourceStorage implements the SourceStorage interface for Badger
type SourceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSourceStorage creates a new SourceStorage instance
func NewSourceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SourceStorage {
	return &SourceStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SourceStorage) CreateSource(ctx context.Context, source *models.ScrapeSource) error {
	if source.ID == "" {
		return fmt.Errorf("source ID is required")
	}
	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now()
	}
	source.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(source.ID, source); err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}
	return nil
}

func (s *SourceStorage) GetSource(ctx context.Context, id string) (*models.ScrapeSource, error) {
	var source models.ScrapeSource
	if err := s.db.Store().Get(id, &source); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &source, nil
}

func (s *SourceStorage) ListEnabledSources(ctx context.Context) ([]*models.ScrapeSource, error) {
	var sources []models.ScrapeSource
	if err := s.db.Store().Find(&sources, badgerhold.Where("Enabled").Eq(true).Index("Enabled")); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	result := make([]*models.ScrapeSource, len(sources))
	for i := range sources {
		result[i] = &sources[i]
	}
	return result, nil
}

// FindDueSources returns enabled sources whose NextRun is unset or in the
// past. A nil NextRun means the source has never run and is due now.
func (s *SourceStorage) FindDueSources(ctx context.Context, now time.Time) ([]*models.ScrapeSource, error) {
	enabled, err := s.ListEnabledSources(ctx)
	if err != nil {
		return nil, err
	}

	var due []*models.ScrapeSource
	for _, source := range enabled {
		if source.NextRun == nil || !source.NextRun.After(now) {
			due = append(due, source)
		}
	}
	return due, nil
}

func (s *SourceStorage) UpdateNextRun(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	var source models.ScrapeSource
	if err := s.db.Store().Get(id, &source); err != nil {
		if err == badgerhold.ErrNotFound {
			return models.NewJobError(models.ErrNotFound, "", "source "+id+" not found")
		}
		return fmt.Errorf("failed to get source: %w", err)
	}

	source.LastRun = &lastRun
	source.NextRun = &nextRun
	source.UpdatedAt = time.Now()

	if err := s.db.Store().Update(id, &source); err != nil {
		return fmt.Errorf("failed to update source schedule: %w", err)
	}
	return nil
}
