package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/prospect/internal/models"
)

// LeadStorage persists lead records produced by the scraping worker and
// enriched by the AI-processing worker.
type LeadStorage interface {
	CreateLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	UpdateLead(ctx context.Context, lead *models.Lead) error
	// UpdateLeadAIFields writes operation-specific enrichment fields back
	// to an existing lead. Mutate applies the change to the stored copy.
	UpdateLeadAIFields(ctx context.Context, id string, mutate func(*models.Lead)) error
	ListLeadsBySource(ctx context.Context, source string, limit int) ([]*models.Lead, error)
}

// SourceStorage persists recurring-source configuration
type SourceStorage interface {
	CreateSource(ctx context.Context, source *models.ScrapeSource) error
	GetSource(ctx context.Context, id string) (*models.ScrapeSource, error)
	ListEnabledSources(ctx context.Context) ([]*models.ScrapeSource, error)
	// FindDueSources returns enabled sources whose NextRun is nil or in the past
	FindDueSources(ctx context.Context, now time.Time) ([]*models.ScrapeSource, error)
	UpdateNextRun(ctx context.Context, id string, lastRun, nextRun time.Time) error
}

// AIWorkStorage tracks pending AI enrichment markers for stale-work recovery
type AIWorkStorage interface {
	CreatePendingWork(ctx context.Context, work *models.PendingAIWork) error
	// FindStalePending returns un-requeued pending work older than maxAge,
	// capped at limit.
	FindStalePending(ctx context.Context, maxAge time.Duration, limit int) ([]*models.PendingAIWork, error)
	MarkRequeued(ctx context.Context, id string) error
	DeletePendingWork(ctx context.Context, id string) error
	// DeletePendingWorkForLead clears every marker for the lead/operation
	// pair once the enrichment has actually been written back.
	DeletePendingWorkForLead(ctx context.Context, leadID string, op models.AIOperation) error
}

// JobStatusStorage mirrors queue job status for external visibility.
// All writes are best-effort side effects: failures are logged by the
// caller and never abort a job transition.
type JobStatusStorage interface {
	UpsertJobStatus(ctx context.Context, jobID string, state models.JobState, detail string) error
	UpdateJobProgress(ctx context.Context, jobID string, pct int, message string) error
	DeleteJobStatus(ctx context.Context, jobID string) error
}

// StorageManager bundles the persistence ports and owns the underlying store
type StorageManager interface {
	Leads() LeadStorage
	Sources() SourceStorage
	AIWork() AIWorkStorage
	JobStatus() JobStatusStorage
	Close() error
}
