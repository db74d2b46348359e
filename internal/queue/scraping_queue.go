package queue

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
)

// ScrapingQueue is the Queue parameterization for scraping jobs: smaller
// default capacity and status-mirror side effects keyed by scrape-run
// semantics.
type ScrapingQueue struct {
	*Queue[models.ScrapingJobPayload]
}

// NewScrapingQueue creates the scraping queue from configuration
func NewScrapingQueue(cfg common.QueueConfig, events interfaces.EventService, status interfaces.JobStatusStorage, logger arbor.ILogger) *ScrapingQueue {
	opts := Options{
		Name:            "scraping",
		JobType:         models.JobTypeScraping,
		MaxSize:         cfg.MaxSize,
		Retention:       retentionFromDays(cfg.RetentionDays),
		CleanupInterval: cfg.CleanupInterval,
	}
	return &ScrapingQueue{
		Queue: New[models.ScrapingJobPayload](opts, events, status, logger),
	}
}
