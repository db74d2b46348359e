package queue

import (
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
)

// AIQueue is the Queue parameterization for AI-processing jobs: larger
// capacity, longer retention, and an operation-scoped secondary index.
type AIQueue struct {
	*Queue[models.AIJobPayload]
}

// NewAIQueue creates the AI-processing queue from configuration
func NewAIQueue(cfg common.QueueConfig, events interfaces.EventService, status interfaces.JobStatusStorage, logger arbor.ILogger) *AIQueue {
	opts := Options{
		Name:            "ai_processing",
		JobType:         models.JobTypeAIProcessing,
		MaxSize:         cfg.MaxSize,
		Retention:       retentionFromDays(cfg.RetentionDays),
		CleanupInterval: cfg.CleanupInterval,
	}
	q := New[models.AIJobPayload](opts, events, status, logger)
	q.IndexKey = func(payload models.AIJobPayload) string {
		return string(payload.Operation)
	}
	return &AIQueue{Queue: q}
}

// GetNextByOperation returns the next eligible job for one operation type,
// using the operation-scoped index. Same ordering rules as GetNext.
func (q *AIQueue) GetNextByOperation(op models.AIOperation) *models.Job[models.AIJobPayload] {
	return q.GetNextByKey(string(op))
}

func retentionFromDays(days int) time.Duration {
	if days <= 0 {
		days = 1
	}
	return time.Duration(days) * 24 * time.Hour
}
