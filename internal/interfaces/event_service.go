package interfaces

import (
	"context"
	"time"
)

// EventType identifies a class of job lifecycle event
type EventType string

const (
	EventJobCreated   EventType = "created"
	EventJobStarted   EventType = "started"
	EventJobProgress  EventType = "progress"
	EventJobCompleted EventType = "completed"
	EventJobFailed    EventType = "failed"
	EventJobCancelled EventType = "cancelled"
)

// Event carries a job lifecycle notification across the event bus
type Event struct {
	Type      EventType `json:"event"`
	JobID     string    `json:"job_id"`
	Queue     string    `json:"queue,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventHandler processes a published event. A handler's error or panic
// never aborts emission to other handlers or the emitting operation.
type EventHandler func(ctx context.Context, event Event) error

// EventService is the pub/sub abstraction used for job lifecycle fan-out
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) (SubscriptionID, error)
	Unsubscribe(eventType EventType, id SubscriptionID) error
	Publish(ctx context.Context, event Event) error
	PublishSync(ctx context.Context, event Event) error
	Close() error
}

// SubscriptionID identifies a registered handler for later removal
type SubscriptionID int64
