package models

import (
	"time"
)

// Recurrence names one of the fixed scheduling frequencies. The scheduler
// supports only this small set, not general cron expressions.
type Recurrence string

const (
	RecurrenceHourly  Recurrence = "HOURLY"
	RecurrenceDaily   Recurrence = "DAILY"
	RecurrenceWeekly  Recurrence = "WEEKLY"
	RecurrenceMonthly Recurrence = "MONTHLY"
)

// ScrapeSource is a recurring-source configuration entry: work that should
// be automatically re-dispatched on a fixed cadence.
type ScrapeSource struct {
	ID        string        `json:"id" badgerhold:"key"`
	Name      string        `json:"name"`
	Scraper   string        `json:"scraper"` // Capability key this source dispatches to
	Query     string        `json:"query"`
	Filters   ScrapeFilters `json:"filters"`
	Config    ScrapeConfig  `json:"config"`
	Frequency Recurrence    `json:"frequency"`
	Enabled   bool          `json:"enabled" badgerhold:"index"`
	LastRun   *time.Time    `json:"last_run,omitempty"`
	NextRun   *time.Time    `json:"next_run,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ScheduledJob is an in-memory scheduler registration. One entry exists per
// active recurring source loaded at scheduler start, plus any explicit
// registrations. NextRun is recomputed after each dispatch.
type ScheduledJob struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Recurrence Recurrence `json:"recurrence"`
	JobType    JobType    `json:"job_type"`
	Payload    any        `json:"payload"`
	Enabled    bool       `json:"enabled"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	Timezone   string     `json:"timezone,omitempty"`
}

// PendingAIWork is a persisted marker for AI enrichment requested but not
// yet completed, used by the scheduler's stale-work recovery scan. The AI
// worker clears the marker once the enrichment is written back.
type PendingAIWork struct {
	ID        string      `json:"id" badgerhold:"key"`
	LeadID    string      `json:"lead_id" badgerhold:"index"`
	Operation AIOperation `json:"operation"`
	Requeued  bool        `json:"requeued" badgerhold:"index"`
	CreatedAt time.Time   `json:"created_at"`
}
