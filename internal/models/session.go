package models

import (
	"time"
)

// SessionStatus is the lifecycle state of a bulk scraping session
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// SessionResults aggregates the outcome of a bulk session
type SessionResults struct {
	TotalLeads   int      `json:"total_leads"`
	QualityLeads int      `json:"quality_leads"`
	Duplicates   int      `json:"duplicates"`
	Errors       []string `json:"errors,omitempty"`
}

// ScrapingSession tracks an asynchronous multi-query scraping operation.
// It is mutated only by the orchestration loop that owns it and retained
// for the configured session retention window, then garbage-collected.
type ScrapingSession struct {
	ID             string         `json:"id"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        *time.Time     `json:"end_time,omitempty"`
	Status         SessionStatus  `json:"status"`
	Progress       int            `json:"progress"` // 0-100
	TotalUnits     int            `json:"total_units"`
	CompletedUnits int            `json:"completed_units"`
	Results        SessionResults `json:"results"`
}
