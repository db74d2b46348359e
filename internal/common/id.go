package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewLeadID generates a unique lead ID with the "lead_" prefix
func NewLeadID() string {
	return "lead_" + uuid.New().String()
}

// NewSessionID generates a unique bulk-session ID with the "session_" prefix
func NewSessionID() string {
	return "session_" + uuid.New().String()
}

// NewSourceID generates a unique recurring-source ID with the "src_" prefix
func NewSourceID() string {
	return "src_" + uuid.New().String()
}
