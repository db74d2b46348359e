package models

import (
	"time"
)

// Lead is a persisted prospect record produced by the scraping worker and
// enriched by the AI-processing worker.
type Lead struct {
	ID           string            `json:"id" badgerhold:"key"`
	Name         string            `json:"name"`
	Email        string            `json:"email,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Company      string            `json:"company,omitempty"`
	Title        string            `json:"title,omitempty"`
	Website      string            `json:"website,omitempty"`
	Address      string            `json:"address,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	Source       string            `json:"source" badgerhold:"index"`
	QualityScore float64           `json:"quality_score"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	// AI-enrichment fields, written by the AI-processing worker
	Analysis        *LeadAnalysis       `json:"analysis,omitempty"`
	ConversionScore *ConversionScore    `json:"conversion_score,omitempty"`
	Pitch           *PitchResult        `json:"pitch,omitempty"`
	Insights        *CompanyInsights    `json:"insights,omitempty"`
	Classification  *LeadClassification `json:"classification,omitempty"`
	Validation      *LeadValidation     `json:"validation,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LeadAnalysis is the structured output of the ANALYZE operation
type LeadAnalysis struct {
	Summary    string    `json:"summary"`
	Strengths  []string  `json:"strengths,omitempty"`
	Risks      []string  `json:"risks,omitempty"`
	FitScore   float64   `json:"fit_score"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// ConversionScore is the structured output of the SCORE operation
type ConversionScore struct {
	Probability float64   `json:"probability"`
	Reasoning   string    `json:"reasoning,omitempty"`
	ScoredAt    time.Time `json:"scored_at"`
}

// PitchResult is the structured output of the GENERATE_PITCH operation
type PitchResult struct {
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	GeneratedAt time.Time `json:"generated_at"`
}

// CompanyInsights is the structured output of the ENRICH operation
type CompanyInsights struct {
	Industry   string    `json:"industry,omitempty"`
	Size       string    `json:"size,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Signals    []string  `json:"signals,omitempty"`
	EnrichedAt time.Time `json:"enriched_at"`
}

// LeadClassification is the structured output of the CLASSIFY operation
type LeadClassification struct {
	Segment      string    `json:"segment"`
	Tier         string    `json:"tier"`
	Reasoning    string    `json:"reasoning,omitempty"`
	ClassifiedAt time.Time `json:"classified_at"`
}

// LeadValidation is the structured output of the VALIDATE operation
type LeadValidation struct {
	Valid       bool      `json:"valid"`
	Issues      []string  `json:"issues,omitempty"`
	Confidence  float64   `json:"confidence"`
	ValidatedAt time.Time `json:"validated_at"`
}
