package models

import (
	"time"
)

// ScrapeFilters narrows a scrape query. All fields optional.
type ScrapeFilters struct {
	Location    string   `json:"location,omitempty"`
	Industry    string   `json:"industry,omitempty"`
	CompanySize string   `json:"company_size,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// ScrapeConfig tunes a single capability invocation
type ScrapeConfig struct {
	MaxResults int           `json:"max_results,omitempty" validate:"gte=0"`
	Timeout    time.Duration `json:"timeout,omitempty"`
	PageLimit  int           `json:"page_limit,omitempty" validate:"gte=0"`
	UserAgent  string        `json:"user_agent,omitempty"`
}

// ScrapedRecord is one raw record produced by a scraper capability before
// quality filtering and deduplication.
type ScrapedRecord struct {
	Name        string            `json:"name"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Company     string            `json:"company,omitempty"`
	Title       string            `json:"title,omitempty"`
	Website     string            `json:"website,omitempty"`
	Address     string            `json:"address,omitempty"`
	Description string            `json:"description,omitempty"`
	Source      string            `json:"source"`
	Confidence  float64           `json:"confidence"`
	ScrapedAt   time.Time         `json:"scraped_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ScrapeResult is the outcome of one capability invocation. Per-record
// failures accumulate in Errors without failing the invocation.
type ScrapeResult struct {
	Success     bool            `json:"success"`
	Source      string          `json:"source"`
	Data        []ScrapedRecord `json:"data"`
	Errors      []string        `json:"errors,omitempty"`
	RateLimited bool            `json:"rate_limited"`
	Duration    time.Duration   `json:"duration"`
}

// RateLimitInfo is a capability's self-reported rate-limit budget
type RateLimitInfo struct {
	RequestsPerMinute int       `json:"requests_per_minute"`
	CurrentUsage      int       `json:"current_usage"`
	ResetsAt          time.Time `json:"resets_at"`
}

// Exhausted reports whether the capability is at or above its budget
func (r RateLimitInfo) Exhausted() bool {
	return r.RequestsPerMinute > 0 && r.CurrentUsage >= r.RequestsPerMinute
}

// ScraperHealth is the result of a lightweight capability liveness probe
type ScraperHealth struct {
	Source      string `json:"source"`
	Available   bool   `json:"available"`
	ConfigValid bool   `json:"config_valid"`
	Error       string `json:"error,omitempty"`
}
