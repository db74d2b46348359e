package interfaces

import (
	"context"

	"github.com/ternarybob/prospect/internal/models"
)

// Scraper is the pluggable per-source scraping capability. Implementations
// self-report availability and rate-limit usage; the orchestration layer
// enforces the budget before dispatching.
type Scraper interface {
	// Source returns the capability's registry key
	Source() string
	// Scrape executes one query against the source. Per-record failures
	// are accumulated in the result's Errors, not returned as an error.
	Scrape(ctx context.Context, query string, filters models.ScrapeFilters, config models.ScrapeConfig) (*models.ScrapeResult, error)
	// IsAvailable reports whether the capability can currently serve requests
	IsAvailable() bool
	// GetRateLimit returns the capability's self-reported budget and usage
	GetRateLimit() models.RateLimitInfo
	// ValidateConfig checks a scrape config before dispatch
	ValidateConfig(config models.ScrapeConfig) error
}
