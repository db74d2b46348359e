package scraper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
)

// Dispatch strategies for multi-source scraping
const (
	StrategyParallel      = "parallel"
	StrategySequential    = "sequential"
	StrategyPriorityBased = "priority-based"
)

// Manager orchestrates scraper capabilities: registry, rate-limit
// enforcement, cross-source deduplication, data-quality filtering, and
// bulk session tracking. All registry and session state is owned by the
// manager instance and torn down in Shutdown.
type Manager struct {
	config common.ScraperConfig
	logger arbor.ILogger

	mu       sync.RWMutex
	scrapers map[string]interfaces.Scraper

	sessionMu sync.RWMutex
	sessions  map[string]*models.ScrapingSession
	cancelled map[string]struct{}

	gcStop chan struct{}
	gcWG   sync.WaitGroup
}

// NewManager creates a scraper manager and starts its session GC timer
func NewManager(config common.ScraperConfig, logger arbor.ILogger) *Manager {
	if config.SessionRetention <= 0 {
		config.SessionRetention = 24 * time.Hour
	}
	m := &Manager{
		config:    config,
		logger:    logger,
		scrapers:  make(map[string]interfaces.Scraper),
		sessions:  make(map[string]*models.ScrapingSession),
		cancelled: make(map[string]struct{}),
		gcStop:    make(chan struct{}),
	}

	m.gcWG.Add(1)
	go m.sessionGCLoop()

	return m
}

// RegisterScraper adds a capability to the registry, overwriting (with a
// warning) any existing registration for the same source.
func (m *Manager) RegisterScraper(scraper interfaces.Scraper) {
	source := scraper.Source()

	m.mu.Lock()
	_, exists := m.scrapers[source]
	m.scrapers[source] = scraper
	m.mu.Unlock()

	if exists {
		m.logger.Warn().
			Str("source", source).
			Msg("Scraper already registered, overwriting")
	} else {
		m.logger.Info().
			Str("source", source).
			Msg("Scraper registered")
	}
}

// UnregisterScraper removes a capability from the registry
func (m *Manager) UnregisterScraper(source string) {
	m.mu.Lock()
	delete(m.scrapers, source)
	m.mu.Unlock()

	m.logger.Info().
		Str("source", source).
		Msg("Scraper unregistered")
}

// RegisteredSources returns the registry's current source keys
func (m *Manager) RegisteredSources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sources := make([]string, 0, len(m.scrapers))
	for source := range m.scrapers {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}

// ScrapeBySource executes one query against one capability, enforcing
// availability and the capability's self-reported rate-limit budget, then
// applying quality filtering and deduplication when enabled.
func (m *Manager) ScrapeBySource(ctx context.Context, source, query string, filters models.ScrapeFilters, config models.ScrapeConfig) (*models.ScrapeResult, error) {
	m.mu.RLock()
	scraper, ok := m.scrapers[source]
	m.mu.RUnlock()

	if !ok {
		return nil, models.NewJobError(models.ErrNotFound, "", fmt.Sprintf("no scraper registered for source %q", source))
	}
	if !scraper.IsAvailable() {
		return nil, models.NewJobError(models.ErrUnavailable, "", fmt.Sprintf("scraper %q reports unavailable", source))
	}
	if limit := scraper.GetRateLimit(); limit.Exhausted() {
		return nil, models.NewJobError(models.ErrRateLimitExceeded, "",
			fmt.Sprintf("scraper %q at %d/%d requests per minute", source, limit.CurrentUsage, limit.RequestsPerMinute))
	}
	if err := scraper.ValidateConfig(config); err != nil {
		return nil, models.NewJobError(models.ErrValidation, "", err.Error())
	}

	started := time.Now()
	result, err := scraper.Scrape(ctx, query, filters, config)
	if err != nil {
		return nil, fmt.Errorf("scraper %q failed: %w", source, err)
	}
	result.Source = source
	result.Duration = time.Since(started)

	m.refine(result)

	m.logger.Info().
		Str("source", source).
		Str("query", query).
		Int("records", len(result.Data)).
		Dur("duration", result.Duration).
		Msg("Scrape completed")

	return result, nil
}

// refine applies the configured quality filter and deduplication to a
// result in place.
func (m *Manager) refine(result *models.ScrapeResult) {
	if m.config.EnableQualityFilter {
		kept, dropped := FilterQuality(result.Data, m.config.QualityThreshold)
		result.Data = kept
		if dropped > 0 {
			m.logger.Debug().
				Str("source", result.Source).
				Int("dropped", dropped).
				Float64("threshold", m.config.QualityThreshold).
				Msg("Low-quality records filtered")
		}
	}
	if m.config.EnableDeduplication {
		kept, duplicates := Deduplicate(result.Data)
		result.Data = kept
		if duplicates > 0 {
			m.logger.Debug().
				Str("source", result.Source).
				Int("duplicates", duplicates).
				Msg("Duplicate records removed")
		}
	}
}

// ScrapeMultipleSources dispatches one query to several sources under the
// named strategy. All strategies return exactly one result per requested
// source; a single source's failure becomes a degraded result, never an error.
func (m *Manager) ScrapeMultipleSources(ctx context.Context, sources []string, query string, filters models.ScrapeFilters, config models.ScrapeConfig, strategy string) []*models.ScrapeResult {
	switch strategy {
	case StrategyParallel:
		return m.scrapeParallel(ctx, sources, query, filters, config)
	case StrategyPriorityBased:
		// Priority-based runs sequentially in preference order
		return m.scrapeSequential(ctx, m.orderByPreference(sources), query, filters, config)
	case StrategySequential, "":
		return m.scrapeSequential(ctx, sources, query, filters, config)
	default:
		m.logger.Warn().
			Str("strategy", strategy).
			Msg("Unknown dispatch strategy, falling back to sequential")
		return m.scrapeSequential(ctx, sources, query, filters, config)
	}
}

func (m *Manager) scrapeSequential(ctx context.Context, sources []string, query string, filters models.ScrapeFilters, config models.ScrapeConfig) []*models.ScrapeResult {
	results := make([]*models.ScrapeResult, 0, len(sources))
	for _, source := range sources {
		results = append(results, m.scrapeOne(ctx, source, query, filters, config))
	}
	return results
}

func (m *Manager) scrapeParallel(ctx context.Context, sources []string, query string, filters models.ScrapeFilters, config models.ScrapeConfig) []*models.ScrapeResult {
	results := make([]*models.ScrapeResult, len(sources))
	sem := make(chan struct{}, m.config.MaxConcurrentScrapers)

	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(idx int, src string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = m.scrapeOne(ctx, src, query, filters, config)
		}(i, source)
	}
	wg.Wait()

	return results
}

// scrapeOne wraps ScrapeBySource so a failure degrades into a result
func (m *Manager) scrapeOne(ctx context.Context, source, query string, filters models.ScrapeFilters, config models.ScrapeConfig) *models.ScrapeResult {
	result, err := m.ScrapeBySource(ctx, source, query, filters, config)
	if err != nil {
		m.logger.Warn().
			Err(err).
			Str("source", source).
			Msg("Source scrape failed")
		return &models.ScrapeResult{
			Success: false,
			Source:  source,
			Errors:  []string{err.Error()},
		}
	}
	return result
}

// orderByPreference sorts sources by the configured preference list;
// unlisted sources keep their relative order after all listed ones.
func (m *Manager) orderByPreference(sources []string) []string {
	rank := make(map[string]int, len(m.config.PreferredSources))
	for i, source := range m.config.PreferredSources {
		rank[source] = i
	}

	ordered := make([]string, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, iOK := rank[ordered[i]]
		rj, jOK := rank[ordered[j]]
		if iOK && jOK {
			return ri < rj
		}
		return iOK && !jOK
	})
	return ordered
}

// GetHealthCheck probes each registered capability: availability flag plus
// a trivial config validation, independent of the main scrape path.
func (m *Manager) GetHealthCheck() []models.ScraperHealth {
	m.mu.RLock()
	scrapers := make(map[string]interfaces.Scraper, len(m.scrapers))
	for source, scraper := range m.scrapers {
		scrapers[source] = scraper
	}
	m.mu.RUnlock()

	checks := make([]models.ScraperHealth, 0, len(scrapers))
	for source, scraper := range scrapers {
		health := models.ScraperHealth{
			Source:    source,
			Available: scraper.IsAvailable(),
		}
		if err := scraper.ValidateConfig(models.ScrapeConfig{}); err != nil {
			health.ConfigValid = false
			health.Error = err.Error()
		} else {
			health.ConfigValid = true
		}
		checks = append(checks, health)
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].Source < checks[j].Source })
	return checks
}

// Shutdown stops the session GC timer and releases registry state
func (m *Manager) Shutdown() {
	close(m.gcStop)
	m.gcWG.Wait()

	m.mu.Lock()
	m.scrapers = make(map[string]interfaces.Scraper)
	m.mu.Unlock()

	m.logger.Info().Msg("Scraper manager shut down")
}
