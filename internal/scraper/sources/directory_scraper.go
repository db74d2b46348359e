package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/models"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent  = "Prospect-Scraper/1.0"
	defaultPageLimit  = 3
	defaultMaxResults = 100
)

// DirectoryScraperConfig configures one HTTP directory capability
type DirectoryScraperConfig struct {
	Source            string // Registry key
	BaseURL           string // Listing search endpoint
	RequestsPerMinute int
	Selectors         *listingSelectors // nil uses the defaults
}

// DirectoryScraper scrapes server-rendered business-directory listing
// pages over plain HTTP. Pagination uses the conventional page query
// parameter; records are extracted per listing card.
type DirectoryScraper struct {
	config   DirectoryScraperConfig
	logger   arbor.ILogger
	client   *http.Client
	limiter  *rate.Limiter
	usage    usageWindow
	validate *validator.Validate
	sel      listingSelectors
}

// NewDirectoryScraper creates an HTTP directory capability
func NewDirectoryScraper(config DirectoryScraperConfig, logger arbor.ILogger) *DirectoryScraper {
	rpm := config.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	config.RequestsPerMinute = rpm

	sel := defaultSelectors()
	if config.Selectors != nil {
		sel = *config.Selectors
	}

	return &DirectoryScraper{
		config:   config,
		logger:   logger,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		validate: validator.New(),
		sel:      sel,
	}
}

// Source returns the capability's registry key
func (s *DirectoryScraper) Source() string {
	return s.config.Source
}

// IsAvailable reports whether the capability can serve requests
func (s *DirectoryScraper) IsAvailable() bool {
	return s.config.BaseURL != ""
}

// GetRateLimit returns the self-reported budget and sliding-window usage
func (s *DirectoryScraper) GetRateLimit() models.RateLimitInfo {
	now := time.Now()
	return models.RateLimitInfo{
		RequestsPerMinute: s.config.RequestsPerMinute,
		CurrentUsage:      s.usage.count(now),
		ResetsAt:          now.Add(time.Minute),
	}
}

// ValidateConfig checks a scrape config before dispatch
func (s *DirectoryScraper) ValidateConfig(config models.ScrapeConfig) error {
	if err := s.validate.Struct(config); err != nil {
		return fmt.Errorf("invalid scrape config: %w", err)
	}
	return nil
}

// Scrape fetches listing pages for the query until the page limit or the
// result cap is reached. A page-level fetch failure after the first page
// is degraded into the result's Errors.
func (s *DirectoryScraper) Scrape(ctx context.Context, query string, filters models.ScrapeFilters, config models.ScrapeConfig) (*models.ScrapeResult, error) {
	startTime := time.Now()
	result := &models.ScrapeResult{Source: s.config.Source}

	pageLimit := config.PageLimit
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	maxResults := config.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	for page := 1; page <= pageLimit; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			result.Duration = time.Since(startTime)
			return result, models.NewJobError(models.ErrRateLimitExceeded, "", "rate limiter wait aborted: "+err.Error())
		}

		records, err := s.fetchPage(ctx, query, filters, config, page)
		if err != nil {
			if page == 1 {
				result.Duration = time.Since(startTime)
				return result, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("page %d: %v", page, err))
			break
		}
		if len(records) == 0 {
			break
		}

		result.Data = append(result.Data, records...)
		if len(result.Data) >= maxResults {
			result.Data = result.Data[:maxResults]
			break
		}
	}

	result.Success = true
	result.Duration = time.Since(startTime)

	s.logger.Debug().
		Str("source", s.config.Source).
		Str("query", query).
		Int("records", len(result.Data)).
		Dur("duration", result.Duration).
		Msg("Directory scrape finished")

	return result, nil
}

func (s *DirectoryScraper) fetchPage(ctx context.Context, query string, filters models.ScrapeFilters, config models.ScrapeConfig, page int) ([]models.ScrapedRecord, error) {
	pageURL, err := s.buildURL(query, filters, page)
	if err != nil {
		return nil, models.NewJobError(models.ErrValidation, "", "invalid listing URL: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	s.usage.record(time.Now())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, models.NewJobError(models.ErrUnavailable, "", "directory fetch failed: "+err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, models.NewJobError(models.ErrRateLimitExceeded, "", "directory returned 429")
	case resp.StatusCode >= 500:
		return nil, models.NewJobError(models.ErrUnavailable, "", fmt.Sprintf("directory returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("directory returned unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	return parseListing(doc, s.config.Source, s.sel, 0), nil
}

func (s *DirectoryScraper) buildURL(query string, filters models.ScrapeFilters, page int) (string, error) {
	base, err := url.Parse(s.config.BaseURL)
	if err != nil {
		return "", err
	}

	params := base.Query()
	params.Set("q", query)
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	if filters.Location != "" {
		params.Set("location", filters.Location)
	}
	if filters.Industry != "" {
		params.Set("industry", filters.Industry)
	}
	if filters.CompanySize != "" {
		params.Set("size", filters.CompanySize)
	}
	if len(filters.Keywords) > 0 {
		params.Set("keywords", strings.Join(filters.Keywords, ","))
	}
	base.RawQuery = params.Encode()

	return base.String(), nil
}
