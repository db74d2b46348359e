package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/models"
	"golang.org/x/time/rate"
)

// BrowserScraperConfig configures one JavaScript-rendered directory
// capability.
type BrowserScraperConfig struct {
	Source            string
	BaseURL           string
	WaitSelector      string // Element that signals the listing has rendered
	RequestsPerMinute int
	Headless          bool
	Selectors         *listingSelectors
}

// BrowserScraper renders listing pages in headless Chrome before parsing,
// for directories that build their results client-side. The browser is
// started lazily on first use and reused across scrapes.
type BrowserScraper struct {
	config   BrowserScraperConfig
	logger   arbor.ILogger
	limiter  *rate.Limiter
	usage    usageWindow
	validate *validator.Validate
	sel      listingSelectors

	mu              sync.Mutex
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
}

// NewBrowserScraper creates a headless-browser directory capability
func NewBrowserScraper(config BrowserScraperConfig, logger arbor.ILogger) *BrowserScraper {
	rpm := config.RequestsPerMinute
	if rpm <= 0 {
		rpm = 10
	}
	config.RequestsPerMinute = rpm

	sel := defaultSelectors()
	if config.Selectors != nil {
		sel = *config.Selectors
	}
	if config.WaitSelector == "" {
		config.WaitSelector = "body"
	}

	return &BrowserScraper{
		config:   config,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		validate: validator.New(),
		sel:      sel,
	}
}

// Source returns the capability's registry key
func (s *BrowserScraper) Source() string {
	return s.config.Source
}

// IsAvailable reports whether the capability can serve requests
func (s *BrowserScraper) IsAvailable() bool {
	return s.config.BaseURL != ""
}

// GetRateLimit returns the self-reported budget and sliding-window usage
func (s *BrowserScraper) GetRateLimit() models.RateLimitInfo {
	now := time.Now()
	return models.RateLimitInfo{
		RequestsPerMinute: s.config.RequestsPerMinute,
		CurrentUsage:      s.usage.count(now),
		ResetsAt:          now.Add(time.Minute),
	}
}

// ValidateConfig checks a scrape config before dispatch
func (s *BrowserScraper) ValidateConfig(config models.ScrapeConfig) error {
	if err := s.validate.Struct(config); err != nil {
		return fmt.Errorf("invalid scrape config: %w", err)
	}
	return nil
}

// Scrape renders the listing page for the query and parses the result.
// Browser-backed sources fetch a single rendered page per query; the
// directory's infinite-scroll continuation is out of reach without
// per-site interaction scripts.
func (s *BrowserScraper) Scrape(ctx context.Context, query string, filters models.ScrapeFilters, config models.ScrapeConfig) (*models.ScrapeResult, error) {
	startTime := time.Now()
	result := &models.ScrapeResult{Source: s.config.Source}

	if err := s.limiter.Wait(ctx); err != nil {
		result.Duration = time.Since(startTime)
		return result, models.NewJobError(models.ErrRateLimitExceeded, "", "rate limiter wait aborted: "+err.Error())
	}

	browserCtx, err := s.browser()
	if err != nil {
		result.Duration = time.Since(startTime)
		return result, models.NewJobError(models.ErrUnavailable, "", "browser startup failed: "+err.Error())
	}

	pageURL, err := s.buildURL(query, filters)
	if err != nil {
		result.Duration = time.Since(startTime)
		return result, models.NewJobError(models.ErrValidation, "", "invalid listing URL: "+err.Error())
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	navCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	s.usage.record(time.Now())

	var html string
	err = chromedp.Run(navCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers(map[string]any{
			"Accept-Language": "en-US,en;q=0.9",
			"User-Agent":      userAgent,
		})),
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(s.config.WaitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		result.Duration = time.Since(startTime)
		if navCtx.Err() == context.DeadlineExceeded {
			return result, models.NewJobError(models.ErrTimeout, "", "page render timed out")
		}
		return result, models.NewJobError(models.ErrUnavailable, "", "page render failed: "+err.Error())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		result.Duration = time.Since(startTime)
		return result, fmt.Errorf("failed to parse rendered page: %w", err)
	}

	result.Data = parseListing(doc, s.config.Source, s.sel, config.MaxResults)
	result.Success = true
	result.Duration = time.Since(startTime)

	s.logger.Debug().
		Str("source", s.config.Source).
		Str("query", query).
		Int("records", len(result.Data)).
		Dur("duration", result.Duration).
		Msg("Browser scrape finished")

	return result, nil
}

// Close shuts the shared browser down
func (s *BrowserScraper) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCancel != nil {
		s.browserCancel()
		s.browserCancel = nil
	}
	if s.allocatorCancel != nil {
		s.allocatorCancel()
		s.allocatorCancel = nil
	}
	s.browserCtx = nil
}

// browser returns the shared browser context, starting it on first use
func (s *BrowserScraper) browser() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx != nil && s.browserCtx.Err() == nil {
		return s.browserCtx, nil
	}

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(defaultUserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Startup probe so a missing Chrome binary surfaces here, not mid-scrape
	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.allocatorCancel = allocatorCancel

	s.logger.Debug().
		Str("source", s.config.Source).
		Bool("headless", s.config.Headless).
		Msg("Browser instance started")

	return browserCtx, nil
}

func (s *BrowserScraper) buildURL(query string, filters models.ScrapeFilters) (string, error) {
	base, err := url.Parse(s.config.BaseURL)
	if err != nil {
		return "", err
	}

	params := base.Query()
	params.Set("q", query)
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
