package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/models"
)

func listingPage(names ...string) string {
	page := "<html><body>"
	for _, name := range names {
		page += fmt.Sprintf(`<div class="listing"><h2 class="name">%s</h2><span class="phone">555-0100</span></div>`, name)
	}
	return page + "</body></html>"
}

func newDirectoryScraper(t *testing.T, baseURL string) *DirectoryScraper {
	t.Helper()
	return NewDirectoryScraper(DirectoryScraperConfig{
		Source:            "business-directory",
		BaseURL:           baseURL,
		RequestsPerMinute: 600,
	}, arbor.NewLogger())
}

// TestDirectoryScraper_Scrape tests pagination against a stub directory
func TestDirectoryScraper_Scrape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "plumbers", r.URL.Query().Get("q"))
		assert.Equal(t, "Springfield", r.URL.Query().Get("location"))

		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Query().Get("page") {
		case "", "1":
			fmt.Fprint(w, listingPage("Acme Plumbing", "Bolt Electrics"))
		case "2":
			fmt.Fprint(w, listingPage("Crate Movers"))
		default:
			fmt.Fprint(w, listingPage())
		}
	}))
	defer server.Close()

	s := newDirectoryScraper(t, server.URL)
	result, err := s.Scrape(context.Background(), "plumbers",
		models.ScrapeFilters{Location: "Springfield"},
		models.ScrapeConfig{PageLimit: 5})

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Data, 3)
	assert.Equal(t, "Acme Plumbing", result.Data[0].Name)
	assert.Equal(t, "business-directory", result.Data[0].Source)
	assert.Empty(t, result.Errors)

	// Three pages fetched; usage reflects them.
	assert.Equal(t, 3, s.GetRateLimit().CurrentUsage)
}

// TestDirectoryScraper_MaxResults tests the result cap across pages
func TestDirectoryScraper_MaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, listingPage("One", "Two", "Three"))
	}))
	defer server.Close()

	s := newDirectoryScraper(t, server.URL)
	result, err := s.Scrape(context.Background(), "q", models.ScrapeFilters{}, models.ScrapeConfig{MaxResults: 2, PageLimit: 10})

	require.NoError(t, err)
	assert.Len(t, result.Data, 2)
}

// TestDirectoryScraper_FirstPageFailure tests that a first-page failure
// fails the scrape with the mapped sentinel
func TestDirectoryScraper_FirstPageFailure(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{name: "429 maps to rate limit", status: http.StatusTooManyRequests, sentinel: models.ErrRateLimitExceeded},
		{name: "500 maps to unavailable", status: http.StatusInternalServerError, sentinel: models.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			s := newDirectoryScraper(t, server.URL)
			_, err := s.Scrape(context.Background(), "q", models.ScrapeFilters{}, models.ScrapeConfig{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

// TestDirectoryScraper_LaterPageFailureDegrades tests that a failure after
// the first page degrades into result errors instead of failing the scrape
func TestDirectoryScraper_LaterPageFailureDegrades(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, listingPage("Acme"))
	}))
	defer server.Close()

	s := newDirectoryScraper(t, server.URL)
	result, err := s.Scrape(context.Background(), "q", models.ScrapeFilters{}, models.ScrapeConfig{PageLimit: 3})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.Data, 1)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "page 2")
}

// TestDirectoryScraper_RejectsNonHTML tests the content-type guard
func TestDirectoryScraper_RejectsNonHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer server.Close()

	s := newDirectoryScraper(t, server.URL)
	_, err := s.Scrape(context.Background(), "q", models.ScrapeFilters{}, models.ScrapeConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")
}

// TestDirectoryScraper_Availability tests the availability flag and config
// validation
func TestDirectoryScraper_Availability(t *testing.T) {
	s := newDirectoryScraper(t, "")
	assert.False(t, s.IsAvailable())

	s = newDirectoryScraper(t, "https://directory.example.com/search")
	assert.True(t, s.IsAvailable())

	assert.NoError(t, s.ValidateConfig(models.ScrapeConfig{MaxResults: 10}))
	assert.Error(t, s.ValidateConfig(models.ScrapeConfig{MaxResults: -1}))
}
