package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/models"
)

// TestStartBulkScraping_Validation tests the input guards
func TestStartBulkScraping_Validation(t *testing.T) {
	m := newManager(t, common.ScraperConfig{})

	_, err := m.StartBulkScraping(context.Background(), []string{"business-directory"}, nil, models.ScrapeFilters{}, models.ScrapeConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = m.StartBulkScraping(context.Background(), nil, []string{"plumbers"}, models.ScrapeFilters{}, models.ScrapeConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrValidation)
}

// TestBulkSession_Completes tests a full session run with cross-query
// deduplication in the aggregated results
func TestBulkSession_Completes(t *testing.T) {
	source := newScriptedScraper("business-directory",
		models.ScrapedRecord{Name: "Acme", Email: "a@x.y", Phone: "555", Confidence: 0.9},
	)
	m := newManager(t, common.ScraperConfig{QualityThreshold: 0.5}, source)

	sessionID, err := m.StartBulkScraping(context.Background(), []string{"business-directory"},
		[]string{"plumbers", "electricians"}, models.ScrapeFilters{}, models.ScrapeConfig{})
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	require.Eventually(t, func() bool {
		session, sErr := m.GetSessionStatus(sessionID)
		return sErr == nil && session.Status == models.SessionCompleted
	}, 3*time.Second, 10*time.Millisecond)

	session, err := m.GetSessionStatus(sessionID)
	require.NoError(t, err)
	assert.Equal(t, 100, session.Progress)
	assert.Equal(t, 2, session.CompletedUnits)
	require.NotNil(t, session.EndTime)

	// Both queries returned the same record; the duplicate is counted once.
	assert.Equal(t, 2, session.Results.TotalLeads)
	assert.Equal(t, 1, session.Results.Duplicates)
	assert.Equal(t, 1, session.Results.QualityLeads)
	assert.Equal(t, 2, source.queryCount())
}

// TestBulkSession_Cancel tests that cancellation stops the loop before the
// next query and is not resurrected by late updates
func TestBulkSession_Cancel(t *testing.T) {
	source := newScriptedScraper("business-directory", models.ScrapedRecord{Name: "Acme", Confidence: 0.9})
	source.scrapeDelay = 50 * time.Millisecond
	m := newManager(t, common.ScraperConfig{}, source)

	queries := []string{"one", "two", "three", "four", "five"}
	sessionID, err := m.StartBulkScraping(context.Background(), []string{"business-directory"}, queries, models.ScrapeFilters{}, models.ScrapeConfig{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		session, sErr := m.GetSessionStatus(sessionID)
		return sErr == nil && session.Status == models.SessionRunning
	}, 3*time.Second, 5*time.Millisecond)

	assert.True(t, m.CancelSession(sessionID))
	// A second cancel of a non-running session is a no-op.
	assert.False(t, m.CancelSession(sessionID))

	session, err := m.GetSessionStatus(sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, session.Status)
	require.NotNil(t, session.EndTime)

	// The loop observes the flag between queries and never finishes them all.
	time.Sleep(300 * time.Millisecond)
	session, err = m.GetSessionStatus(sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, session.Status)
	assert.Less(t, source.queryCount(), len(queries))
}

// TestGetSessionStatus_Unknown tests lookup of a nonexistent session
func TestGetSessionStatus_Unknown(t *testing.T) {
	m := newManager(t, common.ScraperConfig{})
	_, err := m.GetSessionStatus("session_missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
