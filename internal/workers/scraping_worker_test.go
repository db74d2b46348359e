package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/ternarybob/prospect/internal/queue"
	"github.com/ternarybob/prospect/internal/scraper"
)

// fakeScraper is a scripted Scraper capability for worker tests. A non-nil
// gate blocks every call until the channel is closed.
type fakeScraper struct {
	source  string
	records []models.ScrapedRecord
	gate    chan struct{}

	mu       sync.Mutex
	failures []error // Consumed one per call before records are served
	calls    int
	queries  []string
}

func (s *fakeScraper) Source() string { return s.source }

func (s *fakeScraper) Scrape(ctx context.Context, query string, filters models.ScrapeFilters, config models.ScrapeConfig) (*models.ScrapeResult, error) {
	s.mu.Lock()
	s.calls++
	s.queries = append(s.queries, query)
	var err error
	if len(s.failures) > 0 {
		err = s.failures[0]
		s.failures = s.failures[1:]
	}
	s.mu.Unlock()

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &models.ScrapeResult{Success: true, Data: s.records}, nil
}

func (s *fakeScraper) IsAvailable() bool { return true }

func (s *fakeScraper) GetRateLimit() models.RateLimitInfo {
	return models.RateLimitInfo{RequestsPerMinute: 60}
}

func (s *fakeScraper) ValidateConfig(config models.ScrapeConfig) error { return nil }

func (s *fakeScraper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeScraper) queryLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}

// fakeAIWorkStore records pending-analysis markers
type fakeAIWorkStore struct {
	mu   sync.Mutex
	work []*models.PendingAIWork
}

func (s *fakeAIWorkStore) CreatePendingWork(ctx context.Context, work *models.PendingAIWork) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.work = append(s.work, work)
	return nil
}

func (s *fakeAIWorkStore) FindStalePending(ctx context.Context, maxAge time.Duration, limit int) ([]*models.PendingAIWork, error) {
	return nil, nil
}

func (s *fakeAIWorkStore) MarkRequeued(ctx context.Context, id string) error { return nil }

func (s *fakeAIWorkStore) DeletePendingWork(ctx context.Context, id string) error { return nil }

func (s *fakeAIWorkStore) DeletePendingWorkForLead(ctx context.Context, leadID string, op models.AIOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := make([]*models.PendingAIWork, 0, len(s.work))
	for _, w := range s.work {
		if w.LeadID == leadID && w.Operation == op {
			continue
		}
		remaining = append(remaining, w)
	}
	s.work = remaining
	return nil
}

func (s *fakeAIWorkStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.work)
}

func (s *fakeAIWorkStore) countForLead(leadID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.work {
		if w.LeadID == leadID {
			n++
		}
	}
	return n
}

func newTestScrapingQueue(t *testing.T) *queue.ScrapingQueue {
	t.Helper()
	return queue.NewScrapingQueue(common.QueueConfig{MaxSize: 50, RetentionDays: 1}, nil, nil, arbor.NewLogger())
}

func newTestScraperManager(t *testing.T, scrapers ...*fakeScraper) *scraper.Manager {
	t.Helper()
	m := scraper.NewManager(common.ScraperConfig{MaxConcurrentScrapers: 3}, arbor.NewLogger())
	for _, s := range scrapers {
		m.RegisterScraper(s)
	}
	t.Cleanup(m.Shutdown)
	return m
}

// TestScrapingWorker_PersistsLeads tests the happy path from queue to
// persisted leads and pending-analysis markers
func TestScrapingWorker_PersistsLeads(t *testing.T) {
	q := newTestScrapingQueue(t)
	leads := newFakeLeadStore()
	aiWork := &fakeAIWorkStore{}
	source := &fakeScraper{
		source: "business-directory",
		records: []models.ScrapedRecord{
			{Name: "Acme Plumbing", Email: "Info@Acme.example", Phone: "555-0101", Confidence: 0.9},
			{Name: "Bolt Electrics", Website: "https://bolt.example", Confidence: 0.7},
		},
	}

	worker := NewScrapingWorker(q, newTestScraperManager(t, source), leads, aiWork, testWorkerConfig(), arbor.NewLogger())
	worker.Start()
	defer worker.Stop()

	jobID, err := q.Add(models.ScrapingJobPayload{
		Sources: []string{"business-directory"},
		Query:   "tradespeople",
	}, models.PriorityNormal)
	require.NoError(t, err)

	info := waitForState(t, q.Status, jobID, models.JobStateCompleted)
	require.NotNil(t, info.Result)

	outcome, ok := info.Result.Data.(*ScrapeJobOutcome)
	require.True(t, ok)
	assert.Equal(t, 2, outcome.TotalRecords)
	assert.Equal(t, 2, outcome.Persisted)
	assert.Len(t, outcome.LeadIDs, 2)
	assert.Empty(t, outcome.Errors)

	// Email is normalized on the way in; every lead gets an analysis marker.
	stored := leads.get(outcome.LeadIDs[0])
	require.NotNil(t, stored)
	assert.Equal(t, "info@acme.example", stored.Email)
	assert.Equal(t, 2, aiWork.count())
}

// TestScrapingWorker_RetriesTransientFailure tests in-place retry with the
// same worker slot
func TestScrapingWorker_RetriesTransientFailure(t *testing.T) {
	q := newTestScrapingQueue(t)
	source := &fakeScraper{
		source:   "business-directory",
		records:  []models.ScrapedRecord{{Name: "Acme", Confidence: 0.8}},
		failures: []error{errors.New("503 service unavailable")},
	}

	worker := NewScrapingWorker(q, newTestScraperManager(t, source), newFakeLeadStore(), &fakeAIWorkStore{}, testWorkerConfig(), arbor.NewLogger())
	worker.Start()
	defer worker.Stop()

	jobID, err := q.Add(models.ScrapingJobPayload{
		Sources: []string{"business-directory"},
		Query:   "plumbers",
	}, models.PriorityNormal)
	require.NoError(t, err)

	waitForState(t, q.Status, jobID, models.JobStateCompleted)
	assert.Equal(t, 2, source.callCount())
	assert.Equal(t, int64(1), worker.Metrics().RetriedJobs)
}

// TestScrapingWorker_UnknownSourceFails tests that an unregistered source
// fails the job without retrying
func TestScrapingWorker_UnknownSourceFails(t *testing.T) {
	q := newTestScrapingQueue(t)
	worker := NewScrapingWorker(q, newTestScraperManager(t), newFakeLeadStore(), &fakeAIWorkStore{}, testWorkerConfig(), arbor.NewLogger())
	worker.Start()
	defer worker.Stop()

	jobID, err := q.Add(models.ScrapingJobPayload{
		Sources: []string{"nonexistent"},
		Query:   "anything",
	}, models.PriorityNormal)
	require.NoError(t, err)

	info := waitForState(t, q.Status, jobID, models.JobStateFailed)
	require.NotNil(t, info.Failure)
	assert.False(t, info.Failure.Retryable)
	assert.Equal(t, int64(0), worker.Metrics().RetriedJobs)
}

// TestScrapingWorker_MultiSourceDegradedResult tests that one source's
// failure degrades the outcome instead of failing the whole job
func TestScrapingWorker_MultiSourceDegradedResult(t *testing.T) {
	q := newTestScrapingQueue(t)
	good := &fakeScraper{
		source:  "business-directory",
		records: []models.ScrapedRecord{{Name: "Acme", Confidence: 0.8}},
	}
	bad := &fakeScraper{
		source:   "trade-register",
		failures: []error{errors.New("parse failure")},
	}

	cfg := testWorkerConfig()
	cfg.RetryAttempts = 0

	worker := NewScrapingWorker(q, newTestScraperManager(t, good, bad), newFakeLeadStore(), &fakeAIWorkStore{}, cfg, arbor.NewLogger())
	worker.Start()
	defer worker.Stop()

	jobID, err := q.Add(models.ScrapingJobPayload{
		Sources:  []string{"business-directory", "trade-register"},
		Query:    "plumbers",
		Strategy: "sequential",
	}, models.PriorityNormal)
	require.NoError(t, err)

	info := waitForState(t, q.Status, jobID, models.JobStateCompleted)
	outcome, ok := info.Result.Data.(*ScrapeJobOutcome)
	require.True(t, ok)
	assert.Equal(t, 1, outcome.Persisted)
	require.NotEmpty(t, outcome.Errors)
	assert.Contains(t, outcome.Errors[0], "trade-register")
}

// TestScrapingWorker_StopReturnsWithJobInFlight tests that Stop waits only
// for the poll loop, never for in-flight work
func TestScrapingWorker_StopReturnsWithJobInFlight(t *testing.T) {
	q := newTestScrapingQueue(t)
	gate := make(chan struct{})
	source := &fakeScraper{
		source:  "business-directory",
		records: []models.ScrapedRecord{{Name: "Acme", Confidence: 0.8}},
		gate:    gate,
	}

	worker := NewScrapingWorker(q, newTestScraperManager(t, source), newFakeLeadStore(), &fakeAIWorkStore{}, testWorkerConfig(), arbor.NewLogger())
	worker.Start()

	jobID, err := q.Add(models.ScrapingJobPayload{
		Sources: []string{"business-directory"},
		Query:   "plumbers",
	}, models.PriorityNormal)
	require.NoError(t, err)

	waitForState(t, q.Status, jobID, models.JobStateActive)

	started := time.Now()
	worker.Stop()
	elapsed := time.Since(started)
	close(gate)

	assert.Less(t, elapsed, 200*time.Millisecond, "Stop must not block on the in-flight job")
	assert.False(t, worker.Metrics().Running)

	// The abandoned job still finishes on its own slot.
	waitForState(t, q.Status, jobID, models.JobStateCompleted)
}

// TestScrapingWorker_PriorityExecutionOrder tests that a concurrency-1
// worker executes queued jobs urgent first, low last
func TestScrapingWorker_PriorityExecutionOrder(t *testing.T) {
	q := newTestScrapingQueue(t)
	source := &fakeScraper{source: "business-directory"}

	add := func(query string, priority models.Priority) string {
		jobID, err := q.Add(models.ScrapingJobPayload{
			Sources: []string{"business-directory"},
			Query:   query,
		}, priority)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		return jobID
	}
	add("low", models.PriorityLow)
	add("urgent", models.PriorityUrgent)
	last := add("normal", models.PriorityNormal)

	cfg := testWorkerConfig()
	cfg.Concurrency = 1

	worker := NewScrapingWorker(q, newTestScraperManager(t, source), newFakeLeadStore(), &fakeAIWorkStore{}, cfg, arbor.NewLogger())
	worker.Start()
	defer worker.Stop()

	waitForState(t, q.Status, last, models.JobStateCompleted)
	require.Eventually(t, func() bool { return source.callCount() == 3 }, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"urgent", "normal", "low"}, source.queryLog())
}
