package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/ternarybob/prospect/internal/queue"
)

// fakeSourceStore is an in-memory SourceStorage for scheduler tests
type fakeSourceStore struct {
	mu      sync.Mutex
	sources map[string]*models.ScrapeSource
}

func newFakeSourceStore(sources ...*models.ScrapeSource) *fakeSourceStore {
	s := &fakeSourceStore{sources: make(map[string]*models.ScrapeSource)}
	for _, source := range sources {
		s.sources[source.ID] = source
	}
	return s
}

func (s *fakeSourceStore) CreateSource(ctx context.Context, source *models.ScrapeSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[source.ID] = source
	return nil
}

func (s *fakeSourceStore) GetSource(ctx context.Context, id string) (*models.ScrapeSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[id], nil
}

func (s *fakeSourceStore) ListEnabledSources(ctx context.Context) ([]*models.ScrapeSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ScrapeSource
	for _, source := range s.sources {
		if source.Enabled {
			out = append(out, source)
		}
	}
	return out, nil
}

func (s *fakeSourceStore) FindDueSources(ctx context.Context, now time.Time) ([]*models.ScrapeSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*models.ScrapeSource
	for _, source := range s.sources {
		if !source.Enabled {
			continue
		}
		if source.NextRun == nil || !source.NextRun.After(now) {
			due = append(due, source)
		}
	}
	return due, nil
}

func (s *fakeSourceStore) UpdateNextRun(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	source, ok := s.sources[id]
	if !ok {
		return models.ErrNotFound
	}
	source.LastRun = &lastRun
	source.NextRun = &nextRun
	return nil
}

func (s *fakeSourceStore) nextRun(id string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[id].NextRun
}

// fakeAIWorkStore serves scripted stale work for recovery tests
type fakeAIWorkStore struct {
	mu       sync.Mutex
	stale    []*models.PendingAIWork
	requeued []string
}

func (s *fakeAIWorkStore) CreatePendingWork(ctx context.Context, work *models.PendingAIWork) error {
	return nil
}

func (s *fakeAIWorkStore) FindStalePending(ctx context.Context, maxAge time.Duration, limit int) ([]*models.PendingAIWork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stale) > limit {
		return s.stale[:limit], nil
	}
	return s.stale, nil
}

func (s *fakeAIWorkStore) MarkRequeued(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requeued = append(s.requeued, id)
	remaining := make([]*models.PendingAIWork, 0, len(s.stale))
	for _, work := range s.stale {
		if work.ID != id {
			remaining = append(remaining, work)
		}
	}
	s.stale = remaining
	return nil
}

func (s *fakeAIWorkStore) DeletePendingWork(ctx context.Context, id string) error { return nil }

func (s *fakeAIWorkStore) DeletePendingWorkForLead(ctx context.Context, leadID string, op models.AIOperation) error {
	return nil
}

func (s *fakeAIWorkStore) requeuedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requeued...)
}

func testSchedulerConfig() common.SchedulerConfig {
	return common.SchedulerConfig{
		CheckInterval:     time.Hour,
		InitialDelay:      time.Hour,
		StaleAge:          time.Hour,
		StaleRequeueBatch: 2,
	}
}

func newTestQueues(t *testing.T) (*queue.ScrapingQueue, *queue.AIQueue) {
	t.Helper()
	logger := arbor.NewLogger()
	scraping := queue.NewScrapingQueue(common.QueueConfig{MaxSize: 20, RetentionDays: 1}, nil, nil, logger)
	ai := queue.NewAIQueue(common.QueueConfig{MaxSize: 20, RetentionDays: 1}, nil, nil, logger)
	return scraping, ai
}

func pastTime(d time.Duration) *time.Time {
	t := time.Now().Add(-d)
	return &t
}

func futureTime(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}

// TestScheduler_PromotesDueSources tests that due sources become
// high-priority scraping jobs and get a fresh NextRun
func TestScheduler_PromotesDueSources(t *testing.T) {
	due := &models.ScrapeSource{
		ID:        "src_due",
		Name:      "Plumbers daily",
		Scraper:   "business-directory",
		Query:     "plumbers",
		Frequency: models.RecurrenceDaily,
		Enabled:   true,
		NextRun:   pastTime(time.Minute),
	}
	notDue := &models.ScrapeSource{
		ID:        "src_future",
		Name:      "Electricians weekly",
		Scraper:   "trade-register",
		Query:     "electricians",
		Frequency: models.RecurrenceWeekly,
		Enabled:   true,
		NextRun:   futureTime(time.Hour),
	}
	neverRun := &models.ScrapeSource{
		ID:        "src_new",
		Name:      "Startups",
		Scraper:   "startup-index",
		Query:     "startups",
		Frequency: models.RecurrenceHourly,
		Enabled:   true,
	}

	sources := newFakeSourceStore(due, notDue, neverRun)
	scraping, ai := newTestQueues(t)
	s := New(testSchedulerConfig(), sources, &fakeAIWorkStore{}, scraping, ai, arbor.NewLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	s.runCheckCycle()

	// src_due and src_new dispatch; src_future does not.
	assert.Equal(t, 2, scraping.Size())
	assert.Equal(t, int64(2), s.Stats().DispatchedTotal)

	job := scraping.GetNext()
	require.NotNil(t, job)
	assert.Equal(t, models.PriorityHigh, job.Priority)
	assert.NotEmpty(t, job.Payload.SourceID)
	assert.Len(t, job.Payload.Sources, 1)

	// NextRun is written back so the source is not due again.
	next := sources.nextRun("src_due")
	require.NotNil(t, next)
	assert.True(t, next.After(time.Now()))

	s.runCheckCycle()
	assert.Equal(t, 2, scraping.Size())
}

// TestScheduler_RecoversStaleAIWork tests the batched stale-work requeue
func TestScheduler_RecoversStaleAIWork(t *testing.T) {
	aiWork := &fakeAIWorkStore{
		stale: []*models.PendingAIWork{
			{ID: "work_1", LeadID: "lead_1", Operation: models.OpAnalyze, CreatedAt: time.Now().Add(-2 * time.Hour)},
			{ID: "work_2", LeadID: "lead_2", Operation: models.OpAnalyze, CreatedAt: time.Now().Add(-2 * time.Hour)},
			{ID: "work_3", LeadID: "lead_3", Operation: models.OpAnalyze, CreatedAt: time.Now().Add(-2 * time.Hour)},
		},
	}
	scraping, ai := newTestQueues(t)
	s := New(testSchedulerConfig(), newFakeSourceStore(), aiWork, scraping, ai, arbor.NewLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	// Batch size is 2: the first cycle recovers two, the second the rest.
	s.runCheckCycle()
	assert.Equal(t, 2, ai.Size())
	assert.Len(t, aiWork.requeuedIDs(), 2)

	s.runCheckCycle()
	assert.Equal(t, 3, ai.Size())
	assert.Len(t, aiWork.requeuedIDs(), 3)
	assert.Equal(t, int64(3), s.Stats().RequeuedStale)

	job := ai.GetNextByOperation(models.OpAnalyze)
	require.NotNil(t, job)
	assert.Equal(t, models.PriorityNormal, job.Priority)
}

// TestScheduler_ForceRunSource tests the immediate urgent dispatch path
func TestScheduler_ForceRunSource(t *testing.T) {
	source := &models.ScrapeSource{
		ID:        "src_1",
		Name:      "Plumbers",
		Scraper:   "business-directory",
		Query:     "plumbers",
		Frequency: models.RecurrenceDaily,
		Enabled:   true,
		NextRun:   futureTime(time.Hour),
	}
	scraping, ai := newTestQueues(t)
	s := New(testSchedulerConfig(), newFakeSourceStore(source), &fakeAIWorkStore{}, scraping, ai, arbor.NewLogger())

	jobID, err := s.ForceRunSource(context.Background(), "src_1")
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	job := scraping.GetNext()
	require.NotNil(t, job)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, models.PriorityUrgent, job.Priority)
	assert.Equal(t, "plumbers", job.Payload.Query)

	_, err = s.ForceRunSource(context.Background(), "src_missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// TestScheduler_DispatchesRegisteredJobs tests explicit scheduled entries
// routed by job type
func TestScheduler_DispatchesRegisteredJobs(t *testing.T) {
	scraping, ai := newTestQueues(t)
	s := New(testSchedulerConfig(), newFakeSourceStore(), &fakeAIWorkStore{}, scraping, ai, arbor.NewLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.NoError(t, s.RegisterJob(&models.ScheduledJob{
		ID:         "sched_scrape",
		Name:       "nightly scrape",
		Recurrence: models.RecurrenceDaily,
		JobType:    models.JobTypeScraping,
		Payload:    models.ScrapingJobPayload{Sources: []string{"business-directory"}, Query: "roofers"},
		Enabled:    true,
		NextRun:    pastTime(time.Minute),
	}))
	require.NoError(t, s.RegisterJob(&models.ScheduledJob{
		ID:         "sched_ai",
		Name:       "weekly rescore",
		Recurrence: models.RecurrenceWeekly,
		JobType:    models.JobTypeAIProcessing,
		Payload:    models.AIJobPayload{Operation: models.OpScore, LeadID: "lead_1"},
		Enabled:    true,
		NextRun:    pastTime(time.Minute),
	}))
	require.NoError(t, s.RegisterJob(&models.ScheduledJob{
		ID:         "sched_disabled",
		Name:       "disabled entry",
		Recurrence: models.RecurrenceDaily,
		JobType:    models.JobTypeScraping,
		Payload:    models.ScrapingJobPayload{Sources: []string{"business-directory"}},
		Enabled:    false,
		NextRun:    pastTime(time.Minute),
	}))

	s.runCheckCycle()

	assert.Equal(t, 1, scraping.Size())
	assert.Equal(t, 1, ai.Size())

	// Dispatch advances NextRun past now, so re-running is a no-op.
	s.runCheckCycle()
	assert.Equal(t, 1, scraping.Size())
	assert.Equal(t, 1, ai.Size())

	assert.True(t, s.RemoveJob("sched_disabled"))
	assert.False(t, s.RemoveJob("sched_disabled"))
}

// TestScheduler_RegisterJobValidation tests registration edge cases
func TestScheduler_RegisterJobValidation(t *testing.T) {
	scraping, ai := newTestQueues(t)
	s := New(testSchedulerConfig(), newFakeSourceStore(), &fakeAIWorkStore{}, scraping, ai, arbor.NewLogger())

	err := s.RegisterJob(&models.ScheduledJob{Name: "no id"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrValidation)

	job := &models.ScheduledJob{
		ID:         "sched_1",
		Recurrence: models.RecurrenceHourly,
		JobType:    models.JobTypeScraping,
		Enabled:    true,
	}
	require.NoError(t, s.RegisterJob(job))
	require.NotNil(t, job.NextRun)
	assert.True(t, job.NextRun.After(time.Now()))
}
