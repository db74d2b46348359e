package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/ternarybob/prospect/internal/queue"
)

// Scheduler promotes due recurring sources into scraping jobs, dispatches
// explicitly registered scheduled jobs, and recovers stale pending AI work.
// Dispatch means enqueue, never execution, so Stop is fast and non-blocking.
type Scheduler struct {
	config        common.SchedulerConfig
	sources       interfaces.SourceStorage
	aiWork        interfaces.AIWorkStorage
	scrapingQueue *queue.ScrapingQueue
	aiQueue       *queue.AIQueue
	logger        arbor.ILogger

	cron         *cron.Cron
	initialTimer *time.Timer

	mu            sync.Mutex
	jobs          map[string]*models.ScheduledJob
	storageBacked map[string]struct{} // Entries mirroring a persisted recurring source
	running       bool
	checking      bool

	dispatched atomic.Int64
	requeued   atomic.Int64
	lastCheck  atomic.Pointer[time.Time]
}

// New creates a scheduler
func New(config common.SchedulerConfig, sources interfaces.SourceStorage, aiWork interfaces.AIWorkStorage, scrapingQueue *queue.ScrapingQueue, aiQueue *queue.AIQueue, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		config:        config,
		sources:       sources,
		aiWork:        aiWork,
		scrapingQueue: scrapingQueue,
		aiQueue:       aiQueue,
		logger:        logger,
		cron:          cron.New(),
		jobs:          make(map[string]*models.ScheduledJob),
		storageBacked: make(map[string]struct{}),
	}
}

// Start loads enabled recurring sources into the in-memory map, starts the
// periodic check and hourly reload timers, and schedules one delayed
// initial check shortly after startup.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.loadSources(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load recurring sources at startup")
	}

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.config.CheckInterval), s.runCheckCycle); err != nil {
		return fmt.Errorf("failed to schedule check cycle: %w", err)
	}
	if _, err := s.cron.AddFunc("@hourly", s.runHourlyMaintenance); err != nil {
		return fmt.Errorf("failed to schedule hourly maintenance: %w", err)
	}
	s.cron.Start()

	s.initialTimer = time.AfterFunc(s.config.InitialDelay, s.runCheckCycle)

	s.logger.Info().
		Dur("check_interval", s.config.CheckInterval).
		Int("scheduled_jobs", s.jobCount()).
		Msg("Scheduler started")

	return nil
}

// Stop clears both timers. In-flight dispatches are not cancelled; they
// are enqueues and complete immediately.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	if s.initialTimer != nil {
		s.initialTimer.Stop()
	}
	s.cron.Stop()

	s.logger.Info().Msg("Scheduler stopped")
}

// IsRunning reports whether the scheduler is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RegisterJob adds an explicit scheduled job (not backed by a persisted
// recurring source). Its NextRun is computed immediately when unset.
func (s *Scheduler) RegisterJob(job *models.ScheduledJob) error {
	if job.ID == "" {
		return models.NewJobError(models.ErrValidation, "", "scheduled job requires an id")
	}
	if job.NextRun == nil {
		next := CalculateNextRun(job.Recurrence, time.Now())
		job.NextRun = &next
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.logger.Info().
		Str("job_id", job.ID).
		Str("name", job.Name).
		Str("recurrence", string(job.Recurrence)).
		Msg("Scheduled job registered")

	return nil
}

// RemoveJob deletes a scheduled job by explicit removal
func (s *Scheduler) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	delete(s.storageBacked, id)
	return true
}

// ForceRunSource bypasses scheduling: the source is enqueued immediately
// at URGENT priority, independent of its NextRun.
func (s *Scheduler) ForceRunSource(ctx context.Context, sourceID string) (string, error) {
	source, err := s.sources.GetSource(ctx, sourceID)
	if err != nil {
		return "", err
	}
	if source == nil {
		return "", models.NewJobError(models.ErrNotFound, "", "source "+sourceID+" not found")
	}

	jobID, err := s.scrapingQueue.Add(payloadForSource(source), models.PriorityUrgent)
	if err != nil {
		return "", err
	}

	s.dispatched.Add(1)
	s.logger.Info().
		Str("source_id", sourceID).
		Str("job_id", jobID).
		Msg("Source force-run dispatched")

	return jobID, nil
}

// Stats returns a snapshot of the scheduler's state
func (s *Scheduler) Stats() models.SchedulerStats {
	return models.SchedulerStats{
		Running:         s.IsRunning(),
		ScheduledJobs:   s.jobCount(),
		DispatchedTotal: s.dispatched.Load(),
		RequeuedStale:   s.requeued.Load(),
		LastCheck:       s.lastCheck.Load(),
	}
}

func (s *Scheduler) jobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// loadSources mirrors enabled recurring sources into the in-memory map
func (s *Scheduler) loadSources(ctx context.Context) error {
	sources, err := s.sources.ListEnabledSources(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, source := range sources {
		entry := &models.ScheduledJob{
			ID:         source.ID,
			Name:       source.Name,
			Recurrence: source.Frequency,
			JobType:    models.JobTypeScraping,
			Payload:    payloadForSource(source),
			Enabled:    source.Enabled,
			LastRun:    source.LastRun,
			NextRun:    source.NextRun,
		}
		s.jobs[source.ID] = entry
		s.storageBacked[source.ID] = struct{}{}
	}

	s.logger.Info().
		Int("count", len(sources)).
		Msg("Recurring sources loaded")

	return nil
}

// runCheckCycle is one scheduler pass: due-source promotion, in-memory
// dispatch, and stale AI-work recovery. A failure in one source's dispatch
// is caught and logged; it never aborts the rest of the cycle.
func (s *Scheduler) runCheckCycle() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in scheduler check cycle")
		}
	}()

	s.mu.Lock()
	if !s.running || s.checking {
		s.mu.Unlock()
		return
	}
	s.checking = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.checking = false
		s.mu.Unlock()
	}()

	now := time.Now()
	s.lastCheck.Store(&now)
	ctx := context.Background()

	s.promoteDueSources(ctx, now)
	s.dispatchScheduledJobs(ctx, now)
	s.recoverStaleAIWork(ctx)
}

// promoteDueSources enqueues a HIGH-priority scraping job for every
// persisted source whose NextRun is null or past-due, then writes back a
// freshly computed NextRun.
func (s *Scheduler) promoteDueSources(ctx context.Context, now time.Time) {
	due, err := s.sources.FindDueSources(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Due-source query failed")
		return
	}

	for _, source := range due {
		jobID, err := s.scrapingQueue.Add(payloadForSource(source), models.PriorityHigh)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("source_id", source.ID).
				Msg("Due-source dispatch failed")
			continue
		}
		s.dispatched.Add(1)

		next := CalculateNextRun(source.Frequency, now)
		if err := s.sources.UpdateNextRun(ctx, source.ID, now, next); err != nil {
			s.logger.Warn().
				Err(err).
				Str("source_id", source.ID).
				Msg("NextRun writeback failed")
		}

		s.mu.Lock()
		if entry, ok := s.jobs[source.ID]; ok {
			entry.LastRun = &now
			entry.NextRun = &next
		}
		s.mu.Unlock()

		s.logger.Info().
			Str("source_id", source.ID).
			Str("job_id", jobID).
			Str("next_run", next.Format(time.RFC3339)).
			Msg("Due source promoted to scraping job")
	}
}

// dispatchScheduledJobs handles explicitly registered entries whose
// NextRun has passed. Storage-backed entries are covered by
// promoteDueSources and skipped here.
func (s *Scheduler) dispatchScheduledJobs(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var dueEntries []*models.ScheduledJob
	for id, entry := range s.jobs {
		if _, backed := s.storageBacked[id]; backed {
			continue
		}
		if !entry.Enabled || entry.NextRun == nil || entry.NextRun.After(now) {
			continue
		}
		dueEntries = append(dueEntries, entry)
	}
	s.mu.Unlock()

	for _, entry := range dueEntries {
		if err := s.dispatchEntry(entry); err != nil {
			s.logger.Error().
				Err(err).
				Str("job_id", entry.ID).
				Msg("Scheduled job dispatch failed")
			continue
		}
		s.dispatched.Add(1)

		next := CalculateNextRun(entry.Recurrence, now)
		s.mu.Lock()
		entry.LastRun = &now
		entry.NextRun = &next
		s.mu.Unlock()
	}
}

// dispatchEntry routes a scheduled entry to the matching queue
func (s *Scheduler) dispatchEntry(entry *models.ScheduledJob) error {
	switch entry.JobType {
	case models.JobTypeScraping:
		payload, ok := entry.Payload.(models.ScrapingJobPayload)
		if !ok {
			return models.NewJobError(models.ErrValidation, entry.ID, "scheduled job payload is not a scraping payload")
		}
		_, err := s.scrapingQueue.Add(payload, models.PriorityHigh)
		return err

	case models.JobTypeAIProcessing:
		payload, ok := entry.Payload.(models.AIJobPayload)
		if !ok {
			return models.NewJobError(models.ErrValidation, entry.ID, "scheduled job payload is not an AI payload")
		}
		_, err := s.aiQueue.Add(payload, models.PriorityHigh)
		return err

	default:
		return models.NewJobError(models.ErrUnsupportedOperation, entry.ID,
			fmt.Sprintf("unknown scheduled job type %q", entry.JobType))
	}
}

// recoverStaleAIWork requeues pending AI work stuck longer than the stale
// age, up to the per-cycle batch size, marking each entry so it is not
// picked up again next cycle.
func (s *Scheduler) recoverStaleAIWork(ctx context.Context) {
	stale, err := s.aiWork.FindStalePending(ctx, s.config.StaleAge, s.config.StaleRequeueBatch)
	if err != nil {
		s.logger.Error().Err(err).Msg("Stale AI-work scan failed")
		return
	}
	if len(stale) == 0 {
		return
	}

	s.logger.Warn().
		Int("count", len(stale)).
		Dur("stale_age", s.config.StaleAge).
		Msg("Recovering stale pending AI work")

	for _, work := range stale {
		payload := models.AIJobPayload{
			Operation: work.Operation,
			LeadID:    work.LeadID,
		}
		if _, err := s.aiQueue.Add(payload, models.PriorityNormal); err != nil {
			s.logger.Error().
				Err(err).
				Str("work_id", work.ID).
				Msg("Stale work requeue failed")
			continue
		}
		s.requeued.Add(1)

		if err := s.aiWork.MarkRequeued(ctx, work.ID); err != nil {
			s.logger.Warn().
				Err(err).
				Str("work_id", work.ID).
				Msg("Requeued marker update failed")
		}
	}
}

// runHourlyMaintenance reloads recurring sources so externally created or
// re-enabled sources appear without a restart.
func (s *Scheduler) runHourlyMaintenance() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in scheduler maintenance")
		}
	}()

	if err := s.loadSources(context.Background()); err != nil {
		s.logger.Warn().Err(err).Msg("Hourly source reload failed")
	}
}

// payloadForSource builds the scraping payload for a recurring source
func payloadForSource(source *models.ScrapeSource) models.ScrapingJobPayload {
	return models.ScrapingJobPayload{
		SourceID: source.ID,
		Sources:  []string{source.Scraper},
		Query:    source.Query,
		Filters:  source.Filters,
		Config:   source.Config,
	}
}
