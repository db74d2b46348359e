package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/ternarybob/prospect/internal/queue"
	"github.com/ternarybob/prospect/internal/scheduler"
	"github.com/ternarybob/prospect/internal/scraper"
	"github.com/ternarybob/prospect/internal/workers"
)

const defaultBulkBatchSize = 50

// JobManager is the single entry point for job submission. It owns both
// queues, both workers, the scheduler, and the event bridge that chains
// completed scrape jobs into bulk AI analysis.
type JobManager struct {
	config common.Config
	logger arbor.ILogger

	events  interfaces.EventService
	storage interfaces.StorageManager

	scrapingQueue *queue.ScrapingQueue
	aiQueue       *queue.AIQueue

	scrapingWorker *workers.ScrapingWorker
	aiWorker       *workers.AIProcessingWorker

	scrapers  *scraper.Manager
	scheduler *scheduler.Scheduler

	mu          sync.Mutex
	running     bool
	bridgeSub   interfaces.SubscriptionID
	metricsStop chan struct{}
	metricsWG   sync.WaitGroup
	startedAt   time.Time
}

// New wires a JobManager from its dependencies. Nothing starts until Start.
func New(config common.Config, storage interfaces.StorageManager, events interfaces.EventService, scrapers *scraper.Manager, provider interfaces.AIProvider, logger arbor.ILogger) *JobManager {
	scrapingQueue := queue.NewScrapingQueue(config.Queues.Scraping, events, storage.JobStatus(), logger)
	aiQueue := queue.NewAIQueue(config.Queues.AI, events, storage.JobStatus(), logger)

	m := &JobManager{
		config:        config,
		logger:        logger,
		events:        events,
		storage:       storage,
		scrapingQueue: scrapingQueue,
		aiQueue:       aiQueue,
		scrapers:      scrapers,
	}

	m.scrapingWorker = workers.NewScrapingWorker(scrapingQueue, scrapers, storage.Leads(), storage.AIWork(), config.Workers.Scraping, logger)
	m.aiWorker = workers.NewAIProcessingWorker(aiQueue, provider, storage.Leads(), storage.AIWork(), config.Workers.AI, logger)
	m.scheduler = scheduler.New(config.Scheduler, storage.Sources(), storage.AIWork(), scrapingQueue, aiQueue, logger)

	return m
}

// Start brings up workers, the scheduler, the completion bridge, and the
// periodic metrics log.
func (m *JobManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("job manager already running")
	}
	m.running = true
	m.startedAt = time.Now()
	m.mu.Unlock()

	sub, err := m.events.Subscribe(interfaces.EventJobCompleted, m.onScrapeCompleted)
	if err != nil {
		return fmt.Errorf("failed to subscribe completion bridge: %w", err)
	}
	m.bridgeSub = sub

	m.scrapingWorker.Start()
	m.aiWorker.Start()

	if err := m.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if m.config.Manager.MetricsInterval > 0 {
		m.metricsStop = make(chan struct{})
		m.metricsWG.Add(1)
		go m.metricsLoop()
	}

	m.logger.Info().
		Int("scraping_concurrency", m.config.Workers.Scraping.Concurrency).
		Int("ai_concurrency", m.config.Workers.AI.Concurrency).
		Msg("Job manager started")

	return nil
}

// Stop shuts components down in dependency order: no new dispatch first
// (scheduler), then workers, then a bounded drain of both queues.
func (m *JobManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	if m.metricsStop != nil {
		close(m.metricsStop)
		m.metricsWG.Wait()
	}

	m.scheduler.Stop()
	if err := m.events.Unsubscribe(interfaces.EventJobCompleted, m.bridgeSub); err != nil {
		m.logger.Warn().Err(err).Msg("Completion bridge unsubscribe failed")
	}

	m.scrapingWorker.Stop()
	m.aiWorker.Stop()

	m.scrapingQueue.Shutdown(ctx)
	m.aiQueue.Shutdown(ctx)

	m.scrapers.Shutdown()

	m.logger.Info().Msg("Job manager stopped")
	return nil
}

// IsRunning reports whether Start has completed and Stop has not
func (m *JobManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *JobManager) requireRunning() error {
	if !m.IsRunning() {
		return models.ErrNotStarted
	}
	return nil
}

// AddScrapingJob enqueues one scraping job
func (m *JobManager) AddScrapingJob(payload models.ScrapingJobPayload, priority models.Priority) (string, error) {
	if err := m.requireRunning(); err != nil {
		return "", err
	}
	if len(payload.Sources) == 0 {
		return "", models.NewJobError(models.ErrValidation, "", "scraping job requires at least one source")
	}
	return m.scrapingQueue.Add(payload, priority)
}

// AddBulkScrapingJobs enqueues many scraping jobs best-effort and returns
// the ids of those accepted.
func (m *JobManager) AddBulkScrapingJobs(payloads []models.ScrapingJobPayload, priority models.Priority) ([]string, error) {
	if err := m.requireRunning(); err != nil {
		return nil, err
	}
	items := make([]queue.BulkItem[models.ScrapingJobPayload], 0, len(payloads))
	for _, p := range payloads {
		items = append(items, queue.BulkItem[models.ScrapingJobPayload]{Payload: p, Priority: priority})
	}
	return m.scrapingQueue.AddBulk(items), nil
}

// AddAIProcessingJob enqueues one AI enrichment job
func (m *JobManager) AddAIProcessingJob(payload models.AIJobPayload, priority models.Priority) (string, error) {
	if err := m.requireRunning(); err != nil {
		return "", err
	}
	if !models.ValidOperation(payload.Operation) {
		return "", models.NewJobError(models.ErrUnsupportedOperation, "",
			fmt.Sprintf("unsupported AI operation %q", payload.Operation))
	}
	if payload.LeadID == "" {
		return "", models.NewJobError(models.ErrValidation, "", "AI job requires a lead id")
	}
	return m.aiQueue.Add(payload, priority)
}

// AddBulkAIAnalysis enqueues an ANALYZE job per lead id at NORMAL priority
func (m *JobManager) AddBulkAIAnalysis(leadIDs []string) ([]string, error) {
	if err := m.requireRunning(); err != nil {
		return nil, err
	}
	items := make([]queue.BulkItem[models.AIJobPayload], 0, len(leadIDs))
	for _, id := range leadIDs {
		items = append(items, queue.BulkItem[models.AIJobPayload]{
			Payload:  models.AIJobPayload{Operation: models.OpAnalyze, LeadID: id},
			Priority: models.PriorityNormal,
		})
	}
	return m.aiQueue.AddBulk(items), nil
}

// AddLeadEnrichment enqueues an ENRICH job for one lead at HIGH priority
func (m *JobManager) AddLeadEnrichment(leadID string) (string, error) {
	return m.AddAIProcessingJob(models.AIJobPayload{
		Operation: models.OpEnrich,
		LeadID:    leadID,
	}, models.PriorityHigh)
}

// BulkProgress reports incremental progress of a ProcessBulkLeads run
type BulkProgress struct {
	SessionID string
	Submitted int
	Total     int
}

// BulkCallbacks carries the optional progress and error hooks for
// ProcessBulkLeads. Either field may be nil.
type BulkCallbacks struct {
	OnProgress func(BulkProgress)
	OnError    func(leadID string, operation models.AIOperation, err error)
}

// ProcessBulkLeads submits leadIDs x operations in batches, pausing between
// batches to avoid flooding the AI queue. It returns the accepted job ids
// and a session id for correlation; it does not wait for execution.
func (m *JobManager) ProcessBulkLeads(leadIDs []string, operations []models.AIOperation, callbacks BulkCallbacks) ([]string, string, error) {
	if err := m.requireRunning(); err != nil {
		return nil, "", err
	}
	if len(leadIDs) == 0 {
		return nil, "", models.NewJobError(models.ErrValidation, "", "bulk processing requires at least one lead id")
	}
	for _, op := range operations {
		if !models.ValidOperation(op) {
			return nil, "", models.NewJobError(models.ErrUnsupportedOperation, "",
				fmt.Sprintf("unsupported AI operation %q", op))
		}
	}

	batchSize := m.config.Manager.BulkBatchSize
	if batchSize <= 0 {
		batchSize = defaultBulkBatchSize
	}
	sessionID := common.NewSessionID()
	total := len(leadIDs) * len(operations)

	var jobIDs []string
	submitted := 0

	for start := 0; start < len(leadIDs); start += batchSize {
		end := start + batchSize
		if end > len(leadIDs) {
			end = len(leadIDs)
		}
		batch := leadIDs[start:end]

		for _, op := range operations {
			items := make([]queue.BulkItem[models.AIJobPayload], 0, len(batch))
			for _, leadID := range batch {
				items = append(items, queue.BulkItem[models.AIJobPayload]{
					Payload: models.AIJobPayload{
						Operation: op,
						LeadID:    leadID,
						Options:   map[string]string{"session_id": sessionID},
					},
					Priority: models.PriorityNormal,
				})
			}

			accepted := m.aiQueue.AddBulk(items)
			jobIDs = append(jobIDs, accepted...)
			submitted += len(batch)

			if len(accepted) < len(batch) && callbacks.OnError != nil {
				// AddBulk is best-effort; report the shortfall per lead.
				acceptedCount := len(accepted)
				for i := acceptedCount; i < len(batch); i++ {
					callbacks.OnError(batch[i], op, models.ErrCapacityExceeded)
				}
			}

			if callbacks.OnProgress != nil {
				callbacks.OnProgress(BulkProgress{SessionID: sessionID, Submitted: submitted, Total: total})
			}
		}

		if end < len(leadIDs) && m.config.Manager.BulkBatchDelay > 0 {
			time.Sleep(m.config.Manager.BulkBatchDelay)
		}
	}

	m.logger.Info().
		Str("session_id", sessionID).
		Int("leads", len(leadIDs)).
		Int("operations", len(operations)).
		Int("jobs", len(jobIDs)).
		Msg("Bulk lead processing submitted")

	return jobIDs, sessionID, nil
}

// ScheduleSourceRun triggers an immediate run of a recurring source,
// bypassing its schedule.
func (m *JobManager) ScheduleSourceRun(ctx context.Context, sourceID string) (string, error) {
	if err := m.requireRunning(); err != nil {
		return "", err
	}
	return m.scheduler.ForceRunSource(ctx, sourceID)
}

// CancelJob cancels a pending job in either queue. Active jobs are not
// cancellable; false means nothing changed.
func (m *JobManager) CancelJob(jobID string) bool {
	if m.scrapingQueue.Cancel(jobID) {
		return true
	}
	return m.aiQueue.Cancel(jobID)
}

// GetJobStatus looks a job up in either queue
func (m *JobManager) GetJobStatus(jobID string) (*models.JobStatusInfo, bool) {
	if info, ok := m.scrapingQueue.Status(jobID); ok {
		return info, true
	}
	return m.aiQueue.Status(jobID)
}

// GetMetrics collects a point-in-time snapshot of all components
func (m *JobManager) GetMetrics() models.ManagerMetrics {
	return models.ManagerMetrics{
		ScrapingQueue:  m.scrapingQueue.Metrics(),
		AIQueue:        m.aiQueue.Metrics(),
		ScrapingWorker: m.scrapingWorker.Metrics(),
		AIWorker:       m.aiWorker.Metrics(),
		Scheduler:      m.scheduler.Stats(),
		CollectedAt:    time.Now(),
	}
}

// GetDetailedStats returns the metrics snapshot plus uptime and scraper
// health for diagnostic surfaces.
func (m *JobManager) GetDetailedStats() map[string]any {
	m.mu.Lock()
	startedAt := m.startedAt
	m.mu.Unlock()

	return map[string]any{
		"metrics":        m.GetMetrics(),
		"uptime":         time.Since(startedAt).String(),
		"scraper_health": m.scrapers.GetHealthCheck(),
	}
}

// HealthCheck classifies the manager's state. A queue at capacity or a
// single stopped component degrades health; more than one stopped
// component, or a manager that never started, is unhealthy.
func (m *JobManager) HealthCheck() models.HealthReport {
	var components []models.ComponentHealth

	components = append(components, queueHealth("scraping_queue", m.scrapingQueue.IsFull()))
	components = append(components, queueHealth("ai_queue", m.aiQueue.IsFull()))
	components = append(components, workerHealth("scraping_worker", m.scrapingWorker.Metrics().Running))
	components = append(components, workerHealth("ai_worker", m.aiWorker.Metrics().Running))
	components = append(components, workerHealth("scheduler", m.scheduler.IsRunning()))

	overall := models.HealthHealthy
	unhealthy := 0
	for _, c := range components {
		switch c.State {
		case models.HealthUnhealthy:
			unhealthy++
		case models.HealthDegraded:
			if overall == models.HealthHealthy {
				overall = models.HealthDegraded
			}
		}
	}
	if unhealthy > 0 {
		overall = models.HealthDegraded
	}
	if unhealthy > 1 || !m.IsRunning() {
		overall = models.HealthUnhealthy
	}

	return models.HealthReport{
		State:      overall,
		Components: components,
		CheckedAt:  time.Now(),
	}
}

// Cleanup prunes terminal job history older than maxAge from both queues
func (m *JobManager) Cleanup(maxAge time.Duration) int {
	return m.scrapingQueue.Cleanup(maxAge) + m.aiQueue.Cleanup(maxAge)
}

// On registers an event listener and returns its subscription id
func (m *JobManager) On(eventType interfaces.EventType, handler interfaces.EventHandler) (interfaces.SubscriptionID, error) {
	return m.events.Subscribe(eventType, handler)
}

// Off removes a previously registered listener
func (m *JobManager) Off(eventType interfaces.EventType, id interfaces.SubscriptionID) error {
	return m.events.Unsubscribe(eventType, id)
}

// Scheduler exposes the scheduler for source registration surfaces
func (m *JobManager) Scheduler() *scheduler.Scheduler {
	return m.scheduler
}

// onScrapeCompleted chains a completed scraping job into bulk AI analysis
// of the leads it produced. The chain is failure-isolated: a dispatch
// error is logged and never affects the completed job.
func (m *JobManager) onScrapeCompleted(ctx context.Context, event interfaces.Event) error {
	if event.Queue != string(models.JobTypeScraping) {
		return nil
	}
	outcome, ok := event.Data.(*workers.ScrapeJobOutcome)
	if !ok || len(outcome.LeadIDs) == 0 {
		return nil
	}

	leadIDs := make([]string, len(outcome.LeadIDs))
	copy(leadIDs, outcome.LeadIDs)
	delay := m.config.Manager.AnalysisChainDelay

	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		if !m.IsRunning() {
			return
		}
		ids, err := m.AddBulkAIAnalysis(leadIDs)
		if err != nil {
			m.logger.Error().
				Err(err).
				Str("job_id", event.JobID).
				Msg("Analysis chain dispatch failed")
			return
		}
		m.logger.Info().
			Str("job_id", event.JobID).
			Int("leads", len(leadIDs)).
			Int("queued", len(ids)).
			Msg("Scrape completion chained into AI analysis")
	}()

	return nil
}

func (m *JobManager) metricsLoop() {
	defer m.metricsWG.Done()
	ticker := time.NewTicker(m.config.Manager.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.metricsStop:
			return
		case <-ticker.C:
			metrics := m.GetMetrics()
			m.logger.Info().
				Int("scraping_pending", metrics.ScrapingQueue.PendingCount).
				Int("scraping_active", metrics.ScrapingQueue.ActiveCount).
				Int("ai_pending", metrics.AIQueue.PendingCount).
				Int("ai_active", metrics.AIQueue.ActiveCount).
				Int64("dispatched", metrics.Scheduler.DispatchedTotal).
				Msg("Queue metrics")
		}
	}
}

func queueHealth(name string, full bool) models.ComponentHealth {
	if full {
		return models.ComponentHealth{Name: name, State: models.HealthDegraded, Detail: "queue at capacity"}
	}
	return models.ComponentHealth{Name: name, State: models.HealthHealthy}
}

func workerHealth(name string, running bool) models.ComponentHealth {
	if !running {
		return models.ComponentHealth{Name: name, State: models.HealthUnhealthy, Detail: "not running"}
	}
	return models.ComponentHealth{Name: name, State: models.HealthHealthy}
}
