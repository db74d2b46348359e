// -----------------------------------------------------------------------
// Scraping worker - drains the scraping queue under bounded concurrency
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/ternarybob/prospect/internal/queue"
	"github.com/ternarybob/prospect/internal/scraper"
)

// ScrapeJobOutcome is the result data attached to a completed scraping
// job. LeadIDs feeds the manager's automatic AI-analysis chaining.
type ScrapeJobOutcome struct {
	LeadIDs      []string `json:"lead_ids"`
	TotalRecords int      `json:"total_records"`
	Persisted    int      `json:"persisted"`
	Errors       []string `json:"errors,omitempty"`
}

// ScrapingWorker drains the scraping queue: it claims jobs, invokes the
// scraper manager, persists produced leads, and retries transient failures
// in place. A job is claimed by exactly one worker instance for its entire
// lifetime including retries.
type ScrapingWorker struct {
	queue    *queue.ScrapingQueue
	scrapers *scraper.Manager
	leads    interfaces.LeadStorage
	aiWork   interfaces.AIWorkStorage
	config   common.WorkerConfig
	logger   arbor.ILogger

	running   atomic.Bool
	active    atomic.Int32
	processed atomic.Int64
	retried   atomic.Int64
	timeouts  atomic.Int64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScrapingWorker creates a scraping worker
func NewScrapingWorker(q *queue.ScrapingQueue, scrapers *scraper.Manager, leads interfaces.LeadStorage, aiWork interfaces.AIWorkStorage, config common.WorkerConfig, logger arbor.ILogger) *ScrapingWorker {
	return &ScrapingWorker{
		queue:    q,
		scrapers: scrapers,
		leads:    leads,
		aiWork:   aiWork,
		config:   config,
		logger:   logger,
	}
}

// Start enters the cooperative polling loop in a background goroutine.
// The loop never blocks on a single job: dispatch hands the job to its own
// goroutine and immediately re-polls, bounded by the concurrency counter.
func (w *ScrapingWorker) Start() {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Warn().Msg("Scraping worker already running")
		return
	}

	w.stopCh = make(chan struct{})
	w.wg.Add(1)
	go w.loop()

	w.logger.Info().
		Int("concurrency", w.config.Concurrency).
		Dur("job_timeout", w.config.JobTimeout).
		Msg("Scraping worker started")
}

// Stop flips the running flag and waits for the poll loop only; the loop
// exits after its current sleep/check. In-flight jobs are not touched and
// finish (or abandon at their timeout) on their own.
func (w *ScrapingWorker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info().Msg("Scraping worker stopped")
}

// CanAcceptMoreJobs reports spare capacity; used by health checks
func (w *ScrapingWorker) CanAcceptMoreJobs() bool {
	return w.running.Load() && int(w.active.Load()) < w.config.Concurrency
}

// Metrics returns a snapshot of the worker's state
func (w *ScrapingWorker) Metrics() models.WorkerMetrics {
	return models.WorkerMetrics{
		Running:       w.running.Load(),
		ActiveJobs:    int(w.active.Load()),
		Concurrency:   w.config.Concurrency,
		ProcessedJobs: w.processed.Load(),
		RetriedJobs:   w.retried.Load(),
		TimeoutJobs:   w.timeouts.Load(),
	}
}

func (w *ScrapingWorker) loop() {
	defer w.wg.Done()

	for w.running.Load() {
		if int(w.active.Load()) >= w.config.Concurrency {
			if !w.sleep(w.config.BusyInterval) {
				return
			}
			continue
		}

		job := w.queue.GetNext()
		if job == nil {
			if !w.sleep(w.config.PollInterval) {
				return
			}
			continue
		}

		if err := w.queue.StartProcessing(job.ID); err != nil {
			// Another path claimed or removed it between GetNext and here
			continue
		}

		w.active.Add(1)
		go func(job *models.Job[models.ScrapingJobPayload]) {
			defer w.active.Add(-1)
			w.runJob(job)
		}(job)
	}
}

// sleep waits for the interval or a stop signal; returns false on stop
func (w *ScrapingWorker) sleep(interval time.Duration) bool {
	select {
	case <-w.stopCh:
		return false
	case <-time.After(interval):
		return true
	}
}

// runJob executes one job with an explicit retry loop: retryable failures
// are retried in place (same worker slot) with linear backoff.
func (w *ScrapingWorker) runJob(job *models.Job[models.ScrapingJobPayload]) {
	jobLogger := w.logger.WithCorrelationId(job.ID)
	started := time.Now()
	attempts := 0

	for {
		data, err := runWithTimeout(context.Background(), job.ID, w.config.JobTimeout, func(ctx context.Context) (any, error) {
			return w.execute(ctx, job)
		})

		if err == nil {
			w.processed.Add(1)
			result := &models.JobResult{
				Success:     true,
				Data:        data,
				Duration:    time.Since(started),
				ProcessedAt: time.Now(),
			}
			if cErr := w.queue.Complete(job.ID, result); cErr != nil {
				jobLogger.Warn().Err(cErr).Msg("Complete transition failed")
			}
			return
		}

		if isTimeout(err) {
			w.timeouts.Add(1)
		}

		retryable := IsRetryable(err)
		if retryable && attempts < w.config.RetryAttempts {
			attempts++
			w.retried.Add(1)
			delay := retryBackoff(w.config.RetryDelay, attempts)
			jobLogger.Warn().
				Err(err).
				Int("attempt", attempts).
				Dur("backoff", delay).
				Msg("Scrape attempt failed, retrying in place")
			time.Sleep(delay)
			continue
		}

		w.processed.Add(1)
		if fErr := w.queue.Fail(job.ID, err, retryable); fErr != nil {
			jobLogger.Warn().Err(fErr).Msg("Fail transition failed")
		}
		return
	}
}

// execute performs the unit of work: dispatch to the scraper manager,
// then persist each produced record as a lead. A per-record persistence
// failure is captured into the outcome's errors, not escalated: partial
// success at the record level does not fail the job.
func (w *ScrapingWorker) execute(ctx context.Context, job *models.Job[models.ScrapingJobPayload]) (*ScrapeJobOutcome, error) {
	payload := job.Payload

	var results []*models.ScrapeResult
	if len(payload.Sources) == 1 {
		result, err := w.scrapers.ScrapeBySource(ctx, payload.Sources[0], payload.Query, payload.Filters, payload.Config)
		if err != nil {
			return nil, err
		}
		results = []*models.ScrapeResult{result}
	} else {
		results = w.scrapers.ScrapeMultipleSources(ctx, payload.Sources, payload.Query, payload.Filters, payload.Config, payload.Strategy)
	}

	outcome := &ScrapeJobOutcome{}
	totalRecords := 0
	for _, result := range results {
		totalRecords += len(result.Data)
		outcome.Errors = append(outcome.Errors, result.Errors...)
	}
	outcome.TotalRecords = totalRecords

	processed := 0
	for _, result := range results {
		for _, record := range result.Data {
			lead := leadFromRecord(record)
			if err := w.leads.CreateLead(ctx, lead); err != nil {
				outcome.Errors = append(outcome.Errors, "persist "+record.Name+": "+err.Error())
			} else {
				outcome.LeadIDs = append(outcome.LeadIDs, lead.ID)
				outcome.Persisted++
				w.recordPendingAnalysis(ctx, lead.ID)
			}

			processed++
			if totalRecords > 0 {
				w.queue.UpdateProgress(job.ID, processed*100/totalRecords, "persisting leads")
			}
		}
	}

	return outcome, nil
}

// recordPendingAnalysis marks a lead for AI analysis so the scheduler can
// recover it if the downstream dispatch never happens. Best-effort.
func (w *ScrapingWorker) recordPendingAnalysis(ctx context.Context, leadID string) {
	if w.aiWork == nil {
		return
	}
	work := &models.PendingAIWork{
		ID:        common.NewJobID(),
		LeadID:    leadID,
		Operation: models.OpAnalyze,
		CreatedAt: time.Now(),
	}
	if err := w.aiWork.CreatePendingWork(ctx, work); err != nil {
		w.logger.Warn().
			Err(err).
			Str("lead_id", leadID).
			Msg("Pending analysis marker write failed")
	}
}
