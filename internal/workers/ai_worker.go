// -----------------------------------------------------------------------
// AI-processing worker - drains the AI queue under bounded concurrency
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/ternarybob/prospect/internal/queue"
)

// AIProcessingWorker drains the AI-processing queue, dispatching each job
// to the provider method matching its operation and writing the structured
// result back onto the lead.
type AIProcessingWorker struct {
	queue    *queue.AIQueue
	provider interfaces.AIProvider
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

// NewAIProcessingWorker creates an AI-processing worker. aiWork may be nil
// when no pending-work marker store is wired.
func NewAIProcessingWorker(q *queue.AIQueue, provider interfaces.AIProvider, leads interfaces.LeadStorage, aiWork interfaces.AIWorkStorage, config common.WorkerConfig, logger arbor.ILogger) *AIProcessingWorker {
	return &AIProcessingWorker{
		queue:    q,
		provider: provider,
		leads:    leads,
		aiWork:   aiWork,
		config:   config,
		logger:   logger,
	}
}

// Start enters the cooperative polling loop in a background goroutine
func (w *AIProcessingWorker) Start() {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Warn().Msg("AI worker already running")
		return
	}

	w.stopCh = make(chan struct{})
	w.wg.Add(1)
	go w.loop()

	w.logger.Info().
		Int("concurrency", w.config.Concurrency).
		Str("provider", w.provider.Name()).
		Msg("AI-processing worker started")
}

// Stop flips the running flag and waits for the poll loop only; in-flight
// jobs are not touched and finish (or abandon at their timeout) on their own.
func (w *AIProcessingWorker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info().Msg("AI-processing worker stopped")
}

// CanAcceptMoreJobs reports spare capacity; used by health checks
func (w *AIProcessingWorker) CanAcceptMoreJobs() bool {
	return w.running.Load() && int(w.active.Load()) < w.config.Concurrency
}

// Metrics returns a snapshot of the worker's state
func (w *AIProcessingWorker) Metrics() models.WorkerMetrics {
	return models.WorkerMetrics{
		Running:       w.running.Load(),
		ActiveJobs:    int(w.active.Load()),
		Concurrency:   w.config.Concurrency,
		ProcessedJobs: w.processed.Load(),
		RetriedJobs:   w.retried.Load(),
		TimeoutJobs:   w.timeouts.Load(),
	}
}

func (w *AIProcessingWorker) loop() {
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
			continue
		}

		w.active.Add(1)
		go func(job *models.Job[models.AIJobPayload]) {
			defer w.active.Add(-1)
			w.runJob(job)
		}(job)
	}
}

func (w *AIProcessingWorker) sleep(interval time.Duration) bool {
	select {
	case <-w.stopCh:
		return false
	case <-time.After(interval):
		return true
	}
}

// runJob executes one job with the explicit in-place retry loop
func (w *AIProcessingWorker) runJob(job *models.Job[models.AIJobPayload]) {
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
			w.clearPendingWork(job, jobLogger)
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
				Str("operation", string(job.Payload.Operation)).
				Int("attempt", attempts).
				Dur("backoff", delay).
				Msg("AI operation failed, retrying in place")
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

// clearPendingWork removes the lead's pending-work marker so stale-work
// recovery never requeues an enrichment that already completed. Best-effort.
func (w *AIProcessingWorker) clearPendingWork(job *models.Job[models.AIJobPayload], jobLogger arbor.ILogger) {
	if w.aiWork == nil {
		return
	}
	err := w.aiWork.DeletePendingWorkForLead(context.Background(), job.Payload.LeadID, job.Payload.Operation)
	if err != nil {
		jobLogger.Warn().
			Err(err).
			Str("lead_id", job.Payload.LeadID).
			Str("operation", string(job.Payload.Operation)).
			Msg("Pending work marker cleanup failed")
	}
}

// execute reads the target lead, dispatches to the provider method for the
// job's operation, and writes the operation-specific fields back.
func (w *AIProcessingWorker) execute(ctx context.Context, job *models.Job[models.AIJobPayload]) (any, error) {
	payload := job.Payload

	if !models.ValidOperation(payload.Operation) {
		return nil, models.NewJobError(models.ErrUnsupportedOperation, job.ID,
			fmt.Sprintf("operation %q is not supported", payload.Operation))
	}

	lead, err := w.leads.GetLead(ctx, payload.LeadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, models.NewJobError(models.ErrNotFound, job.ID, "lead "+payload.LeadID+" not found")
	}

	w.queue.UpdateProgress(job.ID, 25, "calling AI provider")

	var data any
	var mutate func(*models.Lead)

	switch payload.Operation {
	case models.OpAnalyze:
		analysis, aErr := w.provider.AnalyzeLead(ctx, lead)
		if aErr != nil {
			return nil, aErr
		}
		data = analysis
		mutate = func(l *models.Lead) { l.Analysis = analysis }

	case models.OpScore:
		score, sErr := w.provider.ScoreConversionProbability(ctx, lead)
		if sErr != nil {
			return nil, sErr
		}
		data = score
		mutate = func(l *models.Lead) { l.ConversionScore = score }

	case models.OpGeneratePitch:
		pitch, pErr := w.provider.GeneratePitch(ctx, lead)
		if pErr != nil {
			return nil, pErr
		}
		data = pitch
		mutate = func(l *models.Lead) { l.Pitch = pitch }

	case models.OpEnrich:
		insights, iErr := w.provider.GetCompanyInsights(ctx, lead)
		if iErr != nil {
			return nil, iErr
		}
		data = insights
		mutate = func(l *models.Lead) { l.Insights = insights }

	case models.OpClassify:
		classification, cErr := w.provider.ClassifyLead(ctx, lead)
		if cErr != nil {
			return nil, cErr
		}
		data = classification
		mutate = func(l *models.Lead) { l.Classification = classification }

	case models.OpValidate:
		validation, vErr := w.provider.ValidateLeadData(ctx, lead)
		if vErr != nil {
			return nil, vErr
		}
		data = validation
		mutate = func(l *models.Lead) { l.Validation = validation }
	}

	w.queue.UpdateProgress(job.ID, 75, "persisting enrichment")

	if err := w.leads.UpdateLeadAIFields(ctx, lead.ID, func(l *models.Lead) {
		mutate(l)
		l.UpdatedAt = time.Now()
	}); err != nil {
		return nil, fmt.Errorf("failed to persist %s result: %w", payload.Operation, err)
	}

	return data, nil
}
