package scraper

import (
	"context"
	"time"

	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/models"
)

// StartBulkScraping begins an asynchronous multi-query scraping session
// across the given sources and returns its session id immediately. The
// session's progress advances per query processed; deduplication and
// quality scoring run across the accumulated result set at the end.
func (m *Manager) StartBulkScraping(ctx context.Context, sources []string, queries []string, filters models.ScrapeFilters, config models.ScrapeConfig) (string, error) {
	if len(queries) == 0 {
		return "", models.NewJobError(models.ErrValidation, "", "bulk scraping requires at least one query")
	}
	if len(sources) == 0 {
		return "", models.NewJobError(models.ErrValidation, "", "bulk scraping requires at least one source")
	}

	session := &models.ScrapingSession{
		ID:         common.NewSessionID(),
		StartTime:  time.Now(),
		Status:     models.SessionPending,
		TotalUnits: len(queries),
	}

	m.sessionMu.Lock()
	m.sessions[session.ID] = session
	m.sessionMu.Unlock()

	m.logger.Info().
		Str("session_id", session.ID).
		Int("queries", len(queries)).
		Int("sources", len(sources)).
		Msg("Bulk scraping session started")

	go m.runBulkSession(ctx, session.ID, sources, queries, filters, config)

	return session.ID, nil
}

// runBulkSession is the orchestration loop that owns session mutation
func (m *Manager) runBulkSession(ctx context.Context, sessionID string, sources []string, queries []string, filters models.ScrapeFilters, config models.ScrapeConfig) {
	m.updateSession(sessionID, func(s *models.ScrapingSession) {
		s.Status = models.SessionRunning
	})

	var accumulated []models.ScrapedRecord
	var errs []string

	for i, query := range queries {
		if m.isSessionCancelled(sessionID) {
			m.logger.Info().
				Str("session_id", sessionID).
				Int("completed", i).
				Msg("Bulk session cancelled, stopping before next query")
			return
		}

		results := m.ScrapeMultipleSources(ctx, sources, query, filters, config, StrategySequential)
		for _, result := range results {
			accumulated = append(accumulated, result.Data...)
			errs = append(errs, result.Errors...)
		}

		completed := i + 1
		m.updateSession(sessionID, func(s *models.ScrapingSession) {
			s.CompletedUnits = completed
			s.Progress = completed * 100 / len(queries)
		})
	}

	// Cross-query refinement happens once over the accumulated set
	total := len(accumulated)
	deduped, duplicates := Deduplicate(accumulated)
	quality := 0
	for _, record := range deduped {
		if QualityScore(record) >= m.config.QualityThreshold {
			quality++
		}
	}

	now := time.Now()
	m.updateSession(sessionID, func(s *models.ScrapingSession) {
		s.Status = models.SessionCompleted
		s.Progress = 100
		s.EndTime = &now
		s.Results = models.SessionResults{
			TotalLeads:   total,
			QualityLeads: quality,
			Duplicates:   duplicates,
			Errors:       errs,
		}
	})

	m.logger.Info().
		Str("session_id", sessionID).
		Int("total", total).
		Int("quality", quality).
		Int("duplicates", duplicates).
		Msg("Bulk scraping session completed")
}

// GetSessionStatus returns a copy of a session's current state
func (m *Manager) GetSessionStatus(sessionID string) (*models.ScrapingSession, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, models.NewJobError(models.ErrNotFound, "", "session "+sessionID+" not found")
	}
	copied := *session
	return &copied, nil
}

// CancelSession flips a running session to cancelled. It does not
// interrupt in-flight capability calls; the orchestration loop observes
// the flag before starting its next query.
func (m *Manager) CancelSession(sessionID string) bool {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	if session.Status != models.SessionPending && session.Status != models.SessionRunning {
		return false
	}

	session.Status = models.SessionCancelled
	now := time.Now()
	session.EndTime = &now
	m.cancelled[sessionID] = struct{}{}

	m.logger.Info().
		Str("session_id", sessionID).
		Msg("Bulk session cancelled")

	return true
}

func (m *Manager) isSessionCancelled(sessionID string) bool {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()
	_, ok := m.cancelled[sessionID]
	return ok
}

// updateSession applies a mutation under the session lock. Sessions that
// were cancelled are not resurrected by late loop updates.
func (m *Manager) updateSession(sessionID string, mutate func(*models.ScrapingSession)) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	if session.Status == models.SessionCancelled {
		return
	}
	mutate(session)
}

// sessionGCLoop purges finished sessions past the retention window
func (m *Manager) sessionGCLoop() {
	defer m.gcWG.Done()

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-m.gcStop:
			return
		case <-ticker.C:
			m.purgeExpiredSessions()
		}
	}
}

func (m *Manager) purgeExpiredSessions() {
	cutoff := time.Now().Add(-m.config.SessionRetention)
	purged := 0

	m.sessionMu.Lock()
	for id, session := range m.sessions {
		if session.EndTime != nil && session.EndTime.Before(cutoff) {
			delete(m.sessions, id)
			delete(m.cancelled, id)
			purged++
		}
	}
	m.sessionMu.Unlock()

	if purged > 0 {
		m.logger.Info().
			Int("purged", purged).
			Msg("Expired bulk sessions purged")
	}
}
