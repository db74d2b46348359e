package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db        *BadgerDB
	leads     interfaces.LeadStorage
	sources   interfaces.SourceStorage
	aiWork    interfaces.AIWorkStorage
	jobStatus interfaces.JobStatusStorage
	logger    arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:        db,
		leads:     NewLeadStorage(db, logger),
		sources:   NewSourceStorage(db, logger),
		aiWork:    NewAIWorkStorage(db, logger),
		jobStatus: NewJobStatusStorage(db, logger),
		logger:    logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// Leads returns the Lead storage interface
func (m *Manager) Leads() interfaces.LeadStorage {
	return m.leads
}

// Sources returns the Source storage interface
func (m *Manager) Sources() interfaces.SourceStorage {
	return m.sources
}

// AIWork returns the pending AI work storage interface
func (m *Manager) AIWork() interfaces.AIWorkStorage {
	return m.aiWork
}

// JobStatus returns the job status mirror storage interface
func (m *Manager) JobStatus() interfaces.JobStatusStorage {
	return m.jobStatus
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
