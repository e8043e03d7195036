package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexport/internal/common"
	"github.com/ternarybob/lexport/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	clients interfaces.ClientStorage
	options interfaces.OptionsStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		clients: NewClientStorage(db, logger),
		options: NewOptionsStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ClientStorage returns the client storage interface
func (m *Manager) ClientStorage() interfaces.ClientStorage {
	return m.clients
}

// OptionsStorage returns the options storage interface
func (m *Manager) OptionsStorage() interfaces.OptionsStorage {
	return m.options
}

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}
