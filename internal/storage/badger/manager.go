package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/common"
	"github.com/ternarybob/recensio/internal/interfaces"
)

// Manager aggregates the typed stores over one Badger connection
type Manager struct {
	db             *BadgerDB
	taskStorage    interfaces.TaskStorage
	reviewStorage  interfaces.ReviewStorage
	settingStorage interfaces.SettingStorage
	logger         arbor.ILogger
}

// NewManager opens the database and wires up the typed stores
func NewManager(config *common.BadgerConfig, logger arbor.ILogger) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize badger: %w", err)
	}

	return &Manager{
		db:             db,
		taskStorage:    NewTaskStorage(db, logger),
		reviewStorage:  NewReviewStorage(db, logger),
		settingStorage: NewSettingStorage(db, logger),
		logger:         logger,
	}, nil
}

// TaskStorage returns the task store
func (m *Manager) TaskStorage() interfaces.TaskStorage {
	return m.taskStorage
}

// ReviewStorage returns the review store
func (m *Manager) ReviewStorage() interfaces.ReviewStorage {
	return m.reviewStorage
}

// SettingStorage returns the settings store
func (m *Manager) SettingStorage() interfaces.SettingStorage {
	return m.settingStorage
}

// Close closes the underlying database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
