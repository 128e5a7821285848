package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/interfaces"
	"github.com/ternarybob/recensio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SettingStorage implements key/value settings persistence for Badger
type SettingStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSettingStorage creates a new SettingStorage instance
func NewSettingStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SettingStorage {
	return &SettingStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SettingStorage) Get(ctx context.Context, key string) (string, error) {
	var setting models.Setting
	if err := s.db.Store().Get("setting:"+key, &setting); err != nil {
		if err == badgerhold.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return setting.Value, nil
}

func (s *SettingStorage) Set(ctx context.Context, key, value string) error {
	setting := &models.Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	if err := s.db.Store().Upsert("setting:"+key, setting); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

func (s *SettingStorage) GetAll(ctx context.Context) (map[string]string, error) {
	var settings []models.Setting
	if err := s.db.Store().Find(&settings, badgerhold.Where("Key").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}

	result := make(map[string]string, len(settings))
	for i := range settings {
		result[settings[i].Key] = settings[i].Value
	}
	return result, nil
}
