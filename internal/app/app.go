package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/common"
	"github.com/ternarybob/recensio/internal/handlers"
	"github.com/ternarybob/recensio/internal/interfaces"
	"github.com/ternarybob/recensio/internal/scraper"
	"github.com/ternarybob/recensio/internal/services/probe"
	"github.com/ternarybob/recensio/internal/services/scheduler"
	"github.com/ternarybob/recensio/internal/services/tasks"
	"github.com/ternarybob/recensio/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	TaskService      *tasks.Service
	SchedulerService *scheduler.Service

	APIHandler      *handlers.APIHandler
	ReviewHandler   *handlers.ReviewHandler
	TaskHandler     *handlers.TaskHandler
	SettingsHandler *handlers.SettingsHandler
}

// New wires up storage, services and handlers. Tasks left active by an
// unclean shutdown are failed over before anything new can start.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := badger.NewManager(&config.Storage.Badger, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	launcher := scraper.NewLauncher(&config.Scraper, logger)
	prober := probe.NewService(&config.Probe, logger)
	taskService := tasks.NewService(config, storageManager, launcher, prober, logger)

	if err := taskService.RecoverOrphans(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Orphan recovery failed")
	}

	schedulerService := scheduler.NewService(&config.Scheduler, taskService, storageManager.SettingStorage(), logger)

	return &App{
		Config:           config,
		Logger:           logger,
		StorageManager:   storageManager,
		TaskService:      taskService,
		SchedulerService: schedulerService,
		APIHandler:       handlers.NewAPIHandler(),
		ReviewHandler:    handlers.NewReviewHandler(taskService, storageManager.ReviewStorage(), storageManager.SettingStorage(), config.Scraper.PageSize, logger),
		TaskHandler:      handlers.NewTaskHandler(taskService, storageManager.SettingStorage(), logger),
		SettingsHandler:  handlers.NewSettingsHandler(storageManager.SettingStorage(), logger),
	}, nil
}

// Start brings up the background services
func (a *App) Start() error {
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Shutdown stops services in reverse dependency order: no new scheduled
// work, then supervisors and their workers, then storage.
func (a *App) Shutdown() {
	if err := a.SchedulerService.Stop(); err != nil {
		a.Logger.Warn().Err(err).Msg("Scheduler stop failed")
	}

	a.TaskService.Stop()

	if err := a.StorageManager.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Storage close failed")
	}

	a.Logger.Info().Msg("Application shut down")
}
