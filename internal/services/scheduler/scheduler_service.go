package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/common"
	"github.com/ternarybob/recensio/internal/interfaces"
	"github.com/ternarybob/recensio/internal/models"
)

// TaskStarter is the slice of the task service the scheduler needs
type TaskStarter interface {
	StartTask(ctx context.Context, url string, force bool) (*models.ScrapeTask, bool, error)
	ListTargets(ctx context.Context) (map[string]string, error)
}

// Service re-runs scrapes on a cron schedule so stored reviews stay fresh.
// Re-runs are non-forced: a target already being scraped is skipped by the
// task claim, and incremental ingestion only adds what is new.
type Service struct {
	config   *common.SchedulerConfig
	tasks    TaskStarter
	settings interfaces.SettingStorage
	cron     *cron.Cron
	logger   arbor.ILogger
}

// NewService creates a new scheduler service
func NewService(config *common.SchedulerConfig, tasks TaskStarter, settings interfaces.SettingStorage, logger arbor.ILogger) *Service {
	return &Service{
		config:   config,
		tasks:    tasks,
		settings: settings,
		logger:   logger,
	}
}

// Start registers the cron entry and begins scheduling
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduler disabled")
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.config.Schedule, func() { s.RunNow(context.Background()) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.config.Schedule, err)
	}
	s.cron.Start()

	s.logger.Info().Str("schedule", s.config.Schedule).Msg("Scheduler started")
	return nil
}

// Stop halts scheduling and waits for a running tick to finish
func (s *Service) Stop() error {
	if s.cron == nil {
		return nil
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// RunNow re-scrapes every known target plus the configured source listing.
// Also the handler behind the manual refresh endpoint.
func (s *Service) RunNow(ctx context.Context) {
	urls, err := s.tasks.ListTargets(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduler could not list targets")
		urls = make(map[string]string)
	}

	if source, err := s.settings.Get(ctx, models.SettingSourceURL); err == nil && source != "" {
		if targetID := common.ExtractTargetID(source); targetID != "" {
			urls[targetID] = source
		}
	}

	if len(urls) == 0 {
		s.logger.Debug().Msg("Scheduler tick with no known targets")
		return
	}

	started := 0
	for targetID, url := range urls {
		_, created, err := s.tasks.StartTask(ctx, url, false)
		if err != nil {
			s.logger.Warn().Err(err).Str("target_id", targetID).Msg("Scheduled scrape failed to start")
			continue
		}
		if created {
			started++
		}
	}

	s.logger.Info().
		Int("targets", len(urls)).
		Int("started", started).
		Msg("Scheduled re-scrape pass finished")
}
