package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/common"
	"github.com/ternarybob/recensio/internal/interfaces"
	"github.com/ternarybob/recensio/internal/models"
	"github.com/ternarybob/recensio/internal/services/ingest"
)

// ErrInvalidTargetURL is returned when no target ID can be derived from a URL
var ErrInvalidTargetURL = errors.New("url does not reference a target listing")

// Service owns the task lifecycle: claiming, supervising, cancelling and
// superseding scrape tasks. Each running task has exactly one supervisor
// goroutine registered here.
type Service struct {
	config   *common.Config
	storage  interfaces.StorageManager
	launcher interfaces.WorkerLauncher
	prober   interfaces.Prober
	ingestor *ingest.Service
	logger   arbor.ILogger

	mu          sync.Mutex
	supervisors map[string]*supervisorHandle
	wg          sync.WaitGroup
}

// supervisorHandle lets callers stop a supervisor and wait until it has
// reaped its worker and will write nothing more
type supervisorHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new task service
func NewService(config *common.Config, storage interfaces.StorageManager, launcher interfaces.WorkerLauncher, prober interfaces.Prober, logger arbor.ILogger) *Service {
	return &Service{
		config:      config,
		storage:     storage,
		launcher:    launcher,
		prober:      prober,
		ingestor:    ingest.NewService(storage.ReviewStorage(), logger),
		logger:      logger,
		supervisors: make(map[string]*supervisorHandle),
	}
}

// StartTask claims a scrape task for the listing URL and starts its
// supervisor. When a task is already active for the same target the existing
// task is returned with created=false; force supersedes the active task,
// wipes the target's stored reviews and starts over from zero.
func (s *Service) StartTask(ctx context.Context, url string, force bool) (*models.ScrapeTask, bool, error) {
	targetID := common.ExtractTargetID(url)
	if targetID == "" {
		return nil, false, fmt.Errorf("%w: %s", ErrInvalidTargetURL, url)
	}

	if force {
		if err := s.supersede(ctx, targetID); err != nil {
			return nil, false, err
		}
	}

	task := &models.ScrapeTask{
		ID:        common.NewTaskID(),
		TargetID:  targetID,
		SourceURL: common.NormalizeReviewsURL(url),
		Status:    models.TaskStatusPending,
		CreatedAt: time.Now(),
	}

	claimed, created, err := s.storage.TaskStorage().ClaimTask(ctx, task)
	if err != nil {
		return nil, false, err
	}
	if !created {
		s.logger.Info().
			Str("target_id", targetID).
			Str("task_id", claimed.ID).
			Msg("Scrape already in progress, returning active task")
		return claimed, false, nil
	}

	// Seed expected totals from the quick probe so progress is meaningful
	// before the worker writes its first meta artifact. Probe failure is
	// not a task failure.
	if meta := s.prober.Fetch(ctx, task.SourceURL); meta != nil {
		task.TargetMeta = meta
		task.ExpectedTotal = meta.ReviewCount
		task.TotalBatches = s.estimateBatches(meta.ReviewCount)
		if err := s.storage.TaskStorage().SaveTask(ctx, task); err != nil {
			s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to persist probe snapshot")
		}
	}

	s.spawnSupervisor(task)

	s.logger.Info().
		Str("task_id", task.ID).
		Str("target_id", targetID).
		Int("expected_total", task.ExpectedTotal).
		Msg("Scrape task started")
	return task, true, nil
}

// Retarget switches the engine to a new source listing: active tasks for
// other targets are cancelled, their reviews are kept as history, the new
// URL is persisted as the source setting and a task is started for it.
func (s *Service) Retarget(ctx context.Context, url string) (*models.ScrapeTask, error) {
	targetID := common.ExtractTargetID(url)
	if targetID == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTargetURL, url)
	}

	targets, err := s.storage.TaskStorage().ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	for otherID := range targets {
		if otherID == targetID {
			continue
		}
		if err := s.cancelActive(ctx, otherID, "superseded by retarget"); err != nil {
			return nil, err
		}
	}

	if err := s.storage.SettingStorage().Set(ctx, models.SettingSourceURL, common.NormalizeReviewsURL(url)); err != nil {
		return nil, err
	}

	task, _, err := s.StartTask(ctx, url, false)
	return task, err
}

// CancelTask cancels a task by ID. Cancelling a terminal task is an error.
func (s *Service) CancelTask(ctx context.Context, taskID string) (*models.ScrapeTask, error) {
	task, err := s.storage.TaskStorage().GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found", taskID)
	}

	s.stopSupervisor(taskID)

	// The supervisor may have persisted progress, or even finished, between
	// the lookup above and its shutdown. Transition the fresh record.
	task, err = s.storage.TaskStorage().GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found", taskID)
	}

	if err := task.Transition(models.TaskStatusCancelled); err != nil {
		return nil, err
	}
	if err := s.storage.TaskStorage().SaveTask(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info().Str("task_id", taskID).Msg("Task cancelled")
	return task, nil
}

// PauseTask stops the worker but keeps the task claim. Ingested reviews are
// retained; a resume relaunches the worker and re-ingests idempotently.
func (s *Service) PauseTask(ctx context.Context, taskID string) (*models.ScrapeTask, error) {
	task, err := s.storage.TaskStorage().GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found", taskID)
	}

	s.stopSupervisor(taskID)

	// Re-fetch so the pause keeps the counters from the supervisor's last poll
	task, err = s.storage.TaskStorage().GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found", taskID)
	}

	if err := task.Transition(models.TaskStatusPaused); err != nil {
		return nil, err
	}
	if err := s.storage.TaskStorage().SaveTask(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info().Str("task_id", taskID).Msg("Task paused")
	return task, nil
}

// ResumeTask moves a paused task back to running and starts a fresh
// supervisor. The worker restarts from page one; the deduplicated store
// absorbs the overlap.
func (s *Service) ResumeTask(ctx context.Context, taskID string) (*models.ScrapeTask, error) {
	task, err := s.storage.TaskStorage().GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found", taskID)
	}

	if err := task.Transition(models.TaskStatusRunning); err != nil {
		return nil, err
	}
	if err := s.storage.TaskStorage().SaveTask(ctx, task); err != nil {
		return nil, err
	}

	s.spawnSupervisor(task)

	s.logger.Info().Str("task_id", taskID).Msg("Task resumed")
	return task, nil
}

// GetTask returns a task by ID
func (s *Service) GetTask(ctx context.Context, taskID string) (*models.ScrapeTask, error) {
	return s.storage.TaskStorage().GetTask(ctx, taskID)
}

// GetActiveTask returns the in-flight task for a target, or nil
func (s *Service) GetActiveTask(ctx context.Context, targetID string) (*models.ScrapeTask, error) {
	return s.storage.TaskStorage().GetActiveTask(ctx, targetID)
}

// GetLastCompletedTask returns the most recent successful task for a target
func (s *Service) GetLastCompletedTask(ctx context.Context, targetID string) (*models.ScrapeTask, error) {
	return s.storage.TaskStorage().GetLastCompletedTask(ctx, targetID)
}

// ListTasks returns recent tasks for a target, newest first
func (s *Service) ListTasks(ctx context.Context, targetID string, limit int) ([]*models.ScrapeTask, error) {
	return s.storage.TaskStorage().ListTasks(ctx, targetID, limit)
}

// ListTargets returns every known target mapped to its latest source URL
func (s *Service) ListTargets(ctx context.Context) (map[string]string, error) {
	return s.storage.TaskStorage().ListTargets(ctx)
}

// RecoverOrphans fails over tasks left active by an unclean shutdown. Their
// workers are gone and their progress is unrecoverable, so the honest state
// is failed; ingested reviews survive in the store.
func (s *Service) RecoverOrphans(ctx context.Context) error {
	targets, err := s.storage.TaskStorage().ListTargets(ctx)
	if err != nil {
		return err
	}

	for targetID := range targets {
		active, err := s.storage.TaskStorage().GetActiveTasks(ctx, targetID)
		if err != nil {
			return err
		}
		for _, task := range active {
			if err := task.Transition(models.TaskStatusFailed); err != nil {
				continue
			}
			task.LastError = "interrupted by service restart"
			if err := s.storage.TaskStorage().SaveTask(ctx, task); err != nil {
				return err
			}
			s.logger.Warn().
				Str("task_id", task.ID).
				Str("target_id", targetID).
				Msg("Recovered orphaned task as failed")
		}
	}
	return nil
}

// Stop cancels all supervisors and waits for them to terminate their workers
func (s *Service) Stop() {
	s.mu.Lock()
	for taskID, handle := range s.supervisors {
		s.logger.Info().Str("task_id", taskID).Msg("Stopping supervisor")
		handle.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// supersede fails the active task for a target and wipes its reviews so a
// forced re-run starts from a clean slate
func (s *Service) supersede(ctx context.Context, targetID string) error {
	active, err := s.storage.TaskStorage().GetActiveTasks(ctx, targetID)
	if err != nil {
		return err
	}

	for _, task := range active {
		s.stopSupervisor(task.ID)
		fresh, err := s.storage.TaskStorage().GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		if fresh != nil {
			task = fresh
		}
		if task.Status.IsTerminal() {
			// Finished while its supervisor was shutting down
			continue
		}
		if err := task.Transition(models.TaskStatusFailed); err != nil {
			return err
		}
		task.LastError = "superseded by forced re-run"
		if err := s.storage.TaskStorage().SaveTask(ctx, task); err != nil {
			return err
		}
		s.logger.Info().Str("task_id", task.ID).Msg("Superseded active task")
	}

	deleted, err := s.storage.ReviewStorage().DeleteReviews(ctx, targetID)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.Info().
			Str("target_id", targetID).
			Int("deleted", deleted).
			Msg("Dropped stored reviews for forced re-run")
	}
	return nil
}

// cancelActive cancels all active tasks for a target with the given reason
func (s *Service) cancelActive(ctx context.Context, targetID, reason string) error {
	active, err := s.storage.TaskStorage().GetActiveTasks(ctx, targetID)
	if err != nil {
		return err
	}
	for _, task := range active {
		s.stopSupervisor(task.ID)
		fresh, err := s.storage.TaskStorage().GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		if fresh != nil {
			task = fresh
		}
		if task.Status.IsTerminal() {
			continue
		}
		if err := task.Transition(models.TaskStatusCancelled); err != nil {
			return err
		}
		task.LastError = reason
		if err := s.storage.TaskStorage().SaveTask(ctx, task); err != nil {
			return err
		}
		s.logger.Info().Str("task_id", task.ID).Str("reason", reason).Msg("Cancelled active task")
	}
	return nil
}

// spawnSupervisor registers and starts the supervisor goroutine for a task
func (s *Service) spawnSupervisor(task *models.ScrapeTask) {
	ctx, cancel := context.WithCancel(context.Background())
	handle := &supervisorHandle{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.supervisors[task.ID] = handle
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.deregister(task.ID)
		defer close(handle.done)
		s.runSupervisor(ctx, task)
	}()
}

// stopSupervisor cancels a task's supervisor and blocks until it has exited.
// Once this returns the caller can safely write the task's terminal status:
// the supervisor reaps the worker on cancellation and persists nothing.
func (s *Service) stopSupervisor(taskID string) {
	s.mu.Lock()
	handle, ok := s.supervisors[taskID]
	s.mu.Unlock()
	if !ok {
		return
	}
	handle.cancel()
	<-handle.done
}

// deregister removes a finished supervisor from the registry
func (s *Service) deregister(taskID string) {
	s.mu.Lock()
	if handle, ok := s.supervisors[taskID]; ok {
		handle.cancel()
		delete(s.supervisors, taskID)
	}
	s.mu.Unlock()
}

// estimateBatches converts an expected review count into a page estimate
func (s *Service) estimateBatches(reviewCount int) int {
	pageSize := s.config.Scraper.PageSize
	if pageSize <= 0 || reviewCount <= 0 {
		return 0
	}
	return (reviewCount + pageSize - 1) / pageSize
}
