package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ternarybob/recensio/internal/models"
	"github.com/ternarybob/recensio/internal/scraper"
)

// runSupervisor drives one scrape task from launch to a terminal state.
// Each poll tick it checks for external cancellation first, ingests new
// batch artifacts, then evaluates exit conditions in order: natural
// completion via the meta artifact, worker death, wall-clock budget.
func (s *Service) runSupervisor(ctx context.Context, task *models.ScrapeTask) {
	store := s.storage.TaskStorage()
	workDir := filepath.Join(s.config.Scraper.WorkDir, task.TargetID)

	if task.Status == models.TaskStatusPending {
		if err := task.Transition(models.TaskStatusRunning); err != nil {
			s.logger.Error().Err(err).Str("task_id", task.ID).Msg("Cannot start task")
			return
		}
		if err := store.SaveTask(ctx, task); err != nil {
			s.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to persist running status")
		}
	}

	proc, err := s.launcher.Launch(ctx, task.SourceURL, workDir)
	if err != nil {
		s.failTask(task, fmt.Sprintf("worker launch failed: %v", err))
		return
	}

	scan := scraper.NewScanner(s.config.Scraper.BatchPrefix, s.logger)
	seen := make(map[string]time.Time)
	deadline := time.Now().Add(s.config.Scraper.MaxRuntime)

	ticker := time.NewTicker(s.config.Scraper.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Cancelled by pause, cancel or supersede; the caller owns the
			// status write, we only reap the worker.
			proc.Terminate()
			return
		case <-ticker.C:
		}

		// External status changes win over anything this loop would decide
		current, err := store.GetTask(context.Background(), task.ID)
		if err == nil && current != nil && current.Status != models.TaskStatusRunning {
			s.logger.Info().
				Str("task_id", task.ID).
				Str("status", string(current.Status)).
				Msg("Task state changed externally, supervisor exiting")
			proc.Terminate()
			return
		}

		meta, owned := s.pollOnce(task, scan, workDir, seen)
		if !owned {
			proc.Terminate()
			return
		}

		if meta != nil && meta.IsComplete {
			// Stop the worker, then drain once more: a page flushed while
			// this pass was reading files would otherwise be lost.
			proc.Terminate()
			s.pollOnce(task, scan, workDir, seen)
			s.completeTask(task)
			return
		}

		if !proc.IsAlive() {
			// Grace period, then one final drain for artifacts written just
			// before exit. Worker exit is a natural end of scrape.
			s.sleep(ctx, s.config.Scraper.ExitGrace)
			s.pollOnce(task, scan, workDir, seen)
			s.completeTask(task)
			return
		}

		if time.Now().After(deadline) {
			// Bounded-time guarantee: no task runs forever. Whatever was
			// ingested so far counts, so this is a completion, not a failure.
			proc.Terminate()
			s.pollOnce(task, scan, workDir, seen)
			task.LastError = fmt.Sprintf("stopped after reaching runtime budget of %s", s.config.Scraper.MaxRuntime)
			s.completeTask(task)
			return
		}
	}
}

// pollOnce scans the drop directory, ingests what is new and persists the
// task's progress counters. Returns the current meta artifact (nil when the
// worker has not written one yet) and whether the supervisor still owns the
// task. Progress is never written over a status set by someone else.
func (s *Service) pollOnce(task *models.ScrapeTask, scan *scraper.Scanner, workDir string, seen map[string]time.Time) (*models.BatchMeta, bool) {
	ctx := context.Background()

	result, err := scan.Scan(workDir, seen)
	if err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Drop directory scan failed")
		return nil, true
	}

	if len(result.Reviews) > 0 {
		created, err := s.ingestor.Ingest(ctx, task.TargetID, result.Reviews)
		if err != nil {
			s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Ingestion finished with errors")
		}
		if created > 0 {
			s.logger.Info().
				Str("task_id", task.ID).
				Int("created", created).
				Int("pages_seen", result.PagesSeen).
				Msg("Ingested new reviews")
		}
	}

	task.CurrentBatch = result.PagesSeen

	if count, err := s.storage.ReviewStorage().CountReviews(ctx, task.TargetID); err == nil {
		task.ParsedTotal = count
	}

	if result.Meta != nil {
		if result.Meta.TotalExpected > 0 {
			task.ExpectedTotal = result.Meta.TotalExpected
		}
		if result.Meta.TotalPages > 0 {
			task.TotalBatches = result.Meta.TotalPages
		}
		task.Phase = result.Meta.Phase
		if org := result.Meta.Organization; org != nil {
			task.TargetMeta = &models.TargetMeta{
				Name:        org.Name,
				Rating:      org.Rating,
				ReviewCount: org.ReviewCount,
			}
		}
	}

	if !s.ownsTask(task) {
		s.logger.Info().Str("task_id", task.ID).Msg("Task state changed externally, discarding progress write")
		return result.Meta, false
	}
	if err := s.storage.TaskStorage().SaveTask(ctx, task); err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to persist task progress")
	}

	return result.Meta, true
}

// ownsTask reports whether the stored record still carries the status the
// supervisor last wrote. An external transition (cancel, pause, supersede)
// takes the task away from the supervisor, which then must not write it.
func (s *Service) ownsTask(task *models.ScrapeTask) bool {
	stored, err := s.storage.TaskStorage().GetTask(context.Background(), task.ID)
	if err != nil {
		// A read failure is a store problem, not a lost claim
		return true
	}
	if stored == nil {
		return false
	}
	return stored.Status == task.Status
}

// completeTask moves a running task to completed. A run that ingested
// nothing despite a non-zero expectation still completes, but the anomaly
// is recorded so operators can spot blocked scrapes.
func (s *Service) completeTask(task *models.ScrapeTask) {
	if !s.ownsTask(task) {
		s.logger.Info().Str("task_id", task.ID).Msg("Task state changed externally, skipping completion")
		return
	}

	if task.ExpectedTotal > 0 && task.ParsedTotal == 0 {
		task.LastError = fmt.Sprintf("completed with zero reviews ingested, expected %d", task.ExpectedTotal)
		s.logger.Warn().
			Str("task_id", task.ID).
			Int("expected", task.ExpectedTotal).
			Msg("Scrape completed without ingesting any reviews")
	}

	if err := task.Transition(models.TaskStatusCompleted); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("Cannot complete task")
		return
	}
	if err := s.storage.TaskStorage().SaveTask(context.Background(), task); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to persist completed status")
		return
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("target_id", task.TargetID).
		Int("parsed", task.ParsedTotal).
		Int("expected", task.ExpectedTotal).
		Msg("Scrape task completed")
}

// failTask moves a task to failed with the given reason
func (s *Service) failTask(task *models.ScrapeTask, reason string) {
	if !s.ownsTask(task) {
		s.logger.Info().Str("task_id", task.ID).Msg("Task state changed externally, skipping failure write")
		return
	}

	task.LastError = reason
	if err := task.Transition(models.TaskStatusFailed); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("Cannot fail task")
		return
	}
	if err := s.storage.TaskStorage().SaveTask(context.Background(), task); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to persist failed status")
		return
	}

	s.logger.Error().
		Str("task_id", task.ID).
		Str("target_id", task.TargetID).
		Str("reason", reason).
		Msg("Scrape task failed")
}

// sleep waits for d or until the context is cancelled
func (s *Service) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
