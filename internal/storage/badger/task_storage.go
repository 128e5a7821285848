package badger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/interfaces"
	"github.com/ternarybob/recensio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// TaskStorage implements the TaskStorage interface for Badger
type TaskStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	// claimMu serializes ClaimTask so two concurrent StartTask calls cannot
	// both observe "no active task" and both create one. BadgerHold has no
	// cross-record transaction suitable for check-then-insert, so the claim
	// is guarded in-process (single-writer deployment).
	claimMu sync.Mutex
}

// NewTaskStorage creates a new TaskStorage instance
func NewTaskStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TaskStorage {
	return &TaskStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TaskStorage) SaveTask(ctx context.Context, task *models.ScrapeTask) error {
	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if task.TargetID == "" {
		return fmt.Errorf("task target ID is required")
	}

	if err := s.db.Store().Upsert(task.ID, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

func (s *TaskStorage) GetTask(ctx context.Context, taskID string) (*models.ScrapeTask, error) {
	var task models.ScrapeTask
	if err := s.db.Store().Get(taskID, &task); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// ClaimTask creates the task only when the target has no active task.
// The check and the insert happen under one lock so concurrent callers
// racing for the same target resolve to a single created task.
func (s *TaskStorage) ClaimTask(ctx context.Context, task *models.ScrapeTask) (*models.ScrapeTask, bool, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	existing, err := s.GetActiveTask(ctx, task.TargetID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if err := s.SaveTask(ctx, task); err != nil {
		return nil, false, err
	}
	return task, true, nil
}

func (s *TaskStorage) GetActiveTask(ctx context.Context, targetID string) (*models.ScrapeTask, error) {
	tasks, err := s.GetActiveTasks(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return tasks[0], nil
}

func (s *TaskStorage) GetActiveTasks(ctx context.Context, targetID string) ([]*models.ScrapeTask, error) {
	statuses := make([]interface{}, 0, 3)
	for _, st := range models.ActiveStatuses() {
		statuses = append(statuses, st)
	}

	var tasks []models.ScrapeTask
	query := badgerhold.Where("TargetID").Eq(targetID).
		And("Status").In(statuses...).
		SortBy("CreatedAt").Reverse()
	if err := s.db.Store().Find(&tasks, query); err != nil {
		return nil, fmt.Errorf("failed to get active tasks: %w", err)
	}

	result := make([]*models.ScrapeTask, len(tasks))
	for i := range tasks {
		result[i] = &tasks[i]
	}
	return result, nil
}

func (s *TaskStorage) GetLastCompletedTask(ctx context.Context, targetID string) (*models.ScrapeTask, error) {
	var tasks []models.ScrapeTask
	query := badgerhold.Where("TargetID").Eq(targetID).
		And("Status").Eq(models.TaskStatusCompleted).
		SortBy("CompletedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&tasks, query); err != nil {
		return nil, fmt.Errorf("failed to get last completed task: %w", err)
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

func (s *TaskStorage) ListTasks(ctx context.Context, targetID string, limit int) ([]*models.ScrapeTask, error) {
	query := badgerhold.Where("TargetID").Eq(targetID).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var tasks []models.ScrapeTask
	if err := s.db.Store().Find(&tasks, query); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	result := make([]*models.ScrapeTask, len(tasks))
	for i := range tasks {
		result[i] = &tasks[i]
	}
	return result, nil
}

// ListTargets returns each known target with the source URL of its most
// recent task. Used by the scheduler to re-scrape all known targets.
func (s *TaskStorage) ListTargets(ctx context.Context) (map[string]string, error) {
	var tasks []models.ScrapeTask
	if err := s.db.Store().Find(&tasks, badgerhold.Where("ID").Ne("").SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	// Later tasks overwrite earlier ones, leaving the newest URL per target
	targets := make(map[string]string)
	for i := range tasks {
		targets[tasks[i].TargetID] = tasks[i].SourceURL
	}
	return targets, nil
}
