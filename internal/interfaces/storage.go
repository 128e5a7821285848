package interfaces

import (
	"context"

	"github.com/ternarybob/recensio/internal/models"
)

// TaskStorage persists scrape tasks and enforces the one-active-task-per-target
// invariant at creation time.
type TaskStorage interface {
	// SaveTask inserts or updates a task
	SaveTask(ctx context.Context, task *models.ScrapeTask) error

	// GetTask returns a task by ID
	GetTask(ctx context.Context, taskID string) (*models.ScrapeTask, error)

	// ClaimTask atomically checks for an active task on the same target and
	// creates the given task only when none exists. Returns the already-active
	// task (and created=false) when the claim loses.
	ClaimTask(ctx context.Context, task *models.ScrapeTask) (existing *models.ScrapeTask, created bool, err error)

	// GetActiveTask returns the task in pending/running/paused for the target,
	// or nil when there is none
	GetActiveTask(ctx context.Context, targetID string) (*models.ScrapeTask, error)

	// GetActiveTasks returns all active tasks for the target (normally 0 or 1)
	GetActiveTasks(ctx context.Context, targetID string) ([]*models.ScrapeTask, error)

	// GetLastCompletedTask returns the most recently completed task for the target
	GetLastCompletedTask(ctx context.Context, targetID string) (*models.ScrapeTask, error)

	// ListTasks returns tasks for a target, newest first
	ListTasks(ctx context.Context, targetID string, limit int) ([]*models.ScrapeTask, error)

	// ListTargets returns every known target ID mapped to its most recent source URL
	ListTargets(ctx context.Context) (map[string]string, error)
}

// ReviewStorage is the deduplicated result store, partitioned by target
type ReviewStorage interface {
	// UpsertReview inserts or overwrites a review keyed on (TargetID, ReviewID).
	// Returns true when the review was newly created.
	UpsertReview(ctx context.Context, review *models.Review) (created bool, err error)

	// GetReview returns a single review or nil when absent
	GetReview(ctx context.Context, targetID, reviewID string) (*models.Review, error)

	// ListReviews returns one page of reviews for a target, newest first.
	// page is 1-based.
	ListReviews(ctx context.Context, targetID string, page, perPage int) ([]*models.Review, error)

	// CountReviews returns the number of distinct reviews stored for a target
	CountReviews(ctx context.Context, targetID string) (int, error)

	// GetStats aggregates stored reviews by rating bucket
	GetStats(ctx context.Context, targetID string) (*models.ReviewStats, error)

	// DeleteReviews removes all reviews for a target (forced re-run only).
	// Returns the number deleted.
	DeleteReviews(ctx context.Context, targetID string) (int, error)
}

// SettingStorage persists key/value settings
type SettingStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	GetAll(ctx context.Context) (map[string]string, error)
}

// StorageManager aggregates the typed stores over one database connection
type StorageManager interface {
	TaskStorage() TaskStorage
	ReviewStorage() ReviewStorage
	SettingStorage() SettingStorage
	Close() error
}
