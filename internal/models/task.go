package models

import (
	"fmt"
	"time"
)

// TaskStatus represents the state of a scrape task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// validTransitions is the authoritative state machine for task lifecycle.
// Terminal states (completed, failed, cancelled) have no exits.
var validTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending: {TaskStatusRunning, TaskStatusFailed, TaskStatusCancelled},
	TaskStatusRunning: {TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled, TaskStatusPaused},
	TaskStatusPaused:  {TaskStatusRunning, TaskStatusFailed, TaskStatusCancelled},
}

// IsActive returns true for statuses that count toward the
// one-active-task-per-target invariant.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusPending || s == TaskStatusRunning || s == TaskStatusPaused
}

// IsTerminal returns true if no further transitions are allowed
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// CanTransitionTo reports whether the transition s -> to is legal
func (s TaskStatus) CanTransitionTo(to TaskStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ActiveStatuses returns the statuses that count as in-flight work
func ActiveStatuses() []TaskStatus {
	return []TaskStatus{TaskStatusPending, TaskStatusRunning, TaskStatusPaused}
}

// TargetMeta is the last-known descriptive snapshot of a scrape target,
// used as a placeholder before any reviews have been ingested.
type TargetMeta struct {
	Name        string  `json:"name"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}

// ScrapeTask represents one attempt to scrape a target's reviews.
// Tasks are historical records: they are never deleted, and superseded
// tasks are marked cancelled or failed rather than removed.
type ScrapeTask struct {
	ID        string     `json:"id" badgerhold:"key"`
	TargetID  string     `json:"target_id" badgerhold:"index"`
	SourceURL string     `json:"source_url"`
	Status    TaskStatus `json:"status" badgerhold:"index"`

	// Progress counters. Monotonically non-decreasing for the lifetime of
	// a task; a forced re-run starts a new task from zero instead.
	ExpectedTotal int `json:"expected_total"`
	ParsedTotal   int `json:"parsed_total"`
	CurrentBatch  int `json:"current_batch"`
	TotalBatches  int `json:"total_batches"`

	// Phase is a free-form sub-phase label reported by the worker.
	// Coarse progress hint only, not authoritative.
	Phase string `json:"phase,omitempty"`

	TargetMeta *TargetMeta `json:"target_meta,omitempty"`

	LastError  string `json:"last_error,omitempty"`
	RetryCount int    `json:"retry_count"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Transition moves the task to a new status, rejecting illegal transitions.
// Terminal statuses cannot be left once entered.
func (t *ScrapeTask) Transition(to TaskStatus) error {
	if !t.Status.CanTransitionTo(to) {
		return fmt.Errorf("illegal task transition %s -> %s (task %s)", t.Status, to, t.ID)
	}

	t.Status = to
	now := time.Now()
	switch to {
	case TaskStatusRunning:
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		t.CompletedAt = &now
	}
	return nil
}

// Progress returns the task's progress as an API-friendly snapshot
func (t *ScrapeTask) Progress() map[string]interface{} {
	return map[string]interface{}{
		"status":         string(t.Status),
		"current_batch":  t.CurrentBatch,
		"total_batches":  t.TotalBatches,
		"total_parsed":   t.ParsedTotal,
		"total_expected": t.ExpectedTotal,
		"phase":          t.Phase,
		"last_error":     t.LastError,
	}
}
