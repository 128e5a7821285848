package models

import (
	"testing"
	"time"
)

func TestTaskStatusTransitions(t *testing.T) {
	tests := []struct {
		from    TaskStatus
		to      TaskStatus
		allowed bool
	}{
		{TaskStatusPending, TaskStatusRunning, true},
		{TaskStatusPending, TaskStatusFailed, true},
		{TaskStatusPending, TaskStatusCancelled, true},
		{TaskStatusPending, TaskStatusCompleted, false},
		{TaskStatusRunning, TaskStatusCompleted, true},
		{TaskStatusRunning, TaskStatusFailed, true},
		{TaskStatusRunning, TaskStatusCancelled, true},
		{TaskStatusRunning, TaskStatusPaused, true},
		{TaskStatusPaused, TaskStatusRunning, true},
		{TaskStatusPaused, TaskStatusCancelled, true},
		{TaskStatusCompleted, TaskStatusRunning, false},
		{TaskStatusCancelled, TaskStatusCompleted, false},
		{TaskStatusFailed, TaskStatusRunning, false},
		{TaskStatusFailed, TaskStatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestTransitionRejectsIllegal(t *testing.T) {
	task := &ScrapeTask{ID: "task-1", Status: TaskStatusCancelled}

	if err := task.Transition(TaskStatusCompleted); err == nil {
		t.Fatal("expected error transitioning cancelled -> completed")
	}
	if task.Status != TaskStatusCancelled {
		t.Errorf("illegal transition mutated status to %s", task.Status)
	}
}

func TestTransitionSetsTimestamps(t *testing.T) {
	task := &ScrapeTask{ID: "task-1", Status: TaskStatusPending, CreatedAt: time.Now()}

	if err := task.Transition(TaskStatusRunning); err != nil {
		t.Fatal(err)
	}
	if task.StartedAt == nil {
		t.Error("StartedAt not set on pending -> running")
	}

	if err := task.Transition(TaskStatusCompleted); err != nil {
		t.Fatal(err)
	}
	if task.CompletedAt == nil {
		t.Error("CompletedAt not set on running -> completed")
	}
}

func TestTransitionKeepsOriginalStartTime(t *testing.T) {
	task := &ScrapeTask{ID: "task-1", Status: TaskStatusPending}

	if err := task.Transition(TaskStatusRunning); err != nil {
		t.Fatal(err)
	}
	first := *task.StartedAt

	if err := task.Transition(TaskStatusPaused); err != nil {
		t.Fatal(err)
	}
	if err := task.Transition(TaskStatusRunning); err != nil {
		t.Fatal(err)
	}

	if !task.StartedAt.Equal(first) {
		t.Error("resume from paused overwrote the original start time")
	}
}

func TestIsActive(t *testing.T) {
	active := []TaskStatus{TaskStatusPending, TaskStatusRunning, TaskStatusPaused}
	terminal := []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled}

	for _, s := range active {
		if !s.IsActive() {
			t.Errorf("%s should be active", s)
		}
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range terminal {
		if s.IsActive() {
			t.Errorf("%s should not be active", s)
		}
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
