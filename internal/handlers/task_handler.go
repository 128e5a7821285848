package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/common"
	"github.com/ternarybob/recensio/internal/interfaces"
	"github.com/ternarybob/recensio/internal/models"
)

// TaskControlInterface defines the task lifecycle methods exposed over HTTP
type TaskControlInterface interface {
	GetTask(ctx context.Context, taskID string) (*models.ScrapeTask, error)
	GetActiveTask(ctx context.Context, targetID string) (*models.ScrapeTask, error)
	GetLastCompletedTask(ctx context.Context, targetID string) (*models.ScrapeTask, error)
	ListTasks(ctx context.Context, targetID string, limit int) ([]*models.ScrapeTask, error)
	CancelTask(ctx context.Context, taskID string) (*models.ScrapeTask, error)
	PauseTask(ctx context.Context, taskID string) (*models.ScrapeTask, error)
	ResumeTask(ctx context.Context, taskID string) (*models.ScrapeTask, error)
}

// TaskHandler handles scrape task HTTP requests
type TaskHandler struct {
	tasks    TaskControlInterface
	settings interfaces.SettingStorage
	logger   arbor.ILogger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService TaskControlInterface, settings interfaces.SettingStorage, logger arbor.ILogger) *TaskHandler {
	return &TaskHandler{
		tasks:    taskService,
		settings: settings,
		logger:   logger,
	}
}

// GetStatusHandler handles GET /api/tasks/status - progress of the active
// task for the configured listing, falling back to the last completed run
func (h *TaskHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	ctx := r.Context()

	source, err := h.settings.Get(ctx, models.SettingSourceURL)
	if err != nil || source == "" {
		WriteError(w, http.StatusBadRequest, "No source listing configured")
		return
	}
	targetID := common.ExtractTargetID(source)
	if targetID == "" {
		WriteError(w, http.StatusBadRequest, "Configured source URL has no target ID")
		return
	}

	task, err := h.tasks.GetActiveTask(ctx, targetID)
	if err != nil {
		h.logger.Error().Err(err).Str("target_id", targetID).Msg("Failed to look up active task")
		WriteError(w, http.StatusInternalServerError, "Failed to load task state")
		return
	}
	if task == nil {
		if task, err = h.tasks.GetLastCompletedTask(ctx, targetID); err != nil {
			h.logger.Error().Err(err).Str("target_id", targetID).Msg("Failed to look up last task")
			WriteError(w, http.StatusInternalServerError, "Failed to load task state")
			return
		}
	}
	if task == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status": "idle",
			"target": targetID,
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"task_id":  task.ID,
		"target":   task.TargetID,
		"progress": task.Progress(),
	})
}

// ListTasksHandler handles GET /api/tasks - recent task history for the
// configured listing
func (h *TaskHandler) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	ctx := r.Context()

	source, err := h.settings.Get(ctx, models.SettingSourceURL)
	if err != nil || source == "" {
		WriteError(w, http.StatusBadRequest, "No source listing configured")
		return
	}
	targetID := common.ExtractTargetID(source)

	taskList, err := h.tasks.ListTasks(ctx, targetID, 50)
	if err != nil {
		h.logger.Error().Err(err).Str("target_id", targetID).Msg("Failed to list tasks")
		WriteError(w, http.StatusInternalServerError, "Failed to list tasks")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"target": targetID,
		"tasks":  taskList,
	})
}

// TaskRoutesHandler routes /api/tasks/{id} and /api/tasks/{id}/{action}
func (h *TaskHandler) TaskRoutesHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	parts := strings.SplitN(strings.Trim(path, "/"), "/", 2)
	taskID := parts[0]
	if taskID == "" {
		WriteError(w, http.StatusBadRequest, "Task ID required")
		return
	}

	if len(parts) == 1 {
		h.getTask(w, r, taskID)
		return
	}

	switch parts[1] {
	case "cancel":
		h.controlTask(w, r, taskID, h.tasks.CancelTask)
	case "pause":
		h.controlTask(w, r, taskID, h.tasks.PauseTask)
	case "resume":
		h.controlTask(w, r, taskID, h.tasks.ResumeTask)
	default:
		WriteError(w, http.StatusNotFound, "Unknown task action")
	}
}

func (h *TaskHandler) getTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	task, err := h.tasks.GetTask(r.Context(), taskID)
	if err != nil {
		h.logger.Error().Err(err).Str("task_id", taskID).Msg("Failed to load task")
		WriteError(w, http.StatusInternalServerError, "Failed to load task")
		return
	}
	if task == nil {
		WriteError(w, http.StatusNotFound, "Task not found")
		return
	}
	WriteJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) controlTask(w http.ResponseWriter, r *http.Request, taskID string, action func(context.Context, string) (*models.ScrapeTask, error)) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	task, err := action(r.Context(), taskID)
	if err != nil {
		h.logger.Warn().Err(err).Str("task_id", taskID).Msg("Task control action rejected")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, task)
}
