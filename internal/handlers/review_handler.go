package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/common"
	"github.com/ternarybob/recensio/internal/interfaces"
	"github.com/ternarybob/recensio/internal/models"
	"github.com/ternarybob/recensio/internal/services/tasks"
)

// TaskServiceInterface defines the methods the review handler needs from the
// task service
type TaskServiceInterface interface {
	StartTask(ctx context.Context, url string, force bool) (*models.ScrapeTask, bool, error)
	Retarget(ctx context.Context, url string) (*models.ScrapeTask, error)
	GetActiveTask(ctx context.Context, targetID string) (*models.ScrapeTask, error)
	GetLastCompletedTask(ctx context.Context, targetID string) (*models.ScrapeTask, error)
}

// ReviewHandler serves stored reviews and the scrape trigger endpoints
type ReviewHandler struct {
	tasks    TaskServiceInterface
	reviews  interfaces.ReviewStorage
	settings interfaces.SettingStorage
	perPage  int
	logger   arbor.ILogger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(taskService TaskServiceInterface, reviews interfaces.ReviewStorage, settings interfaces.SettingStorage, perPage int, logger arbor.ILogger) *ReviewHandler {
	return &ReviewHandler{
		tasks:    taskService,
		reviews:  reviews,
		settings: settings,
		perPage:  perPage,
		logger:   logger,
	}
}

// GetReviewsHandler handles GET /api/reviews - one page of stored reviews
// for the configured listing, with stats and scrape progress. When nothing
// has been ingested yet and no scrape is running, a scrape is started and a
// parsing placeholder is returned so a first call is all a client needs.
func (h *ReviewHandler) GetReviewsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	ctx := r.Context()

	source, err := h.settings.Get(ctx, models.SettingSourceURL)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read source setting")
		WriteError(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}
	if source == "" {
		WriteError(w, http.StatusBadRequest, "No source listing configured")
		return
	}

	targetID := common.ExtractTargetID(source)
	if targetID == "" {
		WriteError(w, http.StatusBadRequest, "Configured source URL has no target ID")
		return
	}

	count, err := h.reviews.CountReviews(ctx, targetID)
	if err != nil {
		h.logger.Error().Err(err).Str("target_id", targetID).Msg("Failed to count reviews")
		WriteError(w, http.StatusInternalServerError, "Failed to load reviews")
		return
	}

	active, err := h.tasks.GetActiveTask(ctx, targetID)
	if err != nil {
		h.logger.Error().Err(err).Str("target_id", targetID).Msg("Failed to look up active task")
		WriteError(w, http.StatusInternalServerError, "Failed to load task state")
		return
	}

	if count == 0 {
		if active == nil {
			task, _, err := h.tasks.StartTask(ctx, source, false)
			if err != nil {
				h.logger.Error().Err(err).Str("url", source).Msg("Auto-start scrape failed")
				WriteError(w, http.StatusInternalServerError, "Failed to start scrape")
				return
			}
			active = task
			h.logger.Info().Str("task_id", task.ID).Msg("Auto-started scrape for empty target")
		}
		h.writeParsingPlaceholder(w, active)
		return
	}

	page := GetPageParam(r)
	pageReviews, err := h.reviews.ListReviews(ctx, targetID, page, h.perPage)
	if err != nil {
		h.logger.Error().Err(err).Str("target_id", targetID).Msg("Failed to list reviews")
		WriteError(w, http.StatusInternalServerError, "Failed to load reviews")
		return
	}

	stats, err := h.reviews.GetStats(ctx, targetID)
	if err != nil {
		h.logger.Error().Err(err).Str("target_id", targetID).Msg("Failed to aggregate stats")
		WriteError(w, http.StatusInternalServerError, "Failed to load statistics")
		return
	}

	status := "ready"
	progressTask := active
	if progressTask == nil {
		progressTask, _ = h.tasks.GetLastCompletedTask(ctx, targetID)
	} else {
		status = "parsing"
	}

	response := map[string]interface{}{
		"status":     status,
		"reviews":    pageReviews,
		"stats":      stats,
		"pagination": NewPagination(page, h.perPage, count),
	}
	if progressTask != nil {
		response["progress"] = progressTask.Progress()
		if progressTask.TargetMeta != nil {
			response["organization"] = progressTask.TargetMeta
		}
	}

	WriteJSON(w, http.StatusOK, response)
}

// writeParsingPlaceholder answers while the first batches are still pending
func (h *ReviewHandler) writeParsingPlaceholder(w http.ResponseWriter, task *models.ScrapeTask) {
	response := map[string]interface{}{
		"status":  "parsing",
		"reviews": []*models.Review{},
		"stats":   &models.ReviewStats{},
	}
	if task != nil {
		response["progress"] = task.Progress()
		if task.TargetMeta != nil {
			response["organization"] = task.TargetMeta
		}
	}
	WriteJSON(w, http.StatusOK, response)
}

type parseRequest struct {
	URL string `json:"url"`
}

// ParseHandler handles POST /api/reviews/parse - forced re-run. The active
// task is superseded and stored reviews for the target are wiped before
// scraping starts over.
func (h *ReviewHandler) ParseHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	ctx := r.Context()

	var req parseRequest
	if r.Body != nil {
		// Body is optional, the configured source is the default
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	url := req.URL
	if url == "" {
		source, err := h.settings.Get(ctx, models.SettingSourceURL)
		if err != nil || source == "" {
			WriteError(w, http.StatusBadRequest, "No URL given and no source listing configured")
			return
		}
		url = source
	}

	task, _, err := h.tasks.StartTask(ctx, url, true)
	if err != nil {
		if errors.Is(err, tasks.ErrInvalidTargetURL) {
			WriteError(w, http.StatusBadRequest, "URL does not reference a listing")
			return
		}
		h.logger.Error().Err(err).Str("url", url).Msg("Forced re-run failed to start")
		WriteError(w, http.StatusInternalServerError, "Failed to start scrape")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "started",
		"task_id": task.ID,
		"target":  task.TargetID,
	})
}

type retargetRequest struct {
	URL string `json:"url"`
}

// RetargetHandler handles POST /api/reviews/retarget - switch to a new
// source listing. Old targets keep their reviews as history.
func (h *ReviewHandler) RetargetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req retargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		WriteError(w, http.StatusBadRequest, "Request body must contain a url")
		return
	}

	task, err := h.tasks.Retarget(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, tasks.ErrInvalidTargetURL) {
			WriteError(w, http.StatusBadRequest, "URL does not reference a listing")
			return
		}
		h.logger.Error().Err(err).Str("url", req.URL).Msg("Retarget failed")
		WriteError(w, http.StatusInternalServerError, "Failed to retarget")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "started",
		"task_id": task.ID,
		"target":  task.TargetID,
	})
}
