package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/interfaces"
)

// SettingsHandler handles key/value settings HTTP requests
type SettingsHandler struct {
	settings interfaces.SettingStorage
	logger   arbor.ILogger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings interfaces.SettingStorage, logger arbor.ILogger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		logger:   logger,
	}
}

// SettingsHandler handles GET and POST on /api/settings
func (h *SettingsHandler) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.set(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) list(w http.ResponseWriter, r *http.Request) {
	values, err := h.settings.GetAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list settings")
		WriteError(w, http.StatusInternalServerError, "Failed to list settings")
		return
	}
	WriteJSON(w, http.StatusOK, values)
}

type setSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *SettingsHandler) set(w http.ResponseWriter, r *http.Request) {
	var req setSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		WriteError(w, http.StatusBadRequest, "Request body must contain key and value")
		return
	}

	if err := h.settings.Set(r.Context(), req.Key, req.Value); err != nil {
		h.logger.Error().Err(err).Str("key", req.Key).Msg("Failed to save setting")
		WriteError(w, http.StatusInternalServerError, "Failed to save setting")
		return
	}

	h.logger.Info().Str("key", req.Key).Msg("Setting updated")
	WriteSuccess(w, "Setting saved")
}
