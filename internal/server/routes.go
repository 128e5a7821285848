package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Reviews
	mux.HandleFunc("/api/reviews", s.app.ReviewHandler.GetReviewsHandler)
	mux.HandleFunc("/api/reviews/parse", s.app.ReviewHandler.ParseHandler)
	mux.HandleFunc("/api/reviews/retarget", s.app.ReviewHandler.RetargetHandler)

	// API routes - Tasks
	mux.HandleFunc("/api/tasks/status", s.app.TaskHandler.GetStatusHandler)
	mux.HandleFunc("/api/tasks", s.app.TaskHandler.ListTasksHandler)
	mux.HandleFunc("/api/tasks/", s.app.TaskHandler.TaskRoutesHandler) // Handles /api/tasks/{id} and actions

	// API routes - Settings
	mux.HandleFunc("/api/settings", s.app.SettingsHandler.SettingsHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler) // Graceful shutdown endpoint (dev mode)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// ShutdownHandler handles POST /api/shutdown - requests a graceful stop
func (s *Server) ShutdownHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.app.Config.Environment != "development" {
		http.Error(w, "Shutdown endpoint disabled", http.StatusForbidden)
		return
	}

	s.app.Logger.Info().Msg("Shutdown requested over API")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down"))

	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
}
