package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zsiec/playcore/internal/logger"
	"github.com/zsiec/playcore/internal/player"
	"github.com/zsiec/playcore/pkg/version"
)

// handleVersion handles the /version endpoint
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.GetInfo()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if err := json.NewEncoder(w).Encode(versionInfo); err != nil {
		s.logger.WithError(err).Error("Failed to encode version response")
		s.errorHandler.HandleError(w, r, err)
	}
}

// setupAPIRoutes registers the playback API on the /api/v1 subrouter.
func (s *Server) setupAPIRoutes(api *mux.Router) {
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	api.HandleFunc("/sessions/{id}/load", s.handleLoad).Methods("POST")
	api.HandleFunc("/sessions/{id}/play", s.transition((*player.Controller).Play)).Methods("POST")
	api.HandleFunc("/sessions/{id}/pause", s.transition((*player.Controller).Pause)).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.transition(func(c *player.Controller) error {
		c.Reset()
		return nil
	})).Methods("POST")
	api.HandleFunc("/sessions/{id}/seek", s.handleSeek).Methods("POST")
	api.HandleFunc("/sessions/{id}/pump", s.handlePump).Methods("POST")

	api.HandleFunc("/sessions/{id}/video", s.handleVideoFrame).Methods("GET")
	api.HandleFunc("/sessions/{id}/audio", s.handleAudioFrame).Methods("GET")
	api.HandleFunc("/sessions/{id}/streams", s.handleStreams).Methods("GET")
	api.HandleFunc("/sessions/{id}/buffers", s.handleBuffers).Methods("GET")

	api.HandleFunc("/sessions/{id}/subtitles", s.handleLoadSubtitles).Methods("POST")
	api.HandleFunc("/sessions/{id}/subtitles", s.handleSubtitlesAt).Methods("GET")

	api.HandleFunc("/sessions/{id}/resume", s.handleSaveResume).Methods("POST")
	api.HandleFunc("/resume", s.handleRecentResume).Methods("GET")
	api.HandleFunc("/resume/{mediaId}", s.handleGetResume).Methods("GET")
	api.HandleFunc("/resume/{mediaId}", s.handleDeleteResume).Methods("DELETE")
}

// respond writes data as a JSON response
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("Failed to encode response")
	}
}

// writeError is a helper to write error responses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, err)
}
