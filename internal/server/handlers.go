package server

import (
	"encoding/json"
	"net/http"
)

// Version is overridden at build time with -ldflags "-X ...server.Version=...".
var Version = "dev"

// handleHealth reports liveness. It does no work beyond reading the uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        "allocator",
		"version":        Version,
		"uptime_seconds": int64(s.statusMonitor.Uptime().Seconds()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
