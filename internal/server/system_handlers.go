package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	monitor *StatusMonitor
	log     zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(monitor *StatusMonitor, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		monitor: monitor,
		log:     log.With().Str("handler", "system").Logger(),
	}
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string          `json:"status"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	GoVersion     string          `json:"go_version"`
	System        *SystemSnapshot `json:"system,omitempty"`
	Timestamp     string          `json:"timestamp"`
}

// HandleSystemStatus returns process uptime and the latest host sample
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: h.monitor.Uptime().Seconds(),
		GoVersion:     runtime.Version(),
		Timestamp:     time.Now().Format(time.RFC3339),
	}
	if snapshot, ok := h.monitor.Snapshot(); ok {
		response.System = &snapshot
	} else {
		response.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}
