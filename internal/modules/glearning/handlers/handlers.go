// Package handlers provides HTTP handlers for the G-learning allocator. The
// server keeps no learner state: each response carries a msgpack checkpoint
// that the client sends back with the next step.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/metrics"
	"github.com/aristath/allocator/internal/modules/glearning"
	"github.com/aristath/allocator/internal/modules/optimization"
)

// Handler handles G-learning HTTP requests
type Handler struct {
	learner  *glearning.Learner
	metrics  *metrics.Registry
	defaults config.ModelDefaults
	log      zerolog.Logger
}

// NewHandler creates a new G-learning handler
func NewHandler(
	learner *glearning.Learner,
	registry *metrics.Registry,
	defaults config.ModelDefaults,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		learner:  learner,
		metrics:  registry,
		defaults: defaults,
		log:      log.With().Str("handler", "glearning").Logger(),
	}
}

type initRequest struct {
	NumSteps        int              `json:"num_steps"`
	NumAssets       int              `json:"num_assets"`
	InitialHoldings []float64        `json:"initial_holdings"`
	Params          glearning.Params `json:"params"`
}

type stepRequest struct {
	T          int         `json:"t"`
	Checkpoint []byte      `json:"checkpoint"`
	ExpReturns []float64   `json:"exp_returns"`
	Covariance [][]float64 `json:"covariance"`
	Returns    []float64   `json:"returns"`
}

// HandleInit handles POST /api/glearning/init
func (h *Handler) HandleInit(w http.ResponseWriter, r *http.Request) {
	req := initRequest{Params: h.defaults.GLearning}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.NumAssets == 0 {
		req.NumAssets = len(req.InitialHoldings)
	}

	state, err := glearning.New(req.NumSteps, req.NumAssets, req.InitialHoldings, req.Params)
	if err != nil {
		h.fail(w, err, "Failed to create learner")
		return
	}

	checkpoint, err := state.MarshalBinary()
	if err != nil {
		h.fail(w, err, "Failed to encode learner state")
		return
	}

	h.log.Info().
		Str("state", state.ID).
		Int("steps", state.NumSteps).
		Int("assets", state.NumAssets).
		Msg("Learner created")

	h.writeData(w, map[string]interface{}{
		"id":         state.ID,
		"step":       state.Step,
		"num_steps":  state.NumSteps,
		"checkpoint": checkpoint,
	})
}

// HandleStep handles POST /api/glearning/step
func (h *Handler) HandleStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := glearning.Restore(req.Checkpoint)
	if err != nil {
		h.log.Debug().Err(err).Msg("Invalid checkpoint")
		h.writeError(w, http.StatusBadRequest, "Invalid checkpoint")
		return
	}
	cov, err := optimization.SymmetricFromRows(req.Covariance)
	if err != nil {
		h.fail(w, err, "Invalid covariance")
		return
	}

	start := time.Now()
	weights, next, err := h.learner.Step(req.T, state, req.ExpReturns, cov, req.Returns)
	h.metrics.ObserveSolve("g_learning", start, err)
	if err != nil {
		h.fail(w, err, "Failed to run learner step")
		return
	}
	h.metrics.LearnerSteps.Inc()

	checkpoint, err := next.MarshalBinary()
	if err != nil {
		h.fail(w, err, "Failed to encode learner state")
		return
	}

	h.writeData(w, map[string]interface{}{
		"id":         next.ID,
		"weights":    weights,
		"holdings":   next.Holdings,
		"step":       next.Step,
		"remaining":  next.Remaining(),
		"checkpoint": checkpoint,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, glearning.ErrInvalidParams),
		errors.Is(err, glearning.ErrDimensionMismatch),
		errors.Is(err, optimization.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, glearning.ErrOutOfOrder),
		errors.Is(err, glearning.ErrHorizonExhausted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(message)
		h.writeError(w, status, message)
		return
	}
	h.log.Debug().Err(err).Msg(message)
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
