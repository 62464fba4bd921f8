// Package handlers provides HTTP handlers for the wealth-goal allocators.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/metrics"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/wealth"
)

// Handler handles wealth-goal HTTP requests
type Handler struct {
	allocator *wealth.Allocator
	metrics   *metrics.Registry
	defaults  config.ModelDefaults
	log       zerolog.Logger
}

// NewHandler creates a new wealth-goal handler
func NewHandler(
	allocator *wealth.Allocator,
	registry *metrics.Registry,
	defaults config.ModelDefaults,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		allocator: allocator,
		metrics:   registry,
		defaults:  defaults,
		log:       log.With().Str("handler", "wealth").Logger(),
	}
}

// goalRequest carries per-period moments and the goal. Fields left out of
// the body keep the configured defaults.
type goalRequest struct {
	Mean        []float64          `json:"mean"`
	Covariance  [][]float64        `json:"covariance"`
	Goal        wealth.GoalConfig  `json:"goal"`
	HyperParams wealth.HyperParams `json:"hyper_params"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*goalRequest, bool) {
	req := goalRequest{
		Goal:        h.defaults.Goal,
		HyperParams: h.defaults.QLearning,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if len(req.Mean) == 0 {
		h.writeError(w, http.StatusBadRequest, "mean is required")
		return nil, false
	}
	return &req, true
}

// HandleDynamicProgramming handles POST /api/wealth/dp
func (h *Handler) HandleDynamicProgramming(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	cov, err := optimization.SymmetricFromRows(req.Covariance)
	if err != nil {
		h.fail(w, err, "Invalid covariance")
		return
	}

	start := time.Now()
	solution, err := h.allocator.SolveDP(req.Mean, cov, req.Goal)
	h.metrics.ObserveSolve("dp", start, err)
	if err != nil {
		h.fail(w, err, "Failed to solve dynamic program")
		return
	}

	h.writeData(w, map[string]interface{}{
		"success_probability": solution.SuccessProbability(),
		"initial_action":      solution.Policy[0][0],
		"portfolios":          solution.Portfolios,
		"grid":                solution.Grid,
		"policy":              solution.Policy,
		"value":               solution.Value,
	})
}

// HandleQLearning handles POST /api/wealth/q-learning
func (h *Handler) HandleQLearning(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	cov, err := optimization.SymmetricFromRows(req.Covariance)
	if err != nil {
		h.fail(w, err, "Invalid covariance")
		return
	}

	start := time.Now()
	solution, err := h.allocator.SolveQLearning(req.Mean, cov, req.Goal, req.HyperParams)
	h.metrics.ObserveSolve("q_learning", start, err)
	if err != nil {
		h.fail(w, err, "Failed to run Q-learning")
		return
	}

	h.writeData(w, map[string]interface{}{
		"success_probability": solution.SuccessProbability(),
		"initial_action":      solution.Policy[0][0],
		"epochs":              req.HyperParams.Epochs,
		"seed":                req.HyperParams.Seed,
		"portfolios":          solution.Portfolios,
		"grid":                solution.Grid,
		"policy":              solution.Policy,
		"value":               solution.Value,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, wealth.ErrInvalidConfig),
		errors.Is(err, wealth.ErrInvalidHyperParams),
		errors.Is(err, optimization.ErrDimensionMismatch),
		errors.Is(err, optimization.ErrInvalidShrinkage),
		errors.Is(err, optimization.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, optimization.ErrInfeasibleTarget),
		errors.Is(err, optimization.ErrInsufficientData):
		return http.StatusUnprocessableEntity
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
