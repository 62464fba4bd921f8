// Package handlers provides HTTP handlers for rolling backtests.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/metrics"
	"github.com/aristath/allocator/internal/modules/backtest"
	"github.com/aristath/allocator/internal/modules/optimization"
)

// Handler handles backtest HTTP requests
type Handler struct {
	allocator *optimization.StaticAllocator
	metrics   *metrics.Registry
	defaults  config.ModelDefaults
	log       zerolog.Logger
}

// NewHandler creates a new backtest handler
func NewHandler(
	allocator *optimization.StaticAllocator,
	registry *metrics.Registry,
	defaults config.ModelDefaults,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		allocator: allocator,
		metrics:   registry,
		defaults:  defaults,
		log:       log.With().Str("handler", "backtest").Logger(),
	}
}

// runRequest embeds the options so their fields sit at the top level of the
// body; absent fields keep the configured defaults.
type runRequest struct {
	Strategy backtest.Strategy       `json:"strategy"`
	Prices   optimization.PricePanel `json:"prices"`
	Scale    float64                 `json:"scale"`
	backtest.Options
}

// HandleRun handles POST /api/backtest
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	req := runRequest{
		Strategy: backtest.StrategyMinimumVariance,
		Scale:    h.defaults.Scale,
		Options:  h.defaults.Backtest,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	backtester := backtest.NewBacktester(
		optimization.NewMomentEstimator(req.Scale, h.log),
		h.allocator,
		h.log,
	)

	start := time.Now()
	result, err := backtester.Run(req.Strategy, req.Prices, req.Options)
	h.metrics.ObserveSolve("backtest", start, err)
	if err != nil {
		h.fail(w, err, "Failed to run backtest")
		return
	}
	h.metrics.BacktestFallbacks.Add(float64(result.Fallbacks))

	h.writeData(w, result)
}

// HandleListStrategies handles GET /api/backtest/strategies
func (h *Handler) HandleListStrategies(w http.ResponseWriter, r *http.Request) {
	h.writeData(w, map[string]interface{}{
		"strategies": backtest.Strategies(),
		"defaults":   h.defaults.Backtest,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, backtest.ErrUnknownStrategy),
		errors.Is(err, backtest.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, backtest.ErrInsufficientData),
		errors.Is(err, optimization.ErrInsufficientData),
		errors.Is(err, optimization.ErrDuplicatePrice):
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
