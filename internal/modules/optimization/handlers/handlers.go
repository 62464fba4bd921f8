// Package handlers provides HTTP handlers for the static optimizers.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/metrics"
	"github.com/aristath/allocator/internal/modules/optimization"
)

// Handler handles optimizer HTTP requests
type Handler struct {
	allocator *optimization.StaticAllocator
	metrics   *metrics.Registry
	defaults  config.ModelDefaults
	log       zerolog.Logger
}

// NewHandler creates a new optimizer handler
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
		log:       log.With().Str("handler", "optimizer").Logger(),
	}
}

type momentsRequest struct {
	Prices optimization.PricePanel `json:"prices"`
	Scale  float64                 `json:"scale"`
}

// allocationRequest takes either a price panel or precomputed moments.
type allocationRequest struct {
	Prices        optimization.PricePanel `json:"prices"`
	Scale         float64                 `json:"scale"`
	Mean          []float64               `json:"mean"`
	Covariance    [][]float64             `json:"covariance"`
	LongShort     bool                    `json:"long_short"`
	Smoothing     float64                 `json:"smoothing"`
	Shrinkage     float64                 `json:"shrinkage"`
	RetTarget     *float64                `json:"ret_target"`
	NumPortfolios int                     `json:"num_portfolios"`
	Linkage       optimization.Linkage    `json:"linkage"`
}

type resolvedMoments struct {
	tickers []string
	mean    []float64
	cov     *mat.SymDense
}

// HandleMoments handles POST /api/optimizer/moments
func (h *Handler) HandleMoments(w http.ResponseWriter, r *http.Request) {
	var req momentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	start := time.Now()
	moments, err := h.estimator(req.Scale).Estimate(req.Prices)
	h.metrics.ObserveSolve("moments", start, err)
	if err != nil {
		h.fail(w, err, "Failed to estimate moments")
		return
	}

	h.writeData(w, map[string]interface{}{
		"tickers":      moments.Returns.Tickers,
		"dates":        moments.Returns.Dates,
		"mean":         moments.Mean,
		"covariance":   optimization.SymmetricRows(moments.Cov),
		"observations": moments.Returns.Rows(),
	})
}

// HandleMinimumVariance handles POST /api/optimizer/minimum-variance
func (h *Handler) HandleMinimumVariance(w http.ResponseWriter, r *http.Request) {
	req, m, ok := h.decodeAllocation(w, r)
	if !ok {
		return
	}

	start := time.Now()
	alloc, err := h.allocator.MinimumVariance(m.cov, h.staticOptions(req))
	h.metrics.ObserveSolve("minimum_variance", start, err)
	if err != nil {
		h.fail(w, err, "Failed to solve minimum variance portfolio")
		return
	}

	h.writeData(w, allocationResponse(m.tickers, alloc))
}

// HandleMeanVariance handles POST /api/optimizer/mean-variance
func (h *Handler) HandleMeanVariance(w http.ResponseWriter, r *http.Request) {
	req, m, ok := h.decodeAllocation(w, r)
	if !ok {
		return
	}
	if req.RetTarget == nil {
		h.writeError(w, http.StatusBadRequest, "ret_target is required")
		return
	}
	if m.mean == nil {
		h.writeError(w, http.StatusBadRequest, "mean or prices required")
		return
	}

	start := time.Now()
	alloc, err := h.allocator.MeanVarianceTarget(m.mean, m.cov, *req.RetTarget, h.staticOptions(req))
	h.metrics.ObserveSolve("mean_variance", start, err)
	if err != nil {
		h.fail(w, err, "Failed to solve target return portfolio")
		return
	}

	h.writeData(w, allocationResponse(m.tickers, alloc))
}

// HandleFrontier handles POST /api/optimizer/frontier
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	req, m, ok := h.decodeAllocation(w, r)
	if !ok {
		return
	}
	if m.mean == nil {
		h.writeError(w, http.StatusBadRequest, "mean or prices required")
		return
	}

	count := req.NumPortfolios
	if count == 0 {
		count = h.defaults.Goal.NumPortfolios
	}

	start := time.Now()
	frontier, err := h.allocator.EfficientFrontier(m.mean, m.cov, count, h.staticOptions(req))
	h.metrics.ObserveSolve("frontier", start, err)
	if err != nil {
		h.fail(w, err, "Failed to build efficient frontier")
		return
	}

	points := make([]map[string]interface{}, len(frontier))
	for i, alloc := range frontier {
		points[i] = allocationResponse(m.tickers, alloc)
	}
	h.writeData(w, map[string]interface{}{
		"tickers":    m.tickers,
		"portfolios": points,
	})
}

// HandleHierarchicalRiskParity handles POST /api/optimizer/hrp
func (h *Handler) HandleHierarchicalRiskParity(w http.ResponseWriter, r *http.Request) {
	req, m, ok := h.decodeAllocation(w, r)
	if !ok {
		return
	}

	start := time.Now()
	alloc, err := h.allocator.HierarchicalRiskParity(m.cov, req.Linkage)
	h.metrics.ObserveSolve("hrp", start, err)
	if err != nil {
		h.fail(w, err, "Failed to solve HRP allocation")
		return
	}

	h.writeData(w, allocationResponse(m.tickers, alloc))
}

func (h *Handler) decodeAllocation(w http.ResponseWriter, r *http.Request) (*allocationRequest, *resolvedMoments, bool) {
	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, nil, false
	}

	m, err := h.resolve(&req)
	if err != nil {
		h.fail(w, err, "Invalid moments")
		return nil, nil, false
	}
	return &req, m, true
}

// resolve estimates moments from prices when given, otherwise uses the
// supplied mean and covariance. Shrinkage is applied last.
func (h *Handler) resolve(req *allocationRequest) (*resolvedMoments, error) {
	var m resolvedMoments
	if len(req.Prices) > 0 {
		moments, err := h.estimator(req.Scale).Estimate(req.Prices)
		if err != nil {
			return nil, err
		}
		m = resolvedMoments{tickers: moments.Returns.Tickers, mean: moments.Mean, cov: moments.Cov}
	} else {
		cov, err := optimization.SymmetricFromRows(req.Covariance)
		if err != nil {
			return nil, err
		}
		if req.Mean != nil && len(req.Mean) != cov.SymmetricDim() {
			return nil, fmt.Errorf("mean has %d entries for %d assets: %w",
				len(req.Mean), cov.SymmetricDim(), optimization.ErrDimensionMismatch)
		}
		m = resolvedMoments{mean: req.Mean, cov: cov}
	}

	if req.Shrinkage != 0 {
		shrunk, err := optimization.ShrinkDiagonal(m.cov, req.Shrinkage)
		if err != nil {
			return nil, err
		}
		m.cov = shrunk
	}
	return &m, nil
}

func (h *Handler) estimator(scale float64) *optimization.MomentEstimator {
	if scale == 0 {
		scale = h.defaults.Scale
	}
	return optimization.NewMomentEstimator(scale, h.log)
}

func (h *Handler) staticOptions(req *allocationRequest) optimization.StaticOptions {
	return optimization.StaticOptions{
		LongShort: req.LongShort,
		Smoothing: req.Smoothing,
		Tolerance: h.defaults.Tolerance,
	}
}

func allocationResponse(tickers []string, alloc *optimization.Allocation) map[string]interface{} {
	return map[string]interface{}{
		"tickers":  tickers,
		"weights":  alloc.Weights,
		"variance": alloc.Variance,
		"std_dev":  alloc.StdDev(),
		"return":   alloc.Return,
	}
}

// statusFor maps optimizer errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, optimization.ErrInsufficientData),
		errors.Is(err, optimization.ErrDuplicatePrice),
		errors.Is(err, optimization.ErrInfeasibleTarget):
		return http.StatusUnprocessableEntity
	case errors.Is(err, optimization.ErrDimensionMismatch),
		errors.Is(err, optimization.ErrInvalidShrinkage),
		errors.Is(err, optimization.ErrInvalidOptions),
		errors.Is(err, optimization.ErrInvalidOrder):
		return http.StatusBadRequest
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
