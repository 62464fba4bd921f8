package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the backtest routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/backtest", h.HandleRun)
	r.Get("/backtest/strategies", h.HandleListStrategies)
}
