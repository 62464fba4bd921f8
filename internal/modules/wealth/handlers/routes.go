package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the wealth-goal routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/wealth", func(r chi.Router) {
		r.Post("/dp", h.HandleDynamicProgramming)
		r.Post("/q-learning", h.HandleQLearning)
	})
}
