package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the G-learning routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/glearning", func(r chi.Router) {
		r.Post("/init", h.HandleInit)
		r.Post("/step", h.HandleStep)
	})
}
