package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the static optimizer routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimizer", func(r chi.Router) {
		r.Post("/moments", h.HandleMoments)
		r.Post("/minimum-variance", h.HandleMinimumVariance)
		r.Post("/mean-variance", h.HandleMeanVariance)
		r.Post("/frontier", h.HandleFrontier)
		r.Post("/hrp", h.HandleHierarchicalRiskParity)
	})
}
