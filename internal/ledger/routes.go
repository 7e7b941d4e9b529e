package ledger

import (
	"github.com/go-chi/chi/v5"

	"github.com/kitarena/kitarena/internal/auth"
	"github.com/kitarena/kitarena/internal/shared"
)

func (h *Handler) MountRoutes(r chi.Router, gate auth.Gate) {
	r.Group(func(r chi.Router) {
		r.Use(gate.RequireRole(shared.RoleAdmin, shared.RoleSeller))
		r.Get("/transactions", h.List)
		r.Post("/transactions", h.Record)
		r.Put("/transactions/{id}", h.Update)
		r.Delete("/transactions/{id}", h.Delete)
	})
}
