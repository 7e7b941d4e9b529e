package orders

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/kitarena/kitarena/internal/auth"
	"github.com/kitarena/kitarena/internal/shared"
)

func (h *Handler) MountRoutes(r chi.Router, gate auth.Gate) {
	// Checkout is public; identity is attached when a token is present.
	// The tighter per-IP limit keeps checkout spam off the pricing path.
	r.With(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Post("/orders", h.Create)

	r.Group(func(r chi.Router) {
		r.Use(gate.RequireRole(shared.RoleAdmin, shared.RoleSeller))
		r.Get("/orders", h.List)
		r.Get("/orders/{id}", h.Get)
		r.Post("/orders/{id}/deposit", h.RecordDeposit)
	})

	r.Group(func(r chi.Router) {
		r.Use(gate.RequireRole(shared.RoleAdmin))
		r.Patch("/orders/{id}/status", h.Transition)
	})
}
