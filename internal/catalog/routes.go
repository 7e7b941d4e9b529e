package catalog

import (
	"github.com/go-chi/chi/v5"

	"github.com/kitarena/kitarena/internal/auth"
	"github.com/kitarena/kitarena/internal/shared"
)

func (h *Handler) MountRoutes(r chi.Router, gate auth.Gate) {
	r.Get("/products", h.List)
	r.Get("/products/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(gate.RequireRole(shared.RoleAdmin, shared.RoleSeller))
		r.Post("/products", h.Create)
		r.Put("/products/{id}", h.Update)
		r.Delete("/products/{id}", h.Delete)
		r.Post("/products/{id}/variants", h.AddVariant)
		r.Put("/products/{id}/variants/{variantId}", h.UpdateVariant)
		r.Delete("/products/{id}/variants/{variantId}", h.DeleteVariant)
		r.Post("/products/{id}/images", h.AddImage)
		r.Delete("/products/{id}/images/{imageId}", h.DeleteImage)
	})
}
