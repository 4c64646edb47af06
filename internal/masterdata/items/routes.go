package items

import (
	"github.com/go-chi/chi/v5"

	"github.com/procurehub/procurehub/internal/rbac"
)

// MountRoutes registers /items routes. Callers must be authenticated.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuth())
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleStore, rbac.RolePurchase))
		r.Get("/lowStock", h.LowStock)
		r.Get("/export", h.Export)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleStore))
		r.Post("/createItem", h.Create)
		r.Put("/updateItem/{id}", h.Update)
		r.Delete("/deleteItem/{id}", h.Delete)
	})
}
