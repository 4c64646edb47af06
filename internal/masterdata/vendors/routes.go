package vendors

import (
	"github.com/go-chi/chi/v5"

	"github.com/procurehub/procurehub/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RolePurchase, rbac.RoleStore, rbac.RoleAccounts))
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RolePurchase))
		r.Post("/createVendor", h.Create)
		r.Put("/updateVendor/{id}", h.Update)
		r.Delete("/deleteVendor/{id}", h.Delete)
	})
}
