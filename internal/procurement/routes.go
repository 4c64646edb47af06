package procurement

import (
	"github.com/go-chi/chi/v5"

	"github.com/procurehub/procurehub/internal/rbac"
)

// MountIndentRoutes registers /indents. Any authenticated user may raise an
// indent; purchasing approves it.
func (h *Handler) MountIndentRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuth())
		r.Get("/", list(h, h.service.ListIndents))
		r.Get("/{id}", show(h, h.service.GetIndent))
		r.Post("/createIndent", create(h, h.service.CreateIndent))
		r.Put("/updateIndent/{id}", update(h, h.service.UpdateIndent))
		r.Put("/cancelIndent/{id}", h.cancelIndent)
		r.Delete("/deleteIndent/{id}", remove(h, h.service.DeleteIndent))
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RolePurchase))
		r.Put("/approveIndent/{id}", act(h, h.service.ApproveIndent))
		r.Put("/rejectIndent/{id}", update(h, h.rejectIndent))
	})
}

// MountRFQRoutes registers /rfqs.
func (h *Handler) MountRFQRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RolePurchase))
		r.Get("/", list(h, h.service.ListRFQs))
		r.Get("/{id}", show(h, h.service.GetRFQ))
		r.Post("/createRfq", create(h, h.service.CreateRFQ))
		r.Post("/{id}/quotes", h.createQuote)
		r.Put("/awardRfq/{id}", update(h, h.service.AwardRFQ))
		r.Put("/cancelRfq/{id}", act(h, h.service.CancelRFQ))
		r.Delete("/deleteRfq/{id}", remove(h, h.service.DeleteRFQ))
	})
}

// MountPORoutes registers /purchaseOrders. Stores and accounts can read
// orders to receive and bill against them.
func (h *Handler) MountPORoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RolePurchase, rbac.RoleStore, rbac.RoleAccounts))
		r.Get("/", list(h, h.service.ListPOs))
		r.Get("/export", h.exportPOs)
		r.Get("/{id}", show(h, h.service.GetPO))
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RolePurchase))
		r.Post("/createPurchaseOrder", create(h, h.service.CreatePO))
		r.Put("/updatePurchaseOrder/{id}", update(h, h.service.UpdatePO))
		r.Put("/approvePurchaseOrder/{id}", act(h, h.service.ApprovePO))
		r.Put("/cancelPurchaseOrder/{id}", act(h, h.service.CancelPO))
		r.Delete("/deletePurchaseOrder/{id}", remove(h, h.service.DeletePO))
	})
}

// MountGRNRoutes registers /grns.
func (h *Handler) MountGRNRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleStore, rbac.RoleInspector, rbac.RolePurchase))
		r.Get("/", list(h, h.service.ListGRNs))
		r.Get("/{id}", show(h, h.service.GetGRN))
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleStore))
		r.Post("/createGrn", create(h, h.service.CreateGRN))
		r.Delete("/deleteGrn/{id}", remove(h, h.service.DeleteGRN))
	})
}

// MountInspectionRoutes registers /inspections.
func (h *Handler) MountInspectionRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleInspector, rbac.RoleStore, rbac.RoleAccounts))
		r.Get("/", list(h, h.service.ListInspections))
		r.Get("/{id}", show(h, h.service.GetInspection))
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleInspector))
		r.Post("/createInspection", create(h, h.service.CreateInspection))
		r.Put("/postStock/{id}", h.postStock)
	})
}

// MountInvoiceRoutes registers /invoices.
func (h *Handler) MountInvoiceRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAccounts))
		r.Get("/", list(h, h.service.ListInvoices))
		r.Get("/{id}", show(h, h.service.GetInvoice))
		r.Post("/createInvoice", create(h, h.service.CreateInvoice))
		r.Put("/approveInvoice/{id}", act(h, h.service.ApproveInvoice))
		r.Put("/rejectInvoice/{id}", act(h, h.service.RejectInvoice))
		r.Put("/markPaid/{id}", act(h, h.service.MarkInvoicePaid))
	})
}
