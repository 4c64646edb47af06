package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/procurehub/procurehub/internal/auth"
	"github.com/procurehub/procurehub/internal/dashboard"
	"github.com/procurehub/procurehub/internal/inventory"
	"github.com/procurehub/procurehub/internal/masterdata/items"
	"github.com/procurehub/procurehub/internal/masterdata/vendors"
	"github.com/procurehub/procurehub/internal/observability"
	"github.com/procurehub/procurehub/internal/platform/httpx"
	"github.com/procurehub/procurehub/internal/procurement"
	"github.com/procurehub/procurehub/jobs"
)

// HealthCheck probes one dependency for /healthz.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	Authenticator      *auth.Authenticator
	AuthHandler        *auth.Handler
	ItemsHandler       *items.Handler
	VendorsHandler     *vendors.Handler
	InventoryHandler   *inventory.Handler
	ProcurementHandler *procurement.Handler
	DashboardHandler   *dashboard.Handler
	JobHandler         *jobs.Handler

	HealthChecks map[string]HealthCheck
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router with ProcureHub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler(params.HealthChecks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	// Everything below needs a bearer token.
	r.Group(func(r chi.Router) {
		if params.Authenticator != nil {
			r.Use(params.Authenticator.Middleware)
		}
		if params.AuthHandler != nil {
			r.Route("/users", params.AuthHandler.MountUserRoutes)
		}
		if params.ItemsHandler != nil {
			r.Route("/items", params.ItemsHandler.MountRoutes)
		}
		if params.VendorsHandler != nil {
			r.Route("/vendors", params.VendorsHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if h := params.ProcurementHandler; h != nil {
			r.Route("/indents", h.MountIndentRoutes)
			r.Route("/rfqs", h.MountRFQRoutes)
			r.Route("/purchaseOrders", h.MountPORoutes)
			r.Route("/grns", h.MountGRNRoutes)
			r.Route("/inspections", h.MountInspectionRoutes)
			r.Route("/invoices", h.MountInvoiceRoutes)
		}
		if params.DashboardHandler != nil {
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := map[string]string{}
		failures := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failures[name] = err.Error()
				continue
			}
			status[name] = "ok"
		}
		if len(failures) > 0 {
			httpx.Fail(w, http.StatusServiceUnavailable, "dependency unavailable", failures)
			return
		}
		status["status"] = "ok"
		httpx.OK(w, http.StatusOK, status)
	}
}
