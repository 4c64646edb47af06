package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/procurehub/procurehub/internal/platform/httpx"
	"github.com/procurehub/procurehub/internal/rbac"
	"github.com/procurehub/procurehub/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, validator: httpx.NewValidator()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleStore, rbac.RolePurchase))
		r.Get("/movements", h.handleMovements)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleStore))
		r.Post("/issue", h.handleIssue)
		r.Post("/adjust", h.handleAdjust)
	})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{
		ListFilters: shared.ParseListFilters(q),
		Type:        MovementType(strings.ToUpper(q.Get("type"))),
	}
	if raw := q.Get("item_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "invalid item_id", nil)
			return
		}
		filter.ItemID = id
	}
	list, meta, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.List(w, list, meta)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var input IssueInput
	if err := httpx.Bind(r, h.validator, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	m, err := h.service.Issue(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, m)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var input AdjustInput
	if err := httpx.Bind(r, h.validator, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	m, err := h.service.Adjust(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, m)
}
