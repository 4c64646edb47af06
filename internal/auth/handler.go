package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/procurehub/procurehub/internal/platform/httpx"
	"github.com/procurehub/procurehub/internal/rbac"
	"github.com/procurehub/procurehub/internal/shared"
)

// Handler wires HTTP endpoints for authentication and user management.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	authn      *Authenticator
	rbac       rbac.Middleware
	validator  *validator.Validate
	loginGuard []func(http.Handler) http.Handler
}

// NewHandler constructs a Handler. loginGuard is applied to POST /login only,
// typically a tighter rate limit.
func NewHandler(logger *slog.Logger, service *Service, authn *Authenticator, rbacMW rbac.Middleware, loginGuard ...func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		authn:      authn,
		rbac:       rbacMW,
		validator:  httpx.NewValidator(),
		loginGuard: loginGuard,
	}
}

// MountRoutes registers /auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.loginGuard...).Post("/login", h.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(h.authn.Middleware)
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
	})
}

// MountUserRoutes registers /users routes. The caller must already be
// authenticated.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
	r.Get("/", h.listUsers)
	r.Get("/{id}", h.showUser)
	r.Post("/createUser", h.createUser)
	r.Put("/updateUser/{id}", h.updateUser)
	r.Delete("/deleteUser/{id}", h.deleteUser)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.Logout(r.Context(), p); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]bool{"logged_out": true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), shared.ActorID(r.Context()))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, meta, err := h.service.ListUsers(r.Context(), shared.ParseListFilters(r.URL.Query()))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.List(w, users, meta)
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserInput
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	user, err := h.service.CreateUser(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req UpdateUserInput
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	user, err := h.service.UpdateUser(r.Context(), id, req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int64{"id": id})
}
