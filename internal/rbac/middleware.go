package rbac

import (
	"log/slog"
	"net/http"

	"github.com/procurehub/procurehub/internal/platform/httpx"
	"github.com/procurehub/procurehub/internal/shared"
)

// Middleware wires role checks for HTTP handlers. It expects the auth
// middleware to have stored a shared.Principal in the request context.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAuth only checks that a principal is present.
func (m Middleware) RequireAuth() func(http.Handler) http.Handler {
	return m.RequireRole()
}

// RequireRole ensures the current user holds one of roles. Admins pass every
// check; an empty role list admits any authenticated user.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := shared.PrincipalFromContext(r.Context())
			if !ok || p.UserID == 0 {
				httpx.RespondError(w, m.Logger, shared.ErrUnauthorized)
				return
			}
			if !Allowed(p.Role, allowed) {
				if m.Logger != nil {
					m.Logger.Warn("rbac denied", slog.Int64("user_id", p.UserID), slog.String("role", p.Role), slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, m.Logger, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allowed reports whether role satisfies the allowed set.
func Allowed(role string, allowed []string) bool {
	role = normalize(role)
	if role == RoleAdmin || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}

func normalizeRoles(roles []string) []string {
	unique := make(map[string]struct{}, len(roles))
	normalized := make([]string, 0, len(roles))
	for _, r := range roles {
		r = normalize(r)
		if r == "" {
			continue
		}
		if _, seen := unique[r]; seen {
			continue
		}
		unique[r] = struct{}{}
		normalized = append(normalized, r)
	}
	return normalized
}
