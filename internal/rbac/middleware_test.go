package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/procurehub/procurehub/internal/shared"
)

func serve(t *testing.T, mw func(http.Handler) http.Handler, p *shared.Principal) int {
	t.Helper()
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/vendors", nil)
	if p != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), *p))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireRole(t *testing.T) {
	m := Middleware{}
	guard := m.RequireRole(RolePurchase, " Accounts ")

	require.Equal(t, http.StatusUnauthorized, serve(t, guard, nil))
	require.Equal(t, http.StatusForbidden, serve(t, guard, &shared.Principal{UserID: 1, Role: RoleStore}))
	require.Equal(t, http.StatusNoContent, serve(t, guard, &shared.Principal{UserID: 1, Role: RolePurchase}))
	require.Equal(t, http.StatusNoContent, serve(t, guard, &shared.Principal{UserID: 1, Role: RoleAccounts}))
	require.Equal(t, http.StatusNoContent, serve(t, guard, &shared.Principal{UserID: 1, Role: RoleAdmin}))
}

func TestRequireAuthAdmitsAnyRole(t *testing.T) {
	m := Middleware{}
	require.Equal(t, http.StatusNoContent, serve(t, m.RequireAuth(), &shared.Principal{UserID: 9, Role: RoleEmployee}))
	require.Equal(t, http.StatusUnauthorized, serve(t, m.RequireAuth(), &shared.Principal{}))
}

func TestIsKnownRole(t *testing.T) {
	require.True(t, IsKnownRole("Inspector"))
	require.False(t, IsKnownRole("superuser"))
	require.Len(t, Roles(), 6)
}
