package procurement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/procurehub/internal/rbac"
	"github.com/procurehub/procurehub/internal/shared"
)

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func newTestRouter(t *testing.T) (chi.Router, fixture) {
	t.Helper()
	f := newFixture(t)
	h := NewHandler(nil, f.svc, rbac.Middleware{})
	r := chi.NewRouter()
	r.Route("/indents", h.MountIndentRoutes)
	r.Route("/purchaseOrders", h.MountPORoutes)
	return r, f
}

func call(t *testing.T, r http.Handler, method, path, role string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req = req.WithContext(shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: 7, Role: role}))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	var env envelope
	if rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr.Code, env
}

func TestIndentEndpointsEnforceRoles(t *testing.T) {
	r, _ := newTestRouter(t)

	code, _ := call(t, r, http.MethodGet, "/indents", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code, env := call(t, r, http.MethodPost, "/indents/createIndent", rbac.RoleEmployee, map[string]any{
		"department": "Tool room",
		"lines":      []map[string]any{{"item_id": 10, "qty": 3}},
	})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, env.Success)
	var indent Indent
	require.NoError(t, json.Unmarshal(env.Data, &indent))
	require.Equal(t, IndentPending, indent.Status)
	require.Equal(t, int64(7), indent.RequestedBy)

	approve := fmt.Sprintf("/indents/approveIndent/%d", indent.ID)
	code, _ = call(t, r, http.MethodPut, approve, rbac.RoleEmployee, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, env = call(t, r, http.MethodPut, approve, rbac.RolePurchase, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &indent))
	require.Equal(t, IndentApproved, indent.Status)

	code, env = call(t, r, http.MethodPut, approve, rbac.RolePurchase, nil)
	require.Equal(t, http.StatusConflict, code)
	require.False(t, env.Success)

	code, _ = call(t, r, http.MethodPut, fmt.Sprintf("/indents/rejectIndent/%d", indent.ID), rbac.RolePurchase, map[string]any{})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestCreateIndentValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	code, env := call(t, r, http.MethodPost, "/indents/createIndent", rbac.RoleEmployee, map[string]any{
		"department": "Tool room",
		"lines":      []map[string]any{{"item_id": 10, "qty": 0}},
	})
	require.Equal(t, http.StatusBadRequest, code)
	require.NotEmpty(t, env.Details)

	code, _ = call(t, r, http.MethodPost, "/indents/createIndent", rbac.RoleEmployee, map[string]any{
		"department": "Tool room",
		"priority":   "urgent",
		"lines":      []map[string]any{{"item_id": 10, "qty": 1}},
	})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, r, http.MethodGet, "/indents/999", rbac.RoleEmployee, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestPurchaseOrderExportIsSpreadsheet(t *testing.T) {
	r, f := newTestRouter(t)
	f.approvedPO(t, 18)

	req := httptest.NewRequest(http.MethodGet, "/purchaseOrders/export", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 9, Role: rbac.RoleAccounts}))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Disposition"), "purchase_orders")
	require.Equal(t, "PK", rr.Body.String()[:2])

	code, _ := call(t, r, http.MethodPost, "/purchaseOrders/createPurchaseOrder", rbac.RoleAccounts, map[string]any{"vendor_id": 1})
	require.Equal(t, http.StatusForbidden, code)
}
