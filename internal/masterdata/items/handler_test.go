package items

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/procurehub/procurehub/internal/platform/httpx"
	"github.com/procurehub/procurehub/internal/rbac"
	"github.com/procurehub/procurehub/internal/shared"
	"github.com/procurehub/procurehub/report"
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc, _, _, _ := newTestService(t)
	h := NewHandler(nil, svc, rbac.Middleware{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			role := req.Header.Get("X-Test-Role")
			if role == "" {
				next.ServeHTTP(w, req)
				return
			}
			ctx := shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: role})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/items", h.MountRoutes)
	return r, svc
}

func call(t *testing.T, router http.Handler, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestItemRoutesEnforceRoles(t *testing.T) {
	router, _ := newTestRouter(t)
	payload := map[string]any{"code": "GLV", "name": "Gloves", "unit_price": 1.2, "reorder_level": 5}

	require.Equal(t, http.StatusUnauthorized, call(t, router, http.MethodGet, "/items", "", nil).Code)
	require.Equal(t, http.StatusForbidden, call(t, router, http.MethodPost, "/items/createItem", rbac.RoleEmployee, payload).Code)

	rec := call(t, router, http.MethodPost, "/items/createItem", rbac.RoleStore, payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = call(t, router, http.MethodGet, "/items?search=glo", rbac.RoleEmployee, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success)
	require.Len(t, env.Data, 1)
	require.Equal(t, 1, env.Meta.Total)
}

func TestItemCRUDOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := call(t, router, http.MethodPost, "/items/createItem", rbac.RoleAdmin, map[string]any{"code": "", "name": "X"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, router, http.MethodPost, "/items/createItem", rbac.RoleAdmin, map[string]any{"code": "X", "name": "X", "quantity_on_hand": 50})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, router, http.MethodPost, "/items/createItem", rbac.RoleAdmin, map[string]any{"code": "TAPE", "name": "Tape"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = call(t, router, http.MethodPost, "/items/createItem", rbac.RoleAdmin, map[string]any{"code": "TAPE", "name": "Tape again"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, router, http.MethodPut, "/items/updateItem/1", rbac.RoleStore, map[string]any{"code": "TAPE", "name": "Duct tape"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, router, http.MethodGet, "/items/1", rbac.RoleEmployee, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Duct tape")

	rec = call(t, router, http.MethodGet, "/items/abc", rbac.RoleEmployee, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, router, http.MethodDelete, "/items/deleteItem/1", rbac.RoleStore, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(t, router, http.MethodGet, "/items/1", rbac.RoleEmployee, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportProducesWorkbook(t *testing.T) {
	router, svc := newTestRouter(t)
	_, err := svc.Create(context.Background(), ItemInput{Code: "A", Name: "Alpha", UnitPrice: 10})
	require.NoError(t, err)

	rec := call(t, router, http.MethodGet, "/items/export", rbac.RolePurchase, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, report.ContentTypeXLSX, rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Items")
	require.NoError(t, err)
	require.Equal(t, "Code", rows[0][0])
	require.Equal(t, "A", rows[1][0])
}
