package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/procurehub/internal/rbac"
	"github.com/procurehub/procurehub/internal/shared"
)

type memoryRepo struct {
	nextID  int64
	vendors map[int64]Vendor
	inUse   map[int64]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{vendors: map[int64]Vendor{}, inUse: map[int64]bool{}}
}

func (m *memoryRepo) List(ctx context.Context, filters Filters) ([]Vendor, int, error) {
	var out []Vendor
	for id := int64(1); id <= m.nextID; id++ {
		v, ok := m.vendors[id]
		if !ok || (filters.Status != "" && v.Status != filters.Status) {
			continue
		}
		out = append(out, v)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Vendor, error) {
	v, ok := m.vendors[id]
	if !ok {
		return Vendor{}, fmt.Errorf("%w: vendor", shared.ErrNotFound)
	}
	return v, nil
}

func (m *memoryRepo) Create(ctx context.Context, v Vendor) (Vendor, error) {
	for _, existing := range m.vendors {
		if existing.Code == v.Code {
			return Vendor{}, fmt.Errorf("%w: vendor", shared.ErrDuplicate)
		}
	}
	m.nextID++
	v.ID = m.nextID
	m.vendors[v.ID] = v
	return v, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, v Vendor) (Vendor, error) {
	if _, ok := m.vendors[id]; !ok {
		return Vendor{}, fmt.Errorf("%w: vendor", shared.ErrNotFound)
	}
	v.ID = id
	m.vendors[id] = v
	return v, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.vendors[id]; !ok {
		return fmt.Errorf("%w: vendor", shared.ErrNotFound)
	}
	delete(m.vendors, id)
	return nil
}

func (m *memoryRepo) InUse(ctx context.Context, id int64) (bool, error) {
	return m.inUse[id], nil
}

func TestVendorCreateKeepsNestedObjects(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	v, err := svc.Create(context.Background(), VendorInput{
		Code:    "acme",
		Name:    "Acme Supplies",
		Email:   "Sales@Acme.test",
		Address: Address{Line1: "12 Dock Rd", City: "Pune", Country: "IN"},
		Bank:    BankDetails{AccountNumber: "00123", BankName: "State Bank", IFSC: "sbin0001"},
	})
	require.NoError(t, err)
	require.Equal(t, "ACME", v.Code)
	require.Equal(t, "sales@acme.test", v.Email)
	require.Equal(t, StatusActive, v.Status)
	require.Equal(t, "Pune", v.Address.City)
	require.Equal(t, "SBIN0001", v.Bank.IFSC)
	require.True(t, v.IsActive())

	_, err = svc.Create(context.Background(), VendorInput{Code: "X", Name: "X", Bank: BankDetails{AccountNumber: "1"}})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestVendorDeleteBlockedWhenReferenced(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	v, err := svc.Create(context.Background(), VendorInput{Code: "V1", Name: "Vendor one"})
	require.NoError(t, err)

	repo.inUse[v.ID] = true
	require.ErrorIs(t, svc.Delete(context.Background(), v.ID), shared.ErrInvalidState)

	repo.inUse[v.ID] = false
	require.NoError(t, svc.Delete(context.Background(), v.ID))
	require.ErrorIs(t, svc.Delete(context.Background(), v.ID), shared.ErrNotFound)
}

func TestVendorRoutes(t *testing.T) {
	h := NewHandler(nil, NewService(newMemoryRepo(), nil, nil), rbac.Middleware{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 3, Role: req.Header.Get("X-Role")})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/vendors", h.MountRoutes)

	send := func(method, path, role string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("X-Role", role)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	body := map[string]any{
		"code": "GLOBEX", "name": "Globex", "email": "not-an-email",
		"address": map[string]string{"city": "Chennai"},
	}
	rec := send(http.MethodPost, "/vendors/createVendor", rbac.RolePurchase, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"email"`)

	body["email"] = "ops@globex.test"
	require.Equal(t, http.StatusForbidden, send(http.MethodPost, "/vendors/createVendor", rbac.RoleStore, body).Code)
	require.Equal(t, http.StatusCreated, send(http.MethodPost, "/vendors/createVendor", rbac.RolePurchase, body).Code)

	body["status"] = "INACTIVE"
	rec = send(http.MethodPut, "/vendors/updateVendor/1", rbac.RolePurchase, body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"INACTIVE"`)

	body["status"] = "DORMANT"
	require.Equal(t, http.StatusBadRequest, send(http.MethodPut, "/vendors/updateVendor/1", rbac.RolePurchase, body).Code)

	rec = send(http.MethodGet, "/vendors/1", rbac.RoleAccounts, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Chennai")

	require.Equal(t, http.StatusForbidden, send(http.MethodGet, "/vendors", rbac.RoleEmployee, nil).Code)
	require.Equal(t, http.StatusOK, send(http.MethodDelete, "/vendors/deleteVendor/1", rbac.RoleAdmin, nil).Code)
}

type failingAudit struct{}

func (failingAudit) Record(context.Context, shared.AuditLog) error {
	return errors.New("audit table unavailable")
}

func TestVendorAuditFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	svc := NewService(newMemoryRepo(), failingAudit{}, slog.New(slog.NewTextHandler(&buf, nil)))

	_, err := svc.Create(context.Background(), VendorInput{Code: "V9", Name: "Vendor nine"})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "vendor audit")
	require.Contains(t, buf.String(), "action=vendor.create")
}
