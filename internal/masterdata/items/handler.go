package items

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/procurehub/procurehub/internal/platform/httpx"
	"github.com/procurehub/procurehub/internal/rbac"
	"github.com/procurehub/procurehub/internal/shared"
	"github.com/procurehub/procurehub/report"
)

// Handler exposes item endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, validator: httpx.NewValidator()}
}

func parseFilters(r *http.Request) Filters {
	q := r.URL.Query()
	f := Filters{ListFilters: shared.ParseListFilters(q), Category: q.Get("category")}
	f.LowStock, _ = strconv.ParseBool(q.Get("low_stock"))
	if raw := q.Get("is_active"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			f.IsActive = &v
		}
	}
	return f
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, meta, err := h.service.List(r.Context(), parseFilters(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.List(w, list, meta)
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	list, meta, err := h.service.LowStock(r.Context(), parseFilters(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.List(w, list, meta)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, item)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input ItemInput
	if err := httpx.Bind(r, h.validator, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	item, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, item)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var input ItemInput
	if err := httpx.Bind(r, h.validator, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	item, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, item)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int64{"id": id})
}

// Export streams the filtered item list as an XLSX workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	filters.Page = 1
	filters.Limit = 0
	list, _, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	data, err := report.Workbook(ItemSheet(list))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	report.WriteXLSX(w, report.Filename("items", time.Now()), data)
}

// ItemSheet lays items out as a spreadsheet tab.
func ItemSheet(list []Item) report.Sheet {
	sheet := report.Sheet{
		Name:    "Items",
		Headers: []string{"Code", "Name", "Category", "UOM", "Unit Price", "Reorder Level", "On Hand", "Location", "Active", "Low Stock"},
	}
	var value float64
	for _, i := range list {
		sheet.Rows = append(sheet.Rows, []any{
			i.Code, i.Name, i.Category, i.UOM, i.UnitPrice, i.ReorderLevel, i.QuantityOnHand, i.Location, i.IsActive, i.BelowReorder(),
		})
		value += i.UnitPrice * i.QuantityOnHand
	}
	sheet.Footer = [][]any{
		{"Items", len(list)},
		{"Stock value", report.FormatAmount("", value)},
	}
	return sheet
}
