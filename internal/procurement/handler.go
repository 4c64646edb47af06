package procurement

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/procurehub/procurehub/internal/platform/httpx"
	"github.com/procurehub/procurehub/internal/rbac"
	"github.com/procurehub/procurehub/internal/shared"
	"github.com/procurehub/procurehub/report"
)

// Handler manages procurement endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, validator: httpx.NewValidator()}
}

func parseFilter(r *http.Request) Filter {
	q := r.URL.Query()
	f := Filter{ListFilters: shared.ParseListFilters(q)}
	f.VendorID, _ = strconv.ParseInt(q.Get("vendor_id"), 10, 64)
	f.IndentID, _ = strconv.ParseInt(q.Get("indent_id"), 10, 64)
	f.POID, _ = strconv.ParseInt(q.Get("po_id"), 10, 64)
	f.GRNID, _ = strconv.ParseInt(q.Get("grn_id"), 10, 64)
	return f
}

func list[T any](h *Handler, fn func(context.Context, Filter) ([]T, shared.Pagination, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, meta, err := fn(r.Context(), parseFilter(r))
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.List(w, rows, meta)
	}
}

func show[T any](h *Handler, fn func(context.Context, int64) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		v, err := fn(r.Context(), id)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, http.StatusOK, v)
	}
}

func create[In, Out any](h *Handler, fn func(context.Context, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input In
		if err := httpx.Bind(r, h.validator, &input); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		v, err := fn(r.Context(), input)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, http.StatusCreated, v)
	}
}

func update[In, Out any](h *Handler, fn func(context.Context, int64, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		var input In
		if err := httpx.Bind(r, h.validator, &input); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		v, err := fn(r.Context(), id, input)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, http.StatusOK, v)
	}
}

// act runs a bodiless state change such as approve or cancel.
func act[Out any](h *Handler, fn func(context.Context, int64) (Out, error)) http.HandlerFunc {
	return show(h, fn)
}

func remove(h *Handler, fn func(context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		if err := fn(r.Context(), id); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, http.StatusOK, map[string]int64{"id": id})
	}
}

func (h *Handler) rejectIndent(ctx context.Context, id int64, in RemarksInput) (Indent, error) {
	return h.service.RejectIndent(ctx, id, in.Remarks)
}

// cancelIndent accepts an optional {remarks} body.
func (h *Handler) cancelIndent(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var input RemarksInput
	if r.ContentLength > 0 {
		if err := httpx.Bind(r, nil, &input); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	indent, err := h.service.CancelIndent(r.Context(), id, input.Remarks)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, indent)
}

func (h *Handler) createQuote(w http.ResponseWriter, r *http.Request) {
	rfqID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var input QuoteInput
	if err := httpx.Bind(r, h.validator, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	quote, err := h.service.SubmitQuote(r.Context(), rfqID, input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, quote)
}

func (h *Handler) postStock(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	movements, err := h.service.PostStock(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, movements)
}

// exportPOs streams the filtered purchase order list as an XLSX workbook.
func (h *Handler) exportPOs(w http.ResponseWriter, r *http.Request) {
	f := parseFilter(r)
	f.Page = 1
	f.Limit = 0
	rows, _, err := h.service.ListPOs(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	data, err := report.Workbook(POSheet(rows))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	report.WriteXLSX(w, report.Filename("purchase_orders", time.Now()), data)
}

// POSheet lays purchase orders out as a spreadsheet tab.
func POSheet(rows []PurchaseOrder) report.Sheet {
	sheet := report.Sheet{
		Name:    "Purchase Orders",
		Headers: []string{"Number", "Vendor ID", "Status", "Currency", "Expected", "Subtotal", "Tax", "Total", "Created"},
	}
	totals := map[string]float64{}
	for _, po := range rows {
		expected := ""
		if po.ExpectedDate != nil {
			expected = po.ExpectedDate.Format("2006-01-02")
		}
		sheet.Rows = append(sheet.Rows, []any{
			po.Number, po.VendorID, string(po.Status), po.Currency, expected,
			po.Subtotal, po.Tax, po.Total, po.CreatedAt.Format("2006-01-02"),
		})
		if po.Status != POCancelled {
			totals[po.Currency] += po.Total
		}
	}
	sheet.Footer = append(sheet.Footer, []any{"Orders", len(rows)})
	for _, cur := range slices.Sorted(maps.Keys(totals)) {
		sheet.Footer = append(sheet.Footer, []any{"Committed " + cur, report.FormatAmount(cur, totals[cur])})
	}
	return sheet
}
