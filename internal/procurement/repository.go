package procurement

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procurehub/procurehub/internal/platform/db"
	"github.com/procurehub/procurehub/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Lock* methods take a row
// lock on the document header for the rest of the transaction.
type TxRepository interface {
	LockIndent(ctx context.Context, id int64) (Indent, error)
	InsertIndent(ctx context.Context, indent Indent) (Indent, error)
	UpdateIndent(ctx context.Context, indent Indent) error
	SetIndentStatus(ctx context.Context, indent Indent) error
	DeleteIndent(ctx context.Context, id int64) error

	LockRFQ(ctx context.Context, id int64) (RFQ, error)
	InsertRFQ(ctx context.Context, rfq RFQ) (RFQ, error)
	InsertQuote(ctx context.Context, quote Quote) (Quote, error)
	SetRFQStatus(ctx context.Context, rfq RFQ) error
	DeleteRFQ(ctx context.Context, id int64) error

	LockPO(ctx context.Context, id int64) (PurchaseOrder, error)
	InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	UpdatePO(ctx context.Context, po PurchaseOrder) error
	SetPOStatus(ctx context.Context, po PurchaseOrder) error
	SetPOLineReceived(ctx context.Context, lineID int64, qty float64) error
	DeletePO(ctx context.Context, id int64) error
	OpenPayables(ctx context.Context, poID int64) (int, error)
	IndentInUse(ctx context.Context, indentID int64) (bool, error)

	LockGRN(ctx context.Context, id int64) (GRN, error)
	InsertGRN(ctx context.Context, grn GRN) (GRN, error)
	SetGRNStatus(ctx context.Context, id int64, status GRNStatus) error
	DeleteGRN(ctx context.Context, id int64) error

	GetInspection(ctx context.Context, id int64) (Inspection, error)
	InsertInspection(ctx context.Context, inspection Inspection) (Inspection, error)

	LockInvoice(ctx context.Context, id int64) (Invoice, error)
	InsertInvoice(ctx context.Context, invoice Invoice) (Invoice, error)
	SetInvoiceStatus(ctx context.Context, invoice Invoice) error
}

type txRepo struct {
	tx db.DBTX
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func forUpdate(lock bool) string {
	if lock {
		return ` FOR UPDATE`
	}
	return ``
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// where accumulates numbered predicates for list queries.
type where struct {
	sql  string
	args []any
}

func newWhere() *where {
	return &where{sql: ` WHERE 1=1`}
}

// add appends clause with every ? bound to arg.
func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.sql += strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(w.args)))
}

// page returns the LIMIT/OFFSET suffix; a zero limit returns every row.
func (w *where) page(f shared.ListFilters) (string, []any) {
	if f.Limit <= 0 {
		return ``, w.args
	}
	args := append(append([]any{}, w.args...), f.Limit, f.Offset())
	return ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args)), args
}

func baseFilter(f Filter, alias string, searchCols ...string) *where {
	w := newWhere()
	if f.Status != "" {
		w.add(` AND `+alias+`.status = ?`, f.Status)
	}
	if f.Search != "" {
		clause := alias + `.number ILIKE ?`
		for _, col := range searchCols {
			clause += ` OR ` + alias + `.` + col + ` ILIKE ?`
		}
		w.add(` AND (`+clause+`)`, "%"+f.Search+"%")
	}
	return w
}

func sortOrder(f Filter, alias string, allowed ...string) string {
	dir := shared.SortDirection(f.SortDir, "DESC")
	for _, col := range allowed {
		if f.SortBy == col {
			return alias + `.` + col + ` ` + dir + `, ` + alias + `.id DESC`
		}
	}
	return alias + `.created_at ` + dir + `, ` + alias + `.id DESC`
}

// Indents

const indentColumns = `i.id, i.number, i.requested_by, i.department, i.purpose, i.required_by, i.status,
	i.approved_by, i.approved_at, i.remarks, i.created_at, i.updated_at`

func scanIndent(row pgx.Row) (Indent, error) {
	var i Indent
	err := row.Scan(&i.ID, &i.Number, &i.RequestedBy, &i.Department, &i.Purpose, &i.RequiredBy, &i.Status,
		&i.ApprovedBy, &i.ApprovedAt, &i.Remarks, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func scanIndentLine(row pgx.Row) (IndentLine, error) {
	var l IndentLine
	err := row.Scan(&l.ID, &l.IndentID, &l.ItemID, &l.Qty, &l.Note)
	return l, err
}

func loadIndent(ctx context.Context, q db.DBTX, id int64, lock bool) (Indent, error) {
	indent, err := scanIndent(q.QueryRow(ctx, `SELECT `+indentColumns+` FROM indents i WHERE i.id = $1`+forUpdate(lock), id))
	if err != nil {
		return Indent{}, db.MapError(err, "indent")
	}
	rows, err := q.Query(ctx, `SELECT id, indent_id, item_id, qty, note FROM indent_lines WHERE indent_id = $1 ORDER BY id`, id)
	if err != nil {
		return Indent{}, err
	}
	indent.Lines, err = collect(rows, scanIndentLine)
	return indent, err
}

// GetIndent returns an indent with its lines.
func (r *Repository) GetIndent(ctx context.Context, id int64) (Indent, error) {
	return loadIndent(ctx, r.pool, id, false)
}

// ListIndents returns indent headers.
func (r *Repository) ListIndents(ctx context.Context, f Filter) ([]Indent, int, error) {
	w := baseFilter(f, "i", "department", "purpose")
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM indents i`+w.sql, w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.ListFilters)
	rows, err := r.pool.Query(ctx, `SELECT `+indentColumns+` FROM indents i`+w.sql+
		` ORDER BY `+sortOrder(f, "i", "number", "status", "required_by")+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	list, err := collect(rows, scanIndent)
	return list, total, err
}

func (r *txRepo) LockIndent(ctx context.Context, id int64) (Indent, error) {
	return loadIndent(ctx, r.tx, id, true)
}

func (r *txRepo) insertIndentLines(ctx context.Context, indentID int64, lines []IndentLine) error {
	for _, l := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO indent_lines (indent_id, item_id, qty, note) VALUES ($1, $2, $3, $4)`,
			indentID, l.ItemID, l.Qty, l.Note); err != nil {
			return db.MapError(err, "indent line")
		}
	}
	return nil
}

func (r *txRepo) InsertIndent(ctx context.Context, indent Indent) (Indent, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO indents (number, requested_by, department, purpose, required_by, status)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		indent.Number, indent.RequestedBy, indent.Department, indent.Purpose, indent.RequiredBy, string(indent.Status)).Scan(&id)
	if err != nil {
		return Indent{}, db.MapError(err, "indent")
	}
	if err := r.insertIndentLines(ctx, id, indent.Lines); err != nil {
		return Indent{}, err
	}
	return loadIndent(ctx, r.tx, id, false)
}

func (r *txRepo) UpdateIndent(ctx context.Context, indent Indent) error {
	if _, err := r.tx.Exec(ctx, `UPDATE indents SET department = $2, purpose = $3, required_by = $4, updated_at = NOW() WHERE id = $1`,
		indent.ID, indent.Department, indent.Purpose, indent.RequiredBy); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM indent_lines WHERE indent_id = $1`, indent.ID); err != nil {
		return err
	}
	return r.insertIndentLines(ctx, indent.ID, indent.Lines)
}

func (r *txRepo) SetIndentStatus(ctx context.Context, indent Indent) error {
	_, err := r.tx.Exec(ctx, `UPDATE indents SET status = $2, approved_by = $3, approved_at = $4, remarks = $5, updated_at = NOW() WHERE id = $1`,
		indent.ID, string(indent.Status), indent.ApprovedBy, indent.ApprovedAt, indent.Remarks)
	return err
}

func (r *txRepo) DeleteIndent(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM indents WHERE id = $1`, id)
	return db.MapError(err, "indent")
}

// ReorderCandidates lists active items at or below reorder level that are not
// already requested by an open indent.
func (r *Repository) ReorderCandidates(ctx context.Context) ([]ReorderCandidate, error) {
	rows, err := r.pool.Query(ctx, `SELECT it.id, it.reorder_level, it.quantity_on_hand
FROM items it
WHERE it.is_active AND it.reorder_level > 0 AND it.quantity_on_hand <= it.reorder_level
  AND NOT EXISTS (
    SELECT 1 FROM indent_lines l JOIN indents i ON i.id = l.indent_id
    WHERE l.item_id = it.id AND i.status IN ('PENDING', 'APPROVED', 'IN_PROCUREMENT')
  )
ORDER BY it.code`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (ReorderCandidate, error) {
		var c ReorderCandidate
		err := row.Scan(&c.ItemID, &c.ReorderLevel, &c.QuantityOnHand)
		return c, err
	})
}

// RFQs

const rfqColumns = `r.id, r.number, r.indent_id, r.status, r.due_date, r.note, r.awarded_quote_id, r.created_by, r.created_at, r.updated_at`

func scanRFQ(row pgx.Row) (RFQ, error) {
	var r RFQ
	err := row.Scan(&r.ID, &r.Number, &r.IndentID, &r.Status, &r.DueDate, &r.Note, &r.AwardedQuoteID, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func loadRFQ(ctx context.Context, q db.DBTX, id int64, lock bool) (RFQ, error) {
	rfq, err := scanRFQ(q.QueryRow(ctx, `SELECT `+rfqColumns+` FROM rfqs r WHERE r.id = $1`+forUpdate(lock), id))
	if err != nil {
		return RFQ{}, db.MapError(err, "rfq")
	}
	rows, err := q.Query(ctx, `SELECT id, rfq_id, item_id, qty FROM rfq_lines WHERE rfq_id = $1 ORDER BY id`, id)
	if err != nil {
		return RFQ{}, err
	}
	if rfq.Lines, err = collect(rows, func(row pgx.Row) (RFQLine, error) {
		var l RFQLine
		err := row.Scan(&l.ID, &l.RFQID, &l.ItemID, &l.Qty)
		return l, err
	}); err != nil {
		return RFQ{}, err
	}
	rows, err = q.Query(ctx, `SELECT vendor_id FROM rfq_vendors WHERE rfq_id = $1 ORDER BY vendor_id`, id)
	if err != nil {
		return RFQ{}, err
	}
	if rfq.VendorIDs, err = collect(rows, func(row pgx.Row) (int64, error) {
		var v int64
		err := row.Scan(&v)
		return v, err
	}); err != nil {
		return RFQ{}, err
	}
	rfq.Quotes, err = loadQuotes(ctx, q, id)
	return rfq, err
}

func loadQuotes(ctx context.Context, q db.DBTX, rfqID int64) ([]Quote, error) {
	rows, err := q.Query(ctx, `SELECT id, rfq_id, vendor_id, lead_time_days, note, total, submitted_at
FROM rfq_quotes WHERE rfq_id = $1 ORDER BY total, id`, rfqID)
	if err != nil {
		return nil, err
	}
	quotes, err := collect(rows, func(row pgx.Row) (Quote, error) {
		var qt Quote
		err := row.Scan(&qt.ID, &qt.RFQID, &qt.VendorID, &qt.LeadTimeDays, &qt.Note, &qt.Total, &qt.SubmittedAt)
		return qt, err
	})
	if err != nil {
		return nil, err
	}
	for i := range quotes {
		rows, err := q.Query(ctx, `SELECT id, quote_id, rfq_line_id, item_id, unit_price FROM rfq_quote_lines WHERE quote_id = $1 ORDER BY id`, quotes[i].ID)
		if err != nil {
			return nil, err
		}
		if quotes[i].Lines, err = collect(rows, func(row pgx.Row) (QuoteLine, error) {
			var l QuoteLine
			err := row.Scan(&l.ID, &l.QuoteID, &l.RFQLineID, &l.ItemID, &l.UnitPrice)
			return l, err
		}); err != nil {
			return nil, err
		}
	}
	return quotes, nil
}

// GetRFQ returns an RFQ with lines, invited vendors and quotes.
func (r *Repository) GetRFQ(ctx context.Context, id int64) (RFQ, error) {
	return loadRFQ(ctx, r.pool, id, false)
}

// ListRFQs returns RFQ headers.
func (r *Repository) ListRFQs(ctx context.Context, f Filter) ([]RFQ, int, error) {
	w := baseFilter(f, "r")
	if f.IndentID > 0 {
		w.add(` AND r.indent_id = ?`, f.IndentID)
	}
	if f.VendorID > 0 {
		w.add(` AND EXISTS (SELECT 1 FROM rfq_vendors v WHERE v.rfq_id = r.id AND v.vendor_id = ?)`, f.VendorID)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rfqs r`+w.sql, w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.ListFilters)
	rows, err := r.pool.Query(ctx, `SELECT `+rfqColumns+` FROM rfqs r`+w.sql+
		` ORDER BY `+sortOrder(f, "r", "number", "status", "due_date")+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	list, err := collect(rows, scanRFQ)
	return list, total, err
}

func (r *txRepo) LockRFQ(ctx context.Context, id int64) (RFQ, error) {
	return loadRFQ(ctx, r.tx, id, true)
}

func (r *txRepo) InsertRFQ(ctx context.Context, rfq RFQ) (RFQ, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO rfqs (number, indent_id, status, due_date, note, created_by)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		rfq.Number, rfq.IndentID, string(rfq.Status), rfq.DueDate, rfq.Note, rfq.CreatedBy).Scan(&id)
	if err != nil {
		return RFQ{}, db.MapError(err, "rfq")
	}
	for _, l := range rfq.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO rfq_lines (rfq_id, item_id, qty) VALUES ($1, $2, $3)`, id, l.ItemID, l.Qty); err != nil {
			return RFQ{}, db.MapError(err, "rfq line")
		}
	}
	for _, v := range rfq.VendorIDs {
		if _, err := r.tx.Exec(ctx, `INSERT INTO rfq_vendors (rfq_id, vendor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, v); err != nil {
			return RFQ{}, db.MapError(err, "rfq vendor")
		}
	}
	return loadRFQ(ctx, r.tx, id, false)
}

func (r *txRepo) InsertQuote(ctx context.Context, quote Quote) (Quote, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO rfq_quotes (rfq_id, vendor_id, lead_time_days, note, total)
VALUES ($1, $2, $3, $4, $5) RETURNING id, submitted_at`,
		quote.RFQID, quote.VendorID, quote.LeadTimeDays, quote.Note, quote.Total).Scan(&quote.ID, &quote.SubmittedAt)
	if err != nil {
		return Quote{}, db.MapError(err, "quote")
	}
	for i := range quote.Lines {
		l := &quote.Lines[i]
		l.QuoteID = quote.ID
		if err := r.tx.QueryRow(ctx, `INSERT INTO rfq_quote_lines (quote_id, rfq_line_id, item_id, unit_price)
VALUES ($1, $2, $3, $4) RETURNING id`, quote.ID, l.RFQLineID, l.ItemID, l.UnitPrice).Scan(&l.ID); err != nil {
			return Quote{}, db.MapError(err, "quote line")
		}
	}
	return quote, nil
}

func (r *txRepo) SetRFQStatus(ctx context.Context, rfq RFQ) error {
	_, err := r.tx.Exec(ctx, `UPDATE rfqs SET status = $2, awarded_quote_id = $3, updated_at = NOW() WHERE id = $1`,
		rfq.ID, string(rfq.Status), rfq.AwardedQuoteID)
	return err
}

func (r *txRepo) DeleteRFQ(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM rfqs WHERE id = $1`, id)
	return db.MapError(err, "rfq")
}

// Purchase orders

const poColumns = `p.id, p.number, p.vendor_id, p.rfq_id, p.indent_id, p.status, p.currency, p.tax_percent,
	p.expected_date, p.payment_terms, p.note, p.approved_by, p.approved_at, p.created_by, p.created_at, p.updated_at`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var p PurchaseOrder
	err := row.Scan(&p.ID, &p.Number, &p.VendorID, &p.RFQID, &p.IndentID, &p.Status, &p.Currency, &p.TaxPercent,
		&p.ExpectedDate, &p.PaymentTerms, &p.Note, &p.ApprovedBy, &p.ApprovedAt, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func loadPO(ctx context.Context, q db.DBTX, id int64, lock bool) (PurchaseOrder, error) {
	po, err := scanPO(q.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders p WHERE p.id = $1`+forUpdate(lock), id))
	if err != nil {
		return PurchaseOrder{}, db.MapError(err, "purchase order")
	}
	rows, err := q.Query(ctx, `SELECT id, po_id, item_id, qty, unit_price, received_qty FROM po_lines WHERE po_id = $1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Lines, err = collect(rows, func(row pgx.Row) (POLine, error) {
		var l POLine
		err := row.Scan(&l.ID, &l.POID, &l.ItemID, &l.Qty, &l.UnitPrice, &l.ReceivedQty)
		return l, err
	}); err != nil {
		return PurchaseOrder{}, err
	}
	po.ComputeTotals()
	return po, nil
}

// GetPO returns a purchase order with lines and totals.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	return loadPO(ctx, r.pool, id, false)
}

// ListPOs returns purchase order headers with computed totals.
func (r *Repository) ListPOs(ctx context.Context, f Filter) ([]PurchaseOrder, int, error) {
	w := baseFilter(f, "p")
	if f.VendorID > 0 {
		w.add(` AND p.vendor_id = ?`, f.VendorID)
	}
	if f.IndentID > 0 {
		w.add(` AND p.indent_id = ?`, f.IndentID)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders p`+w.sql, w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.ListFilters)
	rows, err := r.pool.Query(ctx, `SELECT `+poColumns+`,
	COALESCE((SELECT SUM(l.qty * l.unit_price) FROM po_lines l WHERE l.po_id = p.id), 0)::float8
FROM purchase_orders p`+w.sql+` ORDER BY `+sortOrder(f, "p", "number", "status", "expected_date")+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	list, err := collect(rows, func(row pgx.Row) (PurchaseOrder, error) {
		var p PurchaseOrder
		var subtotal float64
		err := row.Scan(&p.ID, &p.Number, &p.VendorID, &p.RFQID, &p.IndentID, &p.Status, &p.Currency, &p.TaxPercent,
			&p.ExpectedDate, &p.PaymentTerms, &p.Note, &p.ApprovedBy, &p.ApprovedAt, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &subtotal)
		p.Subtotal = roundMoney(subtotal)
		p.Tax = roundMoney(p.Subtotal * p.TaxPercent / 100)
		p.Total = roundMoney(p.Subtotal + p.Tax)
		return p, err
	})
	return list, total, err
}

func (r *txRepo) LockPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	return loadPO(ctx, r.tx, id, true)
}

func (r *txRepo) insertPOLines(ctx context.Context, poID int64, lines []POLine) error {
	for _, l := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO po_lines (po_id, item_id, qty, unit_price) VALUES ($1, $2, $3, $4)`,
			poID, l.ItemID, l.Qty, l.UnitPrice); err != nil {
			return db.MapError(err, "purchase order line")
		}
	}
	return nil
}

func (r *txRepo) InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, vendor_id, rfq_id, indent_id, status, currency, tax_percent,
	expected_date, payment_terms, note, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		po.Number, po.VendorID, po.RFQID, po.IndentID, string(po.Status), po.Currency, po.TaxPercent,
		po.ExpectedDate, po.PaymentTerms, po.Note, po.CreatedBy).Scan(&id)
	if err != nil {
		return PurchaseOrder{}, db.MapError(err, "purchase order")
	}
	if err := r.insertPOLines(ctx, id, po.Lines); err != nil {
		return PurchaseOrder{}, err
	}
	return loadPO(ctx, r.tx, id, false)
}

func (r *txRepo) UpdatePO(ctx context.Context, po PurchaseOrder) error {
	if _, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET vendor_id = $2, currency = $3, tax_percent = $4, expected_date = $5,
	payment_terms = $6, note = $7, updated_at = NOW() WHERE id = $1`,
		po.ID, po.VendorID, po.Currency, po.TaxPercent, po.ExpectedDate, po.PaymentTerms, po.Note); err != nil {
		return db.MapError(err, "purchase order")
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM po_lines WHERE po_id = $1`, po.ID); err != nil {
		return err
	}
	return r.insertPOLines(ctx, po.ID, po.Lines)
}

func (r *txRepo) SetPOStatus(ctx context.Context, po PurchaseOrder) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, approved_by = $3, approved_at = $4, updated_at = NOW() WHERE id = $1`,
		po.ID, string(po.Status), po.ApprovedBy, po.ApprovedAt)
	return err
}

func (r *txRepo) SetPOLineReceived(ctx context.Context, lineID int64, qty float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE po_lines SET received_qty = $2 WHERE id = $1`, lineID, qty)
	return db.MapError(err, "purchase order line")
}

func (r *txRepo) DeletePO(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
	return db.MapError(err, "purchase order")
}

// OpenPayables counts what still blocks closing a PO: invoices awaiting
// payment, GRNs not inspected yet and accepted inspections without an invoice
// that is still standing.
func (r *txRepo) OpenPayables(ctx context.Context, poID int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT
	(SELECT COUNT(*) FROM invoices WHERE po_id = $1 AND status IN ('PENDING', 'APPROVED')) +
	(SELECT COUNT(*) FROM grns WHERE po_id = $1 AND status = 'PENDING_INSPECTION') +
	(SELECT COUNT(*) FROM inspections n JOIN grns g ON g.id = n.grn_id
	  WHERE g.po_id = $1 AND n.result <> 'REJECTED'
	    AND NOT EXISTS (SELECT 1 FROM invoices v WHERE v.inspection_id = n.id AND v.status <> 'REJECTED'))`, poID).Scan(&n)
	return n, err
}

// IndentInUse reports whether an open RFQ or a purchase order that was not
// cancelled still refers to the indent.
func (r *txRepo) IndentInUse(ctx context.Context, indentID int64) (bool, error) {
	var inUse bool
	err := r.tx.QueryRow(ctx, `SELECT
	EXISTS (SELECT 1 FROM rfqs WHERE indent_id = $1 AND status IN ('OPEN', 'AWARDED')) OR
	EXISTS (SELECT 1 FROM purchase_orders WHERE indent_id = $1 AND status <> 'CANCELLED')`, indentID).Scan(&inUse)
	return inUse, err
}

// GRNs

const grnColumns = `g.id, g.number, g.po_id, g.status, g.received_by, g.received_at, g.delivery_note, g.note, g.created_at`

func scanGRN(row pgx.Row) (GRN, error) {
	var g GRN
	err := row.Scan(&g.ID, &g.Number, &g.POID, &g.Status, &g.ReceivedBy, &g.ReceivedAt, &g.DeliveryNote, &g.Note, &g.CreatedAt)
	return g, err
}

func loadGRN(ctx context.Context, q db.DBTX, id int64, lock bool) (GRN, error) {
	grn, err := scanGRN(q.QueryRow(ctx, `SELECT `+grnColumns+` FROM grns g WHERE g.id = $1`+forUpdate(lock), id))
	if err != nil {
		return GRN{}, db.MapError(err, "grn")
	}
	rows, err := q.Query(ctx, `SELECT id, grn_id, po_line_id, item_id, received_qty FROM grn_lines WHERE grn_id = $1 ORDER BY id`, id)
	if err != nil {
		return GRN{}, err
	}
	grn.Lines, err = collect(rows, func(row pgx.Row) (GRNLine, error) {
		var l GRNLine
		err := row.Scan(&l.ID, &l.GRNID, &l.POLineID, &l.ItemID, &l.ReceivedQty)
		return l, err
	})
	return grn, err
}

// GetGRN returns a GRN with its lines.
func (r *Repository) GetGRN(ctx context.Context, id int64) (GRN, error) {
	return loadGRN(ctx, r.pool, id, false)
}

// ListGRNs returns GRN headers.
func (r *Repository) ListGRNs(ctx context.Context, f Filter) ([]GRN, int, error) {
	w := baseFilter(f, "g")
	if f.POID > 0 {
		w.add(` AND g.po_id = ?`, f.POID)
	}
	if f.VendorID > 0 {
		w.add(` AND EXISTS (SELECT 1 FROM purchase_orders p WHERE p.id = g.po_id AND p.vendor_id = ?)`, f.VendorID)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM grns g`+w.sql, w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.ListFilters)
	rows, err := r.pool.Query(ctx, `SELECT `+grnColumns+` FROM grns g`+w.sql+
		` ORDER BY `+sortOrder(f, "g", "number", "status", "received_at")+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	list, err := collect(rows, scanGRN)
	return list, total, err
}

func (r *txRepo) LockGRN(ctx context.Context, id int64) (GRN, error) {
	return loadGRN(ctx, r.tx, id, true)
}

func (r *txRepo) InsertGRN(ctx context.Context, grn GRN) (GRN, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO grns (number, po_id, status, received_by, received_at, delivery_note, note)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		grn.Number, grn.POID, string(grn.Status), grn.ReceivedBy, grn.ReceivedAt, grn.DeliveryNote, grn.Note).Scan(&id)
	if err != nil {
		return GRN{}, db.MapError(err, "grn")
	}
	for _, l := range grn.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO grn_lines (grn_id, po_line_id, item_id, received_qty) VALUES ($1, $2, $3, $4)`,
			id, l.POLineID, l.ItemID, l.ReceivedQty); err != nil {
			return GRN{}, db.MapError(err, "grn line")
		}
	}
	return loadGRN(ctx, r.tx, id, false)
}

func (r *txRepo) SetGRNStatus(ctx context.Context, id int64, status GRNStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE grns SET status = $2 WHERE id = $1`, id, string(status))
	return err
}

func (r *txRepo) DeleteGRN(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM grns WHERE id = $1`, id)
	return db.MapError(err, "grn")
}

// Inspections

const inspectionColumns = `n.id, n.number, n.grn_id, n.result, n.inspected_by, n.inspected_at, n.remarks, n.created_at`

func scanInspection(row pgx.Row) (Inspection, error) {
	var n Inspection
	err := row.Scan(&n.ID, &n.Number, &n.GRNID, &n.Result, &n.InspectedBy, &n.InspectedAt, &n.Remarks, &n.CreatedAt)
	return n, err
}

func loadInspection(ctx context.Context, q db.DBTX, id int64) (Inspection, error) {
	insp, err := scanInspection(q.QueryRow(ctx, `SELECT `+inspectionColumns+` FROM inspections n WHERE n.id = $1`, id))
	if err != nil {
		return Inspection{}, db.MapError(err, "inspection")
	}
	rows, err := q.Query(ctx, `SELECT id, inspection_id, grn_line_id, item_id, inspected_qty, accepted_qty, rejected_qty, reason
FROM inspection_lines WHERE inspection_id = $1 ORDER BY id`, id)
	if err != nil {
		return Inspection{}, err
	}
	insp.Lines, err = collect(rows, func(row pgx.Row) (InspectionLine, error) {
		var l InspectionLine
		err := row.Scan(&l.ID, &l.InspectionID, &l.GRNLineID, &l.ItemID, &l.InspectedQty, &l.AcceptedQty, &l.RejectedQty, &l.Reason)
		return l, err
	})
	return insp, err
}

// GetInspection returns an inspection with its lines.
func (r *Repository) GetInspection(ctx context.Context, id int64) (Inspection, error) {
	return loadInspection(ctx, r.pool, id)
}

// ListInspections returns inspection headers. Status filters on result.
func (r *Repository) ListInspections(ctx context.Context, f Filter) ([]Inspection, int, error) {
	w := newWhere()
	if f.Status != "" {
		w.add(` AND n.result = ?`, f.Status)
	}
	if f.Search != "" {
		w.add(` AND n.number ILIKE ?`, "%"+f.Search+"%")
	}
	if f.GRNID > 0 {
		w.add(` AND n.grn_id = ?`, f.GRNID)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inspections n`+w.sql, w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.ListFilters)
	rows, err := r.pool.Query(ctx, `SELECT `+inspectionColumns+` FROM inspections n`+w.sql+
		` ORDER BY `+sortOrder(f, "n", "number", "result", "inspected_at")+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	list, err := collect(rows, scanInspection)
	return list, total, err
}

func (r *txRepo) GetInspection(ctx context.Context, id int64) (Inspection, error) {
	return loadInspection(ctx, r.tx, id)
}

func (r *txRepo) InsertInspection(ctx context.Context, insp Inspection) (Inspection, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inspections (number, grn_id, result, inspected_by, inspected_at, remarks)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		insp.Number, insp.GRNID, string(insp.Result), insp.InspectedBy, insp.InspectedAt, insp.Remarks).Scan(&id)
	if err != nil {
		return Inspection{}, db.MapError(err, "inspection")
	}
	for _, l := range insp.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO inspection_lines (inspection_id, grn_line_id, item_id, inspected_qty, accepted_qty, rejected_qty, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, l.GRNLineID, l.ItemID, l.InspectedQty, l.AcceptedQty, l.RejectedQty, l.Reason); err != nil {
			return Inspection{}, db.MapError(err, "inspection line")
		}
	}
	return loadInspection(ctx, r.tx, id)
}

// Invoices

const invoiceColumns = `v.id, v.number, v.vendor_invoice_no, v.po_id, v.grn_id, v.inspection_id, v.vendor_id,
	v.subtotal, v.tax_amount, v.total, v.status, v.invoice_date, v.due_date, v.paid_at, v.created_at, v.updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var v Invoice
	err := row.Scan(&v.ID, &v.Number, &v.VendorInvoiceNo, &v.POID, &v.GRNID, &v.InspectionID, &v.VendorID,
		&v.Subtotal, &v.TaxAmount, &v.Total, &v.Status, &v.InvoiceDate, &v.DueDate, &v.PaidAt, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func loadInvoice(ctx context.Context, q db.DBTX, id int64, lock bool) (Invoice, error) {
	inv, err := scanInvoice(q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices v WHERE v.id = $1`+forUpdate(lock), id))
	if err != nil {
		return Invoice{}, db.MapError(err, "invoice")
	}
	return inv, nil
}

// GetInvoice returns an invoice.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return loadInvoice(ctx, r.pool, id, false)
}

// ListInvoices returns invoices.
func (r *Repository) ListInvoices(ctx context.Context, f Filter) ([]Invoice, int, error) {
	w := baseFilter(f, "v", "vendor_invoice_no")
	if f.VendorID > 0 {
		w.add(` AND v.vendor_id = ?`, f.VendorID)
	}
	if f.POID > 0 {
		w.add(` AND v.po_id = ?`, f.POID)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices v`+w.sql, w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.ListFilters)
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices v`+w.sql+
		` ORDER BY `+sortOrder(f, "v", "number", "status", "due_date", "total")+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	list, err := collect(rows, scanInvoice)
	return list, total, err
}

func (r *txRepo) LockInvoice(ctx context.Context, id int64) (Invoice, error) {
	return loadInvoice(ctx, r.tx, id, true)
}

func (r *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO invoices (number, vendor_invoice_no, po_id, grn_id, inspection_id, vendor_id,
	subtotal, tax_amount, total, status, invoice_date, due_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		inv.Number, inv.VendorInvoiceNo, inv.POID, inv.GRNID, inv.InspectionID, inv.VendorID,
		inv.Subtotal, inv.TaxAmount, inv.Total, string(inv.Status), inv.InvoiceDate, inv.DueDate).Scan(&id)
	if err != nil {
		return Invoice{}, db.MapError(err, "invoice for this inspection")
	}
	return loadInvoice(ctx, r.tx, id, false)
}

func (r *txRepo) SetInvoiceStatus(ctx context.Context, inv Invoice) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET status = $2, paid_at = $3, updated_at = NOW() WHERE id = $1`,
		inv.ID, string(inv.Status), inv.PaidAt)
	return err
}
