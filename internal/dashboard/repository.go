package dashboard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the dashboard counters straight from the document tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) count(ctx context.Context, what, query string, args ...any) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", what, err)
	}
	return n, nil
}

// IndentsByStatus counts indents in the given status.
func (r *Repository) IndentsByStatus(ctx context.Context, status string) (int, error) {
	return r.count(ctx, "indents", `SELECT COUNT(*) FROM indents WHERE status = $1`, status)
}

// RFQsByStatus counts RFQs in the given status.
func (r *Repository) RFQsByStatus(ctx context.Context, status string) (int, error) {
	return r.count(ctx, "rfqs", `SELECT COUNT(*) FROM rfqs WHERE status = $1`, status)
}

// POsByStatus counts purchase orders in the given status.
func (r *Repository) POsByStatus(ctx context.Context, status string) (int, error) {
	return r.count(ctx, "purchase orders", `SELECT COUNT(*) FROM purchase_orders WHERE status = $1`, status)
}

// GRNsByStatus counts goods receipts in the given status.
func (r *Repository) GRNsByStatus(ctx context.Context, status string) (int, error) {
	return r.count(ctx, "grns", `SELECT COUNT(*) FROM grns WHERE status = $1`, status)
}

// UnpaidInvoices sums invoices in any of the given statuses.
func (r *Repository) UnpaidInvoices(ctx context.Context, statuses []string) (InvoiceExposure, error) {
	var out InvoiceExposure
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total), 0)::float8
FROM invoices WHERE status = ANY($1)`, statuses).Scan(&out.Count, &out.Amount)
	if err != nil {
		return InvoiceExposure{}, fmt.Errorf("sum unpaid invoices: %w", err)
	}
	return out, nil
}
