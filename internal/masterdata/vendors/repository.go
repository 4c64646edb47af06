package vendors

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procurehub/procurehub/internal/platform/db"
	"github.com/procurehub/procurehub/internal/shared"
)

// Repository defines vendor persistence.
type Repository interface {
	List(ctx context.Context, filters Filters) ([]Vendor, int, error)
	Get(ctx context.Context, id int64) (Vendor, error)
	Create(ctx context.Context, vendor Vendor) (Vendor, error)
	Update(ctx context.Context, id int64, vendor Vendor) (Vendor, error)
	Delete(ctx context.Context, id int64) error
	InUse(ctx context.Context, id int64) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const vendorColumns = `id, code, name, contact_person, email, phone, tax_id, address, bank_details, status, created_at, updated_at`

func scanVendor(row pgx.Row) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.Code, &v.Name, &v.ContactPerson, &v.Email, &v.Phone, &v.TaxID,
		&v.Address, &v.Bank, &v.Status, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (r *repository) List(ctx context.Context, filters Filters) ([]Vendor, int, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + ` OR contact_person ILIKE $` + n + `)`
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filters.City != "" {
		args = append(args, filters.City)
		where += ` AND address->>'city' ILIKE $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM vendors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + vendorColumns + ` FROM vendors` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset())
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Vendor, error) {
	v, err := scanVendor(r.db.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id))
	if err != nil {
		return Vendor{}, db.MapError(err, "vendor")
	}
	return v, nil
}

func (r *repository) Create(ctx context.Context, v Vendor) (Vendor, error) {
	created, err := scanVendor(r.db.QueryRow(ctx, `INSERT INTO vendors (code, name, contact_person, email, phone, tax_id, address, bank_details, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+vendorColumns,
		v.Code, v.Name, v.ContactPerson, v.Email, v.Phone, v.TaxID, v.Address, v.Bank, v.Status))
	if err != nil {
		return Vendor{}, db.MapError(err, "vendor")
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, v Vendor) (Vendor, error) {
	updated, err := scanVendor(r.db.QueryRow(ctx, `UPDATE vendors SET code = $2, name = $3, contact_person = $4, email = $5, phone = $6,
tax_id = $7, address = $8, bank_details = $9, status = $10, updated_at = NOW()
WHERE id = $1 RETURNING `+vendorColumns,
		id, v.Code, v.Name, v.ContactPerson, v.Email, v.Phone, v.TaxID, v.Address, v.Bank, v.Status))
	if err != nil {
		return Vendor{}, db.MapError(err, "vendor")
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vendors WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err, "vendor")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: vendor", shared.ErrNotFound)
	}
	return nil
}

func (r *repository) InUse(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE vendor_id = $1)
OR EXISTS (SELECT 1 FROM rfq_vendors WHERE vendor_id = $1)`, id).Scan(&used)
	return used, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := shared.SortDirection(sortDir, "ASC")
	switch sortBy {
	case "code":
		return "code " + dir
	case "status":
		return "status " + dir + ", name"
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
