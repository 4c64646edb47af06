package items

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procurehub/procurehub/internal/platform/db"
	"github.com/procurehub/procurehub/internal/shared"
)

// Repository defines item persistence.
type Repository interface {
	List(ctx context.Context, filters Filters) ([]Item, int, error)
	Get(ctx context.Context, id int64) (Item, error)
	Create(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, id int64, item Item) (Item, error)
	Delete(ctx context.Context, id int64) error
	CountLowStock(ctx context.Context) (int, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const itemColumns = `id, code, name, description, category, uom, unit_price, reorder_level, quantity_on_hand, location, is_active, created_at, updated_at`

const lowStockCondition = `reorder_level > 0 AND quantity_on_hand <= reorder_level`

func scanItem(row pgx.Row) (Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.Code, &i.Name, &i.Description, &i.Category, &i.UOM, &i.UnitPrice,
		&i.ReorderLevel, &i.QuantityOnHand, &i.Location, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (r *repository) List(ctx context.Context, filters Filters) ([]Item, int, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + `)`
	}
	if filters.Category != "" {
		args = append(args, filters.Category)
		where += ` AND category = $` + strconv.Itoa(len(args))
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND is_active = $` + strconv.Itoa(len(args))
	}
	if filters.LowStock {
		where += ` AND ` + lowStockCondition
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM items`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + itemColumns + ` FROM items` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset())
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Item, error) {
	item, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		return Item{}, db.MapError(err, "item")
	}
	return item, nil
}

func (r *repository) Create(ctx context.Context, item Item) (Item, error) {
	created, err := scanItem(r.db.QueryRow(ctx, `INSERT INTO items (code, name, description, category, uom, unit_price, reorder_level, location, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+itemColumns,
		item.Code, item.Name, item.Description, item.Category, item.UOM, item.UnitPrice, item.ReorderLevel, item.Location, item.IsActive))
	if err != nil {
		return Item{}, db.MapError(err, "item")
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, item Item) (Item, error) {
	updated, err := scanItem(r.db.QueryRow(ctx, `UPDATE items SET code = $2, name = $3, description = $4, category = $5, uom = $6,
unit_price = $7, reorder_level = $8, location = $9, is_active = $10, updated_at = NOW()
WHERE id = $1 RETURNING `+itemColumns,
		id, item.Code, item.Name, item.Description, item.Category, item.UOM, item.UnitPrice, item.ReorderLevel, item.Location, item.IsActive))
	if err != nil {
		return Item{}, db.MapError(err, "item")
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err, "item")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item", shared.ErrNotFound)
	}
	return nil
}

func (r *repository) CountLowStock(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE is_active AND `+lowStockCondition).Scan(&n)
	return n, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := shared.SortDirection(sortDir, "ASC")
	switch sortBy {
	case "code":
		return "code " + dir
	case "category":
		return "category " + dir + ", name"
	case "unit_price":
		return "unit_price " + dir
	case "quantity_on_hand":
		return "quantity_on_hand " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
