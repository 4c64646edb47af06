package inventory

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procurehub/procurehub/internal/platform/db"
	"github.com/procurehub/procurehub/internal/shared"
)

// Repository persists stock movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetMovementByCode(ctx context.Context, code string) (Movement, bool, error)
	LockItemQuantity(ctx context.Context, itemID int64) (float64, error)
	SetItemQuantity(ctx context.Context, itemID int64, qty float64) error
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
}

type txRepo struct {
	tx db.DBTX
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const movementColumns = `id, code, item_id, type, qty, balance_after, ref_module, ref_id, note, created_by, created_at`

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	var typ string
	err := row.Scan(&m.ID, &m.Code, &m.ItemID, &typ, &m.Qty, &m.BalanceAfter, &m.RefModule, &m.RefID, &m.Note, &m.CreatedBy, &m.CreatedAt)
	m.Type = MovementType(typ)
	return m, err
}

// ListMovements returns stock card rows, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.ItemID > 0 {
		args = append(args, filter.ItemID)
		where += ` AND item_id = $` + strconv.Itoa(len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where += ` AND type = $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (code ILIKE $` + n + ` OR note ILIKE $` + n + ` OR ref_id ILIKE $` + n + `)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset())
	query := `SELECT ` + movementColumns + ` FROM stock_movements` + where +
		` ORDER BY created_at ` + shared.SortDirection(filter.SortDir, "DESC") + `, id DESC` +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r *txRepo) GetMovementByCode(ctx context.Context, code string) (Movement, bool, error) {
	m, err := scanMovement(r.tx.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Movement{}, false, nil
	}
	if err != nil {
		return Movement{}, false, err
	}
	return m, true, nil
}

func (r *txRepo) LockItemQuantity(ctx context.Context, itemID int64) (float64, error) {
	var qty float64
	err := r.tx.QueryRow(ctx, `SELECT quantity_on_hand FROM items WHERE id = $1 FOR UPDATE`, itemID).Scan(&qty)
	if err != nil {
		return 0, db.MapError(err, "item")
	}
	return qty, nil
}

func (r *txRepo) SetItemQuantity(ctx context.Context, itemID int64, qty float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE items SET quantity_on_hand = $2, updated_at = NOW() WHERE id = $1`, itemID, qty)
	return err
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	created, err := scanMovement(r.tx.QueryRow(ctx, `INSERT INTO stock_movements (code, item_id, type, qty, balance_after, ref_module, ref_id, note, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+movementColumns,
		m.Code, m.ItemID, string(m.Type), m.Qty, m.BalanceAfter, m.RefModule, m.RefID, m.Note, m.CreatedBy))
	if err != nil {
		return Movement{}, db.MapError(err, "stock movement")
	}
	return created, nil
}
