package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procurehub/procurehub/internal/platform/db"
	"github.com/procurehub/procurehub/internal/shared"
)

// Repository defines persistence operations for users.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, filters shared.ListFilters) ([]User, int, error)
	Create(ctx context.Context, user User) (*User, error)
	Update(ctx context.Context, user User) (*User, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, name, role, password_hash, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, db.MapError(err, "user")
	}
	return u, nil
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "user")
	}
	return u, nil
}

// List returns a page of users and the total count.
func (r *PGRepository) List(ctx context.Context, filters shared.ListFilters) ([]User, int, error) {
	var (
		conds []string
		args  []any
	)
	if filters.Search != "" {
		args = append(args, "%"+strings.ToLower(filters.Search)+"%")
		conds = append(conds, fmt.Sprintf("(lower(email) LIKE $%d OR lower(name) LIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.Limit, filters.Offset())
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		userColumns, where, userSortColumn(filters.SortBy), shared.SortDirection(filters.SortDir, "ASC"), len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// Create inserts a user.
func (r *PGRepository) Create(ctx context.Context, user User) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `INSERT INTO users (email, name, role, password_hash, is_active)
VALUES ($1, $2, $3, $4, $5) RETURNING `+userColumns,
		user.Email, user.Name, user.Role, user.PasswordHash, user.IsActive))
	if err != nil {
		return nil, db.MapError(err, "user")
	}
	return u, nil
}

// Update overwrites a user's mutable fields.
func (r *PGRepository) Update(ctx context.Context, user User) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `UPDATE users SET email = $2, name = $3, role = $4, password_hash = $5, is_active = $6, updated_at = NOW()
WHERE id = $1 RETURNING `+userColumns,
		user.ID, user.Email, user.Name, user.Role, user.PasswordHash, user.IsActive))
	if err != nil {
		return nil, db.MapError(err, "user")
	}
	return u, nil
}

// Delete removes a user.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user", shared.ErrNotFound)
	}
	return nil
}

func userSortColumn(key string) string {
	switch key {
	case "email":
		return "email"
	case "role":
		return "role"
	case "created_at":
		return "created_at"
	default:
		return "name"
	}
}

var _ Repository = (*PGRepository)(nil)
