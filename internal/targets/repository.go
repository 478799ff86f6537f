package targets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niaga-erp/niaga/internal/shared"
)

// Repository persists sales targets in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const targetColumns = `t.id, t.user_id, u.name, t.target_type, t.target_period, t.target_amount, t.is_active,
COALESCE(t.created_by, 0), t.created_at, t.updated_at`

const targetFrom = ` FROM sales_targets t JOIN users u ON u.id = t.user_id`

func scanTarget(row pgx.Row) (Target, error) {
	var t Target
	err := row.Scan(&t.ID, &t.UserID, &t.UserName, &t.Type, &t.Period, &t.Amount, &t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// GetTarget loads one target.
func (r *Repository) GetTarget(ctx context.Context, id int64) (Target, error) {
	t, err := scanTarget(r.pool.QueryRow(ctx, `SELECT `+targetColumns+targetFrom+` WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Target{}, shared.NotFoundError("target", id)
	}
	return t, err
}

// ActiveExists reports whether another active target holds (user, type, period).
func (r *Repository) ActiveExists(ctx context.Context, userID int64, t shared.PeriodType, period string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sales_targets
WHERE user_id = $1 AND target_type = $2 AND target_period = $3 AND is_active AND id <> $4)`,
		userID, string(t), period, excludeID).Scan(&exists)
	return exists, err
}

// InsertTarget stores a new target. A concurrent duplicate surfaces as a unique violation.
func (r *Repository) InsertTarget(ctx context.Context, t Target) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO sales_targets (user_id, target_type, target_period, target_amount, is_active, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		t.UserID, string(t.Type), t.Period, t.Amount, t.IsActive, t.CreatedBy, t.CreatedAt, t.UpdatedAt).Scan(&id)
	return id, err
}

// UpdateTarget writes period, amount and active flag.
func (r *Repository) UpdateTarget(ctx context.Context, t Target) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sales_targets SET target_period = $2, target_amount = $3, is_active = $4, updated_at = $5 WHERE id = $1`,
		t.ID, t.Period, t.Amount, t.IsActive, t.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundError("target", t.ID)
	}
	return nil
}

// ListTargets returns targets ordered by period.
func (r *Repository) ListTargets(ctx context.Context, filter ListFilter) ([]Target, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("t.user_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("t.target_type = $%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "t.is_active")
	}
	sql := `SELECT ` + targetColumns + targetFrom
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY t.target_period, u.name`
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
