package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niaga-erp/niaga/internal/platform/db"
	"github.com/niaga-erp/niaga/internal/shared"
)

// Repository persists transactions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("expenses repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const transactionColumns = `id, number, type, date, category, description, amount, COALESCE(created_by, 0), created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Number, &t.Type, &t.Date, &t.Category, &t.Description, &t.Amount, &t.CreatedBy, &t.CreatedAt)
	return t, err
}

// GetTransaction loads a transaction with its items.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, shared.NotFoundError("transaction", id)
	}
	if err != nil {
		return Transaction{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, transaction_id, description, quantity, unit_price, amount
FROM transaction_items WHERE transaction_id = $1 ORDER BY id`, id)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.Description, &it.Quantity, &it.UnitPrice, &it.Amount); err != nil {
			return Transaction{}, err
		}
		t.Items = append(t.Items, it)
	}
	return t, rows.Err()
}

func filterClause(filter ListFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("lower(category) = lower($%d)", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// ListTransactions returns transactions newest first, without items.
func (r *Repository) ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	where, args := filterClause(filter)
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions`+where+
		fmt.Sprintf(` ORDER BY date DESC, id DESC LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SumByCategory totals transactions per category, largest first.
func (r *Repository) SumByCategory(ctx context.Context, filter ListFilter) ([]CategoryTotal, error) {
	where, args := filterClause(filter)
	rows, err := r.pool.Query(ctx, `SELECT category, COALESCE(SUM(amount), 0) FROM transactions`+where+
		` GROUP BY category ORDER BY 2 DESC, category`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryTotal
	for rows.Next() {
		var c CategoryTotal
		if err := rows.Scan(&c.Category, &c.Total); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transactions (number, type, date, category, description, amount, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		t.Number, string(t.Type), t.Date, t.Category, t.Description, t.Amount, db.NullInt(t.CreatedBy), t.CreatedAt).Scan(&id)
	return id, shared.TranslateDBError(err)
}

func (r *txRepository) InsertItem(ctx context.Context, it Item) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transaction_items (transaction_id, description, quantity, unit_price, amount)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, it.TransactionID, it.Description, it.Quantity, it.UnitPrice, it.Amount).Scan(&id)
	return id, shared.TranslateDBError(err)
}

func (r *txRepository) DeleteTransaction(ctx context.Context, id int64) (Transaction, error) {
	t, err := scanTransaction(r.tx.QueryRow(ctx, `DELETE FROM transactions WHERE id = $1 RETURNING `+transactionColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, shared.NotFoundError("transaction", id)
	}
	return t, err
}
