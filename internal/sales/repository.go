package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niaga-erp/niaga/internal/inventory"
	"github.com/niaga-erp/niaga/internal/masterdata"
	"github.com/niaga-erp/niaga/internal/platform/db"
	"github.com/niaga-erp/niaga/internal/shared"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxStore: inventory.NewTxStore(tx), tx: tx})
	})
}

const orderColumns = `o.id, o.number, o.customer_id, cu.name, o.store_id, st.name, o.sales_rep_id, o.status, o.total_amount,
o.requires_confirmation, o.notes, o.admin_notes, COALESCE(o.confirmed_by, 0), o.confirmed_at, o.completed_at, o.canceled_at,
o.cancel_reason, COALESCE(o.created_by, 0), o.created_at, o.updated_at`

const orderFrom = ` FROM orders o JOIN customers cu ON cu.id = o.customer_id JOIN stores st ON st.id = o.store_id`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.CustomerID, &o.CustomerName, &o.StoreID, &o.StoreName, &o.SalesRepID, &o.Status, &o.TotalAmount,
		&o.RequiresConfirmation, &o.Notes, &o.AdminNotes, &o.ConfirmedBy, &o.ConfirmedAt, &o.CompletedAt, &o.CanceledAt,
		&o.CancelReason, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func loadItems(ctx context.Context, q db.Querier, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.price, oi.line_total
FROM order_items oi JOIN products p ON p.id = oi.product_id WHERE oi.order_id = $1 ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func getOrder(ctx context.Context, q db.Querier, id int64, lock bool) (Order, error) {
	sql := `SELECT ` + orderColumns + orderFrom + ` WHERE o.id = $1`
	if lock {
		sql += ` FOR UPDATE OF o`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, shared.NotFoundError("order", id)
	}
	if err != nil {
		return Order{}, err
	}
	o.Items, err = loadItems(ctx, q, o.ID)
	return o, err
}

// GetOrder loads an order with its items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	return getOrder(ctx, r.pool, id, false)
}

// ListOrders returns orders newest first without items.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if filter.SalesRepID != 0 {
		args = append(args, filter.SalesRepID)
		where = append(where, fmt.Sprintf("o.sales_rep_id = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sql := `SELECT ` + orderColumns + orderFrom
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY o.created_at DESC, o.id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type txRepository struct {
	*inventory.TxStore
	tx pgx.Tx
}

func (r *txRepository) Parties() masterdata.RepositoryPort {
	return masterdata.NewRepository(r.tx)
}

func (r *txRepository) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO orders (number, customer_id, store_id, sales_rep_id, status, total_amount, requires_confirmation, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		o.Number, o.CustomerID, o.StoreID, o.SalesRepID, string(o.Status), o.TotalAmount, o.RequiresConfirmation, o.Notes,
		db.NullInt(o.CreatedBy), o.CreatedAt, o.UpdatedAt).Scan(&id)
	return id, shared.TranslateDBError(err)
}

func (r *txRepository) InsertOrderItem(ctx context.Context, orderID int64, item OrderItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, quantity, price, line_total)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, orderID, item.ProductID, item.Quantity, item.Price, item.LineTotal).Scan(&id)
	return id, shared.TranslateDBError(err)
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return getOrder(ctx, r.tx, id, true)
}

func (r *txRepository) UpdateOrderStatus(ctx context.Context, o Order) error {
	tag, err := r.tx.Exec(ctx, `UPDATE orders SET status = $2, admin_notes = $3, confirmed_by = $4, confirmed_at = $5,
completed_at = $6, canceled_at = $7, cancel_reason = $8, updated_at = $9 WHERE id = $1`,
		o.ID, string(o.Status), o.AdminNotes, db.NullInt(o.ConfirmedBy), o.ConfirmedAt, o.CompletedAt, o.CanceledAt, o.CancelReason, o.UpdatedAt)
	if err != nil {
		return shared.TranslateDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundError("order", o.ID)
	}
	return nil
}
