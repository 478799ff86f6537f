package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niaga-erp/niaga/internal/inventory"
	"github.com/niaga-erp/niaga/internal/platform/db"
	"github.com/niaga-erp/niaga/internal/shared"
)

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("procurement repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxStore: inventory.NewTxStore(tx), tx: tx})
	})
}

const poColumns = `po.id, po.number, po.order_id, o.number, po.status, po.stock_status, po.stock_notes, po.stock_override,
po.date_stock_confirmation, COALESCE(po.user_stock_confirmation_id, 0), po.subtotal, po.discount, po.tax, po.shipping_cost,
po.total_payment, COALESCE(po.created_by, 0), po.created_at, po.updated_at`

const poFrom = ` FROM purchase_orders po JOIN orders o ON o.id = po.order_id`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.Number, &po.OrderID, &po.OrderNumber, &po.Status, &po.StockStatus, &po.StockNotes, &po.StockOverride,
		&po.DateStockConfirmation, &po.UserStockConfirmationID, &po.Subtotal, &po.Discount, &po.Tax, &po.ShippingCost,
		&po.TotalPayment, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

func getPO(ctx context.Context, q db.Querier, id int64, lock bool) (PurchaseOrder, error) {
	sql := `SELECT ` + poColumns + poFrom + ` WHERE po.id = $1`
	if lock {
		sql += ` FOR UPDATE OF po`
	}
	po, err := scanPO(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, shared.NotFoundError("purchase order", id)
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	rows, err := q.Query(ctx, `SELECT poi.id, poi.purchase_order_id, poi.product_id, p.name, poi.quantity, poi.price, poi.line_total, poi.notes
FROM purchase_order_items poi JOIN products p ON p.id = poi.product_id WHERE poi.purchase_order_id = $1 ORDER BY poi.id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.POID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &it.LineTotal, &it.Notes); err != nil {
			return PurchaseOrder{}, err
		}
		po.Items = append(po.Items, it)
	}
	return po, rows.Err()
}

// GetPurchaseOrder loads a purchase order with its items.
func (r *Repository) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return getPO(ctx, r.pool, id, false)
}

// ListPurchaseOrders returns purchase orders newest first, without items.
func (r *Repository) ListPurchaseOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("po.status = $%d", len(args)))
	}
	if filter.StockStatus != "" {
		args = append(args, string(filter.StockStatus))
		where = append(where, fmt.Sprintf("po.stock_status = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sql := `SELECT ` + poColumns + poFrom
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY po.created_at DESC, po.id DESC LIMIT $%d`, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

type txRepository struct {
	*inventory.TxStore
	tx pgx.Tx
}

func (r *txRepository) GetOrderSnapshot(ctx context.Context, orderID int64) (OrderSnapshot, error) {
	var o OrderSnapshot
	err := r.tx.QueryRow(ctx, `SELECT id, number, status FROM orders WHERE id = $1 FOR SHARE`, orderID).Scan(&o.ID, &o.Number, &o.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderSnapshot{}, shared.NotFoundError("order", orderID)
	}
	if err != nil {
		return OrderSnapshot{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT oi.product_id, p.name, oi.quantity, oi.price, oi.line_total
FROM order_items oi JOIN products p ON p.id = oi.product_id WHERE oi.order_id = $1 ORDER BY oi.id`, orderID)
	if err != nil {
		return OrderSnapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &it.LineTotal); err != nil {
			return OrderSnapshot{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *txRepository) PurchaseOrderExists(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE order_id = $1)`, orderID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, order_id, status, stock_status, subtotal, discount, tax, shipping_cost,
total_payment, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		po.Number, po.OrderID, string(po.Status), string(po.StockStatus), po.Subtotal, po.Discount, po.Tax, po.ShippingCost,
		po.TotalPayment, db.NullInt(po.CreatedBy), po.CreatedAt, po.UpdatedAt).Scan(&id)
	return id, shared.TranslateDBError(err)
}

func (r *txRepository) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_order_items (purchase_order_id, product_id, quantity, price, line_total, notes)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, item.POID, item.ProductID, item.Quantity, item.Price, item.LineTotal, item.Notes).Scan(&id)
	return id, shared.TranslateDBError(err)
}

func (r *txRepository) GetPurchaseOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return getPO(ctx, r.tx, id, true)
}

func (r *txRepository) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return getPO(ctx, r.tx, id, false)
}

func (r *txRepository) UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, stock_status = $3, stock_notes = $4, stock_override = $5,
date_stock_confirmation = $6, user_stock_confirmation_id = $7, updated_at = $8 WHERE id = $1`,
		po.ID, string(po.Status), string(po.StockStatus), po.StockNotes, po.StockOverride,
		po.DateStockConfirmation, db.NullInt(po.UserStockConfirmationID), po.UpdatedAt)
	return shared.TranslateDBError(err)
}

func (r *txRepository) UpdateItemNotes(ctx context.Context, itemID int64, notes string) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_order_items SET notes = $2 WHERE id = $1`, itemID, notes)
	return err
}
