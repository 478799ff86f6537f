package ar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/platform/db"
	"github.com/niaga-erp/niaga/internal/shared"
)

// Repository provides PostgreSQL backed persistence for receivables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ar repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const invoiceColumns = `i.id, i.number, i.order_id, COALESCE(i.purchase_order_id, 0), i.customer_id, cu.name, i.invoice_date, i.due_date,
i.status, i.payment_status, i.preparation_status, i.preparation_notes, i.subtotal, i.tax, i.discount, i.shipping_cost,
i.total_amount, i.paid_amount, i.remaining_amount, COALESCE(i.created_by, 0), i.created_at, i.updated_at`

const invoiceFrom = ` FROM invoices i JOIN customers cu ON cu.id = i.customer_id`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.OrderID, &inv.PurchaseOrderID, &inv.CustomerID, &inv.CustomerName, &inv.InvoiceDate, &inv.DueDate,
		&inv.Status, &inv.PaymentStatus, &inv.PreparationStatus, &inv.PreparationNotes, &inv.Subtotal, &inv.Tax, &inv.Discount, &inv.ShippingCost,
		&inv.TotalAmount, &inv.PaidAmount, &inv.RemainingAmount, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func queryInvoices(ctx context.Context, q db.Querier, sql string, args ...any) ([]Invoice, error) {
	rows, err := q.Query(ctx, `SELECT `+invoiceColumns+invoiceFrom+` `+sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func getInvoice(ctx context.Context, q db.Querier, id int64, lock bool) (Invoice, error) {
	sql := `SELECT ` + invoiceColumns + invoiceFrom + ` WHERE i.id = $1`
	if lock {
		sql += ` FOR UPDATE OF i`
	}
	inv, err := scanInvoice(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NotFoundError("invoice", id)
	}
	return inv, err
}

// GetInvoice loads an invoice with its items.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := getInvoice(ctx, r.pool, id, false)
	if err != nil {
		return Invoice{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT ii.id, ii.invoice_id, ii.product_id, p.name, ii.quantity, ii.price, ii.line_total
FROM invoice_items ii JOIN products p ON p.id = ii.product_id WHERE ii.invoice_id = $1 ORDER BY ii.id`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &it.LineTotal); err != nil {
			return Invoice{}, err
		}
		inv.Items = append(inv.Items, it)
	}
	return inv, rows.Err()
}

// ListInvoices returns invoices newest first.
func (r *Repository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if filter.PaymentStatus != "" {
		args = append(args, string(filter.PaymentStatus))
		where = append(where, fmt.Sprintf("i.payment_status = $%d", len(args)))
	}
	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		where = append(where, fmt.Sprintf("i.customer_id = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sql := ""
	if len(where) > 0 {
		sql = `WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY i.invoice_date DESC, i.id DESC LIMIT $%d`, len(args))
	return queryInvoices(ctx, r.pool, sql, args...)
}

// ListOpenReceivables selects by amounts rather than the stored payment
// status, so rows with a drifted status are still reported.
func (r *Repository) ListOpenReceivables(ctx context.Context) ([]Invoice, error) {
	return queryInvoices(ctx, r.pool, `WHERE i.status <> 'CANCELLED' AND i.paid_amount < i.total_amount ORDER BY i.due_date, i.id`)
}

// ListPreparationCandidates returns invoices whose preparation is still open.
func (r *Repository) ListPreparationCandidates(ctx context.Context) ([]Invoice, error) {
	return queryInvoices(ctx, r.pool, `WHERE i.status NOT IN ('CANCELLED', 'DRAFT') AND i.preparation_status IN ('WAITING_PREPARATION', 'PREPARING')
ORDER BY i.invoice_date, i.id`)
}

// ListInvoiceIDs returns every invoice id.
func (r *Repository) ListInvoiceIDs(ctx context.Context) ([]int64, error) {
	return collectIDs(ctx, r.pool, `SELECT id FROM invoices ORDER BY id`)
}

// ListOverdueCandidates returns sent, unpaid invoices due before asOf.
func (r *Repository) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]int64, error) {
	return collectIDs(ctx, r.pool, `SELECT id FROM invoices WHERE status = 'SENT' AND due_date < $1 AND paid_amount < total_amount ORDER BY id`, asOf)
}

// ListPayments returns the payments of an invoice in date order.
func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, payment_date, amount, method, reference, COALESCE(created_by, 0), created_at
FROM payments WHERE invoice_id = $1 ORDER BY payment_date, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.PaymentDate, &p.Amount, &p.Method, &p.Reference, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func collectIDs(ctx context.Context, q db.Querier, sql string, args ...any) ([]int64, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetOrderSnapshot(ctx context.Context, orderID int64) (OrderSnapshot, error) {
	var o OrderSnapshot
	err := r.tx.QueryRow(ctx, `SELECT o.id, o.number, o.status, o.customer_id, cu.name
FROM orders o JOIN customers cu ON cu.id = o.customer_id WHERE o.id = $1 FOR SHARE OF o`, orderID).
		Scan(&o.ID, &o.Number, &o.Status, &o.CustomerID, &o.CustomerName)
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
		var it InvoiceItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &it.LineTotal); err != nil {
			return OrderSnapshot{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *txRepository) PurchaseOrderIDForOrder(ctx context.Context, orderID int64) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM purchase_orders WHERE order_id = $1 AND status <> 'CANCELLED'`, orderID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

func (r *txRepository) InvoiceIDForOrder(ctx context.Context, orderID int64) (int64, bool, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM invoices WHERE order_id = $1`, orderID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO invoices (number, order_id, purchase_order_id, customer_id, invoice_date, due_date, status,
payment_status, preparation_status, subtotal, tax, discount, shipping_cost, total_amount, paid_amount, remaining_amount,
created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19) RETURNING id`,
		inv.Number, inv.OrderID, db.NullInt(inv.PurchaseOrderID), inv.CustomerID, inv.InvoiceDate, inv.DueDate, string(inv.Status),
		string(inv.PaymentStatus), string(inv.PreparationStatus), inv.Subtotal, inv.Tax, inv.Discount, inv.ShippingCost,
		inv.TotalAmount, inv.PaidAmount, inv.RemainingAmount, db.NullInt(inv.CreatedBy), inv.CreatedAt, inv.UpdatedAt).Scan(&id)
	return id, shared.TranslateDBError(err)
}

func (r *txRepository) InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO invoice_items (invoice_id, product_id, quantity, price, line_total)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, item.InvoiceID, item.ProductID, item.Quantity, item.Price, item.LineTotal).Scan(&id)
	return id, shared.TranslateDBError(err)
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, r.tx, id, true)
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payments (invoice_id, payment_date, amount, method, reference, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		p.InvoiceID, p.PaymentDate, p.Amount, p.Method, p.Reference, db.NullInt(p.CreatedBy), p.CreatedAt).Scan(&id)
	return id, shared.TranslateDBError(err)
}

func (r *txRepository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	var p Payment
	err := r.tx.QueryRow(ctx, `SELECT id, invoice_id, payment_date, amount, method, reference, COALESCE(created_by, 0), created_at
FROM payments WHERE id = $1`, id).Scan(&p.ID, &p.InvoiceID, &p.PaymentDate, &p.Amount, &p.Method, &p.Reference, &p.CreatedBy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, shared.NotFoundError("payment", id)
	}
	return p, err
}

func (r *txRepository) DeletePayment(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundError("payment", id)
	}
	return nil
}

func (r *txRepository) SumPayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1`, invoiceID).Scan(&sum)
	return sum, err
}

func (r *txRepository) UpdateInvoiceState(ctx context.Context, inv Invoice) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET status = $2, payment_status = $3, preparation_status = $4, preparation_notes = $5,
paid_amount = $6, remaining_amount = $7, updated_at = $8 WHERE id = $1`,
		inv.ID, string(inv.Status), string(inv.PaymentStatus), string(inv.PreparationStatus), inv.PreparationNotes,
		inv.PaidAmount, inv.RemainingAmount, inv.UpdatedAt)
	return shared.TranslateDBError(err)
}
