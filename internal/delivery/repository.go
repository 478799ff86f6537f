package delivery

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

// Repository persists deliveries in PostgreSQL.
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
		return errors.New("delivery repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxStore: inventory.NewTxStore(tx), tx: tx})
	})
}

const deliveryColumns = `d.id, d.number, d.invoice_id, i.number, d.status, d.delivery_date, COALESCE(d.driver_id, 0), COALESCE(d.helper_id, 0),
d.vehicle_number, d.notes, d.status_reason, d.delivered_at, d.returned_at, COALESCE(d.created_by, 0), d.created_at, d.updated_at`

const deliveryFrom = ` FROM deliveries d JOIN invoices i ON i.id = d.invoice_id`

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.Number, &d.InvoiceID, &d.InvoiceNumber, &d.Status, &d.DeliveryDate, &d.DriverID, &d.HelperID,
		&d.VehicleNumber, &d.Notes, &d.StatusReason, &d.DeliveredAt, &d.ReturnedAt, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func getDelivery(ctx context.Context, q db.Querier, id int64, lock bool) (Delivery, error) {
	sql := `SELECT ` + deliveryColumns + deliveryFrom + ` WHERE d.id = $1`
	if lock {
		sql += ` FOR UPDATE OF d`
	}
	d, err := scanDelivery(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Delivery{}, shared.NotFoundError("delivery", id)
	}
	return d, err
}

// GetDelivery loads one delivery.
func (r *Repository) GetDelivery(ctx context.Context, id int64) (Delivery, error) {
	return getDelivery(ctx, r.pool, id, false)
}

// ListDeliveries returns deliveries newest first.
func (r *Repository) ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("d.status = $%d", len(args)))
	}
	if filter.InvoiceID != 0 {
		args = append(args, filter.InvoiceID)
		where = append(where, fmt.Sprintf("d.invoice_id = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sql := `SELECT ` + deliveryColumns + deliveryFrom
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY d.created_at DESC, d.id DESC LIMIT $%d`, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type txRepository struct {
	*inventory.TxStore
	tx pgx.Tx
}

func (r *txRepository) GetInvoiceSnapshot(ctx context.Context, invoiceID int64) (InvoiceSnapshot, error) {
	var inv InvoiceSnapshot
	err := r.tx.QueryRow(ctx, `SELECT id, number, status, preparation_status FROM invoices WHERE id = $1 FOR SHARE`, invoiceID).
		Scan(&inv.ID, &inv.Number, &inv.Status, &inv.PreparationStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return InvoiceSnapshot{}, shared.NotFoundError("invoice", invoiceID)
	}
	if err != nil {
		return InvoiceSnapshot{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT product_id, quantity FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return InvoiceSnapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return InvoiceSnapshot{}, err
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv, rows.Err()
}

func (r *txRepository) OpenDeliveryExists(ctx context.Context, invoiceID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deliveries WHERE invoice_id = $1 AND status <> 'CANCELLED')`, invoiceID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertDelivery(ctx context.Context, d Delivery) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO deliveries (number, invoice_id, status, delivery_date, driver_id, helper_id, vehicle_number, notes,
created_by, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		d.Number, d.InvoiceID, string(d.Status), d.DeliveryDate, db.NullInt(d.DriverID), db.NullInt(d.HelperID), d.VehicleNumber, d.Notes,
		db.NullInt(d.CreatedBy), d.CreatedAt, d.UpdatedAt).Scan(&id)
	return id, shared.TranslateDBError(err)
}

func (r *txRepository) GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, error) {
	return getDelivery(ctx, r.tx, id, true)
}

func (r *txRepository) UpdateDeliveryStatus(ctx context.Context, d Delivery) error {
	_, err := r.tx.Exec(ctx, `UPDATE deliveries SET status = $2, status_reason = $3, delivered_at = $4, returned_at = $5, updated_at = $6
WHERE id = $1`, d.ID, string(d.Status), d.StatusReason, d.DeliveredAt, d.ReturnedAt, d.UpdatedAt)
	return shared.TranslateDBError(err)
}
