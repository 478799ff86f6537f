package analytics

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/shared"
)

// Repository runs aggregation queries outside any transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PaidInvoices returns paid invoices dated inside window.
func (r *Repository) PaidInvoices(ctx context.Context, window shared.DateRange) ([]RevenueEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT invoice_date, total_amount FROM invoices
WHERE status = 'PAID' AND invoice_date >= $1 AND invoice_date < $2 ORDER BY invoice_date, id`, window.Start, window.EndExclusive())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RevenueEntry
	for rows.Next() {
		var e RevenueEntry
		if err := rows.Scan(&e.InvoiceDate, &e.Amount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PaidRevenueBy sums paid invoices created by any of userIDs inside window.
func (r *Repository) PaidRevenueBy(ctx context.Context, window shared.DateRange, userIDs []int64) (decimal.Decimal, error) {
	if len(userIDs) == 0 {
		return decimal.Zero, nil
	}
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM invoices
WHERE status = 'PAID' AND created_by = ANY($1) AND invoice_date >= $2 AND invoice_date < $3`,
		userIDs, window.Start, window.EndExclusive()).Scan(&total)
	return total, err
}

// SalesLines returns invoiced quantities and revenue per product of paid
// invoices inside window, with the product's current unit cost.
func (r *Repository) SalesLines(ctx context.Context, window shared.DateRange) ([]SalesLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.name, COALESCE(c.name, ''), SUM(ii.quantity), SUM(ii.line_total), p.cost
FROM invoice_items ii
JOIN invoices i ON i.id = ii.invoice_id
JOIN products p ON p.id = ii.product_id
LEFT JOIN categories c ON c.id = p.category_id
WHERE i.status = 'PAID' AND i.invoice_date >= $1 AND i.invoice_date < $2
GROUP BY p.id, p.name, c.name, p.cost
ORDER BY p.id`, window.Start, window.EndExclusive())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SalesLine
	for rows.Next() {
		var l SalesLine
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Category, &l.Quantity, &l.Revenue, &l.UnitCost); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
