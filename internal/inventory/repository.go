package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niaga-erp/niaga/internal/platform/db"
	"github.com/niaga-erp/niaga/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	StockWriter
	GetProductForUpdate(ctx context.Context, productID int64) (Product, error)
	InsertProductionLog(ctx context.Context, log ProductionLog) (int64, error)
	GetProductionLogForUpdate(ctx context.Context, id int64) (ProductionLog, error)
	DeleteProductionLog(ctx context.Context, id int64) error
	InsertOpname(ctx context.Context, opname StockOpname) (int64, error)
	InsertOpnameItem(ctx context.Context, opnameID int64, item OpnameItem) error
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxStore: NewTxStore(tx), tx: tx})
	})
}

const productColumns = `p.id, p.code, p.name, COALESCE(p.category_id, 0), COALESCE(c.name, ''), p.unit, p.price, p.cost, p.current_stock, p.min_stock, p.is_active`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.CategoryID, &p.CategoryName, &p.Unit, &p.Price, &p.Cost, &p.CurrentStock, &p.MinStock, &p.IsActive)
	return p, err
}

// GetProduct loads a product.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products p LEFT JOIN categories c ON c.id = p.category_id WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NotFoundError("product", id)
	}
	return p, err
}

// ListLowStock returns active products at or below their minimum stock.
func (r *Repository) ListLowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products p LEFT JOIN categories c ON c.id = p.category_id
WHERE p.is_active AND p.current_stock <= p.min_stock ORDER BY p.current_stock ASC, p.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListMovements returns the newest movements of a product first.
func (r *Repository) ListMovements(ctx context.Context, productID int64, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, direction, quantity, source, COALESCE(ref_id, 0), note, stock_after, COALESCE(created_by, 0), created_at
FROM stock_movements WHERE product_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Direction, &m.Quantity, &m.Source, &m.RefID, &m.Note, &m.StockAfter, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TxStore implements StockWriter on a pgx transaction. Other modules build
// one from their own transaction so order, delivery and stock rows commit
// atomically.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps tx.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

// LookupProduct reads a product inside the transaction.
func (s *TxStore) LookupProduct(ctx context.Context, productID int64) (Product, error) {
	p, err := scanProduct(s.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products p LEFT JOIN categories c ON c.id = p.category_id WHERE p.id = $1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NotFoundError("product", productID)
	}
	return p, err
}

// DecrementStock is a single conditional UPDATE, safe under concurrent callers.
func (s *TxStore) DecrementStock(ctx context.Context, productID, qty int64) (int64, bool, error) {
	var after int64
	err := s.tx.QueryRow(ctx, `UPDATE products SET current_stock = current_stock - $2, updated_at = NOW()
WHERE id = $1 AND current_stock >= $2 RETURNING current_stock`, productID, qty).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, shared.TranslateDBError(err)
	}
	return after, true, nil
}

// IncrementStock adds qty to the product counter.
func (s *TxStore) IncrementStock(ctx context.Context, productID, qty int64) (int64, error) {
	var after int64
	err := s.tx.QueryRow(ctx, `UPDATE products SET current_stock = current_stock + $2, updated_at = NOW()
WHERE id = $1 RETURNING current_stock`, productID, qty).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.NotFoundError("product", productID)
	}
	return after, err
}

// InsertMovement appends a ledger row.
func (s *TxStore) InsertMovement(ctx context.Context, m StockMovement) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, direction, quantity, source, ref_id, note, stock_after, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		m.ProductID, string(m.Direction), m.Quantity, string(m.Source), db.NullInt(m.RefID), m.Note, m.StockAfter, db.NullInt(m.CreatedBy), m.CreatedAt).Scan(&id)
	return id, shared.TranslateDBError(err)
}

// MovementsByRef lists movements recorded for a source and reference.
func (s *TxStore) MovementsByRef(ctx context.Context, source Source, refID int64) ([]StockMovement, error) {
	rows, err := s.tx.Query(ctx, `SELECT id, product_id, direction, quantity, source, COALESCE(ref_id, 0), note, stock_after, COALESCE(created_by, 0), created_at
FROM stock_movements WHERE source = $1 AND ref_id = $2 ORDER BY id`, string(source), refID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Direction, &m.Quantity, &m.Source, &m.RefID, &m.Note, &m.StockAfter, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type txRepository struct {
	*TxStore
	tx pgx.Tx
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, productID int64) (Product, error) {
	var p Product
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, current_stock, min_stock, is_active FROM products WHERE id = $1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.Code, &p.Name, &p.CurrentStock, &p.MinStock, &p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NotFoundError("product", productID)
	}
	return p, err
}

func (r *txRepository) InsertProductionLog(ctx context.Context, log ProductionLog) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO production_logs (product_id, quantity, notes, produced_by, produced_at)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, log.ProductID, log.Quantity, log.Notes, db.NullInt(log.ProducedBy), log.ProducedAt).Scan(&id)
	return id, shared.TranslateDBError(err)
}

func (r *txRepository) GetProductionLogForUpdate(ctx context.Context, id int64) (ProductionLog, error) {
	var log ProductionLog
	err := r.tx.QueryRow(ctx, `SELECT id, product_id, quantity, notes, COALESCE(produced_by, 0), produced_at FROM production_logs WHERE id = $1 FOR UPDATE`, id).
		Scan(&log.ID, &log.ProductID, &log.Quantity, &log.Notes, &log.ProducedBy, &log.ProducedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductionLog{}, shared.NotFoundError("production log", id)
	}
	return log, err
}

func (r *txRepository) DeleteProductionLog(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM production_logs WHERE id = $1`, id)
	return err
}

func (r *txRepository) InsertOpname(ctx context.Context, opname StockOpname) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_opnames (notes, created_by, created_at) VALUES ($1,$2,$3) RETURNING id`,
		opname.Notes, db.NullInt(opname.CreatedBy), opname.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertOpnameItem(ctx context.Context, opnameID int64, item OpnameItem) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_opname_items (opname_id, product_id, system_qty, counted_qty, difference, movement_id)
VALUES ($1,$2,$3,$4,$5,$6)`, opnameID, item.ProductID, item.SystemQty, item.CountedQty, item.Difference, db.NullInt(item.MovementID))
	return shared.TranslateDBError(err)
}
