package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/niaga-erp/niaga/internal/platform/db"
	"github.com/niaga-erp/niaga/internal/shared"
)

// Repository persists customers and stores in PostgreSQL.
type Repository struct {
	q db.Querier
}

// NewRepository constructs Repository over a pool or an open transaction.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// GetCustomer loads a customer by id.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := r.q.QueryRow(ctx, `SELECT id, name, phone, address, created_at FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.NotFoundError("customer", id)
	}
	return c, err
}

// FindCustomerByKey looks a customer up by folded name.
func (r *Repository) FindCustomerByKey(ctx context.Context, key string) (Customer, error) {
	var c Customer
	err := r.q.QueryRow(ctx, `SELECT id, name, phone, address, created_at FROM customers WHERE name_key = $1`, key).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.NotFoundError("customer", key)
	}
	return c, err
}

// InsertCustomer inserts unless the folded name is taken; inserted is false on conflict.
func (r *Repository) InsertCustomer(ctx context.Context, c Customer) (Customer, bool, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO customers (name, name_key, phone, address, created_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (name_key) DO NOTHING
RETURNING id, created_at`, c.Name, NameKey(c.Name), c.Phone, c.Address).Scan(&c.ID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, false, nil
	}
	if err != nil {
		return Customer{}, false, shared.TranslateDBError(err)
	}
	return c, true, nil
}

// GetStore loads a store by id.
func (r *Repository) GetStore(ctx context.Context, id int64) (Store, error) {
	var s Store
	err := r.q.QueryRow(ctx, `SELECT id, name, address, created_at FROM stores WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Address, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Store{}, shared.NotFoundError("store", id)
	}
	return s, err
}

// FindStoreByKey looks a store up by folded name.
func (r *Repository) FindStoreByKey(ctx context.Context, key string) (Store, error) {
	var s Store
	err := r.q.QueryRow(ctx, `SELECT id, name, address, created_at FROM stores WHERE name_key = $1`, key).
		Scan(&s.ID, &s.Name, &s.Address, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Store{}, shared.NotFoundError("store", key)
	}
	return s, err
}

// InsertStore inserts unless the folded name is taken; inserted is false on conflict.
func (r *Repository) InsertStore(ctx context.Context, s Store) (Store, bool, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO stores (name, name_key, address, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (name_key) DO NOTHING
RETURNING id, created_at`, s.Name, NameKey(s.Name), s.Address).Scan(&s.ID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Store{}, false, nil
	}
	if err != nil {
		return Store{}, false, shared.TranslateDBError(err)
	}
	return s, true, nil
}
