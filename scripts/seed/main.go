package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/app"
	"github.com/niaga-erp/niaga/internal/masterdata"
	"github.com/niaga-erp/niaga/internal/platform/db"
	"github.com/niaga-erp/niaga/internal/shared"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Seeding users...")
	if err := seedUsers(ctx, pool); err != nil {
		log.Fatalf("seed users: %v", err)
	}

	fmt.Println("→ Seeding master data...")
	if err := seedMasterData(ctx, pool); err != nil {
		log.Fatalf("seed master data: %v", err)
	}

	fmt.Println("→ Seeding products...")
	if err := seedProducts(ctx, pool); err != nil {
		log.Fatalf("seed products: %v", err)
	}

	fmt.Println("→ Seeding sales targets...")
	if err := seedTargets(ctx, pool, time.Now().UTC()); err != nil {
		log.Fatalf("seed targets: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

// =============================================================================
// USERS
// =============================================================================

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	users := []struct {
		name  string
		email string
		role  shared.Role
	}{
		{"Admin Niaga", "admin@niaga.local", shared.RoleAdmin},
		{"Rina Sales", "rina@niaga.local", shared.RoleSales},
		{"Budi Sales", "budi@niaga.local", shared.RoleSales},
		{"Sari Finance", "sari@niaga.local", shared.RoleFinance},
		{"Joko Gudang", "joko@niaga.local", shared.RoleWarehouse},
		{"Dedi Helper", "dedi@niaga.local", shared.RoleHelper},
	}
	for _, u := range users {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (name, email, role, is_active, created_at)
			VALUES ($1, $2, $3, TRUE, NOW())
			ON CONFLICT (email) DO NOTHING`, u.name, u.email, string(u.role))
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// MASTER DATA
// =============================================================================

func seedMasterData(ctx context.Context, pool *pgxpool.Pool) error {
	customers := []struct {
		name, phone, address string
	}{
		{"Toko Sumber Rejeki", "0812-1111-2222", "Jl. Pasar Baru 12, Bandung"},
		{"CV Maju Bersama", "0813-3333-4444", "Jl. Merdeka 5, Cimahi"},
		{"Warung Bu Tini", "", "Jl. Kenanga 3, Bandung"},
	}
	for _, c := range customers {
		name := masterdata.NormalizeName(c.name)
		_, err := pool.Exec(ctx, `
			INSERT INTO customers (name, name_key, phone, address, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (name_key) DO NOTHING`, name, masterdata.NameKey(name), c.phone, c.address)
		if err != nil {
			return err
		}
	}

	stores := []struct {
		name, address string
	}{
		{"Cabang Bandung", "Jl. Asia Afrika 100, Bandung"},
		{"Cabang Cimahi", "Jl. Amir Machmud 20, Cimahi"},
	}
	for _, s := range stores {
		name := masterdata.NormalizeName(s.name)
		_, err := pool.Exec(ctx, `
			INSERT INTO stores (name, name_key, address, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (name_key) DO NOTHING`, name, masterdata.NameKey(name), s.address)
		if err != nil {
			return err
		}
	}

	for _, name := range []string{"Minuman", "Makanan Ringan", "Kemasan"} {
		if _, err := pool.Exec(ctx, `INSERT INTO categories (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

func seedProducts(ctx context.Context, pool *pgxpool.Pool) error {
	products := []struct {
		code, name, category, unit string
		price, cost                string
		stock, minStock            int64
	}{
		{"MNM-001", "Kopi Susu Botol 250ml", "Minuman", "btl", "12000", "7500", 240, 48},
		{"MNM-002", "Teh Melati 350ml", "Minuman", "btl", "8000", "4200", 360, 60},
		{"MKR-001", "Keripik Singkong Pedas", "Makanan Ringan", "pcs", "15000", "9000", 120, 24},
		{"MKR-002", "Kacang Atom 200g", "Makanan Ringan", "pcs", "11000", "6500", 80, 20},
		{"KMS-001", "Kardus Isi 24", "Kemasan", "pcs", "5000", "3000", 500, 100},
	}
	for _, p := range products {
		price, err := decimal.NewFromString(p.price)
		if err != nil {
			return err
		}
		cost, err := decimal.NewFromString(p.cost)
		if err != nil {
			return err
		}
		// Opening stock is written directly; the ledger starts from this balance.
		_, err = pool.Exec(ctx, `
			INSERT INTO products (code, name, category_id, unit, price, cost, current_stock, min_stock, is_active, created_at, updated_at)
			VALUES ($1, $2, (SELECT id FROM categories WHERE name = $3), $4, $5, $6, $7, $8, TRUE, NOW(), NOW())
			ON CONFLICT (code) DO NOTHING`, p.code, p.name, p.category, p.unit, price, cost, p.stock, p.minStock)
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// TARGETS
// =============================================================================

func seedTargets(ctx context.Context, pool *pgxpool.Pool, now time.Time) error {
	targets := []struct {
		email  string
		kind   shared.PeriodType
		amount int64
	}{
		{"rina@niaga.local", shared.PeriodMonthly, 25_000_000},
		{"budi@niaga.local", shared.PeriodMonthly, 20_000_000},
		{"rina@niaga.local", shared.PeriodQuarterly, 70_000_000},
	}
	for _, t := range targets {
		_, err := pool.Exec(ctx, `
			INSERT INTO sales_targets (user_id, target_type, target_period, target_amount, is_active, created_at, updated_at)
			SELECT id, $2, $3, $4, TRUE, NOW(), NOW() FROM users WHERE email = $1
			ON CONFLICT DO NOTHING`,
			t.email, string(t.kind), shared.GeneratePeriod(t.kind, now), decimal.NewFromInt(t.amount))
		if err != nil {
			return err
		}
	}
	return nil
}
