// Package inventorytest provides an in-memory stock ledger for tests of
// modules that move stock.
package inventorytest

import (
	"context"
	"sync"

	"github.com/niaga-erp/niaga/internal/inventory"
	"github.com/niaga-erp/niaga/internal/shared"
)

// MemoryStock implements inventory.StockWriter over maps.
type MemoryStock struct {
	mu        sync.Mutex
	products  map[int64]inventory.Product
	movements []inventory.StockMovement
	nextID    int64
}

// NewMemoryStock seeds the ledger with products.
func NewMemoryStock(products ...inventory.Product) *MemoryStock {
	m := &MemoryStock{products: make(map[int64]inventory.Product, len(products))}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

// Snapshot captures the current state and returns a function restoring it,
// which lets fake repositories emulate transaction rollback.
func (m *MemoryStock) Snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	products := make(map[int64]inventory.Product, len(m.products))
	for id, p := range m.products {
		products[id] = p
	}
	movements := append([]inventory.StockMovement(nil), m.movements...)
	nextID := m.nextID
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.products = products
		m.movements = movements
		m.nextID = nextID
	}
}

// Stock returns the current stock of a product.
func (m *MemoryStock) Stock(productID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].CurrentStock
}

// Movements returns a copy of every recorded movement.
func (m *MemoryStock) Movements() []inventory.StockMovement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]inventory.StockMovement(nil), m.movements...)
}

// MovementsBySource filters recorded movements.
func (m *MemoryStock) MovementsBySource(source inventory.Source, refID int64) []inventory.StockMovement {
	var out []inventory.StockMovement
	for _, mv := range m.Movements() {
		if mv.Source == source && mv.RefID == refID {
			out = append(out, mv)
		}
	}
	return out
}

// LookupProduct implements inventory.StockWriter.
func (m *MemoryStock) LookupProduct(_ context.Context, productID int64) (inventory.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return inventory.Product{}, shared.NotFoundError("product", productID)
	}
	return p, nil
}

// DecrementStock implements inventory.StockWriter.
func (m *MemoryStock) DecrementStock(_ context.Context, productID, qty int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok || p.CurrentStock < qty {
		return 0, false, nil
	}
	p.CurrentStock -= qty
	m.products[productID] = p
	return p.CurrentStock, true, nil
}

// IncrementStock implements inventory.StockWriter.
func (m *MemoryStock) IncrementStock(_ context.Context, productID, qty int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return 0, shared.NotFoundError("product", productID)
	}
	p.CurrentStock += qty
	m.products[productID] = p
	return p.CurrentStock, nil
}

// InsertMovement implements inventory.StockWriter.
func (m *MemoryStock) InsertMovement(_ context.Context, mv inventory.StockMovement) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	mv.ID = m.nextID
	m.movements = append(m.movements, mv)
	return mv.ID, nil
}

// MovementsByRef returns movements for a source and reference.
func (m *MemoryStock) MovementsByRef(_ context.Context, source inventory.Source, refID int64) ([]inventory.StockMovement, error) {
	return m.MovementsBySource(source, refID), nil
}
