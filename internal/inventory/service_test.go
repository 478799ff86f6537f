package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-erp/niaga/internal/inventory"
	"github.com/niaga-erp/niaga/internal/inventory/inventorytest"
	"github.com/niaga-erp/niaga/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	stock   *inventorytest.MemoryStock
	logs    map[int64]inventory.ProductionLog
	opnames []inventory.StockOpname
	nextID  int64
}

type memoryTx struct {
	*inventorytest.MemoryStock
	repo *memoryRepo
}

func newMemoryRepo(products ...inventory.Product) *memoryRepo {
	return &memoryRepo{stock: inventorytest.NewMemoryStock(products...), logs: map[int64]inventory.ProductionLog{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	restore := r.stock.Snapshot()
	logs := make(map[int64]inventory.ProductionLog, len(r.logs))
	for k, v := range r.logs {
		logs[k] = v
	}
	if err := fn(ctx, &memoryTx{MemoryStock: r.stock, repo: r}); err != nil {
		restore()
		r.logs = logs
		return err
	}
	return nil
}

func (r *memoryRepo) GetProduct(ctx context.Context, id int64) (inventory.Product, error) {
	return r.stock.LookupProduct(ctx, id)
}

func (r *memoryRepo) ListMovements(_ context.Context, productID int64, _ int) ([]inventory.StockMovement, error) {
	var out []inventory.StockMovement
	for _, m := range r.stock.Movements() {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListLowStock(ctx context.Context) ([]inventory.Product, error) {
	return nil, nil
}

func (tx *memoryTx) GetProductForUpdate(ctx context.Context, id int64) (inventory.Product, error) {
	return tx.LookupProduct(ctx, id)
}

func (tx *memoryTx) InsertProductionLog(_ context.Context, log inventory.ProductionLog) (int64, error) {
	tx.repo.nextID++
	log.ID = tx.repo.nextID
	tx.repo.logs[log.ID] = log
	return log.ID, nil
}

func (tx *memoryTx) GetProductionLogForUpdate(_ context.Context, id int64) (inventory.ProductionLog, error) {
	log, ok := tx.repo.logs[id]
	if !ok {
		return inventory.ProductionLog{}, shared.NotFoundError("production log", id)
	}
	return log, nil
}

func (tx *memoryTx) DeleteProductionLog(_ context.Context, id int64) error {
	delete(tx.repo.logs, id)
	return nil
}

func (tx *memoryTx) InsertOpname(_ context.Context, o inventory.StockOpname) (int64, error) {
	tx.repo.nextID++
	o.ID = tx.repo.nextID
	tx.repo.opnames = append(tx.repo.opnames, o)
	return o.ID, nil
}

func (tx *memoryTx) InsertOpnameItem(context.Context, int64, inventory.OpnameItem) error {
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type countingObserver struct {
	moved []inventory.StockMovement
}

func (o *countingObserver) StockMoved(m inventory.StockMovement) {
	o.moved = append(o.moved, m)
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func product(id, stock int64) inventory.Product {
	return inventory.Product{ID: id, Name: "Produk", CurrentStock: stock, IsActive: true}
}

func TestProductionDeleteIsNetZero(t *testing.T) {
	repo := newMemoryRepo(product(1, 40))
	audit := &recordingAudit{}
	obs := &countingObserver{}
	svc := inventory.NewService(repo, audit, nil, obs, nil)
	ctx := context.Background()

	log, err := svc.RecordProduction(ctx, inventory.ProductionInput{ProductID: 1, Quantity: 500, ActorID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(540), repo.stock.Stock(1))
	assert.WithinDuration(t, time.Now(), log.ProducedAt, time.Minute)

	m, err := svc.DeleteProduction(ctx, log.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, inventory.DirectionOut, m.Direction)
	assert.Equal(t, int64(500), m.Quantity)
	assert.Equal(t, int64(40), repo.stock.Stock(1))

	assert.Len(t, repo.stock.Movements(), 2)
	assert.Len(t, obs.moved, 2)
	assert.Len(t, audit.logs, 2)
	assert.Empty(t, repo.logs)

	_, err = svc.DeleteProduction(ctx, log.ID, 7)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteProductionAfterConsumptionFails(t *testing.T) {
	repo := newMemoryRepo(product(1, 0))
	svc := inventory.NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	log, err := svc.RecordProduction(ctx, inventory.ProductionInput{ProductID: 1, Quantity: 10})
	require.NoError(t, err)
	_, err = svc.AdjustStock(ctx, inventory.AdjustmentInput{ProductID: 1, Delta: -6, Reason: "damaged"})
	require.NoError(t, err)

	_, err = svc.DeleteProduction(ctx, log.ID, 1)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, int64(4), repo.stock.Stock(1))
	assert.Contains(t, repo.logs, log.ID)
}

func TestAdjustStockValidation(t *testing.T) {
	repo := newMemoryRepo(product(1, 3))
	svc := inventory.NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.AdjustStock(ctx, inventory.AdjustmentInput{ProductID: 1, Delta: 0, Reason: "x"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.AdjustStock(ctx, inventory.AdjustmentInput{ProductID: 1, Delta: 2})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.AdjustStock(ctx, inventory.AdjustmentInput{ProductID: 1, Delta: -4, Reason: "lost"})
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	m, err := svc.AdjustStock(ctx, inventory.AdjustmentInput{ProductID: 1, Delta: 5, Reason: "found"})
	require.NoError(t, err)
	assert.Equal(t, int64(8), m.StockAfter)
}

func TestStockOpnamePostsDifferences(t *testing.T) {
	repo := newMemoryRepo(product(1, 10), product(2, 5), product(3, 7))
	svc := inventory.NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	opname, err := svc.PostStockOpname(ctx, inventory.OpnameInput{Items: []inventory.OpnameCount{
		{ProductID: 1, CountedQty: 12},
		{ProductID: 2, CountedQty: 5},
		{ProductID: 3, CountedQty: 4},
	}})
	require.NoError(t, err)
	require.Len(t, opname.Items, 3)
	assert.Equal(t, int64(2), opname.Items[0].Difference)
	assert.Zero(t, opname.Items[1].MovementID)
	assert.Equal(t, int64(-3), opname.Items[2].Difference)

	assert.Equal(t, int64(12), repo.stock.Stock(1))
	assert.Equal(t, int64(5), repo.stock.Stock(2))
	assert.Equal(t, int64(4), repo.stock.Stock(3))
	assert.Len(t, repo.stock.Movements(), 2)

	_, err = svc.PostStockOpname(ctx, inventory.OpnameInput{Items: []inventory.OpnameCount{{ProductID: 1, CountedQty: 1}, {ProductID: 1, CountedQty: 2}}})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordProductionRejectsInactiveProduct(t *testing.T) {
	repo := newMemoryRepo(inventory.Product{ID: 1, Name: "Lama", IsActive: false})
	svc := inventory.NewService(repo, nil, nil, nil, nil)

	_, err := svc.RecordProduction(context.Background(), inventory.ProductionInput{ProductID: 1, Quantity: 1})
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Empty(t, repo.logs)
	assert.Empty(t, repo.stock.Movements())
}

func TestRecordProductionRejectsResubmission(t *testing.T) {
	repo := newMemoryRepo(product(1, 0), inventory.Product{ID: 2, Name: "Lama", IsActive: false})
	idem := &memoryIdempotency{}
	svc := inventory.NewService(repo, nil, idem, nil, nil)
	ctx := context.Background()

	input := inventory.ProductionInput{ProductID: 1, Quantity: 25, RequestKey: "batch-0315"}
	_, err := svc.RecordProduction(ctx, input)
	require.NoError(t, err)

	_, err = svc.RecordProduction(ctx, input)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, "This production was already recorded", shared.UserMessage(err))
	assert.Equal(t, int64(25), repo.stock.Stock(1))
	assert.Len(t, repo.logs, 1)

	// a failed attempt releases its key
	retry := inventory.ProductionInput{ProductID: 2, Quantity: 1, RequestKey: "batch-0316"}
	_, err = svc.RecordProduction(ctx, retry)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.NotContains(t, idem.keys, "production:batch-0316")
}
