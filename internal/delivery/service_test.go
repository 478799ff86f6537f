package delivery

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
	mu         sync.Mutex
	stock      *inventorytest.MemoryStock
	invoices   map[int64]InvoiceSnapshot
	deliveries map[int64]Delivery
	nextID     int64
	failUpdate bool
}

type memoryTx struct {
	*inventorytest.MemoryStock
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stock: inventorytest.NewMemoryStock(
			inventory.Product{ID: 1, Name: "Kopi Bubuk", CurrentStock: 0, IsActive: true},
			inventory.Product{ID: 2, Name: "Teh Celup", CurrentStock: 5, IsActive: true},
		),
		invoices: map[int64]InvoiceSnapshot{
			1: {ID: 1, Number: "INV-1", Status: "SENT", PreparationStatus: "READY_FOR_DELIVERY", Lines: []InvoiceLine{
				{ProductID: 1, Quantity: 10},
				{ProductID: 2, Quantity: 3},
			}},
			2: {ID: 2, Number: "INV-2", Status: "SENT", PreparationStatus: "PREPARING"},
			3: {ID: 3, Number: "INV-3", Status: "CANCELLED", PreparationStatus: "READY_FOR_DELIVERY"},
		},
		deliveries: map[int64]Delivery{},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	restore := r.stock.Snapshot()
	deliveries := make(map[int64]Delivery, len(r.deliveries))
	for k, v := range r.deliveries {
		deliveries[k] = v
	}
	nextID := r.nextID
	if err := fn(ctx, &memoryTx{MemoryStock: r.stock, repo: r}); err != nil {
		restore()
		r.deliveries = deliveries
		r.nextID = nextID
		return err
	}
	return nil
}

func (r *memoryRepo) GetDelivery(_ context.Context, id int64) (Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok {
		return Delivery{}, shared.NotFoundError("delivery", id)
	}
	return d, nil
}

func (r *memoryRepo) ListDeliveries(_ context.Context, filter ListFilter) ([]Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Delivery
	for _, d := range r.deliveries {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (tx *memoryTx) GetInvoiceSnapshot(_ context.Context, invoiceID int64) (InvoiceSnapshot, error) {
	inv, ok := tx.repo.invoices[invoiceID]
	if !ok {
		return InvoiceSnapshot{}, shared.NotFoundError("invoice", invoiceID)
	}
	return inv, nil
}

func (tx *memoryTx) OpenDeliveryExists(_ context.Context, invoiceID int64) (bool, error) {
	for _, d := range tx.repo.deliveries {
		if d.InvoiceID == invoiceID && d.Status != StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) InsertDelivery(_ context.Context, d Delivery) (int64, error) {
	tx.repo.nextID++
	d.ID = tx.repo.nextID
	tx.repo.deliveries[d.ID] = d
	return d.ID, nil
}

func (tx *memoryTx) GetDeliveryForUpdate(_ context.Context, id int64) (Delivery, error) {
	d, ok := tx.repo.deliveries[id]
	if !ok {
		return Delivery{}, shared.NotFoundError("delivery", id)
	}
	return d, nil
}

func (tx *memoryTx) UpdateDeliveryStatus(_ context.Context, d Delivery) error {
	if tx.repo.failUpdate {
		return assert.AnError
	}
	tx.repo.deliveries[d.ID] = d
	return nil
}

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestCreateDeliveryRequiresReadyInvoice(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo)

	d, err := svc.CreateDelivery(context.Background(), CreateDeliveryInput{InvoiceID: 1, DriverID: 4, VehicleNumber: " B 1234 XY ", ActorID: 9})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, d.Status)
	assert.Equal(t, "INV-1", d.InvoiceNumber)
	assert.Equal(t, "B 1234 XY", d.VehicleNumber)
	assert.Equal(t, shared.DateOf(fixedNow), d.DeliveryDate)
	assert.Contains(t, d.Number, "DLV-20250310-")

	_, err = svc.CreateDelivery(context.Background(), CreateDeliveryInput{InvoiceID: 1})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateDelivery(context.Background(), CreateDeliveryInput{InvoiceID: 2})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateDelivery(context.Background(), CreateDeliveryInput{InvoiceID: 3})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateDelivery(context.Background(), CreateDeliveryInput{InvoiceID: 99})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.CreateDelivery(context.Background(), CreateDeliveryInput{InvoiceID: 1, DeliveryDate: "2025-03-01"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeliveryLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo)
	d, err := svc.CreateDelivery(context.Background(), CreateDeliveryInput{InvoiceID: 1})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), d.ID, UpdateStatusInput{Status: StatusDelivered})
	require.ErrorIs(t, err, shared.ErrConflict)

	d, err = svc.UpdateStatus(context.Background(), d.ID, UpdateStatusInput{Status: StatusInTransit})
	require.NoError(t, err)
	assert.Equal(t, StatusInTransit, d.Status)

	d, err = svc.UpdateStatus(context.Background(), d.ID, UpdateStatusInput{Status: StatusDelivered})
	require.NoError(t, err)
	require.NotNil(t, d.DeliveredAt)

	_, err = svc.UpdateStatus(context.Background(), d.ID, UpdateStatusInput{Status: StatusCancelled})
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Empty(t, repo.stock.Movements())
}

func TestReturnRestocksEveryInvoiceLine(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo)
	d, err := svc.CreateDelivery(context.Background(), CreateDeliveryInput{InvoiceID: 1})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), d.ID, UpdateStatusInput{Status: StatusInTransit})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), d.ID, UpdateStatusInput{Status: StatusReturned, Reason: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)

	d, err = svc.UpdateStatus(context.Background(), d.ID, UpdateStatusInput{Status: StatusReturned, Reason: "Customer refused", ActorID: 9})
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, d.Status)
	assert.Equal(t, "Customer refused", d.StatusReason)
	require.NotNil(t, d.ReturnedAt)

	assert.Equal(t, int64(10), repo.stock.Stock(1))
	assert.Equal(t, int64(8), repo.stock.Stock(2))
	returns := repo.stock.MovementsBySource(inventory.SourceDeliveryReturn, d.ID)
	require.Len(t, returns, 2)
	for _, m := range returns {
		assert.Equal(t, inventory.DirectionIn, m.Direction)
	}

	_, err = svc.UpdateStatus(context.Background(), d.ID, UpdateStatusInput{Status: StatusReturned, Reason: "again"})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestReturnRollsBackStockWhenStatusWriteFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo)
	d, err := svc.CreateDelivery(context.Background(), CreateDeliveryInput{InvoiceID: 1})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), d.ID, UpdateStatusInput{Status: StatusInTransit})
	require.NoError(t, err)

	repo.failUpdate = true
	_, err = svc.UpdateStatus(context.Background(), d.ID, UpdateStatusInput{Status: StatusReturned, Reason: "damaged"})
	require.Error(t, err)
	assert.Equal(t, int64(0), repo.stock.Stock(1))
	assert.Empty(t, repo.stock.Movements())
	assert.Equal(t, StatusInTransit, repo.deliveries[d.ID].Status)
}

func TestCancelledDeliveryAllowsRescheduling(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo)
	d, err := svc.CreateDelivery(context.Background(), CreateDeliveryInput{InvoiceID: 1})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), d.ID, UpdateStatusInput{Status: StatusCancelled, Reason: "truck broke down"})
	require.NoError(t, err)
	_, err = svc.CreateDelivery(context.Background(), CreateDeliveryInput{InvoiceID: 1})
	require.NoError(t, err)
}

func TestStatusTable(t *testing.T) {
	for _, s := range AllStatuses() {
		assert.True(t, s.IsValid())
		assert.NotEqual(t, string(s), s.Label(), s)
	}
	assert.False(t, Status("LOST").IsValid())
	assert.True(t, StatusDelivered.CanTransition(StatusReturned))
	assert.False(t, StatusPending.CanTransition(StatusReturned))
	assert.False(t, StatusCancelled.CanTransition(StatusPending))
	assert.False(t, StatusReturned.CanTransition(StatusInTransit))

	_, err := newService(newMemoryRepo()).UpdateStatus(context.Background(), 1, UpdateStatusInput{Status: "LOST"})
	require.ErrorIs(t, err, shared.ErrValidation)
}
