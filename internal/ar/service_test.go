package ar

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-erp/niaga/internal/shared"
)

type memoryARRepo struct {
	mu       sync.Mutex
	orders   map[int64]OrderSnapshot
	poByOrd  map[int64]int64
	invoices map[int64]Invoice
	payments map[int64]Payment
	nextID   int64
}

func newMemoryARRepo() *memoryARRepo {
	return &memoryARRepo{
		orders:   map[int64]OrderSnapshot{},
		poByOrd:  map[int64]int64{},
		invoices: map[int64]Invoice{},
		payments: map[int64]Payment{},
	}
}

type memoryARTx struct {
	repo *memoryARRepo
}

func (r *memoryARRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	invoices := make(map[int64]Invoice, len(r.invoices))
	for k, v := range r.invoices {
		invoices[k] = v
	}
	payments := make(map[int64]Payment, len(r.payments))
	for k, v := range r.payments {
		payments[k] = v
	}
	if err := fn(ctx, &memoryARTx{repo: r}); err != nil {
		r.invoices = invoices
		r.payments = payments
		return err
	}
	return nil
}

func (r *memoryARRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, shared.NotFoundError("invoice", id)
	}
	return inv, nil
}

func (r *memoryARRepo) list(keep func(Invoice) bool) []Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for id := int64(1); id <= r.nextID; id++ {
		if inv, ok := r.invoices[id]; ok && keep(inv) {
			out = append(out, inv)
		}
	}
	return out
}

func (r *memoryARRepo) ListInvoices(_ context.Context, filter ListFilter) ([]Invoice, error) {
	return r.list(func(inv Invoice) bool {
		return filter.Status == "" || inv.Status == filter.Status
	}), nil
}

func (r *memoryARRepo) ListOpenReceivables(context.Context) ([]Invoice, error) {
	return r.list(func(inv Invoice) bool {
		return inv.Status != InvoiceStatusCancelled && inv.PaidAmount.LessThan(inv.TotalAmount)
	}), nil
}

func (r *memoryARRepo) ListPreparationCandidates(context.Context) ([]Invoice, error) {
	return r.list(func(inv Invoice) bool {
		return inv.Status != InvoiceStatusCancelled && inv.Status != InvoiceStatusDraft &&
			(inv.PreparationStatus == PreparationWaiting || inv.PreparationStatus == PreparationPreparing)
	}), nil
}

func (r *memoryARRepo) ListInvoiceIDs(context.Context) ([]int64, error) {
	var ids []int64
	for _, inv := range r.list(func(Invoice) bool { return true }) {
		ids = append(ids, inv.ID)
	}
	return ids, nil
}

func (r *memoryARRepo) ListOverdueCandidates(_ context.Context, asOf time.Time) ([]int64, error) {
	var ids []int64
	for _, inv := range r.list(func(inv Invoice) bool {
		return inv.Status == InvoiceStatusSent && inv.DueDate.Before(asOf) && inv.PaidAmount.LessThan(inv.TotalAmount)
	}) {
		ids = append(ids, inv.ID)
	}
	return ids, nil
}

func (r *memoryARRepo) ListPayments(_ context.Context, invoiceID int64) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (tx *memoryARTx) GetOrderSnapshot(_ context.Context, orderID int64) (OrderSnapshot, error) {
	o, ok := tx.repo.orders[orderID]
	if !ok {
		return OrderSnapshot{}, shared.NotFoundError("order", orderID)
	}
	return o, nil
}

func (tx *memoryARTx) PurchaseOrderIDForOrder(_ context.Context, orderID int64) (int64, error) {
	return tx.repo.poByOrd[orderID], nil
}

func (tx *memoryARTx) InvoiceIDForOrder(_ context.Context, orderID int64) (int64, bool, error) {
	for _, inv := range tx.repo.invoices {
		if inv.OrderID == orderID {
			return inv.ID, true, nil
		}
	}
	return 0, false, nil
}

func (tx *memoryARTx) InsertInvoice(_ context.Context, inv Invoice) (int64, error) {
	tx.repo.nextID++
	inv.ID = tx.repo.nextID
	tx.repo.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (tx *memoryARTx) InsertInvoiceItem(_ context.Context, item InvoiceItem) (int64, error) {
	inv := tx.repo.invoices[item.InvoiceID]
	item.ID = int64(len(inv.Items) + 1)
	inv.Items = append(inv.Items, item)
	tx.repo.invoices[item.InvoiceID] = inv
	return item.ID, nil
}

func (tx *memoryARTx) GetInvoiceForUpdate(_ context.Context, id int64) (Invoice, error) {
	inv, ok := tx.repo.invoices[id]
	if !ok {
		return Invoice{}, shared.NotFoundError("invoice", id)
	}
	return inv, nil
}

func (tx *memoryARTx) InsertPayment(_ context.Context, p Payment) (int64, error) {
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.repo.payments[p.ID] = p
	return p.ID, nil
}

func (tx *memoryARTx) GetPayment(_ context.Context, id int64) (Payment, error) {
	p, ok := tx.repo.payments[id]
	if !ok {
		return Payment{}, shared.NotFoundError("payment", id)
	}
	return p, nil
}

func (tx *memoryARTx) DeletePayment(_ context.Context, id int64) error {
	delete(tx.repo.payments, id)
	return nil
}

func (tx *memoryARTx) SumPayments(_ context.Context, invoiceID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range tx.repo.payments {
		if p.InvoiceID == invoiceID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (tx *memoryARTx) UpdateInvoiceState(_ context.Context, inv Invoice) error {
	stored := tx.repo.invoices[inv.ID]
	inv.Items = stored.Items
	tx.repo.invoices[inv.ID] = inv
	return nil
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

type countingCache struct {
	bumps int
}

func (c *countingCache) Bump(context.Context) error {
	c.bumps++
	return nil
}

var fixedNow = time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC)

func newTestService(repo *memoryARRepo, policy PreparationPolicy) (*Service, *countingCache) {
	cache := &countingCache{}
	svc := NewService(repo, nil, &memoryIdempotency{}, cache, policy, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, cache
}

func seedOrder(repo *memoryARRepo, id int64, status string, lines ...InvoiceItem) {
	repo.orders[id] = OrderSnapshot{ID: id, Number: "SO-1", Status: status, CustomerID: 3, CustomerName: "Toko Maju", Items: lines}
}

func line(productID, qty int64, price string) InvoiceItem {
	p := decimal.RequireFromString(price)
	return InvoiceItem{ProductID: productID, Quantity: qty, Price: p, LineTotal: p.Mul(decimal.NewFromInt(qty))}
}

func newSentInvoice(t *testing.T, svc *Service, repo *memoryARRepo, total string) Invoice {
	t.Helper()
	orderID := int64(len(repo.orders) + 1)
	seedOrder(repo, orderID, "COMPLETED", line(1, 1, total))
	inv, err := svc.CreateInvoiceFromOrder(context.Background(), CreateInvoiceInput{OrderID: orderID, ActorID: 7})
	require.NoError(t, err)
	inv, err = svc.SendInvoice(context.Background(), inv.ID, 7)
	require.NoError(t, err)
	return inv
}

func pay(t *testing.T, svc *Service, invoiceID int64, amount string) PaymentResult {
	t.Helper()
	res, err := svc.RecordPayment(context.Background(), PaymentInput{InvoiceID: invoiceID, Amount: decimal.RequireFromString(amount), Method: "TRANSFER", ActorID: 9})
	require.NoError(t, err)
	return res
}

func TestCreateInvoiceFromOrder(t *testing.T) {
	repo := newMemoryARRepo()
	svc, cache := newTestService(repo, DefaultPreparationPolicy())
	seedOrder(repo, 1, "COMPLETED", line(1, 10, "5000"), line(2, 3, "20000"))
	repo.poByOrd[1] = 44

	inv, err := svc.CreateInvoiceFromOrder(context.Background(), CreateInvoiceInput{
		OrderID:      1,
		InvoiceDate:  "2025-02-01",
		Tax:          decimal.RequireFromString("11000"),
		Discount:     decimal.RequireFromString("10000"),
		ShippingCost: decimal.RequireFromString("5000"),
		ActorID:      7,
	})
	require.NoError(t, err)

	assert.Equal(t, "110000", inv.Subtotal.String())
	assert.Equal(t, "116000", inv.TotalAmount.String())
	assert.Equal(t, "116000", inv.RemainingAmount.String())
	assert.Equal(t, InvoiceStatusDraft, inv.Status)
	assert.Equal(t, PaymentStatusUnpaid, inv.PaymentStatus)
	assert.Equal(t, PreparationWaiting, inv.PreparationStatus)
	assert.Equal(t, int64(44), inv.PurchaseOrderID)
	assert.Equal(t, int64(7), inv.CreatedBy)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), inv.DueDate)
	assert.Len(t, inv.Items, 2)
	assert.Equal(t, 1, cache.bumps)

	_, err = svc.CreateInvoiceFromOrder(context.Background(), CreateInvoiceInput{OrderID: 1})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateInvoiceRequiresCompletedOrder(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, DefaultPreparationPolicy())
	seedOrder(repo, 1, "IN_PROCESS", line(1, 1, "100"))

	_, err := svc.CreateInvoiceFromOrder(context.Background(), CreateInvoiceInput{OrderID: 1})
	assert.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateInvoiceFromOrder(context.Background(), CreateInvoiceInput{OrderID: 2})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	seedOrder(repo, 3, "COMPLETED", line(1, 1, "100"))
	_, err = svc.CreateInvoiceFromOrder(context.Background(), CreateInvoiceInput{OrderID: 3, Discount: decimal.NewFromInt(101)})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, repo.invoices)
}

func TestPartialThenFullPayment(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, DefaultPreparationPolicy())
	inv := newSentInvoice(t, svc, repo, "100000")

	first := pay(t, svc, inv.ID, "40000")
	assert.Equal(t, PaymentStatusPartiallyPaid, first.Invoice.PaymentStatus)
	assert.Equal(t, "60000", first.Invoice.RemainingAmount.String())
	assert.Equal(t, InvoiceStatusSent, first.Invoice.Status)

	second := pay(t, svc, inv.ID, "60000")
	assert.Equal(t, PaymentStatusPaid, second.Invoice.PaymentStatus)
	assert.True(t, second.Invoice.RemainingAmount.IsZero())
	assert.Equal(t, InvoiceStatusPaid, second.Invoice.Status)

	back, err := svc.DeletePayment(context.Background(), second.Payment.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPartiallyPaid, back.PaymentStatus)
	assert.Equal(t, "60000", back.RemainingAmount.String())
	assert.Equal(t, InvoiceStatusSent, back.Status)
}

func TestOverpayment(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, DefaultPreparationPolicy())
	inv := newSentInvoice(t, svc, repo, "1000")

	res := pay(t, svc, inv.ID, "1500")
	assert.Equal(t, PaymentStatusOverpaid, res.Invoice.PaymentStatus)
	assert.True(t, res.Invoice.RemainingAmount.IsZero())
	assert.Equal(t, InvoiceStatusPaid, res.Invoice.Status)
}

func TestRecordPaymentValidation(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, DefaultPreparationPolicy())
	inv := newSentInvoice(t, svc, repo, "1000")
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentInput{InvoiceID: inv.ID, Amount: decimal.Zero, Method: "CASH"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(ctx, PaymentInput{InvoiceID: inv.ID, Amount: decimal.NewFromInt(10), Method: "CASH", PaymentDate: "2025-03-01"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CancelInvoice(ctx, inv.ID, "wrong customer", 7)
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, PaymentInput{InvoiceID: inv.ID, Amount: decimal.NewFromInt(10), Method: "CASH"})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestRecordPaymentIdempotencyKey(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, DefaultPreparationPolicy())
	inv := newSentInvoice(t, svc, repo, "1000")
	ctx := context.Background()

	input := PaymentInput{InvoiceID: inv.ID, Amount: decimal.NewFromInt(300), Method: "CASH", RequestKey: "abc"}
	_, err := svc.RecordPayment(ctx, input)
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, input)
	assert.ErrorIs(t, err, shared.ErrConflict)

	got, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "300", got.PaidAmount.String())
}

func TestConcurrentPaymentsSumExactly(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, DefaultPreparationPolicy())
	inv := newSentInvoice(t, svc, repo, "1000")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordPayment(context.Background(), PaymentInput{InvoiceID: inv.ID, Amount: decimal.NewFromInt(100), Method: "CASH"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.PaidAmount.String())
	assert.Equal(t, PaymentStatusPaid, got.PaymentStatus)
}

func TestCancelInvoiceWithPaymentsConflicts(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, DefaultPreparationPolicy())
	inv := newSentInvoice(t, svc, repo, "1000")
	pay(t, svc, inv.ID, "10")

	_, err := svc.CancelInvoice(context.Background(), inv.ID, "mistake", 7)
	assert.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CancelInvoice(context.Background(), inv.ID, " ", 7)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestGetInvoiceReturnsReconciledValues(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, DefaultPreparationPolicy())
	repo.nextID = 1
	repo.invoices[1] = Invoice{ID: 1, Status: InvoiceStatusSent, TotalAmount: d("500"), PaidAmount: d("100"),
		PaymentStatus: PaymentStatusUnpaid, RemainingAmount: decimal.Zero}

	got, err := svc.GetInvoice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPartiallyPaid, got.PaymentStatus)
	assert.Equal(t, "400", got.RemainingAmount.String())

	// the read path does not write
	assert.True(t, repo.invoices[1].RemainingAmount.IsZero())
}

func TestRepairInvoices(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, DefaultPreparationPolicy())
	inv := newSentInvoice(t, svc, repo, "500")
	pay(t, svc, inv.ID, "200")
	healthy := newSentInvoice(t, svc, repo, "300")

	broken := repo.invoices[inv.ID]
	broken.RemainingAmount = decimal.Zero
	broken.PaymentStatus = PaymentStatusUnpaid
	broken.PaidAmount = decimal.Zero
	repo.invoices[inv.ID] = broken

	count, err := svc.RepairInvoices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	fixed := repo.invoices[inv.ID]
	assert.Equal(t, "200", fixed.PaidAmount.String())
	assert.Equal(t, "300", fixed.RemainingAmount.String())
	assert.Equal(t, PaymentStatusPartiallyPaid, fixed.PaymentStatus)
	assert.Equal(t, PaymentStatusUnpaid, repo.invoices[healthy.ID].PaymentStatus)

	count, err = svc.RepairInvoices(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPreparationFlow(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, DefaultPreparationPolicy())
	ctx := context.Background()
	inv := newSentInvoice(t, svc, repo, "1000")
	pay(t, svc, inv.ID, "400")

	queue, err := svc.PreparationQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	_, err = svc.ConfirmPreparation(ctx, inv.ID, PreparationInput{Status: PreparationPreparing}, 5)
	assert.ErrorIs(t, err, shared.ErrConflict)

	pay(t, svc, inv.ID, "600")
	queue, err = svc.PreparationQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)

	_, err = svc.ConfirmPreparation(ctx, inv.ID, PreparationInput{Status: PreparationReady}, 5)
	assert.ErrorIs(t, err, shared.ErrConflict)

	got, err := svc.ConfirmPreparation(ctx, inv.ID, PreparationInput{Status: PreparationPreparing, Notes: "picking"}, 5)
	require.NoError(t, err)
	assert.Equal(t, PreparationPreparing, got.PreparationStatus)

	got, err = svc.ConfirmPreparation(ctx, inv.ID, PreparationInput{Status: PreparationReady}, 5)
	require.NoError(t, err)
	assert.Equal(t, PreparationReady, got.PreparationStatus)

	_, err = svc.ConfirmPreparation(ctx, inv.ID, PreparationInput{Status: PreparationCancelled}, 5)
	assert.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.ConfirmPreparation(ctx, inv.ID, PreparationInput{Status: "SHIPPED"}, 5)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRelaxedPreparationPolicy(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, PreparationPolicy{MinPaymentStatus: PaymentStatusPartiallyPaid})
	inv := newSentInvoice(t, svc, repo, "1000")
	pay(t, svc, inv.ID, "1")

	queue, err := svc.PreparationQueue(context.Background())
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

func TestMarkOverdueAndAging(t *testing.T) {
	repo := newMemoryARRepo()
	svc, _ := newTestService(repo, DefaultPreparationPolicy())
	ctx := context.Background()

	seedOrder(repo, 1, "COMPLETED", line(1, 1, "1000"))
	inv, err := svc.CreateInvoiceFromOrder(ctx, CreateInvoiceInput{OrderID: 1, InvoiceDate: "2024-12-01", DueDate: "2025-01-01"})
	require.NoError(t, err)
	stored := repo.invoices[inv.ID]
	stored.Status = InvoiceStatusSent
	repo.invoices[inv.ID] = stored

	marked, err := svc.MarkOverdue(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	assert.Equal(t, InvoiceStatusOverdue, repo.invoices[inv.ID].Status)

	report, err := svc.ReceivablesAging(ctx, fixedNow)
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, AgingOverdue31To60, report.Rows[0].Category)
	assert.Equal(t, 45, report.Rows[0].DaysOverdue)
	assert.Equal(t, "1000", report.Totals[AgingOverdue31To60].String())
}
