package expenses

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-erp/niaga/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	txns   map[int64]Transaction
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{txns: map[int64]Transaction{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[int64]Transaction, len(r.txns))
	for k, v := range r.txns {
		saved[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.txns = saved
		return err
	}
	return nil
}

func (r *memoryRepo) GetTransaction(_ context.Context, id int64) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok {
		return Transaction{}, shared.NotFoundError("transaction", id)
	}
	return t, nil
}

func (r *memoryRepo) matching(filter ListFilter) []Transaction {
	var out []Transaction
	for _, t := range r.txns {
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(t.Category, filter.Category) {
			continue
		}
		if !filter.From.IsZero() && t.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && t.Date.After(filter.To) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (r *memoryRepo) ListTransactions(_ context.Context, filter ListFilter) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matching(filter), nil
}

func (r *memoryRepo) SumByCategory(_ context.Context, filter ListFilter) ([]CategoryTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := map[string]decimal.Decimal{}
	for _, t := range r.matching(filter) {
		totals[t.Category] = totals[t.Category].Add(t.Amount)
	}
	out := make([]CategoryTotal, 0, len(totals))
	for c, v := range totals {
		out = append(out, CategoryTotal{Category: c, Total: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total.GreaterThan(out[j].Total) })
	return out, nil
}

func (tx *memoryTx) InsertTransaction(_ context.Context, t Transaction) (int64, error) {
	tx.repo.nextID++
	t.ID = tx.repo.nextID
	t.Items = nil
	tx.repo.txns[t.ID] = t
	return t.ID, nil
}

func (tx *memoryTx) InsertItem(_ context.Context, it Item) (int64, error) {
	t := tx.repo.txns[it.TransactionID]
	it.ID = int64(len(t.Items) + 1)
	t.Items = append(t.Items, it)
	tx.repo.txns[it.TransactionID] = t
	return it.ID, nil
}

func (tx *memoryTx) DeleteTransaction(_ context.Context, id int64) (Transaction, error) {
	t, ok := tx.repo.txns[id]
	if !ok {
		return Transaction{}, shared.NotFoundError("transaction", id)
	}
	delete(tx.repo.txns, id)
	return t, nil
}

type countingCache struct{ bumps int }

func (c *countingCache) Bump(context.Context) error {
	c.bumps++
	return nil
}

func newService() (*Service, *memoryRepo, *countingCache) {
	repo := newMemoryRepo()
	cache := &countingCache{}
	svc := NewService(repo, nil, cache, nil)
	svc.now = func() time.Time { return time.Date(2025, 2, 20, 10, 0, 0, 0, time.UTC) }
	return svc, repo, cache
}

func TestCreateTransactionFromItems(t *testing.T) {
	svc, repo, cache := newService()
	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Type:     TypeExpense,
		Date:     "2025-02-03",
		Category: "Operasional",
		Items: []ItemInput{
			{Description: "Bensin", Quantity: 2, UnitPrice: decimal.NewFromInt(150000)},
			{Description: "Parkir", Quantity: 4, UnitPrice: decimal.NewFromInt(5000)},
		},
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(320000).Equal(txn.Amount))
	assert.Equal(t, time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), txn.Date)
	assert.True(t, strings.HasPrefix(txn.Number, "EXP-20250220-"))
	assert.Len(t, repo.txns[txn.ID].Items, 2)
	assert.Equal(t, 1, cache.bumps)
}

func TestCreateTransactionValidation(t *testing.T) {
	svc, repo, cache := newService()
	ctx := context.Background()
	cases := map[string]CreateTransactionInput{
		"unknown type":      {Type: "GIFT", Category: "x", Amount: decimal.NewFromInt(1)},
		"missing category":  {Type: TypeExpense, Category: " ", Amount: decimal.NewFromInt(1)},
		"zero amount":       {Type: TypeExpense, Category: "x"},
		"negative amount":   {Type: TypeIncome, Category: "x", Amount: decimal.NewFromInt(-5)},
		"bad date":          {Type: TypeExpense, Category: "x", Amount: decimal.NewFromInt(1), Date: "03/02/2025"},
		"item sum mismatch": {Type: TypeExpense, Category: "x", Amount: decimal.NewFromInt(10), Items: []ItemInput{{Description: "a", Quantity: 1, UnitPrice: decimal.NewFromInt(9)}}},
		"free item":         {Type: TypeExpense, Category: "x", Items: []ItemInput{{Description: "a", Quantity: 1}}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateTransaction(ctx, input)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
	assert.Empty(t, repo.txns)
	assert.Zero(t, cache.bumps)
}

func TestSumExpensesWithinWindow(t *testing.T) {
	svc, _, cache := newService()
	ctx := context.Background()
	for _, in := range []CreateTransactionInput{
		{Type: TypeExpense, Date: "2025-02-01", Category: "Gaji", Amount: decimal.NewFromInt(3000000)},
		{Type: TypeExpense, Date: "2025-02-15", Category: "Listrik", Amount: decimal.NewFromInt(450000)},
		{Type: TypeExpense, Date: "2025-02-28", Category: "Listrik", Amount: decimal.NewFromInt(50000)},
		{Type: TypeExpense, Date: "2025-03-01", Category: "Gaji", Amount: decimal.NewFromInt(3000000)},
		{Type: TypeIncome, Date: "2025-02-10", Category: "Sewa", Amount: decimal.NewFromInt(999)},
	} {
		_, err := svc.CreateTransaction(ctx, in)
		require.NoError(t, err)
	}
	window, err := shared.PeriodRange("2025-02", shared.PeriodMonthly)
	require.NoError(t, err)
	summary, err := svc.SumExpenses(ctx, window)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3500000).Equal(summary.Total), summary.Total.String())
	require.Len(t, summary.ByCategory, 2)
	assert.Equal(t, "Gaji", summary.ByCategory[0].Category)
	assert.True(t, decimal.NewFromInt(500000).Equal(summary.ByCategory[1].Total))
	assert.Equal(t, 5, cache.bumps)
}

func TestDeleteTransaction(t *testing.T) {
	svc, repo, cache := newService()
	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{Type: TypeIncome, Category: "Lain-lain", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTransaction(context.Background(), txn.ID, 1))
	assert.Empty(t, repo.txns)
	assert.Equal(t, 2, cache.bumps)
	require.ErrorIs(t, svc.DeleteTransaction(context.Background(), txn.ID, 1), shared.ErrNotFound)
	assert.Equal(t, 2, cache.bumps)
}

func TestListTransactionsRejectsInvertedRange(t *testing.T) {
	svc, _, _ := newService()
	_, err := svc.ListTransactions(context.Background(), ListFilter{
		From: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.ListTransactions(context.Background(), ListFilter{Type: "GIFT"})
	require.ErrorIs(t, err, shared.ErrValidation)
}
