package analytics

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-erp/niaga/internal/ar"
	"github.com/niaga-erp/niaga/internal/expenses"
	"github.com/niaga-erp/niaga/internal/shared"
	"github.com/niaga-erp/niaga/internal/targets"
	"github.com/niaga-erp/niaga/internal/users"
)

type paidInvoice struct {
	date      time.Time
	amount    int64
	createdBy int64
}

type mockRepo struct {
	mu           sync.Mutex
	invoices     []paidInvoice
	lines        []SalesLine
	invoiceCalls int
	lineCalls    int
}

func (m *mockRepo) PaidInvoices(ctx context.Context, window shared.DateRange) ([]RevenueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoiceCalls++
	var out []RevenueEntry
	for _, inv := range m.invoices {
		if window.Contains(inv.date) {
			out = append(out, RevenueEntry{InvoiceDate: inv.date, Amount: decimal.NewFromInt(inv.amount)})
		}
	}
	return out, nil
}

func (m *mockRepo) PaidRevenueBy(ctx context.Context, window shared.DateRange, userIDs []int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, inv := range m.invoices {
		if window.Contains(inv.date) && slices.Contains(userIDs, inv.createdBy) {
			total = total.Add(decimal.NewFromInt(inv.amount))
		}
	}
	return total, nil
}

func (m *mockRepo) SalesLines(ctx context.Context, window shared.DateRange) ([]SalesLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lineCalls++
	return m.lines, nil
}

type stubTargets []targets.Target

func (s stubTargets) ListTargets(ctx context.Context, filter targets.ListFilter) ([]targets.Target, error) {
	var out []targets.Target
	for _, t := range s {
		if filter.UserID != 0 && t.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.ActiveOnly && !t.IsActive {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type stubReps []int64

func (s stubReps) SalesRepIDs(ctx context.Context) ([]int64, error) { return s, nil }

type stubExpenses struct{ summary expenses.Summary }

func (s stubExpenses) SumExpenses(ctx context.Context, window shared.DateRange) (expenses.Summary, error) {
	return s.summary, nil
}

type stubReceivables struct{}

func (stubReceivables) ReceivablesAging(ctx context.Context, asOf time.Time) (ar.AgingReport, error) {
	return ar.AgingReport{AsOf: asOf, Total: decimal.NewFromInt(75000)}, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func target(id, userID int64, period string, amount int64) targets.Target {
	return targets.Target{ID: id, UserID: userID, Type: shared.PeriodMonthly, Period: period, Amount: decimal.NewFromInt(amount), IsActive: true}
}

func fixture() (*mockRepo, Deps) {
	repo := &mockRepo{
		invoices: []paidInvoice{
			{date: day(2025, 1, 6), amount: 1000000, createdBy: 4},
			{date: day(2025, 1, 20), amount: 318000, createdBy: 4},
			{date: day(2025, 1, 21), amount: 400000, createdBy: 5},
			{date: day(2025, 1, 22), amount: 900000, createdBy: 7},
			{date: day(2025, 2, 3), amount: 250000, createdBy: 5},
			{date: day(2025, 2, 10), amount: 150000, createdBy: 4},
		},
		lines: []SalesLine{
			{ProductID: 1, ProductName: "Kopi", Category: "Minuman", Quantity: 10, Revenue: decimal.NewFromInt(200000), UnitCost: decimal.NewFromInt(12000)},
			{ProductID: 2, ProductName: "Roti", Quantity: 4, Revenue: decimal.NewFromInt(40000), UnitCost: decimal.NewFromInt(6000)},
		},
	}
	deps := Deps{
		Repo: repo,
		Targets: stubTargets{
			target(1, 4, "2025-02", 1000000),
			target(2, 4, "2025-01", 2000000),
			target(3, 5, "2025-01", 1000000),
			target(4, 6, "2025-01", 500000),
			{ID: 5, UserID: 5, Type: shared.PeriodMonthly, Period: "2024-12", Amount: decimal.NewFromInt(1), IsActive: false},
			target(6, 5, "2025-02", 800000),
		},
		SalesReps:   stubReps{4, 5},
		Expenses:    stubExpenses{summary: expenses.Summary{Total: decimal.NewFromInt(30000), ByCategory: []expenses.CategoryTotal{{Category: "Listrik", Total: decimal.NewFromInt(30000)}}}},
		Receivables: stubReceivables{},
	}
	return repo, deps
}

func newTestService(t *testing.T, deps Deps) *Service {
	t.Helper()
	svc := NewService(deps)
	svc.now = func() time.Time { return time.Date(2025, 2, 14, 9, 30, 0, 0, time.UTC) }
	return svc
}

func newCachedService(t *testing.T, deps Deps) (*Service, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	deps.Cache = NewCache(client, time.Minute)
	return newTestService(t, deps), deps.Cache
}

func TestRevenueOverTimeGroupsPaidInvoices(t *testing.T) {
	_, deps := fixture()
	svc := newTestService(t, deps)

	points, err := svc.GetRevenueOverTime(context.Background(), day(2025, 1, 1), day(2025, 2, 28), GroupByMonth)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2025-01", points[0].Bucket)
	assert.True(t, decimal.NewFromInt(2618000).Equal(points[0].Revenue))
	assert.Equal(t, 4, points[0].Invoices)
	assert.True(t, decimal.NewFromInt(400000).Equal(points[1].Revenue))

	points, err = svc.GetRevenueOverTime(context.Background(), day(2025, 1, 1), day(2025, 1, 31), GroupByWeek)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2025-W02", points[0].Bucket)
	assert.Equal(t, "2025-W04", points[1].Bucket)
}

func TestRevenueOverTimeValidates(t *testing.T) {
	_, deps := fixture()
	svc := newTestService(t, deps)

	_, err := svc.GetRevenueOverTime(context.Background(), day(2025, 1, 1), day(2025, 1, 31), "hour")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.GetRevenueOverTime(context.Background(), day(2025, 2, 1), day(2025, 1, 1), GroupByDay)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestTargetsForChartComputesAchievement(t *testing.T) {
	_, deps := fixture()
	svc := newTestService(t, deps)

	points, err := svc.GetTargetsForChart(context.Background(), 4, shared.PeriodMonthly)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2025-01", points[0].Period)
	assert.True(t, decimal.NewFromInt(1318000).Equal(points[0].Achieved))
	assert.Equal(t, 65.9, points[0].Percentage)
	assert.Equal(t, "2025-02", points[1].Period)
	assert.Equal(t, 15.0, points[1].Percentage)

	_, err = svc.GetTargetsForChart(context.Background(), 0, shared.PeriodMonthly)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCompanyTargetsOnlyCountSalesUsersWithTargets(t *testing.T) {
	_, deps := fixture()
	svc := newTestService(t, deps)

	points, err := svc.GetCompanyTargetsForChart(context.Background(), shared.PeriodMonthly)
	require.NoError(t, err)
	require.Len(t, points, 2)

	jan := points[0]
	assert.Equal(t, "2025-01", jan.Period)
	assert.Equal(t, 2, jan.Users)
	assert.True(t, decimal.NewFromInt(3000000).Equal(jan.Target))
	// user 6 is no longer a sales user and user 7 has no target
	assert.True(t, decimal.NewFromInt(1718000).Equal(jan.Achieved))
	assert.Equal(t, 57.3, jan.Percentage)

	feb := points[1]
	assert.Equal(t, "2025-02", feb.Period)
	assert.True(t, decimal.NewFromInt(400000).Equal(feb.Achieved))
	assert.Equal(t, 22.2, feb.Percentage)
}

func TestCostBreakdownSubtractsExpenses(t *testing.T) {
	_, deps := fixture()
	svc := newTestService(t, deps)

	costs, err := svc.GetCostBreakdown(context.Background(), shared.RangeMonth)
	require.NoError(t, err)
	assert.Equal(t, day(2025, 2, 1), costs.Window.Start)
	assert.Equal(t, day(2025, 2, 28), costs.Window.End)
	assert.True(t, decimal.NewFromInt(240000).Equal(costs.Revenue))
	assert.True(t, decimal.NewFromInt(144000).Equal(costs.COGS))
	assert.True(t, decimal.NewFromInt(96000).Equal(costs.GrossProfit))
	assert.True(t, decimal.NewFromInt(66000).Equal(costs.NetProfit))
	require.Len(t, costs.ExpenseCategories, 1)
}

func TestDashboardCombinesReports(t *testing.T) {
	_, deps := fixture()
	svc := newTestService(t, deps)

	d, err := svc.GetDashboard(context.Background(), shared.RangeMonth)
	require.NoError(t, err)
	require.Len(t, d.Revenue, 28)
	assert.Equal(t, "2025-02-03", d.Revenue[2].Bucket)
	assert.True(t, decimal.NewFromInt(250000).Equal(d.Revenue[2].Revenue))
	assert.True(t, d.Revenue[0].Revenue.IsZero())
	assert.Equal(t, 40.0, d.Profitability.Margin)
	assert.True(t, decimal.NewFromInt(75000).Equal(d.Receivables.Total))
	require.Len(t, d.CompanyTargets, 1)
	assert.Equal(t, "2025-02", d.CompanyTargets[0].Period)

	d, err = svc.GetDashboard(context.Background(), shared.RangeYear)
	require.NoError(t, err)
	require.Len(t, d.Revenue, 12)
	assert.Equal(t, "2025-01", d.Revenue[0].Bucket)
}

func TestCachedReportsInvalidatedByBump(t *testing.T) {
	repo, deps := fixture()
	svc, cache := newCachedService(t, deps)
	ctx := context.Background()

	first, err := svc.GetRevenueOverTime(ctx, day(2025, 1, 1), day(2025, 1, 31), GroupByMonth)
	require.NoError(t, err)
	second, err := svc.GetRevenueOverTime(ctx, day(2025, 1, 1), day(2025, 1, 31), GroupByMonth)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.invoiceCalls)
	require.Len(t, second, 1)
	assert.True(t, first[0].Revenue.Equal(second[0].Revenue))

	repo.invoices = append(repo.invoices, paidInvoice{date: day(2025, 1, 30), amount: 2000, createdBy: 4})
	stale, err := svc.GetRevenueOverTime(ctx, day(2025, 1, 1), day(2025, 1, 31), GroupByMonth)
	require.NoError(t, err)
	assert.True(t, first[0].Revenue.Equal(stale[0].Revenue))

	require.NoError(t, cache.Bump(ctx))
	fresh, err := svc.GetRevenueOverTime(ctx, day(2025, 1, 1), day(2025, 1, 31), GroupByMonth)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.invoiceCalls)
	assert.True(t, decimal.NewFromInt(2620000).Equal(fresh[0].Revenue))
}

type memoryTargets struct {
	mu     sync.Mutex
	byID   map[int64]targets.Target
	nextID int64
}

func (m *memoryTargets) GetTarget(ctx context.Context, id int64) (targets.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return targets.Target{}, shared.NotFoundError("target", id)
	}
	return t, nil
}

func (m *memoryTargets) ActiveExists(ctx context.Context, userID int64, typ shared.PeriodType, period string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if t.IsActive && t.UserID == userID && t.Type == typ && t.Period == period && t.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryTargets) InsertTarget(ctx context.Context, t targets.Target) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	m.byID[t.ID] = t
	return t.ID, nil
}

func (m *memoryTargets) UpdateTarget(ctx context.Context, t targets.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[t.ID] = t
	return nil
}

func (m *memoryTargets) ListTargets(ctx context.Context, filter targets.ListFilter) ([]targets.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make(stubTargets, 0, len(m.byID))
	for _, t := range m.byID {
		list = append(list, t)
	}
	return list.ListTargets(ctx, filter)
}

type salesRep struct{}

func (salesRep) RequireSalesRep(ctx context.Context, id int64) (users.User, error) {
	return users.User{ID: id, Name: "Budi", Role: shared.RoleSales, IsActive: true}, nil
}

func TestTargetChangesRefreshCachedCharts(t *testing.T) {
	_, deps := fixture()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)

	targetSvc := targets.NewService(&memoryTargets{byID: map[int64]targets.Target{}}, salesRep{}, nil, cache, nil)
	deps.Targets = targetSvc
	deps.Cache = cache
	svc := newTestService(t, deps)
	ctx := context.Background()

	created, err := targetSvc.CreateTarget(ctx, targets.CreateTargetInput{UserID: 4, Type: shared.PeriodMonthly, Period: "2025-02", Amount: decimal.NewFromInt(2000000)})
	require.NoError(t, err)
	points, err := svc.GetTargetsForChart(ctx, 4, shared.PeriodMonthly)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, decimal.NewFromInt(2000000).Equal(points[0].Target))
	assert.Equal(t, 7.5, points[0].Percentage)

	amount := decimal.NewFromInt(5000000)
	_, err = targetSvc.UpdateTarget(ctx, created.ID, targets.UpdateTargetInput{Amount: &amount})
	require.NoError(t, err)
	points, err = svc.GetTargetsForChart(ctx, 4, shared.PeriodMonthly)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, amount.Equal(points[0].Target))
	assert.Equal(t, 3.0, points[0].Percentage)

	company, err := svc.GetCompanyTargetsForChart(ctx, shared.PeriodMonthly)
	require.NoError(t, err)
	require.Len(t, company, 1)

	_, err = targetSvc.DeactivateTarget(ctx, created.ID, 1)
	require.NoError(t, err)
	points, err = svc.GetTargetsForChart(ctx, 4, shared.PeriodMonthly)
	require.NoError(t, err)
	require.Empty(t, points)
	company, err = svc.GetCompanyTargetsForChart(ctx, shared.PeriodMonthly)
	require.NoError(t, err)
	require.Empty(t, company)
}

func TestCachedProfitabilityRoundTrips(t *testing.T) {
	repo, deps := fixture()
	svc, _ := newCachedService(t, deps)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := svc.GetProfitability(ctx, shared.RangeMonth)
		require.NoError(t, err)
		assert.Equal(t, shared.RangeMonth, p.Range)
		require.Len(t, p.ByProduct, 2)
		assert.Equal(t, "Kopi", p.ByProduct[0].Name)
	}
	assert.Equal(t, 1, repo.lineCalls)
}
