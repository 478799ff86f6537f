package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/niaga-erp/niaga/internal/ar"
	"github.com/niaga-erp/niaga/internal/expenses"
	"github.com/niaga-erp/niaga/internal/shared"
	"github.com/niaga-erp/niaga/internal/targets"
)

// RepositoryPort exposes the aggregation queries.
type RepositoryPort interface {
	PaidInvoices(ctx context.Context, window shared.DateRange) ([]RevenueEntry, error)
	PaidRevenueBy(ctx context.Context, window shared.DateRange, userIDs []int64) (decimal.Decimal, error)
	SalesLines(ctx context.Context, window shared.DateRange) ([]SalesLine, error)
}

// TargetSource lists configured sales targets.
type TargetSource interface {
	ListTargets(ctx context.Context, filter targets.ListFilter) ([]targets.Target, error)
}

// SalesReps lists users holding the sales capability.
type SalesReps interface {
	SalesRepIDs(ctx context.Context) ([]int64, error)
}

// ExpenseSource totals operating expenses.
type ExpenseSource interface {
	SumExpenses(ctx context.Context, window shared.DateRange) (expenses.Summary, error)
}

// ReceivablesSource reports open receivables.
type ReceivablesSource interface {
	ReceivablesAging(ctx context.Context, asOf time.Time) (ar.AgingReport, error)
}

// Deps groups the collaborators of Service.
type Deps struct {
	Repo        RepositoryPort
	Targets     TargetSource
	SalesReps   SalesReps
	Expenses    ExpenseSource
	Receivables ReceivablesSource
	Cache       *Cache
	Logger      *slog.Logger
}

// Service coordinates analytics query execution with the cache layer.
type Service struct {
	repo        RepositoryPort
	targets     TargetSource
	reps        SalesReps
	expenses    ExpenseSource
	receivables ReceivablesSource
	cache       *Cache
	logger      *slog.Logger
	now         func() time.Time
}

// NewService wires the aggregation sources with a Cache helper. A nil
// cache disables caching.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        deps.Repo,
		targets:     deps.Targets,
		reps:        deps.SalesReps,
		expenses:    deps.Expenses,
		receivables: deps.Receivables,
		cache:       deps.Cache,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// GetRevenueOverTime buckets paid invoice totals dated inside [start, end].
// Empty buckets are omitted.
func (s *Service) GetRevenueOverTime(ctx context.Context, start, end time.Time, groupBy GroupBy) ([]RevenuePoint, error) {
	if !groupBy.IsValid() {
		return nil, shared.ValidationError("Unknown grouping %q, expected day, week, month, quarter or year", string(groupBy))
	}
	window := shared.DateRange{Start: shared.DateOf(start), End: shared.DateOf(end)}
	if window.End.Before(window.Start) {
		return nil, shared.ValidationError("End date must not be before start date")
	}
	return cached(ctx, s, []string{"revenue", window.Start.Format(time.DateOnly), window.End.Format(time.DateOnly), string(groupBy)},
		func(ctx context.Context) ([]RevenuePoint, error) {
			entries, err := s.repo.PaidInvoices(ctx, window)
			if err != nil {
				return nil, err
			}
			return BucketRevenue(entries, groupBy), nil
		})
}

// GetTargetsForChart compares each active target of a user with the paid
// revenue the user created inside the target period.
func (s *Service) GetTargetsForChart(ctx context.Context, userID int64, t shared.PeriodType) ([]TargetPoint, error) {
	if userID <= 0 {
		return nil, shared.ValidationError("User is required")
	}
	if !t.IsValid() {
		return nil, shared.ValidationError("Unknown target type %q", string(t))
	}
	return cached(ctx, s, []string{"targets", strconv.FormatInt(userID, 10), string(t)},
		func(ctx context.Context) ([]TargetPoint, error) {
			list, err := s.targets.ListTargets(ctx, targets.ListFilter{UserID: userID, Type: t, ActiveOnly: true})
			if err != nil {
				return nil, err
			}
			points := make([]TargetPoint, 0, len(list))
			for _, target := range list {
				window, err := shared.PeriodRange(target.Period, target.Type)
				if err != nil {
					s.logger.Warn("skip malformed target", slog.Int64("target_id", target.ID), slog.Any("error", err))
					continue
				}
				achieved, err := s.repo.PaidRevenueBy(ctx, window, []int64{userID})
				if err != nil {
					return nil, err
				}
				points = append(points, TargetPoint{
					TargetID:   target.ID,
					Period:     target.Period,
					Range:      window,
					Target:     target.Amount,
					Achieved:   achieved,
					Percentage: Percentage(achieved, target.Amount),
				})
			}
			sort.Slice(points, func(i, j int) bool { return points[i].Range.Start.Before(points[j].Range.Start) })
			return points, nil
		})
}

// GetCompanyTargetsForChart rolls up the targets of sales users per period.
// Achieved revenue only counts invoices created by the users holding a
// target in that period.
func (s *Service) GetCompanyTargetsForChart(ctx context.Context, t shared.PeriodType) ([]CompanyTargetPoint, error) {
	if !t.IsValid() {
		return nil, shared.ValidationError("Unknown target type %q", string(t))
	}
	return cached(ctx, s, []string{"company_targets", string(t)}, func(ctx context.Context) ([]CompanyTargetPoint, error) {
		return s.companyTargets(ctx, t)
	})
}

func (s *Service) companyTargets(ctx context.Context, t shared.PeriodType) ([]CompanyTargetPoint, error) {
	repIDs, err := s.reps.SalesRepIDs(ctx)
	if err != nil {
		return nil, err
	}
	isRep := make(map[int64]bool, len(repIDs))
	for _, id := range repIDs {
		isRep[id] = true
	}
	list, err := s.targets.ListTargets(ctx, targets.ListFilter{Type: t, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	type period struct {
		total decimal.Decimal
		users []int64
	}
	periods := map[string]*period{}
	for _, target := range list {
		if !isRep[target.UserID] {
			continue
		}
		p, ok := periods[target.Period]
		if !ok {
			p = &period{total: decimal.Zero}
			periods[target.Period] = p
		}
		p.total = p.total.Add(target.Amount)
		p.users = append(p.users, target.UserID)
	}
	points := make([]CompanyTargetPoint, 0, len(periods))
	for key, p := range periods {
		window, err := shared.PeriodRange(key, t)
		if err != nil {
			s.logger.Warn("skip malformed target period", slog.String("period", key), slog.Any("error", err))
			continue
		}
		achieved, err := s.repo.PaidRevenueBy(ctx, window, p.users)
		if err != nil {
			return nil, err
		}
		points = append(points, CompanyTargetPoint{
			Period:     key,
			Range:      window,
			Users:      len(p.users),
			Target:     p.total,
			Achieved:   achieved,
			Percentage: Percentage(achieved, p.total),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Range.Start.Before(points[j].Range.Start) })
	return points, nil
}

// GetProfitability reports revenue, COGS and margin of the current period of r.
func (s *Service) GetProfitability(ctx context.Context, r shared.TimeRange) (Profitability, error) {
	window := r.Window(s.now())
	return cached(ctx, s, []string{"profitability", string(r), window.Start.Format(time.DateOnly)},
		func(ctx context.Context) (Profitability, error) {
			return s.profitability(ctx, r, window)
		})
}

func (s *Service) profitability(ctx context.Context, r shared.TimeRange, window shared.DateRange) (Profitability, error) {
	lines, err := s.repo.SalesLines(ctx, window)
	if err != nil {
		return Profitability{}, err
	}
	p := Summarize(lines)
	p.Range = r
	p.Window = window
	return p, nil
}

// GetCostBreakdown adds operating expenses of the period to its gross profit.
func (s *Service) GetCostBreakdown(ctx context.Context, r shared.TimeRange) (CostBreakdown, error) {
	window := r.Window(s.now())
	return cached(ctx, s, []string{"costs", string(r), window.Start.Format(time.DateOnly)},
		func(ctx context.Context) (CostBreakdown, error) {
			var (
				p       Profitability
				summary expenses.Summary
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				p, err = s.profitability(gctx, r, window)
				return err
			})
			g.Go(func() error {
				var err error
				summary, err = s.expenses.SumExpenses(gctx, window)
				return err
			})
			if err := g.Wait(); err != nil {
				return CostBreakdown{}, err
			}
			return CostBreakdown{
				Range:             r,
				Window:            window,
				Revenue:           p.Revenue,
				COGS:              p.COGS,
				GrossProfit:       p.GrossProfit,
				OperatingExpenses: summary.Total,
				ExpenseCategories: summary.ByCategory,
				NetProfit:         p.GrossProfit.Sub(summary.Total),
			}, nil
		})
}

// GetDashboard loads every report of r concurrently. The parts are read
// independently, so they may reflect slightly different moments.
func (s *Service) GetDashboard(ctx context.Context, r shared.TimeRange) (Dashboard, error) {
	now := s.now()
	window := r.Window(now)
	d := Dashboard{Range: r, Window: window}
	groupBy := dashboardGrouping(r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		points, err := s.GetRevenueOverTime(gctx, window.Start, window.End, groupBy)
		if err != nil {
			return err
		}
		d.Revenue = FillGaps(points, window.Start, window.End, groupBy)
		return nil
	})
	g.Go(func() error {
		var err error
		d.Profitability, err = s.GetProfitability(gctx, r)
		return err
	})
	g.Go(func() error {
		var err error
		d.Costs, err = s.GetCostBreakdown(gctx, r)
		return err
	})
	g.Go(func() error {
		var err error
		d.Receivables, err = s.receivables.ReceivablesAging(gctx, now)
		return err
	})
	g.Go(func() error {
		points, err := s.GetCompanyTargetsForChart(gctx, r.PeriodType())
		if err != nil {
			return err
		}
		current := shared.GeneratePeriod(r.PeriodType(), now)
		for _, p := range points {
			if p.Period == current {
				d.CompanyTargets = append(d.CompanyTargets, p)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

func dashboardGrouping(r shared.TimeRange) GroupBy {
	switch r {
	case shared.RangeQuarter:
		return GroupByWeek
	case shared.RangeYear:
		return GroupByMonth
	default:
		return GroupByDay
	}
}

func cached[T any](ctx context.Context, s *Service, parts []string, load func(context.Context) (T, error)) (T, error) {
	if s.cache == nil {
		return load(ctx)
	}
	var out T
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		return out, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	return out, err
}
