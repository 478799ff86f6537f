// Package analytics aggregates paid invoices, targets and expenses into
// revenue, achievement and profitability reports.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/ar"
	"github.com/niaga-erp/niaga/internal/expenses"
	"github.com/niaga-erp/niaga/internal/shared"
)

// GroupBy is the bucket size of a revenue series.
type GroupBy string

const (
	GroupByDay     GroupBy = "day"
	GroupByWeek    GroupBy = "week"
	GroupByMonth   GroupBy = "month"
	GroupByQuarter GroupBy = "quarter"
	GroupByYear    GroupBy = "year"
)

// AllGroupBys lists every bucket size.
func AllGroupBys() []GroupBy {
	return []GroupBy{GroupByDay, GroupByWeek, GroupByMonth, GroupByQuarter, GroupByYear}
}

// Label returns a display name.
func (g GroupBy) Label() string {
	switch g {
	case GroupByDay:
		return "Daily"
	case GroupByWeek:
		return "Weekly"
	case GroupByMonth:
		return "Monthly"
	case GroupByQuarter:
		return "Quarterly"
	case GroupByYear:
		return "Yearly"
	default:
		return string(g)
	}
}

// IsValid reports whether g is a known bucket size.
func (g GroupBy) IsValid() bool {
	switch g {
	case GroupByDay, GroupByWeek, GroupByMonth, GroupByQuarter, GroupByYear:
		return true
	default:
		return false
	}
}

// RevenueEntry is one paid invoice contributing to revenue.
type RevenueEntry struct {
	InvoiceDate time.Time
	Amount      decimal.Decimal
}

// RevenuePoint is the revenue of one bucket.
type RevenuePoint struct {
	Bucket   string          `json:"bucket"`
	Start    time.Time       `json:"start"`
	Revenue  decimal.Decimal `json:"revenue"`
	Invoices int             `json:"invoices"`
}

// TargetPoint compares one user target with achieved revenue.
type TargetPoint struct {
	TargetID   int64            `json:"target_id"`
	Period     string           `json:"period"`
	Range      shared.DateRange `json:"range"`
	Target     decimal.Decimal  `json:"target"`
	Achieved   decimal.Decimal  `json:"achieved"`
	Percentage float64          `json:"percentage"`
}

// CompanyTargetPoint rolls up every sales user's target of one period.
type CompanyTargetPoint struct {
	Period     string           `json:"period"`
	Range      shared.DateRange `json:"range"`
	Users      int              `json:"users"`
	Target     decimal.Decimal  `json:"target"`
	Achieved   decimal.Decimal  `json:"achieved"`
	Percentage float64          `json:"percentage"`
}

// SalesLine is one invoiced product line of a paid invoice with its cost.
type SalesLine struct {
	ProductID   int64
	ProductName string
	Category    string
	Quantity    int64
	Revenue     decimal.Decimal
	UnitCost    decimal.Decimal
}

// ProfitRow is the profitability of one product or category.
type ProfitRow struct {
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
	COGS        decimal.Decimal `json:"cogs"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	Margin      float64         `json:"margin"`
}

// Profitability summarises revenue against cost of goods sold.
type Profitability struct {
	Range       shared.TimeRange `json:"range"`
	Window      shared.DateRange `json:"window"`
	Revenue     decimal.Decimal  `json:"revenue"`
	COGS        decimal.Decimal  `json:"cogs"`
	GrossProfit decimal.Decimal  `json:"gross_profit"`
	Margin      float64          `json:"margin"`
	ByCategory  []ProfitRow      `json:"by_category"`
	ByProduct   []ProfitRow      `json:"by_product"`
}

// CostBreakdown adds operating expenses on top of profitability.
type CostBreakdown struct {
	Range             shared.TimeRange         `json:"range"`
	Window            shared.DateRange         `json:"window"`
	Revenue           decimal.Decimal          `json:"revenue"`
	COGS              decimal.Decimal          `json:"cogs"`
	GrossProfit       decimal.Decimal          `json:"gross_profit"`
	OperatingExpenses decimal.Decimal          `json:"operating_expenses"`
	ExpenseCategories []expenses.CategoryTotal `json:"expense_categories"`
	NetProfit         decimal.Decimal          `json:"net_profit"`
}

// Dashboard bundles the reports of one time range.
type Dashboard struct {
	Range          shared.TimeRange     `json:"range"`
	Window         shared.DateRange     `json:"window"`
	Revenue        []RevenuePoint       `json:"revenue"`
	Profitability  Profitability        `json:"profitability"`
	Costs          CostBreakdown        `json:"costs"`
	Receivables    ar.AgingReport       `json:"receivables"`
	CompanyTargets []CompanyTargetPoint `json:"company_targets"`
}
