package analytics

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

const uncategorised = "Uncategorised"

var hundred = decimal.NewFromInt(100)

// Percentage returns part/whole×100 rounded to one decimal place, or 0
// when whole is zero.
func Percentage(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).Round(1).InexactFloat64()
}

// Summarize computes revenue, COGS and margins of sales lines, rolled up
// by category and by product.
func Summarize(lines []SalesLine) Profitability {
	p := Profitability{Revenue: decimal.Zero, COGS: decimal.Zero}
	categories := map[string]*ProfitRow{}
	products := map[int64]*ProfitRow{}
	for _, l := range lines {
		cogs := l.UnitCost.Mul(decimal.NewFromInt(l.Quantity))
		p.Revenue = p.Revenue.Add(l.Revenue)
		p.COGS = p.COGS.Add(cogs)

		category := l.Category
		if category == "" {
			category = uncategorised
		}
		c, ok := categories[category]
		if !ok {
			c = &ProfitRow{Key: category, Name: category}
			categories[category] = c
		}
		accumulate(c, l, cogs)

		pr, ok := products[l.ProductID]
		if !ok {
			pr = &ProfitRow{Key: strconv.FormatInt(l.ProductID, 10), Name: l.ProductName}
			products[l.ProductID] = pr
		}
		accumulate(pr, l, cogs)
	}
	p.GrossProfit = p.Revenue.Sub(p.COGS)
	p.Margin = Percentage(p.GrossProfit, p.Revenue)
	p.ByCategory = finish(categories)
	p.ByProduct = finish(products)
	return p
}

func accumulate(row *ProfitRow, l SalesLine, cogs decimal.Decimal) {
	row.Quantity += l.Quantity
	row.Revenue = row.Revenue.Add(l.Revenue)
	row.COGS = row.COGS.Add(cogs)
}

func finish[K comparable](rows map[K]*ProfitRow) []ProfitRow {
	out := make([]ProfitRow, 0, len(rows))
	for _, r := range rows {
		r.GrossProfit = r.Revenue.Sub(r.COGS)
		r.Margin = Percentage(r.GrossProfit, r.Revenue)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Revenue.Equal(out[j].Revenue) {
			return out[i].Revenue.GreaterThan(out[j].Revenue)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
