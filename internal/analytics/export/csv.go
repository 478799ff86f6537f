// Package export renders analytics reports as CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/analytics"
	"github.com/niaga-erp/niaga/internal/ar"
)

// WriteRevenueCSV emits a revenue series, one bucket per row.
func WriteRevenueCSV(w io.Writer, points []analytics.RevenuePoint) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Bucket", "Start", "Invoices", "Revenue"}); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write([]string{
			point.Bucket,
			point.Start.Format(time.DateOnly),
			strconv.Itoa(point.Invoices),
			formatAmount(point.Revenue),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteProfitabilityCSV prints the totals followed by category and product rows.
func WriteProfitabilityCSV(w io.Writer, p analytics.Profitability) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Level", "Name", "Quantity", "Revenue", "COGS", "Gross Profit", "Margin %"}); err != nil {
		return err
	}
	total := []string{"Total", p.Window.Start.Format(time.DateOnly) + ".." + p.Window.End.Format(time.DateOnly), "",
		formatAmount(p.Revenue), formatAmount(p.COGS), formatAmount(p.GrossProfit), formatPercent(p.Margin)}
	if err := writer.Write(total); err != nil {
		return err
	}
	for _, group := range []struct {
		level string
		rows  []analytics.ProfitRow
	}{{"Category", p.ByCategory}, {"Product", p.ByProduct}} {
		for _, row := range group.rows {
			if err := writer.Write([]string{
				group.level,
				row.Name,
				strconv.FormatInt(row.Quantity, 10),
				formatAmount(row.Revenue),
				formatAmount(row.COGS),
				formatAmount(row.GrossProfit),
				formatPercent(row.Margin),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteAgingCSV prints open receivables followed by the bucket totals.
func WriteAgingCSV(w io.Writer, report ar.AgingReport) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Invoice", "Customer", "Due Date", "Days Overdue", "Bucket", "Remaining"}); err != nil {
		return err
	}
	for _, row := range report.Rows {
		if err := writer.Write([]string{
			row.Number,
			row.CustomerName,
			row.DueDate.Format(time.DateOnly),
			strconv.Itoa(row.DaysOverdue),
			row.Category.Label(),
			formatAmount(row.RemainingAmount),
		}); err != nil {
			return err
		}
	}
	for _, category := range ar.AllAgingCategories() {
		if err := writer.Write([]string{"", "", "", "", category.Label(), formatAmount(report.Totals[category])}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"", "", "", "", "Total", formatAmount(report.Total)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func formatAmount(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
