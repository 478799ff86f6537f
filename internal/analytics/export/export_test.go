package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-erp/niaga/internal/analytics"
	"github.com/niaga-erp/niaga/internal/ar"
	"github.com/niaga-erp/niaga/internal/shared"
)

func readAll(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteRevenueCSV(t *testing.T) {
	points := []analytics.RevenuePoint{
		{Bucket: "2025-01", Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Revenue: decimal.NewFromInt(1500), Invoices: 2},
		{Bucket: "2025-03", Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Revenue: decimal.RequireFromString("99.5"), Invoices: 1},
	}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteRevenueCSV(buf, points))

	records := readAll(t, buf)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"2025-01", "2025-01-01", "2", "1500.00"}, records[1])
	assert.Equal(t, "99.50", records[2][3])
}

func TestWriteProfitabilityCSV(t *testing.T) {
	p := analytics.Summarize([]analytics.SalesLine{
		{ProductID: 1, ProductName: "Kopi", Category: "Minuman", Quantity: 10, Revenue: decimal.NewFromInt(200000), UnitCost: decimal.NewFromInt(12000)},
		{ProductID: 2, ProductName: "Roti", Quantity: 4, Revenue: decimal.NewFromInt(40000), UnitCost: decimal.NewFromInt(6000)},
	})
	p.Window = shared.DateRange{Start: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteProfitabilityCSV(buf, p))

	records := readAll(t, buf)
	require.Len(t, records, 6)
	assert.Equal(t, []string{"Total", "2025-02-01..2025-02-28", "", "240000.00", "144000.00", "96000.00", "40.0"}, records[1])
	assert.Equal(t, "Category", records[2][0])
	assert.Equal(t, "Minuman", records[2][1])
	assert.Equal(t, "Uncategorised", records[3][1])
	assert.Equal(t, []string{"Product", "Kopi", "10", "200000.00", "120000.00", "80000.00", "40.0"}, records[4])
}

func TestWriteAgingCSV(t *testing.T) {
	report := ar.AgingReport{
		Rows: []ar.AgingRow{{
			Number:          "INV-20250101-AB12CD34",
			CustomerName:    "Toko Maju",
			DueDate:         time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			DaysOverdue:     14,
			Category:        ar.AgingOverdue1To30,
			RemainingAmount: decimal.NewFromInt(75000),
		}},
		Totals: map[ar.AgingCategory]decimal.Decimal{ar.AgingOverdue1To30: decimal.NewFromInt(75000)},
		Total:  decimal.NewFromInt(75000),
	}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteAgingCSV(buf, report))

	records := readAll(t, buf)
	require.Len(t, records, 2+len(ar.AllAgingCategories())+1)
	assert.Equal(t, "1-30 days overdue", records[1][4])
	assert.Equal(t, "0.00", records[2][5])
	assert.Equal(t, []string{"", "", "", "", "Total", "75000.00"}, records[len(records)-1])
}
