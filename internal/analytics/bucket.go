package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/shared"
)

// BucketKey labels the bucket containing t. Weeks follow ISO-8601, so the
// first days of January can belong to the previous year's last week.
func BucketKey(t time.Time, g GroupBy) string {
	t = t.UTC()
	switch g {
	case GroupByDay:
		return t.Format(time.DateOnly)
	case GroupByWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GroupByQuarter:
		return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case GroupByYear:
		return fmt.Sprintf("%04d", t.Year())
	default:
		return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
	}
}

// bucketStart returns the first calendar day of the bucket containing t.
func bucketStart(t time.Time, g GroupBy) time.Time {
	day := shared.DateOf(t)
	switch g {
	case GroupByDay:
		return day
	case GroupByWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GroupByQuarter:
		return time.Date(day.Year(), time.Month((int(day.Month())-1)/3*3+1), 1, 0, 0, 0, 0, time.UTC)
	case GroupByYear:
		return time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

func nextBucket(start time.Time, g GroupBy) time.Time {
	switch g {
	case GroupByDay:
		return start.AddDate(0, 0, 1)
	case GroupByWeek:
		return start.AddDate(0, 0, 7)
	case GroupByQuarter:
		return start.AddDate(0, 3, 0)
	case GroupByYear:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// BucketRevenue sums entries per bucket in chronological order. Buckets
// without entries are absent.
func BucketRevenue(entries []RevenueEntry, g GroupBy) []RevenuePoint {
	index := make(map[string]int)
	var points []RevenuePoint
	for _, e := range entries {
		key := BucketKey(e.InvoiceDate, g)
		i, ok := index[key]
		if !ok {
			i = len(points)
			index[key] = i
			points = append(points, RevenuePoint{Bucket: key, Start: bucketStart(e.InvoiceDate, g), Revenue: decimal.Zero})
		}
		points[i].Revenue = points[i].Revenue.Add(e.Amount)
		points[i].Invoices++
	}
	sort.Slice(points, func(a, b int) bool { return points[a].Start.Before(points[b].Start) })
	return points
}

// FillGaps returns a dense series covering [start, end] with zero-revenue
// buckets where points has none. points must be built with the same g.
func FillGaps(points []RevenuePoint, start, end time.Time, g GroupBy) []RevenuePoint {
	if end.Before(start) {
		return points
	}
	byKey := make(map[string]RevenuePoint, len(points))
	for _, p := range points {
		byKey[p.Bucket] = p
	}
	var out []RevenuePoint
	last := bucketStart(end, g)
	for cur := bucketStart(start, g); !cur.After(last); cur = nextBucket(cur, g) {
		key := BucketKey(cur, g)
		if p, ok := byKey[key]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, RevenuePoint{Bucket: key, Start: cur, Revenue: decimal.Zero})
	}
	return out
}
