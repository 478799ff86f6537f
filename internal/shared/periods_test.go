package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePeriodFormat(t *testing.T) {
	cases := []struct {
		period string
		typ    PeriodType
		ok     bool
	}{
		{"2025-01", PeriodMonthly, true},
		{"2025-12", PeriodMonthly, true},
		{"2025-13", PeriodMonthly, false},
		{"2025-00", PeriodMonthly, false},
		{"2025-1", PeriodMonthly, false},
		{"2025-Q1", PeriodQuarterly, true},
		{"2025-Q4", PeriodQuarterly, true},
		{"2025-Q5", PeriodQuarterly, false},
		{"2025-q1", PeriodQuarterly, false},
		{"2025", PeriodYearly, true},
		{"25", PeriodYearly, false},
		{"2025-01", PeriodYearly, false},
	}
	for _, tc := range cases {
		err := ValidatePeriodFormat(tc.period, tc.typ)
		if tc.ok {
			assert.NoError(t, err, "%s %s", tc.typ, tc.period)
		} else {
			assert.ErrorIs(t, err, ErrValidation, "%s %s", tc.typ, tc.period)
		}
	}
}

func TestValidatePeriodFormatNamesExpectedFormat(t *testing.T) {
	err := ValidatePeriodFormat("2025/01", PeriodMonthly)
	require.Error(t, err)
	assert.Contains(t, UserMessage(err), "YYYY-MM")
}

func TestPeriodRange(t *testing.T) {
	r, err := PeriodRange("2024-02", PeriodMonthly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), r.End)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), r.EndExclusive())

	r, err = PeriodRange("2025-Q3", PeriodQuarterly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC), r.End)

	r, err = PeriodRange("2025", PeriodYearly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), r.End)

	_, err = PeriodRange("2025-Q9", PeriodQuarterly)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGeneratePeriodRoundTrips(t *testing.T) {
	instants := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 8, 0, 0, 0, time.UTC),
	}
	for _, now := range instants {
		for _, typ := range AllPeriodTypes() {
			period := GeneratePeriod(typ, now)
			require.NoError(t, ValidatePeriodFormat(period, typ))
			r, err := PeriodRange(period, typ)
			require.NoError(t, err)
			assert.True(t, r.Contains(now), "%s %s should contain %s", typ, period, now)
		}
	}
	assert.Equal(t, "2025-Q4", GeneratePeriod(PeriodQuarterly, time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)))
}

func TestTimeRangeWindow(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	w := RangeQuarter.Window(now)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), w.End)

	r, err := ParseTimeRange("")
	require.NoError(t, err)
	assert.Equal(t, RangeMonth, r)
	_, err = ParseTimeRange("decade")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPeriodTypeLabels(t *testing.T) {
	for _, typ := range AllPeriodTypes() {
		assert.NotEqual(t, string(typ), typ.Label())
	}
	parsed, err := ParsePeriodType("quarterly")
	require.NoError(t, err)
	assert.Equal(t, PeriodQuarterly, parsed)
}

func TestParseDateAndDaysBetween(t *testing.T) {
	now := time.Date(2025, 2, 15, 18, 30, 0, 0, time.UTC)

	d, err := ParseDate("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2025-01-01", now)
	require.NoError(t, err)
	assert.Equal(t, 45, DaysBetween(d, now))
	assert.Equal(t, -45, DaysBetween(now, d))

	_, err = ParseDate("01/02/2025", now)
	assert.ErrorIs(t, err, ErrValidation)

	// 05:00 in UTC+7 is still the previous UTC day
	jakarta := time.FixedZone("WIB", 7*3600)
	assert.Equal(t, 0, DaysBetween(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 2, 5, 0, 0, 0, jakarta)))
}
