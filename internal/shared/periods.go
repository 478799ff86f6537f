package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PeriodType is the granularity of a target period key.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "MONTHLY"
	PeriodQuarterly PeriodType = "QUARTERLY"
	PeriodYearly    PeriodType = "YEARLY"
)

// AllPeriodTypes lists every period type.
func AllPeriodTypes() []PeriodType {
	return []PeriodType{PeriodMonthly, PeriodQuarterly, PeriodYearly}
}

// Label returns a display name.
func (t PeriodType) Label() string {
	switch t {
	case PeriodMonthly:
		return "Monthly"
	case PeriodQuarterly:
		return "Quarterly"
	case PeriodYearly:
		return "Yearly"
	default:
		return string(t)
	}
}

// IsValid reports whether t is a known period type.
func (t PeriodType) IsValid() bool {
	switch t {
	case PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return true
	default:
		return false
	}
}

// ParsePeriodType accepts the enum value in any case.
func ParsePeriodType(raw string) (PeriodType, error) {
	t := PeriodType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return "", ValidationError("Unknown target type %q, expected MONTHLY, QUARTERLY or YEARLY", raw)
	}
	return t, nil
}

var (
	monthlyPeriod   = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	quarterlyPeriod = regexp.MustCompile(`^\d{4}-Q[1-4]$`)
	yearlyPeriod    = regexp.MustCompile(`^\d{4}$`)
)

func (t PeriodType) expectedFormat() string {
	switch t {
	case PeriodMonthly:
		return "YYYY-MM"
	case PeriodQuarterly:
		return "YYYY-QN"
	default:
		return "YYYY"
	}
}

// ValidatePeriodFormat checks that period is a well-formed key for t.
func ValidatePeriodFormat(period string, t PeriodType) error {
	var ok bool
	switch t {
	case PeriodMonthly:
		ok = monthlyPeriod.MatchString(period)
	case PeriodQuarterly:
		ok = quarterlyPeriod.MatchString(period)
	case PeriodYearly:
		ok = yearlyPeriod.MatchString(period)
	default:
		return ValidationError("Unknown target type %q", string(t))
	}
	if !ok {
		return ValidationError("Invalid period %q for %s target, expected format %s", period, strings.ToLower(t.Label()), t.expectedFormat())
	}
	return nil
}

// DateRange is an inclusive span of calendar days at UTC midnight.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// EndExclusive returns the first day after the range, for half-open queries.
func (r DateRange) EndExclusive() time.Time {
	return r.End.AddDate(0, 0, 1)
}

// Contains reports whether the calendar day of t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	day := DateOf(t)
	return !day.Before(r.Start) && !day.After(r.End)
}

// PeriodRange resolves a period key into its inclusive date range.
func PeriodRange(period string, t PeriodType) (DateRange, error) {
	if err := ValidatePeriodFormat(period, t); err != nil {
		return DateRange{}, err
	}
	year, _ := strconv.Atoi(period[:4])
	var start time.Time
	var months int
	switch t {
	case PeriodMonthly:
		month, _ := strconv.Atoi(period[5:7])
		start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		months = 1
	case PeriodQuarterly:
		quarter := int(period[6] - '0')
		start = time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		months = 3
	case PeriodYearly:
		start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		months = 12
	}
	return DateRange{Start: start, End: start.AddDate(0, months, -1)}, nil
}

// GeneratePeriod returns the period key of type t containing now.
func GeneratePeriod(t PeriodType, now time.Time) string {
	now = now.UTC()
	switch t {
	case PeriodQuarterly:
		return fmt.Sprintf("%04d-Q%d", now.Year(), (int(now.Month())-1)/3+1)
	case PeriodYearly:
		return fmt.Sprintf("%04d", now.Year())
	default:
		return fmt.Sprintf("%04d-%02d", now.Year(), int(now.Month()))
	}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar day. Empty input yields fallback.
func ParseDate(raw string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DateOf(fallback), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, ValidationError("Invalid date %q, expected YYYY-MM-DD", raw)
	}
	return t, nil
}

// DaysBetween counts whole calendar days from a to b, negative when b is earlier.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// TimeRange selects the current month, quarter or year for reporting.
type TimeRange string

const (
	RangeMonth   TimeRange = "month"
	RangeQuarter TimeRange = "quarter"
	RangeYear    TimeRange = "year"
)

// ParseTimeRange defaults an empty value to the current month.
func ParseTimeRange(raw string) (TimeRange, error) {
	switch r := TimeRange(strings.ToLower(strings.TrimSpace(raw))); r {
	case "":
		return RangeMonth, nil
	case RangeMonth, RangeQuarter, RangeYear:
		return r, nil
	default:
		return "", ValidationError("Unknown time range %q, expected month, quarter or year", raw)
	}
}

// PeriodType maps the range onto the matching period granularity.
func (r TimeRange) PeriodType() PeriodType {
	switch r {
	case RangeQuarter:
		return PeriodQuarterly
	case RangeYear:
		return PeriodYearly
	default:
		return PeriodMonthly
	}
}

// Window returns the date range of the period containing now.
func (r TimeRange) Window(now time.Time) DateRange {
	t := r.PeriodType()
	window, _ := PeriodRange(GeneratePeriod(t, now), t)
	return window
}
