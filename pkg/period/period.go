// Package period provides calendar-date ranges and billing cycle arithmetic.
// All dates are normalized to midnight UTC and ranges are inclusive on both ends.
package period

import (
	"errors"
	"time"
)

// Cycle is a recurring billing cadence.
type Cycle string

const (
	CycleMonthly   Cycle = "MONTHLY"
	CycleQuarterly Cycle = "QUARTERLY"
	CycleYearly    Cycle = "YEARLY"
)

var ErrInvalidRange = errors.New("invalid_range")

// Valid reports whether c is a known cycle.
func (c Cycle) Valid() bool {
	switch c {
	case CycleMonthly, CycleQuarterly, CycleYearly:
		return true
	}
	return false
}

// Months returns the cycle length in calendar months.
func (c Cycle) Months() int {
	switch c {
	case CycleQuarterly:
		return 3
	case CycleYearly:
		return 12
	default:
		return 1
	}
}

// Date returns the UTC midnight for the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the clock part of t, keeping its calendar day in UTC.
func Truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return Date(y, m, d)
}

// AddDays shifts a date by n days.
func AddDays(t time.Time, n int) time.Time {
	return Truncate(t).AddDate(0, 0, n)
}

// AddMonths shifts a date by n months, clamping the day to the target month's
// last day (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	t = Truncate(t)
	y, m, d := t.Date()
	first := Date(y, m, 1).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return Date(first.Year(), first.Month(), d)
}

// Range is an inclusive [Start, End] date range.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange normalizes both ends and rejects ranges that end before they start.
func NewRange(start, end time.Time) (Range, error) {
	r := Range{Start: Truncate(start), End: Truncate(end)}
	if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
		return Range{}, ErrInvalidRange
	}
	return r, nil
}

// Days returns the number of calendar days covered, both ends included.
func (r Range) Days() int64 {
	return int64(r.End.Sub(r.Start).Hours()/24) + 1
}

// Contains reports whether other lies fully inside r.
func (r Range) Contains(other Range) bool {
	return !other.Start.Before(r.Start) && !other.End.After(r.End)
}

// Intersects applies the closed-interval rule a1 <= b2 && b1 <= a2. Touching
// boundaries count as an intersection.
func Intersects(a, b Range) bool {
	return !a.Start.After(b.End) && !b.Start.After(a.End)
}

// CycleEnd is the last day of the cycle that begins on start.
func CycleEnd(start time.Time, c Cycle) time.Time {
	return AddMonths(start, c.Months()).AddDate(0, 0, -1)
}

// NominalDays is the length in days of the cycle that begins on start.
func NominalDays(start time.Time, c Cycle) int64 {
	return Range{Start: Truncate(start), End: CycleEnd(start, c)}.Days()
}

// EffectiveEnd returns end when set, otherwise start shifted by sentinelYears.
func EffectiveEnd(start time.Time, end *time.Time, sentinelYears int) time.Time {
	if end != nil && !end.IsZero() {
		return Truncate(*end)
	}
	return AddMonths(start, sentinelYears*12)
}
