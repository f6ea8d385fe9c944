package dateutil

import (
	"fmt"
	"strings"
	"time"
)

// MonthPolicy decides what happens when month or year arithmetic lands on a
// day that does not exist in the target month.
type MonthPolicy int

const (
	// Clamp moves the day back to the last day of the target month,
	// so Jan 31 + 1 month is Feb 28 (or 29).
	Clamp MonthPolicy = iota
	// Overflow lets the excess days spill into the following month, as
	// time.AddDate does, so Jan 31 + 1 month is Mar 3 in a non-leap year.
	Overflow
)

func (p MonthPolicy) String() string {
	switch p {
	case Clamp:
		return "clamp"
	case Overflow:
		return "overflow"
	}
	return fmt.Sprintf("MonthPolicy(%d)", int(p))
}

// ParseMonthPolicy accepts "clamp" or "overflow" in any case; the empty
// string is Clamp.
func ParseMonthPolicy(s string) (MonthPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamp":
		return Clamp, nil
	case "overflow":
		return Overflow, nil
	}
	return Clamp, fmt.Errorf("unknown month policy %q, expected clamp or overflow", s)
}

var daysInMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// IsLeap reports whether year is a leap year in the Gregorian calendar.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	if month == time.February && IsLeap(year) {
		return 29
	}
	return daysInMonth[month-1]
}

// AddDays returns t shifted by n calendar days; a negative n moves
// backwards. The wall-clock time of day is preserved across DST changes.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// SubtractDays is AddDays(t, -n).
func SubtractDays(t time.Time, n int) time.Time {
	return AddDays(t, -n)
}

// AddMonths returns t shifted by n calendar months using the Clamp policy.
func AddMonths(t time.Time, n int) time.Time {
	return AddMonthsWithPolicy(t, n, Clamp)
}

// SubtractMonths is AddMonths(t, -n).
func SubtractMonths(t time.Time, n int) time.Time {
	return AddMonths(t, -n)
}

// AddYears returns t shifted by n years using the Clamp policy, so
// Feb 29 on a non-leap target year becomes Feb 28.
func AddYears(t time.Time, n int) time.Time {
	return AddYearsWithPolicy(t, n, Clamp)
}

// SubtractYears is AddYears(t, -n).
func SubtractYears(t time.Time, n int) time.Time {
	return AddYears(t, -n)
}

// AddMonthsWithPolicy shifts t by n months, resolving nonexistent days
// according to p.
func AddMonthsWithPolicy(t time.Time, n int, p MonthPolicy) time.Time {
	if p == Overflow {
		return t.AddDate(0, n, 0)
	}
	y, m, d := t.Date()
	total := int(m) - 1 + n
	y += floorDiv(total, 12)
	nm := time.Month(total - floorDiv(total, 12)*12 + 1)
	if last := DaysIn(y, nm); d > last {
		d = last
	}
	return time.Date(y, nm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// AddYearsWithPolicy shifts t by n years, resolving Feb 29 according to p.
func AddYearsWithPolicy(t time.Time, n int, p MonthPolicy) time.Time {
	return AddMonthsWithPolicy(t, 12*n, p)
}

// WithDay returns t with its day of month replaced by day, clamped to the
// valid range of t's month.
func WithDay(t time.Time, day int) time.Time {
	y, m, _ := t.Date()
	if day < 1 {
		day = 1
	}
	if last := DaysIn(y, m); day > last {
		day = last
	}
	return time.Date(y, m, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Clamped reports whether shifting t by n months under the Clamp policy has
// to move the day of month.
func Clamped(t time.Time, n int) bool {
	return AddMonths(t, n).Day() != t.Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
