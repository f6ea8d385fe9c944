// Package series generates recurring dates with RFC 5545 recurrence rules.
//
// Unlike dateutil.AddMonths, which clamps Jan 31 + 1 month to the end of
// February, an RFC 5545 monthly rule on the 31st skips every month that has
// no 31st day.
package series

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxCount bounds the number of dates a single Spec may produce.
const MaxCount = 1000

var ErrInvalidSpec = errors.New("invalid series spec")

// Spec describes a series starting at a given instant.
type Spec struct {
	Freq     rrule.Frequency
	Interval int       // defaults to 1
	Count    int       // number of dates, capped at MaxCount
	Until    time.Time // optional inclusive upper bound
}

// ParseFreq parses daily, weekly, monthly or yearly in any case.
func ParseFreq(s string) (rrule.Frequency, error) {
	f, err := rrule.StrToFreq(strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return 0, fmt.Errorf("%w: frequency %q", ErrInvalidSpec, s)
	}
	switch f {
	case rrule.DAILY, rrule.WEEKLY, rrule.MONTHLY, rrule.YEARLY:
		return f, nil
	}
	return 0, fmt.Errorf("%w: unsupported frequency %q", ErrInvalidSpec, s)
}

// Generate returns the dates of spec starting at start, in start's location.
// The start itself is the first date. Sub-second precision is dropped.
func Generate(start time.Time, spec Spec) ([]time.Time, error) {
	if spec.Interval < 0 {
		return nil, fmt.Errorf("%w: negative interval %d", ErrInvalidSpec, spec.Interval)
	}
	if spec.Count < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrInvalidSpec, spec.Count)
	}
	if spec.Count == 0 && spec.Until.IsZero() {
		return nil, fmt.Errorf("%w: one of count or until is required", ErrInvalidSpec)
	}
	count := spec.Count
	if count == 0 || count > MaxCount {
		count = MaxCount
	}
	interval := spec.Interval
	if interval == 0 {
		interval = 1
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     spec.Freq,
		Interval: interval,
		Count:    count,
		Until:    spec.Until,
		Dtstart:  start,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	return r.All(), nil
}

// Expand evaluates a raw RRULE string (e.g. "FREQ=MONTHLY;COUNT=3") from
// start, returning at most limit dates.
func Expand(rule string, start time.Time, limit int) ([]time.Time, error) {
	r, err := rrule.StrToRRule(strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	r.DTStart(start)
	if limit <= 0 || limit > MaxCount {
		limit = MaxCount
	}
	out := make([]time.Time, 0, limit)
	next := r.Iterator()
	for len(out) < limit {
		t, ok := next()
		if !ok {
			break
		}
		out = append(out, t)
	}
	return out, nil
}
