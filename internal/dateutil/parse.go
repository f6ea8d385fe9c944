// Package dateutil provides date arithmetic, comparison and locale-aware
// formatting over time.Time values.
//
// time.Time is an immutable value, so every function here returns a new
// instant and leaves its argument untouched.
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDateFormat is returned when a string cannot be interpreted as a
// calendar instant.
var ErrInvalidDateFormat = errors.New("invalid date format")

// Layouts without a zone are interpreted in the caller's location.
var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

// Parse parses s in the host's local time zone. See ParseInLocation.
func Parse(s string) (time.Time, error) {
	return ParseInLocation(s, time.Local)
}

// ParseInLocation parses an ISO-like date or date-time. Values with an
// explicit offset (RFC 3339) keep it; everything else, including date-only
// values, is taken as wall-clock time in loc.
func ParseInLocation(s string, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty value: %w", ErrInvalidDateFormat)
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidDateFormat)
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level fixtures.
func MustParse(s string) time.Time {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}
