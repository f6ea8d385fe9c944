// Package locale renders calendar instants as localized strings. It holds
// month and weekday names plus field ordering for a small set of locales and
// resolves locale identifiers with golang.org/x/text/language.
package locale

import (
	"errors"
	"fmt"
)

// Style controls how verbosely a single calendar field is rendered.
type Style string

const (
	Numeric  Style = "numeric"
	TwoDigit Style = "2-digit"
	Long     Style = "long"
	Short    Style = "short"
	Narrow   Style = "narrow"
)

// Options selects which fields to render and how. An empty Style means the
// field is not rendered.
type Options struct {
	Weekday Style `yaml:"weekday,omitempty" json:"weekday,omitempty"`
	Day     Style `yaml:"day,omitempty" json:"day,omitempty"`
	Month   Style `yaml:"month,omitempty" json:"month,omitempty"`
	Year    Style `yaml:"year,omitempty" json:"year,omitempty"`
	Hour    Style `yaml:"hour,omitempty" json:"hour,omitempty"`
	Minute  Style `yaml:"minute,omitempty" json:"minute,omitempty"`
	Second  Style `yaml:"second,omitempty" json:"second,omitempty"`

	// Hour12 overrides the locale's 12/24 hour preference when set.
	Hour12 *bool `yaml:"hour12,omitempty" json:"hour12,omitempty"`

	// TimeZone is an IANA name; the instant is converted into it before
	// rendering. Empty keeps the instant's own location.
	TimeZone string `yaml:"time_zone,omitempty" json:"time_zone,omitempty"`
}

// DefaultOptions returns {day: numeric, month: 2-digit, year: numeric}.
func DefaultOptions() Options {
	return Options{
		Day:   Numeric,
		Month: TwoDigit,
		Year:  Numeric,
	}
}

// Merge returns o with every non-empty field of over applied on top.
func (o Options) Merge(over Options) Options {
	set := func(dst *Style, v Style) {
		if v != "" {
			*dst = v
		}
	}
	set(&o.Weekday, over.Weekday)
	set(&o.Day, over.Day)
	set(&o.Month, over.Month)
	set(&o.Year, over.Year)
	set(&o.Hour, over.Hour)
	set(&o.Minute, over.Minute)
	set(&o.Second, over.Second)
	if over.Hour12 != nil {
		h := *over.Hour12
		o.Hour12 = &h
	}
	if over.TimeZone != "" {
		o.TimeZone = over.TimeZone
	}
	return o
}

func (o Options) hasDate() bool {
	return o.Weekday != "" || o.Day != "" || o.Month != "" || o.Year != ""
}

func (o Options) hasTime() bool {
	return o.Hour != "" || o.Minute != "" || o.Second != ""
}

var (
	// ErrFormatOption is matched by every *OptionError.
	ErrFormatOption = errors.New("invalid format option")
	// ErrInvalidLocale is returned for identifiers that are not well-formed BCP 47.
	ErrInvalidLocale = errors.New("invalid locale")
)

// OptionError reports a field whose value the formatter does not accept.
type OptionError struct {
	Field string
	Value string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("%v: %s=%q", ErrFormatOption, e.Field, e.Value)
}

func (e *OptionError) Unwrap() error {
	return ErrFormatOption
}

var (
	numericStyles = []Style{Numeric, TwoDigit}
	textStyles    = []Style{Long, Short, Narrow}
	monthStyles   = []Style{Numeric, TwoDigit, Long, Short, Narrow}
)

func checkStyle(field string, v Style, allowed []Style) error {
	if v == "" {
		return nil
	}
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return &OptionError{Field: field, Value: string(v)}
}

// Validate checks each field against the styles it supports.
func (o Options) Validate() error {
	for _, c := range []struct {
		field   string
		v       Style
		allowed []Style
	}{
		{"weekday", o.Weekday, textStyles},
		{"day", o.Day, numericStyles},
		{"month", o.Month, monthStyles},
		{"year", o.Year, numericStyles},
		{"hour", o.Hour, numericStyles},
		{"minute", o.Minute, numericStyles},
		{"second", o.Second, numericStyles},
	} {
		if err := checkStyle(c.field, c.v, c.allowed); err != nil {
			return err
		}
	}
	return nil
}
