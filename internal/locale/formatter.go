package locale

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Formatter renders instants using the built-in locale tables. It is safe
// for concurrent use.
type Formatter struct {
	matcher language.Matcher
}

// NewFormatter returns a Formatter over all supported locales.
func NewFormatter() *Formatter {
	tags := make([]language.Tag, len(calendars))
	for i, c := range calendars {
		tags[i] = c.tag
	}
	return &Formatter{matcher: language.NewMatcher(tags)}
}

// Supported returns the supported locale identifiers, fallback first.
func Supported() []string {
	out := make([]string, len(calendars))
	for i, c := range calendars {
		out[i] = c.tag.String()
	}
	return out
}

func (f *Formatter) resolve(id string) (*calendarData, error) {
	if strings.TrimSpace(id) == "" {
		return &calendars[0], nil
	}
	tag, err := language.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidLocale, id, err)
	}
	// Unmatched tags resolve to index 0, the fallback locale.
	_, idx, _ := f.matcher.Match(tag)
	return &calendars[idx], nil
}

// Resolve returns the supported locale that id resolves to.
func (f *Formatter) Resolve(id string) (string, error) {
	c, err := f.resolve(id)
	if err != nil {
		return "", err
	}
	return c.tag.String(), nil
}

// Format renders t per opts in the locale identified by id. Options with no
// date or time field set render the default date fields.
func (f *Formatter) Format(t time.Time, opts Options, id string) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	cal, err := f.resolve(id)
	if err != nil {
		return "", err
	}
	if opts.TimeZone != "" {
		loc, err := time.LoadLocation(opts.TimeZone)
		if err != nil {
			return "", &OptionError{Field: "timeZone", Value: opts.TimeZone}
		}
		t = t.In(loc)
	}
	if !opts.hasDate() && !opts.hasTime() {
		opts = DefaultOptions().Merge(opts)
	}
	date := cal.formatDate(t, opts)
	clock := cal.formatTime(t, opts)
	return joinNonEmpty(cal.dateTimeSep, date, clock), nil
}

func pad(n int, s Style, force bool) string {
	if s == TwoDigit || force {
		return fmt.Sprintf("%02d", n)
	}
	return fmt.Sprintf("%d", n)
}

func year(y int, s Style) string {
	switch s {
	case "":
		return ""
	case TwoDigit:
		return fmt.Sprintf("%02d", ((y%100)+100)%100)
	default:
		return fmt.Sprintf("%d", y)
	}
}

func (c *calendarData) formatDate(t time.Time, opts Options) string {
	var weekday string
	if opts.Weekday != "" {
		weekday = c.weekdayName(t.Weekday(), opts.Weekday)
	}
	var body string
	switch opts.Month {
	case Long, Short, Narrow:
		var d string
		if opts.Day != "" {
			d = pad(t.Day(), opts.Day, false)
		}
		m := c.monthName(t.Month(), opts.Month)
		body = c.textual(d, m, year(t.Year(), opts.Year))
	default:
		fields := map[byte]string{}
		if opts.Day != "" {
			fields['d'] = pad(t.Day(), opts.Day, c.numeric.padDay)
		}
		if opts.Month != "" {
			fields['m'] = pad(int(t.Month()), opts.Month, c.numeric.padMonth)
		}
		fields['y'] = year(t.Year(), opts.Year)
		parts := make([]string, 0, 3)
		for i := 0; i < len(c.numeric.order); i++ {
			parts = append(parts, fields[c.numeric.order[i]])
		}
		body = joinNonEmpty(c.numeric.sep, parts...)
	}
	return joinNonEmpty(c.weekdaySep, weekday, body)
}

func (c *calendarData) formatTime(t time.Time, opts Options) string {
	if !opts.hasTime() {
		return ""
	}
	h12 := c.hour12
	if opts.Hour12 != nil {
		h12 = *opts.Hour12
	}
	parts := make([]string, 0, 3)
	if opts.Hour != "" {
		h := t.Hour()
		if h12 {
			h %= 12
			if h == 0 {
				h = 12
			}
			parts = append(parts, pad(h, opts.Hour, false))
		} else {
			parts = append(parts, pad(h, opts.Hour, true))
		}
	}
	// Minutes and seconds are always two digits once combined with another field.
	if opts.Minute != "" {
		parts = append(parts, pad(t.Minute(), opts.Minute, opts.Hour != "" || opts.Second != ""))
	}
	if opts.Second != "" {
		parts = append(parts, pad(t.Second(), opts.Second, opts.Hour != "" || opts.Minute != ""))
	}
	out := strings.Join(parts, ":")
	if h12 && opts.Hour != "" {
		period := c.dayPeriods[0]
		if t.Hour() >= 12 {
			period = c.dayPeriods[1]
		}
		out += " " + period
	}
	return out
}
