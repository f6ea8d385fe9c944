package dateutil

import (
	"sync"
	"time"

	"dateutil/internal/locale"
)

// DefaultLocale is used when FormatToString is given an empty locale.
const DefaultLocale = "pt-br"

// FormatOptions selects the calendar fields to render and their verbosity.
type FormatOptions = locale.Options

// LocaleFormatter renders an instant for a locale. Option values are not
// checked here; the formatter reports the ones it cannot handle.
type LocaleFormatter interface {
	Format(t time.Time, opts FormatOptions, tag string) (string, error)
}

var (
	formatterMu sync.RWMutex
	formatter   LocaleFormatter = locale.NewFormatter()
)

// SetFormatter replaces the formatter used by FormatToString and returns
// the previous one.
func SetFormatter(f LocaleFormatter) LocaleFormatter {
	formatterMu.Lock()
	defer formatterMu.Unlock()
	prev := formatter
	formatter = f
	return prev
}

func currentFormatter() LocaleFormatter {
	formatterMu.RLock()
	defer formatterMu.RUnlock()
	return formatter
}

// DefaultFormatOptions returns {day: numeric, month: 2-digit, year: numeric}.
func DefaultFormatOptions() FormatOptions {
	return locale.DefaultOptions()
}

// FormatToString renders t with opts merged over the default options, in
// loc (DefaultLocale when empty). A nil opts renders the defaults.
func FormatToString(t time.Time, opts *FormatOptions, loc string) (string, error) {
	merged := DefaultFormatOptions()
	if opts != nil {
		merged = merged.Merge(*opts)
	}
	if loc == "" {
		loc = DefaultLocale
	}
	return currentFormatter().Format(t, merged, loc)
}

// FormatExact renders only the fields set in opts, without merging the
// defaults. Options with no field set fall back to the defaults.
func FormatExact(t time.Time, opts FormatOptions, loc string) (string, error) {
	if loc == "" {
		loc = DefaultLocale
	}
	return currentFormatter().Format(t, opts, loc)
}
