package locale

import (
	"strings"
	"time"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/de_DE"
	"github.com/go-playground/locales/en_GB"
	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/es_ES"
	"github.com/go-playground/locales/fr_FR"
	"github.com/go-playground/locales/pt_BR"
	"golang.org/x/text/language"
)

// numericLayout describes all-numeric dates such as 30/03/1999.
type numericLayout struct {
	order    string // permutation of "dmy"
	sep      string
	padDay   bool
	padMonth bool
}

// calendarData is the per-locale layout used by the Formatter. Month and
// weekday names come from the CLDR translator in names.
type calendarData struct {
	tag     language.Tag
	names   locales.Translator
	numeric numericLayout
	// textual joins already rendered day, month and year; any may be empty.
	textual     func(d, m, y string) string
	weekdaySep  string
	dateTimeSep string
	hour12      bool
	dayPeriods  [2]string
}

func (c *calendarData) monthName(m time.Month, s Style) string {
	switch s {
	case Short:
		return c.names.MonthAbbreviated(m)
	case Narrow:
		return c.names.MonthNarrow(m)
	default:
		return c.names.MonthWide(m)
	}
}

func (c *calendarData) weekdayName(d time.Weekday, s Style) string {
	switch s {
	case Short:
		return c.names.WeekdayAbbreviated(d)
	case Narrow:
		return c.names.WeekdayNarrow(d)
	default:
		return c.names.WeekdayWide(d)
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// calendars lists the supported locales; the first entry is the fallback.
var calendars = []calendarData{
	{
		tag:     language.BrazilianPortuguese,
		names:   pt_BR.New(),
		numeric: numericLayout{order: "dmy", sep: "/", padDay: true, padMonth: true},
		textual: func(d, m, y string) string {
			return joinNonEmpty(" de ", d, m, y)
		},
		weekdaySep:  ", ",
		dateTimeSep: ", ",
		dayPeriods:  [2]string{"AM", "PM"},
	},
	{
		tag:     language.AmericanEnglish,
		names:   en_US.New(),
		numeric: numericLayout{order: "mdy", sep: "/"},
		textual: func(d, m, y string) string {
			md := joinNonEmpty(" ", m, d)
			if d != "" && y != "" {
				return md + ", " + y
			}
			return joinNonEmpty(" ", md, y)
		},
		weekdaySep:  ", ",
		dateTimeSep: ", ",
		hour12:      true,
		dayPeriods:  [2]string{"AM", "PM"},
	},
	{
		tag:     language.BritishEnglish,
		names:   en_GB.New(),
		numeric: numericLayout{order: "dmy", sep: "/", padDay: true, padMonth: true},
		textual: func(d, m, y string) string {
			return joinNonEmpty(" ", d, m, y)
		},
		weekdaySep:  ", ",
		dateTimeSep: ", ",
		dayPeriods:  [2]string{"am", "pm"},
	},
	{
		tag:     language.EuropeanSpanish,
		names:   es_ES.New(),
		numeric: numericLayout{order: "dmy", sep: "/"},
		textual: func(d, m, y string) string {
			return joinNonEmpty(" de ", d, m, y)
		},
		weekdaySep:  ", ",
		dateTimeSep: ", ",
		dayPeriods:  [2]string{"a.\u00a0m.", "p.\u00a0m."},
	},
	{
		tag:     language.MustParse("fr-FR"),
		names:   fr_FR.New(),
		numeric: numericLayout{order: "dmy", sep: "/", padDay: true, padMonth: true},
		textual: func(d, m, y string) string {
			return joinNonEmpty(" ", d, m, y)
		},
		weekdaySep:  " ",
		dateTimeSep: " ",
		dayPeriods:  [2]string{"AM", "PM"},
	},
	{
		tag:     language.MustParse("de-DE"),
		names:   de_DE.New(),
		numeric: numericLayout{order: "dmy", sep: "."},
		textual: func(d, m, y string) string {
			if d != "" {
				d += "."
			}
			return joinNonEmpty(" ", d, m, y)
		},
		weekdaySep:  ", ",
		dateTimeSep: ", ",
		dayPeriods:  [2]string{"AM", "PM"},
	},
}
