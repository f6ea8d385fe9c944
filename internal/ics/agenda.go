package ics

import (
	"dateutil/internal/dateutil"
	"dateutil/internal/locale"
	"dateutil/internal/model"
)

var clockOptions = dateutil.FormatOptions{Hour: locale.TwoDigit, Minute: locale.TwoDigit}

// Agenda renders occurrences with dateOpts merged over the default format
// options in the given locale. Timed entries also get an hour:minute string.
func Agenda(occs []model.Occurrence, dateOpts *dateutil.FormatOptions, loc string) ([]model.AgendaEntry, error) {
	out := make([]model.AgendaEntry, 0, len(occs))
	for _, o := range occs {
		date, err := dateutil.FormatToString(o.Start, dateOpts, loc)
		if err != nil {
			return nil, err
		}
		entry := model.AgendaEntry{
			SourceID: o.SourceID,
			UID:      o.UID,
			Summary:  o.Summary,
			Location: o.Location,
			AllDay:   o.AllDay,
			Date:     date,
			Start:    o.Start,
			End:      o.End,
		}
		if !o.AllDay {
			if entry.Time, err = dateutil.FormatExact(o.Start, clockOptions, loc); err != nil {
				return nil, err
			}
		}
		out = append(out, entry)
	}
	return out, nil
}
