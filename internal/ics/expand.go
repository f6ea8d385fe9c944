package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"dateutil/internal/dateutil"
	appLog "dateutil/internal/log"
	"dateutil/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the zone occurrences are converted to; nil means time.Local.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the window, both inclusive.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps each series; zero means 5000.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the occurrences sorted by start, plus the UIDs whose
// series hit the cap.
type ExpandResult struct {
	Occurrences     []model.Occurrence
	TruncatedEvents []string
}

// Window returns the range [now - backfill days, now + days] in loc, using
// calendar-day arithmetic.
func Window(now time.Time, loc *time.Location, backfill, days int) (time.Time, time.Time) {
	now = now.In(loc)
	return dateutil.SubtractDays(now, backfill), dateutil.AddDays(now, days)
}

// ExpandOccurrences expands events into concrete occurrences inside the
// configured window: single events, RRULE series with EXDATE removal and
// RECURRENCE-ID overrides.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	overrides := map[string][]ParsedEvent{}
	var bases []ParsedEvent
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	for _, ev := range bases {
		var starts []time.Time
		if ev.RawRRule == "" {
			starts = []time.Time{ev.Start}
		} else {
			var capped bool
			var err error
			starts, capped, err = seriesStarts(ev, cfg)
			if err != nil {
				appLog.Error("expand: bad RRULE; skipping event", err, "uid", ev.UID, "rrule", ev.RawRRule)
				continue
			}
			if capped {
				result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
				appLog.Warn("expand: occurrences truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
			}
		}
		duration := ev.End.Sub(ev.Start)
		for _, s := range starts {
			occ := ev
			start, end := s, s.Add(duration)
			if o, ok := findOverride(overrides[ev.UID], s); ok {
				occ, start, end = o, o.Start, o.End
			}
			if occ.AllDay {
				start, end = floatingDay(start, cfg.DisplayLocation), floatingDay(end, cfg.DisplayLocation)
			}
			if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
				continue
			}
			result.Occurrences = append(result.Occurrences, makeOccurrence(occ, start, end, cfg.DisplayLocation))
		}
	}

	sort.SliceStable(result.Occurrences, func(i, j int) bool {
		return result.Occurrences[i].Start.Before(result.Occurrences[j].Start)
	})
	return result, nil
}

// seriesStarts evaluates the event's RRULE in its own zone so that
// wall-clock times survive DST changes.
func seriesStarts(ev ParsedEvent, cfg ExpandConfig) ([]time.Time, bool, error) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, false, err
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound so events that started before the window but
	// are still running are included.
	loc := ev.Start.Location()
	from := cfg.RangeStart.Add(-ev.End.Sub(ev.Start)).In(loc)
	starts := set.Between(from, cfg.RangeEnd.In(loc), true)
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		return starts[:cfg.MaxOccurrencesPerEvent], true, nil
	}
	return starts, false, nil
}

func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, o := range overrides {
		if o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Occurrence {
	start, end = start.In(loc), end.In(loc)
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: start.Format(time.RFC3339Nano),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}

// floatingDay pins an all-day boundary to midnight of the same calendar date
// in loc, so VALUE=DATE events keep their date in every display zone.
func floatingDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
