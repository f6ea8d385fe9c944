package ics

import (
	"context"
	"time"

	"dateutil/internal/config"
	"dateutil/internal/dateutil"
	appLog "dateutil/internal/log"
	"dateutil/internal/model"
)

// SourcesFromConfig converts configured sources, skipping entries without a
// URL. The ID falls back to the name, then the URL.
func SourcesFromConfig(cfgs []config.ICSConfig) []Source {
	sources := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			id = c.Name
		}
		if id == "" {
			id = c.URL
		}
		sources = append(sources, Source{ID: id, URL: c.URL})
	}
	return sources
}

// AgendaRequest describes one agenda build.
type AgendaRequest struct {
	Now      time.Time
	Location *time.Location
	Backfill int
	Days     int
	Options  *dateutil.FormatOptions
	Locale   string
}

// AgendaResult is a built agenda.
type AgendaResult struct {
	Entries       []model.AgendaEntry `json:"entries"`
	TruncatedUIDs []string            `json:"truncated_uids,omitempty"`
	RangeStart    time.Time           `json:"range_start"`
	RangeEnd      time.Time           `json:"range_end"`
	TimeZone      string              `json:"timezone"`
	Locale        string              `json:"locale"`
}

// BuildAgenda fetches, parses, expands and formats every source. Sources
// that fail to load or parse are logged and left out.
func BuildAgenda(ctx context.Context, f *Fetcher, sources []Source, req AgendaRequest) (AgendaResult, error) {
	if req.Location == nil {
		req.Location = time.Local
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	if req.Locale == "" {
		req.Locale = dateutil.DefaultLocale
	}
	from, to := Window(req.Now, req.Location, req.Backfill, req.Days)
	result := AgendaResult{
		Entries:    []model.AgendaEntry{},
		RangeStart: from,
		RangeEnd:   to,
		TimeZone:   req.Location.String(),
		Locale:     req.Locale,
	}
	if len(sources) == 0 {
		return result, nil
	}

	// FetchAll logs each failed source.
	bodies, _ := f.FetchAll(ctx, sources)

	var events []ParsedEvent
	for _, res := range bodies {
		evs, err := ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("agenda: parse failed for source", err, "id", res.Source.ID)
			continue
		}
		events = append(events, evs...)
	}

	expanded, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: req.Location,
		RangeStart:      from,
		RangeEnd:        to,
	})
	if err != nil {
		return result, err
	}
	entries, err := Agenda(expanded.Occurrences, req.Options, req.Locale)
	if err != nil {
		return result, err
	}
	result.Entries = entries
	result.TruncatedUIDs = expanded.TruncatedEvents
	return result, nil
}

