package model

import "time"

// Occurrence represents a single concrete instance of a calendar event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the display timezone.
	Start time.Time
	End   time.Time
}

// AgendaEntry is an Occurrence rendered for a locale.
type AgendaEntry struct {
	SourceID string `json:"source_id"`
	UID      string `json:"uid"`
	Summary  string `json:"summary"`
	Location string `json:"location,omitempty"`
	AllDay   bool   `json:"all_day"`

	// Date is the localized start date, Time the localized start time
	// (empty for all-day entries).
	Date string `json:"date"`
	Time string `json:"time,omitempty"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
