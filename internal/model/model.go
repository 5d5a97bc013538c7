package model

import (
	"strings"
	"time"
)

// EventType partitions planned work into the operational and the simulation
// batch. Exactly one batch is shown at a time.
type EventType string

const (
	EventTypeOps EventType = "OPS"
	EventTypeSim EventType = "SIM"
)

// ParseEventType maps a source value to an EventType. Anything that is not
// "SIM" (case-insensitive) is operational.
func ParseEventType(s string) EventType {
	if strings.EqualFold(strings.TrimSpace(s), string(EventTypeSim)) {
		return EventTypeSim
	}
	return EventTypeOps
}

// Other returns the opposite partition.
func (t EventType) Other() EventType {
	if t == EventTypeSim {
		return EventTypeOps
	}
	return EventTypeSim
}

// Event is a single planned work item as delivered by a data provider.
// Events are treated as immutable for the duration of a render.
type Event struct {
	ID          string
	Description string

	PlannedStart time.Time
	PlannedEnd   time.Time

	// Category is the status label used for legend grouping and colouring.
	Category string
	// CategoryColor is a hex ("#06309e", "03F") or named colour. Empty means gray.
	CategoryColor string

	IsNightly    bool
	HasNotam     bool
	IsDisturbant bool

	EventType EventType

	// ClickPayload is handed back verbatim when the event is activated.
	ClickPayload any
}

// CategoryKey is the normalized category used for comparisons.
func (e Event) CategoryKey() string {
	return strings.ToLower(strings.TrimSpace(e.Category))
}

// Reference points back at the source record of an event. Providers hand it
// out as the click payload.
type Reference struct {
	Source string `json:"source"`
	Key    string `json:"key"`
	Ticket string `json:"ticket,omitempty"`
	URL    string `json:"url,omitempty"`
}

// MarkerDate is a calendar day flagged as notable (e.g. an AIRAC cutover).
// Only Year/Month/Day are significant.
type MarkerDate struct {
	Year  int
	Month time.Month
	Day   int
}

// MarkerDateOf returns the calendar day of t in t's own location.
func MarkerDateOf(t time.Time) MarkerDate {
	y, m, d := t.Date()
	return MarkerDate{Year: y, Month: m, Day: d}
}

// Matches reports whether t falls on this calendar day (in t's location).
func (d MarkerDate) Matches(t time.Time) bool {
	return MarkerDateOf(t) == d
}

func (d MarkerDate) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
}

// Mode is the zoom level of the timeline.
type Mode string

const (
	ModeFull Mode = "FULL"
	ModeDay  Mode = "DAY"
)

// Scope is the visible time window. End is exclusive.
type Scope struct {
	Start                time.Time `json:"start"`
	End                  time.Time `json:"end"`
	TotalDurationMinutes float64   `json:"total_duration_minutes"`
}

// Days is the scope length in (fractional) days.
func (s Scope) Days() float64 {
	return s.TotalDurationMinutes / (24 * 60)
}
