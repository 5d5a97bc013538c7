package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "planview/internal/log"
)

// Planning extension properties. Feeds exported from the planning system
// carry these next to the standard VEVENT properties.
const (
	propTicket     = ical.ComponentProperty("X-PLANNING-TICKET")
	propState      = ical.ComponentProperty("X-PLANNING-STATE")
	propStateColor = ical.ComponentProperty("X-PLANNING-STATE-COLOR")
	propType       = ical.ComponentProperty("X-PLANNING-TYPE")
	propNotam      = ical.ComponentProperty("X-PLANNING-NOTAM")
	propDisturbant = ical.ComponentProperty("X-PLANNING-DISTURBANT")
	propNightly    = ical.ComponentProperty("X-PLANNING-NIGHTLY")
)

// Entry is one VEVENT with the planning fields pulled out. Recurring entries
// are expanded into occurrences by Expand.
type Entry struct {
	FeedID string

	UID      string
	Sequence int
	Ticket   string
	Summary  string
	URL      string

	State      string
	StateColor string
	Type       string
	Notam      bool
	Disturbant bool
	// Nightly is nil when the feed does not say; the provider derives it.
	Nightly *bool

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule        string
	ExDates      []time.Time
	RecurrenceID *time.Time
}

// Key identifies the entry within its feed.
func (e Entry) Key() string {
	if e.Ticket != "" {
		return e.Ticket
	}
	return e.UID
}

// Parse decodes an ICS payload. Floating and date-only values are read in
// loc. VEVENTs that cannot be read are logged and skipped.
func Parse(feedID string, data []byte, loc *time.Location) ([]Entry, error) {
	if len(data) == 0 {
		return nil, errors.New("ics: empty body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ics feed %s: parse: %w", feedID, err)
	}

	vevents := cal.Events()
	entries := make([]Entry, 0, len(vevents))
	for _, ve := range vevents {
		e, err := parseEntry(ve, loc)
		if err != nil {
			appLog.Error("ics vevent skipped", err, "id", feedID)
			continue
		}
		e.FeedID = feedID
		entries = append(entries, e)
	}

	appLog.Debug("ics parse completed", "id", feedID, "entries", len(entries))
	return entries, nil
}

func parseEntry(ve *ical.VEvent, loc *time.Location) (Entry, error) {
	var e Entry

	e.UID = value(ve, ical.ComponentPropertyUniqueId)
	if e.UID == "" {
		return e, errors.New("missing UID")
	}
	if n, err := strconv.Atoi(value(ve, ical.ComponentPropertySequence)); err == nil {
		e.Sequence = n
	}

	e.Ticket = value(ve, propTicket)
	e.Summary = value(ve, ical.ComponentPropertySummary)
	if e.Summary == "" {
		e.Summary = value(ve, ical.ComponentPropertyDescription)
	}
	e.URL = value(ve, ical.ComponentPropertyUrl)

	e.State = value(ve, propState)
	if e.State == "" {
		e.State = firstCategory(ve)
	}
	e.StateColor = value(ve, propStateColor)
	if e.StateColor == "" {
		e.StateColor = value(ve, ical.ComponentPropertyColor)
	}
	e.Type = value(ve, propType)
	e.Notam = truthy(value(ve, propNotam))
	e.Disturbant = truthy(value(ve, propDisturbant))
	if v := value(ve, propNightly); v != "" {
		n := truthy(v)
		e.Nightly = &n
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return e, fmt.Errorf("%s: missing DTSTART", e.UID)
	}
	start, allDay, err := propTime(startProp, loc)
	if err != nil {
		return e, fmt.Errorf("%s: DTSTART: %w", e.UID, err)
	}
	e.Start, e.AllDay = start, allDay

	switch endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); {
	case endProp != nil:
		if e.End, _, err = propTime(endProp, loc); err != nil {
			return e, fmt.Errorf("%s: DTEND: %w", e.UID, err)
		}
	case allDay:
		e.End = start.AddDate(0, 0, 1)
	default:
		e.End = start
	}

	e.RRule = value(ve, ical.ComponentPropertyRrule)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			if t, err := parseTime(part, tzid(p.ICalParameters), loc); err == nil {
				e.ExDates = append(e.ExDates, t)
			}
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, _, err := propTime(p, loc); err == nil {
			e.RecurrenceID = &t
		}
	}

	return e, nil
}

func value(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func firstCategory(ve *ical.VEvent) string {
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(p.Value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				return c
			}
		}
	}
	return ""
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "ja":
		return true
	}
	return false
}

func tzid(params map[string][]string) string {
	if vs, ok := params["TZID"]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// propTime reads a DATE or DATE-TIME property, honouring its TZID.
func propTime(p *ical.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	allDay := !strings.Contains(p.Value, "T")
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	t, err := parseTime(p.Value, tzid(p.ICalParameters), loc)
	return t, allDay, err
}

func parseTime(v, tz string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("TZID %q: %w", tz, err)
		}
		loc = l
	}

	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
