package ics

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"planview/internal/interval"
	appLog "planview/internal/log"
)

const defaultMaxOccurrences = 5000

// Occurrence is one concrete instance of an Entry.
type Occurrence struct {
	Entry Entry
	Start time.Time
	End   time.Time
}

// Expand turns entries into occurrences overlapping window. Recurring entries
// are expanded with their RRULE minus EXDATEs, and instances with a matching
// RECURRENCE-ID override replace the generated ones. maxPerEntry caps a
// single rule; zero means the default cap. The result is ordered by start.
func Expand(entries []Entry, window interval.Interval, maxPerEntry int) []Occurrence {
	if maxPerEntry <= 0 {
		maxPerEntry = defaultMaxOccurrences
	}

	bases := make(map[string][]Entry)
	overrides := make(map[string][]Entry)
	var order []string
	for _, e := range entries {
		if e.RecurrenceID != nil {
			overrides[e.UID] = append(overrides[e.UID], e)
			continue
		}
		if _, ok := bases[e.UID]; !ok {
			order = append(order, e.UID)
		}
		bases[e.UID] = append(bases[e.UID], e)
	}

	var out []Occurrence
	for _, uid := range order {
		for _, e := range bases[uid] {
			out = append(out, expandEntry(e, overrides[uid], window, maxPerEntry)...)
		}
	}
	// Overrides of a series the feed does not contain stand on their own.
	for uid, ovs := range overrides {
		if _, ok := bases[uid]; ok {
			continue
		}
		for _, o := range ovs {
			if overlaps(o.Start, o.End, window) {
				out = append(out, Occurrence{Entry: o, Start: o.Start, End: o.End})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Entry.Key() < out[j].Entry.Key()
	})
	return out
}

func expandEntry(e Entry, overrides []Entry, window interval.Interval, limit int) []Occurrence {
	if e.RRule == "" {
		if !overlaps(e.Start, e.End, window) {
			return nil
		}
		return []Occurrence{occurrence(e, e.Start, overrides)}
	}

	set, err := ruleSet(e)
	if err != nil {
		appLog.Error("ics rrule skipped", err, "id", e.FeedID, "uid", e.UID, "rrule", e.RRule)
		return nil
	}

	dur := e.End.Sub(e.Start)
	loc := e.Start.Location()
	starts := set.Between(window.Start.Add(-dur).In(loc), window.End.In(loc), true)
	if len(starts) > limit {
		appLog.Warn("ics rrule truncated", "id", e.FeedID, "uid", e.UID, "cap", limit, "occurrences", len(starts))
		starts = starts[:limit]
	}

	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		o := occurrence(e, s, overrides)
		if overlaps(o.Start, o.End, window) {
			out = append(out, o)
		}
	}
	return out
}

func ruleSet(e Entry) (*rrule.Set, error) {
	opt, err := rrule.StrToROptionInLocation(e.RRule, e.Start.Location())
	if err != nil {
		return nil, fmt.Errorf("parse rrule: %w", err)
	}
	opt.Dtstart = e.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}

	set := &rrule.Set{}
	set.RRule(r)
	for _, ex := range e.ExDates {
		set.ExDate(ex.In(e.Start.Location()))
	}
	return set, nil
}

// occurrence builds the instance of e starting at start, preferring an
// override whose RECURRENCE-ID names that start.
func occurrence(e Entry, start time.Time, overrides []Entry) Occurrence {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			return Occurrence{Entry: o, Start: o.Start, End: o.End}
		}
	}
	if e.AllDay {
		start = interval.StartOfDay(start)
	}
	return Occurrence{Entry: e, Start: start, End: start.Add(e.End.Sub(e.Start))}
}

func overlaps(start, end time.Time, window interval.Interval) bool {
	return interval.New(start, end).Overlaps(window)
}
