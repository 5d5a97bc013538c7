// Package nightly decides whether a planned piece of work counts as night
// work. The rules only look at the local start time and the planned duration.
package nightly

import "time"

// Clock times are compared in minutes since midnight and must be passed
// strictly.
const (
	eveningStart = 19*60 + 58
	lateStart    = 20*60 + 59
	earlyCutoff  = 3*60 + 1
)

// Rule is one nightly window: work qualifies when its start is strictly after
// (or, for early-morning rules, strictly before) Clock and its duration lies
// strictly between MinMinutes and MaxMinutes.
type Rule struct {
	Clock      int
	Before     bool
	MinMinutes int
	MaxMinutes int
}

// Rules are evaluated in order; any match makes the work nightly.
var Rules = []Rule{
	{Clock: eveningStart, MinMinutes: 120, MaxMinutes: 601},
	{Clock: lateStart, MinMinutes: -1, MaxMinutes: 480},
	{Clock: earlyCutoff, Before: true, MinMinutes: -1, MaxMinutes: 300},
}

// Classify reports whether work planned from start to end is night work.
// start is interpreted in its own location.
func Classify(start, end time.Time) bool {
	clock := start.Hour()*60 + start.Minute()
	duration := int(end.Sub(start) / time.Minute)

	for _, r := range Rules {
		if r.matches(clock, duration) {
			return true
		}
	}
	return false
}

func (r Rule) matches(clock, duration int) bool {
	if r.Before {
		if clock >= r.Clock {
			return false
		}
	} else if clock <= r.Clock {
		return false
	}
	return duration > r.MinMinutes && duration < r.MaxMinutes
}
