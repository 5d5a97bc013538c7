// Package interval holds the instant and interval arithmetic used by
// the timeline layout. All calendar operations are performed in the location
// carried by the time value itself.
package interval

import "time"

// Interval is the range from Start to End. Day and scope bounds are built
// as [Start, End); Overlaps and Clip treat both ends as inclusive.
type Interval struct {
	Start time.Time
	End   time.Time
}

// New returns the interval from start to end.
func New(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// Valid reports whether Start <= End.
func (iv Interval) Valid() bool {
	return !iv.Start.After(iv.End)
}

// Minutes is the interval length in minutes (fractional).
func (iv Interval) Minutes() float64 {
	return Minutes(iv.Start, iv.End)
}

// Contains reports whether t lies in [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Overlaps reports whether both closed ranges share at least one instant.
// Touching endpoints count as overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return !iv.End.Before(other.Start) && !other.End.Before(iv.Start)
}

// Clip narrows iv to bounds. The second return value is false when the two
// do not overlap at all.
func (iv Interval) Clip(bounds Interval) (Interval, bool) {
	if !iv.Overlaps(bounds) {
		return Interval{}, false
	}
	return Interval{
		Start: Max(iv.Start, bounds.Start),
		End:   Min(iv.End, bounds.End),
	}, true
}

// Minutes returns b - a in minutes.
func Minutes(a, b time.Time) float64 {
	return b.Sub(a).Minutes()
}

// Max returns the later of a and b.
func Max(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// Min returns the earlier of a and b.
func Min(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// StartOfDay returns midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextDay returns midnight of the calendar day after t. It is the exclusive
// end of t's day and the value used wherever "end of day" is needed.
func NextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// Day returns t's calendar day as [midnight, next midnight).
func Day(t time.Time) Interval {
	return Interval{Start: StartOfDay(t), End: NextDay(t)}
}

// SameDay reports whether a and b fall on the same calendar day, comparing
// in a's location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// Days lists the midnights of every calendar day that intersects [start, end).
func Days(start, end time.Time) []time.Time {
	var out []time.Time
	for d := StartOfDay(start); d.Before(end); d = NextDay(d) {
		out = append(out, d)
	}
	return out
}
