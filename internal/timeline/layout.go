package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"planview/internal/interval"
	appLog "planview/internal/log"
	"planview/internal/model"
)

// placementNamespace scopes the name-based UUIDs handed out as placement ids.
var placementNamespace = uuid.MustParse("5d1c9a53-7a0e-4b8e-9f43-1e2a6c0b7d21")

const titleTimeLayout = "02-01-2006 15:04:05"

// Layout places every event of the batch against scope.
//
// In ModeFull events are placed as-is; the scope encloses them by
// construction except for work that started before today, which gets a
// negative offset. In ModeDay each event is clipped to the day and events
// that do not touch it are dropped.
//
// Events with an inverted interval are reported in the skipped list and
// logged; they never abort the layout. Any other mode panics with
// ErrUnknownMode.
func Layout(events []model.Event, scope model.Scope, mode model.Mode, opts Options) ([]model.PlacedEvent, []model.SkippedEvent) {
	opts = opts.withDefaults()
	if mode != model.ModeFull && mode != model.ModeDay {
		panic(fmt.Errorf("%w: %q", ErrUnknownMode, mode))
	}

	bounds := interval.New(scope.Start, scope.End)
	placed := make([]model.PlacedEvent, 0, len(events))
	var skipped []model.SkippedEvent

	for i, ev := range events {
		span := interval.New(ev.PlannedStart, ev.PlannedEnd)
		if !span.Valid() {
			err := &IntervalError{EventID: ev.ID, Start: ev.PlannedStart, End: ev.PlannedEnd}
			appLog.Error("skipping event", err,
				"event_id", ev.ID,
				"planned_start", ev.PlannedStart,
				"planned_end", ev.PlannedEnd,
			)
			skipped = append(skipped, model.SkippedEvent{EventID: ev.ID, Reason: err.Error()})
			continue
		}

		if mode == model.ModeDay {
			clipped, ok := span.Clip(bounds)
			if !ok {
				continue
			}
			span = clipped
		}

		p := place(ev, span, scope, opts)
		p.PlacementID = placementID(mode, i, ev)
		placed = append(placed, p)
	}

	return placed, skipped
}

// EventsForDay selects the events whose day-span covers day: the event's
// start day is on or before day and its end day is on or after it. Multi-day
// events therefore show up on every day they touch. Events whose start is
// after their end are kept so Layout can report them as skipped.
func EventsForDay(events []model.Event, day time.Time) []model.Event {
	d := interval.StartOfDay(day)
	out := make([]model.Event, 0)
	for _, ev := range events {
		if ev.PlannedStart.After(ev.PlannedEnd) {
			out = append(out, ev)
			continue
		}
		first := interval.StartOfDay(ev.PlannedStart.In(d.Location()))
		afterLast := interval.NextDay(ev.PlannedEnd.In(d.Location()))
		if !first.After(d) && afterLast.After(d) {
			out = append(out, ev)
		}
	}
	return out
}

// WidthPixels converts a width percentage into pixels for a scope of
// scopeDays days drawn at pixelsPerDay. The result is floored at floor; the
// boolean reports whether the floor applies.
func WidthPixels(widthPercent, scopeDays, pixelsPerDay, floor float64) (raw, floored float64, useFloor bool) {
	raw = scopeDays * pixelsPerDay * widthPercent / 100
	if raw > floor {
		return raw, raw, false
	}
	return raw, floor, true
}

func place(ev model.Event, span interval.Interval, scope model.Scope, opts Options) model.PlacedEvent {
	total := scope.TotalDurationMinutes
	offset := interval.Minutes(scope.Start, span.Start) / total * 100
	width := span.Minutes() / total * 100

	p := model.PlacedEvent{
		Event:         ev,
		EventID:       ev.ID,
		Label:         ev.ID + " : " + ev.Description,
		Title:         title(ev),
		Start:         ev.PlannedStart,
		End:           ev.PlannedEnd,
		ClippedFrom:   span.Start,
		ClippedTo:     span.End,
		OffsetPercent: offset,
		WidthPercent:  width,
		Style:         EventStyle(ev),
	}
	applyPixels(&p, scope, opts)
	return p
}

func applyPixels(p *model.PlacedEvent, scope model.Scope, opts Options) {
	p.WidthPixels, p.WidthPixelsFloor, p.UseFloor = WidthPixels(
		p.WidthPercent, scope.Days(), opts.PixelsPerDay, opts.VisibilityFloorPixels)
}

func title(ev model.Event) string {
	var b strings.Builder
	b.WriteString("Ticket: " + ev.ID)
	b.WriteString("\n" + ev.Description)
	b.WriteString("\nPlanned start: " + ev.PlannedStart.Format(titleTimeLayout))
	b.WriteString("\nPlanned end: " + ev.PlannedEnd.Format(titleTimeLayout))
	if ev.Category != "" {
		b.WriteString("\nStatus: " + ev.Category)
	}
	return b.String()
}

func placementID(mode model.Mode, index int, ev model.Event) string {
	name := fmt.Sprintf("%s|%s|%d|%s|%d|%d",
		mode, ev.EventType, index, ev.ID, ev.PlannedStart.UnixNano(), ev.PlannedEnd.UnixNano())
	return uuid.NewSHA1(placementNamespace, []byte(name)).String()
}
