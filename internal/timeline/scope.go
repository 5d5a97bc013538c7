package timeline

import (
	"time"

	"planview/internal/interval"
	"planview/internal/model"
)

// FullScope derives the multi-day window for a batch. The window opens at the
// start of now's calendar day and closes at the end of the day that lies
// daysAfter days past the latest planned end. When every event already ended
// before now, the buffer is counted from now so the window never closes
// before now + daysAfter.
//
// Events with an inverted interval do not contribute. ErrEmptyInput is
// returned when nothing usable is left.
func FullScope(events []model.Event, now time.Time, daysAfter int) (model.Scope, error) {
	var (
		latest time.Time
		found  bool
	)
	for _, ev := range events {
		if ev.PlannedStart.After(ev.PlannedEnd) {
			continue
		}
		if !found || ev.PlannedEnd.After(latest) {
			latest = ev.PlannedEnd
			found = true
		}
	}
	if !found {
		return model.Scope{}, ErrEmptyInput
	}

	anchor := interval.Max(latest.In(now.Location()), now)
	start := interval.StartOfDay(now)
	end := interval.NextDay(anchor.AddDate(0, 0, daysAfter))

	return newScope(start, end), nil
}

// DayScope is the calendar day containing day.
func DayScope(day time.Time) model.Scope {
	d := interval.Day(day)
	return newScope(d.Start, d.End)
}

func newScope(start, end time.Time) model.Scope {
	return model.Scope{
		Start:                start,
		End:                  end,
		TotalDurationMinutes: interval.Minutes(start, end),
	}
}
