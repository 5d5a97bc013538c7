package timeline

import (
	"errors"
	"math"
	"testing"
	"time"

	"planview/internal/model"
)

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedNow(s string) func() time.Time {
	return func() time.Time { return at(s) }
}

func ev(id, start, end, category string) model.Event {
	return model.Event{
		ID:           id,
		Description:  "work " + id,
		PlannedStart: at(start),
		PlannedEnd:   at(end),
		Category:     category,
		EventType:    model.EventTypeOps,
		ClickPayload: "payload-" + id,
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func testOptions(now string) Options {
	return Options{Location: time.UTC, Now: fixedNow(now)}
}

func TestFullScopeEndsBufferAfterLatestEnd(t *testing.T) {
	events := []model.Event{
		ev("A", "2024-01-03T12:00", "2024-01-03T18:00", "planned"),
		ev("B", "2024-01-05T08:00", "2024-01-06T10:00", "planned"),
	}

	scope, err := FullScope(events, at("2024-01-01T09:30"), 10)
	if err != nil {
		t.Fatalf("FullScope: %v", err)
	}
	if !scope.Start.Equal(at("2024-01-01T00:00")) {
		t.Errorf("start = %s, want start of today", scope.Start)
	}
	if !scope.End.Equal(at("2024-01-17T00:00")) {
		t.Errorf("end = %s, want end of 2024-01-16", scope.End)
	}
	if scope.TotalDurationMinutes != 16*1440 {
		t.Errorf("total = %v", scope.TotalDurationMinutes)
	}
	for _, e := range events {
		if scope.End.Before(e.PlannedEnd) {
			t.Errorf("scope end %s before event end %s", scope.End, e.PlannedEnd)
		}
	}
}

func TestFullScopeHistoricalEventsStillExtendPastNow(t *testing.T) {
	events := []model.Event{ev("OLD", "2023-06-01T10:00", "2023-06-01T12:00", "done")}

	scope, err := FullScope(events, at("2024-01-01T09:30"), 10)
	if err != nil {
		t.Fatalf("FullScope: %v", err)
	}
	if !scope.End.Equal(at("2024-01-12T00:00")) {
		t.Errorf("end = %s, want now + 10 days rounded to end of day", scope.End)
	}
	if scope.TotalDurationMinutes <= 0 {
		t.Errorf("total must be positive, got %v", scope.TotalDurationMinutes)
	}
}

func TestFullScopeEmpty(t *testing.T) {
	if _, err := FullScope(nil, at("2024-01-01T00:00"), 10); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	inverted := []model.Event{ev("X", "2024-01-02T00:00", "2024-01-01T00:00", "")}
	if _, err := FullScope(inverted, at("2024-01-01T00:00"), 10); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput for only-invalid batch, got %v", err)
	}
}

func TestDayScope(t *testing.T) {
	scope := DayScope(at("2024-02-10T15:00"))
	if !scope.Start.Equal(at("2024-02-10T00:00")) || !scope.End.Equal(at("2024-02-11T00:00")) {
		t.Errorf("scope = [%s, %s)", scope.Start, scope.End)
	}
	if scope.TotalDurationMinutes != 1440 {
		t.Errorf("total = %v, want 1440", scope.TotalDurationMinutes)
	}
}

func TestLayoutFullConcreteScenario(t *testing.T) {
	scope := newScope(at("2024-01-01T00:00"), at("2024-01-11T00:00"))
	events := []model.Event{ev("T-1", "2024-01-03T12:00", "2024-01-03T18:00", "planned")}

	placed, skipped := Layout(events, scope, model.ModeFull, Options{})
	if len(skipped) != 0 || len(placed) != 1 {
		t.Fatalf("placed=%d skipped=%d", len(placed), len(skipped))
	}
	p := placed[0]
	// 2.5 days into a 10 day scope.
	if !approx(p.OffsetPercent, 25) {
		t.Errorf("offset = %v, want 25", p.OffsetPercent)
	}
	if !approx(p.WidthPercent, 2.5) {
		t.Errorf("width = %v, want 2.5", p.WidthPercent)
	}
	// 10 days * 96 px * 2.5% = 24 px, above the floor.
	if !approx(p.WidthPixels, 24) || p.UseFloor {
		t.Errorf("pixels = %v useFloor = %v", p.WidthPixels, p.UseFloor)
	}
	if p.Label != "T-1 : work T-1" {
		t.Errorf("label = %q", p.Label)
	}
}

func TestLayoutWidthFloor(t *testing.T) {
	scope := newScope(at("2024-01-01T00:00"), at("2024-01-11T00:00"))
	events := []model.Event{ev("TINY", "2024-01-02T10:00", "2024-01-02T10:01", "")}

	placed, _ := Layout(events, scope, model.ModeFull, Options{VisibilityFloorPixels: 5, PixelsPerDay: 96})
	p := placed[0]
	if p.WidthPixels >= 5 {
		t.Fatalf("raw width %v should be below the floor", p.WidthPixels)
	}
	if p.WidthPixelsFloor != 5 || !p.UseFloor {
		t.Errorf("floor = %v useFloor = %v, want 5/true", p.WidthPixelsFloor, p.UseFloor)
	}
}

func TestLayoutDayClipsToDayBounds(t *testing.T) {
	day := at("2024-03-10T00:00")
	events := []model.Event{ev("LONG", "2024-03-09T18:00", "2024-03-11T06:00", "planned")}

	selected := EventsForDay(events, day)
	placed, _ := Layout(selected, DayScope(day), model.ModeDay, Options{})
	if len(placed) != 1 {
		t.Fatalf("expected 1 placed event, got %d", len(placed))
	}
	if !approx(placed[0].OffsetPercent, 0) {
		t.Errorf("offset = %v, want 0", placed[0].OffsetPercent)
	}
	if !approx(placed[0].WidthPercent, 100) {
		t.Errorf("width = %v, want 100", placed[0].WidthPercent)
	}
	if !placed[0].ClippedFrom.Equal(day) || !placed[0].Start.Equal(at("2024-03-09T18:00")) {
		t.Errorf("clip bounds not recorded: %+v", placed[0])
	}
}

func TestLayoutDayDropsEventsOutsideDay(t *testing.T) {
	events := []model.Event{ev("NEXT", "2024-03-11T01:00", "2024-03-11T02:00", "")}
	placed, _ := Layout(events, DayScope(at("2024-03-10T00:00")), model.ModeDay, Options{})
	if len(placed) != 0 {
		t.Errorf("expected no placements, got %d", len(placed))
	}
}

func TestLayoutSkipsInvalidInterval(t *testing.T) {
	scope := newScope(at("2024-01-01T00:00"), at("2024-01-11T00:00"))
	events := []model.Event{
		ev("BAD", "2024-01-05T10:00", "2024-01-04T10:00", ""),
		ev("OK", "2024-01-05T10:00", "2024-01-05T11:00", ""),
	}

	placed, skipped := Layout(events, scope, model.ModeFull, Options{})
	if len(placed) != 1 || placed[0].EventID != "OK" {
		t.Fatalf("placed = %+v", placed)
	}
	if len(skipped) != 1 || skipped[0].EventID != "BAD" {
		t.Fatalf("skipped = %+v", skipped)
	}
}

func TestLayoutUnknownModePanics(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrUnknownMode) {
			t.Fatalf("expected ErrUnknownMode panic, got %v", r)
		}
	}()
	Layout(nil, DayScope(at("2024-01-01T00:00")), model.Mode("WEEK"), Options{})
}

func TestEventsForDay(t *testing.T) {
	events := []model.Event{
		ev("IN", "2024-03-10T08:00", "2024-03-10T09:00", ""),
		ev("MULTI", "2024-03-08T08:00", "2024-03-12T09:00", ""),
		ev("BEFORE", "2024-03-09T08:00", "2024-03-09T23:00", ""),
		ev("AFTER", "2024-03-11T00:00", "2024-03-11T01:00", ""),
		ev("INVERTED", "2024-03-01T08:00", "2024-02-28T08:00", ""),
	}
	got := EventsForDay(events, at("2024-03-10T13:00"))
	if len(got) != 3 || got[0].ID != "IN" || got[1].ID != "MULTI" || got[2].ID != "INVERTED" {
		t.Errorf("selection = %+v", got)
	}
}

func TestDayViewEventEndingAtMidnight(t *testing.T) {
	day := at("2024-03-10T00:00")
	events := []model.Event{ev("LATE", "2024-03-09T22:00", "2024-03-10T00:00", "")}

	selected := EventsForDay(events, day)
	if len(selected) != 1 {
		t.Fatalf("selected = %+v", selected)
	}
	placed, skipped := Layout(selected, DayScope(day), model.ModeDay, Options{})
	if len(placed) != 1 || len(skipped) != 0 {
		t.Fatalf("placed = %+v skipped = %+v", placed, skipped)
	}
	p := placed[0]
	if !approx(p.OffsetPercent, 0) || !approx(p.WidthPercent, 0) {
		t.Errorf("offset = %v width = %v, want 0/0", p.OffsetPercent, p.WidthPercent)
	}
	if !p.UseFloor || !approx(p.WidthPixelsFloor, DefaultVisibilityFloorPixels) {
		t.Errorf("floor = %v useFloor = %v", p.WidthPixelsFloor, p.UseFloor)
	}
}

func TestIntervalErrorMatchesSentinel(t *testing.T) {
	var err error = &IntervalError{EventID: "X", Start: at("2024-01-02T00:00"), End: at("2024-01-01T00:00")}
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatal("IntervalError should match ErrInvalidInterval")
	}
}

func TestFullHeaderWeeksAndMarkers(t *testing.T) {
	// Wed 2024-01-03 .. Mon 2024-01-22 inclusive.
	scope := newScope(at("2024-01-03T00:00"), at("2024-01-23T00:00"))
	markers := []model.MarkerDate{{Year: 2024, Month: time.January, Day: 11}}

	h := FullHeader(scope, markers, 96)
	if len(h.Days) != 20 {
		t.Fatalf("days = %d, want 20", len(h.Days))
	}

	wantCounts := []int{5, 7, 7, 1}
	if len(h.Weeks) != len(wantCounts) {
		t.Fatalf("weeks = %+v", h.Weeks)
	}
	total := 0
	for i, w := range h.Weeks {
		if w.DayCount != wantCounts[i] {
			t.Errorf("week %d count = %d, want %d", i, w.DayCount, wantCounts[i])
		}
		if w.WidthPx != float64(w.DayCount)*96 {
			t.Errorf("week %d width = %v", i, w.WidthPx)
		}
		total += w.DayCount
	}
	if total != len(h.Days) {
		t.Errorf("weeks cover %d days, header has %d", total, len(h.Days))
	}
	if h.Weeks[0].Week != 1 || h.Weeks[3].Week != 4 {
		t.Errorf("week numbers = %d..%d", h.Weeks[0].Week, h.Weeks[3].Week)
	}

	for _, d := range h.Days {
		wantMarked := d.Date.Equal(at("2024-01-11T00:00"))
		if d.IsMarked != wantMarked {
			t.Errorf("%s marked = %v", d.Date.Format(time.DateOnly), d.IsMarked)
		}
	}
	if !h.Days[3].IsWeekend || h.Days[2].IsWeekend {
		t.Errorf("weekend flags wrong: %+v %+v", h.Days[2], h.Days[3])
	}
}

func TestHourHeader(t *testing.T) {
	h := HourHeader(at("2024-05-01T13:20"))
	if len(h.Hours) != 24 {
		t.Fatalf("hours = %d", len(h.Hours))
	}
	if h.Hours[0].Label != "00:00" || h.Hours[23].Label != "23:00" {
		t.Errorf("labels = %q .. %q", h.Hours[0].Label, h.Hours[23].Label)
	}
	for i := 1; i < len(h.Hours); i++ {
		if h.Hours[i].Start.Sub(h.Hours[i-1].Start) != time.Hour {
			t.Fatalf("gap between hour %d and %d", i-1, i)
		}
	}
}
