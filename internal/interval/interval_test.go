package interval

import (
	"testing"
	"time"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestClip(t *testing.T) {
	day := Day(at("2024-01-02T10:00"))

	tests := []struct {
		name      string
		in        Interval
		wantOK    bool
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"inside", New(at("2024-01-02T08:00"), at("2024-01-02T09:00")), true, at("2024-01-02T08:00"), at("2024-01-02T09:00")},
		{"spans both edges", New(at("2024-01-01T18:00"), at("2024-01-03T06:00")), true, at("2024-01-02T00:00"), at("2024-01-03T00:00")},
		{"before", New(at("2024-01-01T01:00"), at("2024-01-01T02:00")), false, time.Time{}, time.Time{}},
		{"after", New(at("2024-01-03T01:00"), at("2024-01-03T02:00")), false, time.Time{}, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.Clip(day)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !got.Start.Equal(tt.wantStart) || !got.End.Equal(tt.wantEnd) {
				t.Errorf("got [%s, %s), want [%s, %s)", got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestDayBounds(t *testing.T) {
	d := Day(at("2024-03-05T17:45"))
	if !d.Start.Equal(at("2024-03-05T00:00")) {
		t.Errorf("start = %s", d.Start)
	}
	if !d.End.Equal(at("2024-03-06T00:00")) {
		t.Errorf("end = %s", d.End)
	}
	if d.Minutes() != 1440 {
		t.Errorf("minutes = %v, want 1440", d.Minutes())
	}
}

func TestDaysCoversRange(t *testing.T) {
	days := Days(at("2024-01-30T12:00"), at("2024-02-02T00:00"))
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	if !days[2].Equal(at("2024-02-01T00:00")) {
		t.Errorf("last day = %s", days[2])
	}
}

func TestValid(t *testing.T) {
	if !New(at("2024-01-01T00:00"), at("2024-01-01T00:00")).Valid() {
		t.Error("zero-length interval should be valid")
	}
	if New(at("2024-01-02T00:00"), at("2024-01-01T00:00")).Valid() {
		t.Error("inverted interval should be invalid")
	}
}
