package timeline

import (
	"testing"

	"planview/internal/model"
)

func TestLegendBaselineFirst(t *testing.T) {
	l := NewLegend()
	got := l.Snapshot()
	if len(got) != 4 {
		t.Fatalf("baseline = %d entries, want 4", len(got))
	}
	if got[0].Label != "Planned night work" || !got[3].HasUnderline {
		t.Errorf("unexpected baseline: %+v", got)
	}
	if !got[3].Style.Underline || got[3].Style.Primary != "rgb(128,128,128)" {
		t.Errorf("NOTAM entry should be a gray underlined icon: %+v", got[3].Style)
	}
}

func TestLegendDedupKeepsFirstColor(t *testing.T) {
	l := NewLegend()
	l.Observe(model.Event{Category: "Ingepland", CategoryColor: "#ff0000"})
	l.Observe(model.Event{Category: " ingepland ", CategoryColor: "#00ff00"})
	l.Observe(model.Event{Category: "Uitgevoerd", CategoryColor: "#0000ff"})
	l.Observe(model.Event{Category: ""})

	got := l.Snapshot()
	if len(got) != 6 {
		t.Fatalf("entries = %d, want 6: %+v", len(got), got)
	}
	if got[4].Label != "Ingepland" || got[4].Color != "#ff0000" {
		t.Errorf("first-seen entry = %+v", got[4])
	}
	if got[5].Label != "Uitgevoerd" {
		t.Errorf("second entry = %+v", got[5])
	}
}

func TestLegendReset(t *testing.T) {
	l := NewLegend()
	l.Observe(model.Event{Category: "A"})
	l.Reset()
	if n := len(l.Snapshot()); n != 4 {
		t.Errorf("after reset = %d entries", n)
	}
	l.Observe(model.Event{Category: "A"})
	if n := len(l.Snapshot()); n != 5 {
		t.Errorf("re-observe after reset = %d entries", n)
	}
}

func TestCategoryToGradient(t *testing.T) {
	tests := []struct {
		in      string
		primary string
		shaded  string
	}{
		{"#06309e", "rgb(6,48,158)", "rgb(3,24,79)"},
		{"03F", "rgb(0,51,255)", "rgb(0,26,128)"},
		{"navy", "rgb(0,0,128)", "rgb(0,0,64)"},
		{"", "rgb(128,128,128)", "rgb(64,64,64)"},
		{"not-a-color", "rgb(128,128,128)", "rgb(64,64,64)"},
	}
	for _, tt := range tests {
		g := CategoryToGradient(tt.in)
		if g.Primary != tt.primary || g.Shaded != tt.shaded {
			t.Errorf("CategoryToGradient(%q) = %+v, want %s/%s", tt.in, g, tt.primary, tt.shaded)
		}
	}
}

func TestEventStyle(t *testing.T) {
	disturbant := EventStyle(model.Event{Category: "x", CategoryColor: "#ff0000", IsDisturbant: true})
	if disturbant.Primary != "rgb(8,102,103)" {
		t.Errorf("disturbant primary = %s", disturbant.Primary)
	}

	nightly := EventStyle(model.Event{Category: "Ingepland", CategoryColor: "#ff0000", IsNightly: true, HasNotam: true})
	if !nightly.Solid || nightly.Primary != "rgb(6,48,157)" || !nightly.Underline {
		t.Errorf("nightly planned style = %+v", nightly)
	}

	nightlyDone := EventStyle(model.Event{Category: "Done", CategoryColor: "#ff0000", IsNightly: true})
	if nightlyDone.Solid || nightlyDone.Primary != "rgb(255,0,0)" {
		t.Errorf("nightly non-planned style = %+v", nightlyDone)
	}
}
