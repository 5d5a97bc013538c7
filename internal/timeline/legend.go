package timeline

import (
	"strings"

	"planview/internal/model"
)

// baselineLegend is always shown first, in this order.
var baselineLegend = []model.LegendEntry{
	{Label: "Planned night work", Color: "#06309e"},
	{Label: "Long-running work without operational impact", Color: "#007f7c"},
	{Label: "AIRAC date", Color: "#4c4c6b"},
	{Label: "Out of service per NOTAM", Color: NotamColor, HasUnderline: true},
}

// Legend accumulates one entry per distinct category, in first-seen order,
// after the fixed baseline. It is owned by a Controller and only cleared by
// Reset.
type Legend struct {
	entries []model.LegendEntry
	seen    map[string]struct{}
}

func NewLegend() *Legend {
	l := &Legend{}
	l.Reset()
	return l
}

// Observe records ev's category unless an entry with the same label (trimmed,
// case-insensitive) already exists. Events without a category are ignored.
func (l *Legend) Observe(ev model.Event) {
	key := ev.CategoryKey()
	if key == "" {
		return
	}
	if _, ok := l.seen[key]; ok {
		return
	}
	l.add(model.LegendEntry{Label: strings.TrimSpace(ev.Category), Color: ev.CategoryColor})
}

// Snapshot returns a copy of the legend.
func (l *Legend) Snapshot() []model.LegendEntry {
	out := make([]model.LegendEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Reset drops every observed category and keeps the baseline.
func (l *Legend) Reset() {
	l.entries = make([]model.LegendEntry, 0, len(baselineLegend)+8)
	l.seen = make(map[string]struct{}, len(baselineLegend)+8)
	for _, e := range baselineLegend {
		l.add(e)
	}
}

func (l *Legend) add(e model.LegendEntry) {
	e.Style = legendStyle(e)
	l.entries = append(l.entries, e)
	l.seen[strings.ToLower(strings.TrimSpace(e.Label))] = struct{}{}
}
