package timeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"planview/internal/model"
)

// Fixed colours used by the planning board.
const (
	DefaultColor    = "#808080"
	DisturbantColor = "#086667"
	NightlyColor    = "#06309d"
	NotamColor      = "#ffff00"
)

// namedColors covers the CSS keywords planning sources actually send.
var namedColors = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"gray":    "#808080",
	"grey":    "#808080",
	"red":     "#ff0000",
	"green":   "#008000",
	"blue":    "#0000ff",
	"navy":    "#000080",
	"teal":    "#008080",
	"yellow":  "#ffff00",
	"orange":  "#ffa500",
	"purple":  "#800080",
	"maroon":  "#800000",
	"olive":   "#808000",
	"lime":    "#00ff00",
	"aqua":    "#00ffff",
	"cyan":    "#00ffff",
	"fuchsia": "#ff00ff",
	"magenta": "#ff00ff",
	"silver":  "#c0c0c0",
}

// Gradient is a two-stop vertical fill: the colour itself fading into a
// half-brightness shade.
type Gradient struct {
	Primary string
	Shaded  string
}

// CategoryToGradient turns a category colour into the fill used by both
// legend icons and event blocks. Empty or unparseable colours fall back to
// DefaultColor.
func CategoryToGradient(color string) Gradient {
	c, ok := parseColor(color)
	if !ok {
		c, _ = parseColor(DefaultColor)
	}
	r, g, b := c.RGB255()
	return Gradient{
		Primary: rgb(int(r), int(g), int(b)),
		Shaded:  rgb(half(r), half(g), half(b)),
	}
}

// EventStyle resolves the block fill for an event. Disturbant events take
// DisturbantColor; nightly events in a planned state are drawn flat in
// NightlyColor.
func EventStyle(ev model.Event) model.BlockStyle {
	color := ev.CategoryColor
	if ev.IsDisturbant {
		color = DisturbantColor
	}

	var style model.BlockStyle
	if ev.IsNightly && isPlannedState(ev.CategoryKey()) {
		g := CategoryToGradient(NightlyColor)
		style = model.BlockStyle{Primary: g.Primary, Shaded: g.Primary, Solid: true}
	} else {
		g := CategoryToGradient(color)
		style = model.BlockStyle{Primary: g.Primary, Shaded: g.Shaded}
	}
	style.Underline = ev.HasNotam
	return style
}

// legendStyle renders underlined entries on a gray icon; the underline is the
// signal.
func legendStyle(entry model.LegendEntry) model.BlockStyle {
	color := entry.Color
	if entry.HasUnderline {
		color = ""
	}
	g := CategoryToGradient(color)
	return model.BlockStyle{Primary: g.Primary, Shaded: g.Shaded, Underline: entry.HasUnderline}
}

func isPlannedState(key string) bool {
	return strings.Contains(key, "ingepland") || strings.Contains(key, "planned")
}

func parseColor(s string) (colorful.Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return colorful.Color{}, false
	}
	if hex, ok := namedColors[s]; ok {
		s = hex
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if len(s) != 4 && len(s) != 7 {
		return colorful.Color{}, false
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, false
	}
	return c, true
}

func half(v uint8) int {
	return int(math.Round(float64(v) * 0.5))
}

func rgb(r, g, b int) string {
	return fmt.Sprintf("rgb(%d,%d,%d)", r, g, b)
}
