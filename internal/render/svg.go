// Package render draws a LayoutResult as SVG and wraps it in an HTML page.
// It only consumes geometry computed by the timeline package.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"planview/internal/model"
	"planview/internal/timeline"
)

// Options controls the drawing. Zero values get defaults.
type Options struct {
	// LabelWidth is the left column holding "id : description" labels.
	LabelWidth float64
	// HeaderRowHeight is the height of one header row.
	HeaderRowHeight float64
	// RowHeight is the height of one event row; defaults to the result's
	// body height divided by its rows, or 16.
	RowHeight  float64
	FontFamily string
}

const legendRowHeight = 18

func (o Options) withDefaults(res model.LayoutResult) Options {
	if o.LabelWidth <= 0 {
		o.LabelWidth = 360
	}
	if o.HeaderRowHeight <= 0 {
		o.HeaderRowHeight = 20
	}
	if o.RowHeight <= 0 {
		o.RowHeight = timeline.DefaultRowHeightPixels
		if n := len(res.Placed); n > 0 && res.BodyHeightPx > 0 {
			o.RowHeight = res.BodyHeightPx / float64(n)
		}
	}
	if o.FontFamily == "" {
		o.FontFamily = "Helvetica, Arial, sans-serif"
	}
	return o
}

// SVG renders res as a standalone SVG document.
func SVG(res model.LayoutResult, opts Options) string {
	opts = opts.withDefaults(res)
	d := &drawing{res: res, opts: opts, fills: map[string]string{}}
	return d.draw()
}

type drawing struct {
	res  model.LayoutResult
	opts Options

	// fills maps a style key to its gradient id.
	fills map[string]string
	defs  strings.Builder
}

func (d *drawing) headerHeight() float64 {
	if d.res.Mode == model.ModeDay {
		return d.opts.HeaderRowHeight
	}
	return 2 * d.opts.HeaderRowHeight
}

func (d *drawing) draw() string {
	res, opts := d.res, d.opts
	headerH := d.headerHeight()
	bodyH := float64(len(res.Placed)) * opts.RowHeight
	legendTop := headerH + bodyH + 8
	width := opts.LabelWidth + res.WidthPx
	height := legendTop + float64(len(res.Legend))*legendRowHeight + 4

	var body strings.Builder
	body.WriteString(`<g class="header">`)
	if res.Mode == model.ModeDay {
		d.hourHeader(&body)
	} else {
		d.dayHeader(&body)
	}
	body.WriteString("</g>\n")

	fmt.Fprintf(&body, `<g class="body"><rect class="grid" x="%s" y="%s" width="%s" height="%s"/>`,
		px(opts.LabelWidth), px(headerH), px(res.WidthPx), px(bodyH))
	for i, p := range res.Placed {
		d.event(&body, p, headerH+float64(i)*opts.RowHeight)
	}
	body.WriteString("</g>\n")

	body.WriteString(`<g class="legend">`)
	for i, e := range res.Legend {
		d.legendEntry(&body, e, legendTop+float64(i)*legendRowHeight)
	}
	body.WriteString("</g>\n")

	var svg strings.Builder
	fmt.Fprintf(&svg, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s" data-mode="%s" data-partition="%s">
<style>
text { font-family: %s; font-size: 11px; fill: #222; }
.week, .day, .hour { fill: #f4f4f4; stroke: #c8c8c8; stroke-width: 0.5; }
.day.weekend { fill: #e6e6e6; }
.day.marked { fill: #4c4c6b; }
.day.marked + text { fill: #fff; }
.grid { fill: #fafafa; stroke: #c8c8c8; stroke-width: 0.5; }
.event, .day-cell { cursor: pointer; }
</style>
`, px(width), px(height), px(width), px(height), res.Mode, res.Partition, escapeXML(opts.FontFamily))
	if d.defs.Len() > 0 {
		svg.WriteString("<defs>")
		svg.WriteString(d.defs.String())
		svg.WriteString("</defs>\n")
	}
	svg.WriteString(body.String())
	svg.WriteString("</svg>\n")
	return svg.String()
}

func (d *drawing) dayHeader(b *strings.Builder) {
	rowH := d.opts.HeaderRowHeight
	x := d.opts.LabelWidth
	for _, w := range d.res.Header.Weeks {
		fmt.Fprintf(b, `<rect class="week" x="%s" y="0" width="%s" height="%s"/>`, px(x), px(w.WidthPx), px(rowH))
		fmt.Fprintf(b, `<text x="%s" y="%s">Week %d</text>`, px(x+4), px(rowH-6), w.Week)
		x += w.WidthPx
	}

	dayW := d.res.PixelsPerDay
	for i, day := range d.res.Header.Days {
		x := d.opts.LabelWidth + float64(i)*dayW
		class := "day"
		if day.IsWeekend {
			class += " weekend"
		}
		if day.IsMarked {
			class += " marked"
		}
		date := day.Date.Format(time.DateOnly)
		fmt.Fprintf(b, `<g class="day-cell" data-date="%s"><rect class="%s" x="%s" y="%s" width="%s" height="%s"/>`,
			date, class, px(x), px(rowH), px(dayW), px(rowH))
		fmt.Fprintf(b, `<text x="%s" y="%s">%s</text><title>%s</title></g>`,
			px(x+4), px(2*rowH-6), day.Date.Format("Mon 02"), date)
	}
}

func (d *drawing) hourHeader(b *strings.Builder) {
	rowH := d.opts.HeaderRowHeight
	hours := d.res.Header.Hours
	if len(hours) == 0 {
		return
	}
	cellW := d.res.WidthPx / float64(len(hours))
	for i, h := range hours {
		x := d.opts.LabelWidth + float64(i)*cellW
		fmt.Fprintf(b, `<rect class="hour" x="%s" y="0" width="%s" height="%s"/>`, px(x), px(cellW), px(rowH))
		fmt.Fprintf(b, `<text x="%s" y="%s">%s</text>`, px(x+4), px(rowH-6), escapeXML(h.Label))
	}
}

func (d *drawing) event(b *strings.Builder, p model.PlacedEvent, y float64) {
	rowH := d.opts.RowHeight
	x := d.opts.LabelWidth + p.OffsetPercent/100*d.res.WidthPx
	w := p.WidthPercent / 100 * d.res.WidthPx
	if p.UseFloor && w < p.WidthPixelsFloor {
		w = p.WidthPixelsFloor
	}

	title := p.Title + "\nDuration: " + strings.TrimSpace(humanize.RelTime(p.Start, p.End, "", ""))

	fmt.Fprintf(b, `<g class="event" data-placement="%s" data-event="%s">`, p.PlacementID, escapeXML(p.EventID))
	fmt.Fprintf(b, `<title>%s</title>`, escapeXML(title))
	fmt.Fprintf(b, `<text x="4" y="%s">%s</text>`, px(y+rowH-4), escapeXML(truncate(p.Label, d.opts.LabelWidth)))
	fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`,
		px(x), px(y+2), px(w), px(rowH-4), d.fill(p.Style))
	if p.Style.Underline {
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="2" fill="%s"/>`, px(x), px(y+rowH-2), px(w), timeline.NotamColor)
	}
	b.WriteString("</g>")
}

func (d *drawing) legendEntry(b *strings.Builder, e model.LegendEntry, y float64) {
	fmt.Fprintf(b, `<rect x="4" y="%s" width="24" height="10" fill="%s"/>`, px(y+2), d.fill(e.Style))
	if e.Style.Underline {
		fmt.Fprintf(b, `<rect x="4" y="%s" width="24" height="2" fill="%s"/>`, px(y+12), timeline.NotamColor)
	}
	fmt.Fprintf(b, `<text x="36" y="%s">%s</text>`, px(y+11), escapeXML(e.Label))
}

// fill returns the paint for a style, declaring a gradient on first use.
func (d *drawing) fill(s model.BlockStyle) string {
	if s.Solid {
		return s.Primary
	}
	key := s.Primary + "|" + s.Shaded
	if id, ok := d.fills[key]; ok {
		return "url(#" + id + ")"
	}
	id := fmt.Sprintf("fill-%d", len(d.fills))
	d.fills[key] = id
	fmt.Fprintf(&d.defs, `<linearGradient id="%s" x1="0" y1="0" x2="0" y2="1"><stop offset="0" stop-color="%s"/><stop offset="1" stop-color="%s"/></linearGradient>`,
		id, s.Primary, s.Shaded)
	return "url(#" + id + ")"
}

// truncate shortens a label to roughly fit width at 11px.
func truncate(s string, width float64) string {
	limit := int(width / 6)
	r := []rune(s)
	if limit < 4 || len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

func px(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
