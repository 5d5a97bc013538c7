package render

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"planview/internal/model"
)

//go:embed templates/page.html.tmpl
var templatesFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templatesFS, "templates/page.html.tmpl"))

// PageData is what the HTML page shows around the SVG.
type PageData struct {
	Title    string
	LoadedAt time.Time
}

type pageView struct {
	Title     string
	Mode      model.Mode
	Partition model.EventType
	Other     model.EventType
	Day       string
	Placed    int
	Skipped   int
	LoadedAt  string
	SVG       template.HTML
}

// HTML renders res as a self-contained page with navigation that talks to
// the /api endpoints of the web server.
func HTML(res model.LayoutResult, data PageData, opts Options) ([]byte, error) {
	v := pageView{
		Title:     data.Title,
		Mode:      res.Mode,
		Partition: res.Partition,
		Other:     res.Partition.Other(),
		Placed:    len(res.Placed),
		Skipped:   len(res.Skipped),
		LoadedAt:  "never",
		// SVG escapes all text it embeds.
		SVG: template.HTML(SVG(res, opts)),
	}
	if v.Title == "" {
		v.Title = "Planning"
	}
	if !data.LoadedAt.IsZero() {
		v.LoadedAt = data.LoadedAt.Format("2006-01-02 15:04")
	}
	if res.Mode == model.ModeDay {
		v.Day = res.Header.Day.Format("Monday 2 January 2006")
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
