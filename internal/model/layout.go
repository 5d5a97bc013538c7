package model

import "time"

// WeekCell groups contiguous day cells of one ISO week.
type WeekCell struct {
	Year     int       `json:"year"`
	Week     int       `json:"week"`
	FirstDay time.Time `json:"first_day"`
	DayCount int       `json:"day_count"`
	WidthPx  float64   `json:"width_px"`
}

// DayCell is one calendar day column of the full view.
type DayCell struct {
	Date      time.Time `json:"date"`
	Week      int       `json:"week"`
	IsMarked  bool      `json:"is_marked"`
	IsWeekend bool      `json:"is_weekend"`
}

// HourCell is one hour column of the day view.
type HourCell struct {
	Start time.Time `json:"start"`
	Hour  int       `json:"hour"`
	Label string    `json:"label"`
}

// Header is the column grid above the timeline. Weeks/Days are populated in
// full mode, Day/Hours in day mode.
type Header struct {
	Weeks []WeekCell `json:"weeks,omitempty"`
	Days  []DayCell  `json:"days,omitempty"`

	Day   time.Time  `json:"day,omitzero"`
	Hours []HourCell `json:"hours,omitempty"`
}

// BlockStyle is the resolved visual treatment of an event block.
type BlockStyle struct {
	Primary string `json:"primary"`
	Shaded  string `json:"shaded"`
	// Solid means Primary is used as a flat fill instead of a gradient.
	Solid     bool `json:"solid"`
	Underline bool `json:"underline"`
}

// PlacedEvent is an event annotated with its horizontal geometry for a scope.
type PlacedEvent struct {
	// PlacementID is stable for identical inputs and keys click activation.
	PlacementID string `json:"placement_id"`
	Event       Event  `json:"-"`

	EventID     string    `json:"event_id"`
	Label       string    `json:"label"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	ClippedFrom time.Time `json:"clipped_from"`
	ClippedTo   time.Time `json:"clipped_to"`

	OffsetPercent float64 `json:"offset_percent"`
	WidthPercent  float64 `json:"width_percent"`
	// WidthPixels is the width derived from WidthPercent and the pixel ratio.
	WidthPixels float64 `json:"width_pixels"`
	// WidthPixelsFloor is max(WidthPixels, visibility floor).
	WidthPixelsFloor float64 `json:"width_pixels_floor"`
	// UseFloor tells the renderer to draw WidthPixelsFloor pixels instead of
	// WidthPercent.
	UseFloor bool `json:"use_floor"`

	Style BlockStyle `json:"style"`
}

// LegendEntry is one legend line.
type LegendEntry struct {
	Label        string     `json:"label"`
	Color        string     `json:"color"`
	HasUnderline bool       `json:"has_underline"`
	Style        BlockStyle `json:"style"`
}

// SkippedEvent records an event left out of a layout and why.
type SkippedEvent struct {
	EventID string `json:"event_id"`
	Reason  string `json:"reason"`
}

// LayoutResult is everything a renderer needs for one view.
type LayoutResult struct {
	Mode      Mode      `json:"mode"`
	Partition EventType `json:"partition"`
	Scope     Scope     `json:"scope"`

	Header  Header         `json:"header"`
	Placed  []PlacedEvent  `json:"placed"`
	Legend  []LegendEntry  `json:"legend"`
	Skipped []SkippedEvent `json:"skipped,omitempty"`

	PixelsPerDay float64 `json:"pixels_per_day"`
	// WidthPx is the pixel width of the whole grid.
	WidthPx float64 `json:"width_px"`
	// BodyHeightPx is the height of the event area (rows * row height).
	BodyHeightPx float64 `json:"body_height_px"`
}
