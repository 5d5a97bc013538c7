package timeline

import "time"

// Defaults for Options fields left at zero.
const (
	DefaultDaysAfterScopeEnd     = 10
	DefaultVisibilityFloorPixels = 5
	DefaultPixelsPerDay          = 96
	DefaultRowHeightPixels       = 16
	DefaultDayViewWidthPixels    = 1440
)

// NoScopeBuffer ends the full scope on the day of the latest planned end.
const NoScopeBuffer = -1

// Options configures a Controller and the layout functions.
type Options struct {
	// DaysAfterScopeEnd is the buffer added after the latest planned end.
	// Zero selects DefaultDaysAfterScopeEnd; any negative value, such as
	// NoScopeBuffer, means no buffer.
	DaysAfterScopeEnd int
	// VisibilityFloorPixels is the narrowest block the renderer may draw.
	VisibilityFloorPixels float64
	// PixelsPerDay is the reference day-to-pixel ratio.
	PixelsPerDay float64
	// RowHeightPixels is the height of one event row.
	RowHeightPixels float64
	// DayViewWidthPixels is the grid width of the hourly view.
	DayViewWidthPixels float64

	// Location is the display timezone for calendar-day arithmetic.
	// Nil means time.Local.
	Location *time.Location
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	switch {
	case o.DaysAfterScopeEnd == 0:
		o.DaysAfterScopeEnd = DefaultDaysAfterScopeEnd
	case o.DaysAfterScopeEnd < 0:
		o.DaysAfterScopeEnd = 0
	}
	if o.VisibilityFloorPixels <= 0 {
		o.VisibilityFloorPixels = DefaultVisibilityFloorPixels
	}
	if o.PixelsPerDay <= 0 {
		o.PixelsPerDay = DefaultPixelsPerDay
	}
	if o.RowHeightPixels <= 0 {
		o.RowHeightPixels = DefaultRowHeightPixels
	}
	if o.DayViewWidthPixels <= 0 {
		o.DayViewWidthPixels = DefaultDayViewWidthPixels
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) now() time.Time {
	return o.Now().In(o.Location)
}
