package timeline

import (
	"time"

	"planview/internal/interval"
	"planview/internal/model"
)

// FullHeader builds the week and day columns spanning scope. Days are grouped
// by ISO week, so the first and last week cells may be partial while every
// interior week holds exactly seven days. A day is marked when any marker
// date falls on it.
func FullHeader(scope model.Scope, markers []model.MarkerDate, pixelsPerDay float64) model.Header {
	marked := make(map[model.MarkerDate]struct{}, len(markers))
	for _, m := range markers {
		marked[m] = struct{}{}
	}

	var h model.Header
	for _, day := range interval.Days(scope.Start, scope.End) {
		year, week := day.ISOWeek()
		_, isMarked := marked[model.MarkerDateOf(day)]
		wd := day.Weekday()

		h.Days = append(h.Days, model.DayCell{
			Date:      day,
			Week:      week,
			IsMarked:  isMarked,
			IsWeekend: wd == time.Saturday || wd == time.Sunday,
		})

		if n := len(h.Weeks); n > 0 && h.Weeks[n-1].Year == year && h.Weeks[n-1].Week == week {
			h.Weeks[n-1].DayCount++
			continue
		}
		h.Weeks = append(h.Weeks, model.WeekCell{Year: year, Week: week, FirstDay: day, DayCount: 1})
	}

	sizeWeeks(h.Weeks, pixelsPerDay)
	return h
}

// HourHeader builds the 24 hour columns of day.
func HourHeader(day time.Time) model.Header {
	start := interval.StartOfDay(day)
	y, m, d := start.Date()

	h := model.Header{Day: start, Hours: make([]model.HourCell, 0, 24)}
	for hour := 0; hour < 24; hour++ {
		at := time.Date(y, m, d, hour, 0, 0, 0, start.Location())
		h.Hours = append(h.Hours, model.HourCell{
			Start: at,
			Hour:  hour,
			Label: at.Format("15:04"),
		})
	}
	return h
}

func sizeWeeks(weeks []model.WeekCell, pixelsPerDay float64) {
	for i := range weeks {
		weeks[i].WidthPx = float64(weeks[i].DayCount) * pixelsPerDay
	}
}
