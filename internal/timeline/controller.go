package timeline

import (
	"errors"
	"time"

	"planview/internal/interval"
	appLog "planview/internal/log"
	"planview/internal/model"
)

// State is the view the controller currently shows.
type State int

const (
	StateFullOps State = iota
	StateFullSim
	StateDay
)

func (s State) String() string {
	switch s {
	case StateFullOps:
		return "FULL_OPS"
	case StateFullSim:
		return "FULL_SIM"
	case StateDay:
		return "DAY"
	default:
		return "UNKNOWN"
	}
}

func fullState(p model.EventType) State {
	if p == model.EventTypeSim {
		return StateFullSim
	}
	return StateFullOps
}

// Controller drives one timeline view. Every transition recomputes scope,
// header and placements from the current batches and returns a fresh
// LayoutResult. The only state carried between transitions is the active
// partition, the selected day, the legend and the last result.
//
// A Controller is not safe for concurrent use.
type Controller struct {
	opts Options

	batches map[model.EventType][]model.Event
	markers []model.MarkerDate

	state     State
	partition model.EventType
	day       time.Time

	legend   *Legend
	current  *model.LayoutResult
	payloads map[string]any
}

func NewController(opts Options) *Controller {
	return &Controller{
		opts:      opts.withDefaults(),
		batches:   make(map[model.EventType][]model.Event),
		state:     StateFullOps,
		partition: model.EventTypeOps,
		legend:    NewLegend(),
		payloads:  make(map[string]any),
	}
}

// SetData replaces the event batches and marker dates. It does not render;
// the next transition picks the new data up.
func (c *Controller) SetData(ops, sim []model.Event, markers []model.MarkerDate) {
	c.batches = map[model.EventType][]model.Event{
		model.EventTypeOps: append([]model.Event(nil), ops...),
		model.EventTypeSim: append([]model.Event(nil), sim...),
	}
	c.markers = append([]model.MarkerDate(nil), markers...)
}

// RenderFull shows the multi-day view of partition p. On ErrEmptyInput the
// previous result and state are left untouched.
func (c *Controller) RenderFull(p model.EventType) (model.LayoutResult, error) {
	events := c.batches[p]
	scope, err := FullScope(events, c.opts.now(), c.opts.DaysAfterScopeEnd)
	if err != nil {
		appLog.Warn("full render aborted", "partition", p, "events", len(events), "reason", err.Error())
		return model.LayoutResult{}, err
	}

	header := FullHeader(scope, c.markers, c.opts.PixelsPerDay)
	placed, skipped := Layout(events, scope, model.ModeFull, c.opts)

	res := c.assemble(model.ModeFull, p, scope, header, placed, skipped)
	c.state = fullState(p)
	c.partition = p
	c.day = time.Time{}
	c.commit(res)

	appLog.Debug("rendered full view", "partition", p, "placed", len(placed), "skipped", len(skipped),
		"scope_start", scope.Start, "scope_end", scope.End)
	return res, nil
}

// Toggle flips the partition and re-renders the full view.
func (c *Controller) Toggle() (model.LayoutResult, error) {
	return c.RenderFull(c.partition.Other())
}

// SelectDay shows the hourly view of day using the active partition's events.
func (c *Controller) SelectDay(day time.Time) (model.LayoutResult, error) {
	d := interval.StartOfDay(day.In(c.opts.Location))
	events := EventsForDay(c.batches[c.partition], d)

	scope := DayScope(d)
	header := HourHeader(d)
	placed, skipped := Layout(events, scope, model.ModeDay, c.opts)

	res := c.assemble(model.ModeDay, c.partition, scope, header, placed, skipped)
	c.state = StateDay
	c.day = d
	c.commit(res)

	appLog.Debug("rendered day view", "partition", c.partition, "day", d, "placed", len(placed))
	return res, nil
}

// Back returns to the full view of the partition the day view was entered
// from. Outside the day view it re-renders the current full view.
func (c *Controller) Back() (model.LayoutResult, error) {
	return c.RenderFull(c.partition)
}

// Today shows the hourly view of the current day.
func (c *Controller) Today() (model.LayoutResult, error) {
	return c.SelectDay(c.opts.now())
}

// Reflow recomputes the pixel-dependent values of the current result for a
// new day-to-pixel ratio. Scope and placements are reused as they are.
func (c *Controller) Reflow(pixelsPerDay float64) (model.LayoutResult, error) {
	if c.current == nil {
		return model.LayoutResult{}, ErrNotRendered
	}
	if pixelsPerDay <= 0 {
		return model.LayoutResult{}, errors.New("timeline: pixels per day must be positive")
	}
	c.opts.PixelsPerDay = pixelsPerDay

	res := *c.current
	res.Placed = append([]model.PlacedEvent(nil), c.current.Placed...)
	res.Header.Weeks = append([]model.WeekCell(nil), c.current.Header.Weeks...)
	for i := range res.Placed {
		applyPixels(&res.Placed[i], res.Scope, c.opts)
	}
	sizeWeeks(res.Header.Weeks, pixelsPerDay)
	c.sizeGrid(&res)

	c.current = &res
	return res, nil
}

// Activate returns the click payload of a placed event of the current view.
func (c *Controller) Activate(placementID string) (any, error) {
	payload, ok := c.payloads[placementID]
	if !ok {
		return nil, ErrUnknownPlacement
	}
	return payload, nil
}

// Current returns the last result, if any.
func (c *Controller) Current() (model.LayoutResult, bool) {
	if c.current == nil {
		return model.LayoutResult{}, false
	}
	return *c.current, true
}

func (c *Controller) State() State { return c.state }

func (c *Controller) Partition() model.EventType { return c.partition }

// Day is the selected day while in StateDay.
func (c *Controller) Day() time.Time { return c.day }

func (c *Controller) Legend() []model.LegendEntry { return c.legend.Snapshot() }

// ResetLegend clears the observed categories. The legend otherwise keeps
// growing across renders for the controller's lifetime.
func (c *Controller) ResetLegend() { c.legend.Reset() }

func (c *Controller) assemble(mode model.Mode, p model.EventType, scope model.Scope, header model.Header,
	placed []model.PlacedEvent, skipped []model.SkippedEvent) model.LayoutResult {
	for _, pe := range placed {
		c.legend.Observe(pe.Event)
	}

	res := model.LayoutResult{
		Mode:      mode,
		Partition: p,
		Scope:     scope,
		Header:    header,
		Placed:    placed,
		Legend:    c.legend.Snapshot(),
		Skipped:   skipped,
	}
	c.sizeGrid(&res)
	return res
}

func (c *Controller) sizeGrid(res *model.LayoutResult) {
	res.PixelsPerDay = c.opts.PixelsPerDay
	if res.Mode == model.ModeDay {
		res.WidthPx = c.opts.DayViewWidthPixels
	} else {
		res.WidthPx = res.Scope.Days() * c.opts.PixelsPerDay
	}
	res.BodyHeightPx = float64(len(res.Placed)) * c.opts.RowHeightPixels
}

func (c *Controller) commit(res model.LayoutResult) {
	c.current = &res
	c.payloads = make(map[string]any, len(res.Placed))
	for _, pe := range res.Placed {
		c.payloads[pe.PlacementID] = pe.Event.ClickPayload
	}
}
