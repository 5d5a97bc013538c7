package ics

import (
	"context"
	"time"

	"planview/internal/interval"
	"planview/internal/model"
	"planview/internal/nightly"
)

// Provider reads planning events or marker dates from one ICS feed.
type Provider struct {
	feed      Feed
	fetcher   *Fetcher
	loc       *time.Location
	eventType model.EventType
}

// NewProvider binds feed to fetcher. eventType, when non-empty, forces the
// partition of every event; otherwise X-PLANNING-TYPE decides.
func NewProvider(feed Feed, fetcher *Fetcher, loc *time.Location, eventType model.EventType) *Provider {
	if loc == nil {
		loc = time.Local
	}
	return &Provider{feed: feed, fetcher: fetcher, loc: loc, eventType: eventType}
}

func (p *Provider) ID() string { return p.feed.ID }

// Events returns the feed's planned work overlapping window.
func (p *Provider) Events(ctx context.Context, window interval.Interval) ([]model.Event, error) {
	occs, err := p.occurrences(ctx, window)
	if err != nil {
		return nil, err
	}
	events := make([]model.Event, 0, len(occs))
	for _, o := range occs {
		events = append(events, p.toEvent(o))
	}
	return events, nil
}

// Markers returns the days on which the feed has an event within window.
// Recurring marker series (an AIRAC cycle is one every 28 days) expand like
// any other rule.
func (p *Provider) Markers(ctx context.Context, window interval.Interval) ([]model.MarkerDate, error) {
	occs, err := p.occurrences(ctx, window)
	if err != nil {
		return nil, err
	}
	seen := make(map[model.MarkerDate]struct{}, len(occs))
	markers := make([]model.MarkerDate, 0, len(occs))
	for _, o := range occs {
		d := model.MarkerDateOf(o.Start.In(p.loc))
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		markers = append(markers, d)
	}
	return markers, nil
}

func (p *Provider) occurrences(ctx context.Context, window interval.Interval) ([]Occurrence, error) {
	body, err := p.fetcher.Fetch(ctx, p.feed)
	if err != nil {
		return nil, err
	}
	entries, err := Parse(p.feed.ID, body.Data, p.loc)
	if err != nil {
		return nil, err
	}
	return Expand(entries, window, 0), nil
}

func (p *Provider) toEvent(o Occurrence) model.Event {
	e := o.Entry
	start := o.Start.In(p.loc)
	end := o.End.In(p.loc)

	isNightly := nightly.Classify(start, end)
	if e.Nightly != nil {
		isNightly = *e.Nightly
	}

	eventType := p.eventType
	if eventType == "" {
		eventType = model.ParseEventType(e.Type)
	}

	return model.Event{
		ID:            e.Key(),
		Description:   e.Summary,
		PlannedStart:  start,
		PlannedEnd:    end,
		Category:      e.State,
		CategoryColor: e.StateColor,
		IsNightly:     isNightly,
		HasNotam:      e.Notam,
		IsDisturbant:  e.Disturbant,
		EventType:     eventType,
		ClickPayload: model.Reference{
			Source: p.feed.ID,
			Key:    e.UID,
			Ticket: e.Ticket,
			URL:    e.URL,
		},
	}
}
