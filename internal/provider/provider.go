// Package provider loads planning data from every configured source into one
// snapshot the timeline controller can consume.
package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"planview/internal/config"
	"planview/internal/ics"
	"planview/internal/interval"
	appLog "planview/internal/log"
	"planview/internal/model"
	"planview/internal/store"
)

// EventSource delivers planned work overlapping a window.
type EventSource interface {
	ID() string
	Events(ctx context.Context, window interval.Interval) ([]model.Event, error)
}

// MarkerSource delivers marker dates within a window.
type MarkerSource interface {
	ID() string
	Markers(ctx context.Context, window interval.Interval) ([]model.MarkerDate, error)
}

// SourceError records a failed source; the rest of the snapshot is still
// usable.
type SourceError struct {
	SourceID string
	Err      error
}

func (e *SourceError) Error() string { return fmt.Sprintf("source %s: %v", e.SourceID, e.Err) }

func (e *SourceError) Unwrap() error { return e.Err }

// Snapshot is the result of one load.
type Snapshot struct {
	Ops      []model.Event
	Sim      []model.Event
	Markers  []model.MarkerDate
	Window   interval.Interval
	LoadedAt time.Time
	Errors   []error
}

// Loader fans out to all sources.
type Loader struct {
	events  []EventSource
	markers []MarkerSource

	backfillDays int
	horizonDays  int
	loc          *time.Location
	now          func() time.Time

	closers []func() error
}

// NewLoader builds a loader over the given sources. The load window runs from
// backfillDays before today to horizonDays after it.
func NewLoader(events []EventSource, markers []MarkerSource, backfillDays, horizonDays int, loc *time.Location) *Loader {
	if loc == nil {
		loc = time.Local
	}
	return &Loader{
		events:       events,
		markers:      markers,
		backfillDays: backfillDays,
		horizonDays:  horizonDays,
		loc:          loc,
		now:          time.Now,
	}
}

// FromConfig builds the sources named in cfg. SQLite databases are opened and
// migrated; Close releases them.
func FromConfig(ctx context.Context, cfg *config.Config) (*Loader, error) {
	loc := cfg.Location()
	fetcher := ics.NewFetcher(cfg.CacheDir, nil)
	l := NewLoader(nil, nil, cfg.BackfillDays, cfg.HorizonDays, loc)

	// Sources on the same file share one handle; each keeps its own id and
	// event type.
	dbs := make(map[string]*sql.DB)
	openStore := func(src config.SourceConfig) (*store.Store, error) {
		db, ok := dbs[src.Path]
		if !ok {
			var err error
			if db, err = store.OpenDB(src.Path); err != nil {
				return nil, err
			}
			s := store.New(src.ID, db, loc, model.EventType(src.EventType))
			if err := s.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
			dbs[src.Path] = db
			l.closers = append(l.closers, db.Close)
		}
		return store.New(src.ID, db, loc, model.EventType(src.EventType)), nil
	}

	for _, src := range cfg.Sources {
		switch src.Kind {
		case config.KindICS:
			l.events = append(l.events, ics.NewProvider(ics.Feed{ID: src.ID, URL: src.URL}, fetcher, loc, model.EventType(src.EventType)))
		case config.KindSQLite:
			s, err := openStore(src)
			if err != nil {
				l.Close()
				return nil, fmt.Errorf("source %s: %w", src.ID, err)
			}
			l.events = append(l.events, s)
		default:
			l.Close()
			return nil, fmt.Errorf("source %s: unknown kind %q", src.ID, src.Kind)
		}
	}
	for _, src := range cfg.Markers {
		switch src.Kind {
		case config.KindICS:
			l.markers = append(l.markers, ics.NewProvider(ics.Feed{ID: src.ID, URL: src.URL}, fetcher, loc, ""))
		case config.KindSQLite:
			s, err := openStore(src)
			if err != nil {
				l.Close()
				return nil, fmt.Errorf("markers %s: %w", src.ID, err)
			}
			l.markers = append(l.markers, s)
		default:
			l.Close()
			return nil, fmt.Errorf("markers %s: unknown kind %q", src.ID, src.Kind)
		}
	}
	return l, nil
}

// Window is the range the next Load asks sources for.
func (l *Loader) Window() interval.Interval {
	today := interval.StartOfDay(l.now().In(l.loc))
	return interval.New(today.AddDate(0, 0, -l.backfillDays), today.AddDate(0, 0, l.horizonDays+1))
}

// Load queries every source. Failing sources are logged and reported in
// Snapshot.Errors; the events of the others are kept. Both batches are
// ordered by planned start.
func (l *Loader) Load(ctx context.Context) Snapshot {
	snap := Snapshot{Window: l.Window(), LoadedAt: l.now()}

	for _, src := range l.events {
		events, err := src.Events(ctx, snap.Window)
		if err != nil {
			snap.Errors = append(snap.Errors, &SourceError{SourceID: src.ID(), Err: err})
			appLog.Error("provider events failed", err, "source", src.ID())
			continue
		}
		for _, e := range events {
			if e.EventType == model.EventTypeSim {
				snap.Sim = append(snap.Sim, e)
			} else {
				snap.Ops = append(snap.Ops, e)
			}
		}
	}

	seen := make(map[model.MarkerDate]struct{})
	for _, src := range l.markers {
		markers, err := src.Markers(ctx, snap.Window)
		if err != nil {
			snap.Errors = append(snap.Errors, &SourceError{SourceID: src.ID(), Err: err})
			appLog.Error("provider markers failed", err, "source", src.ID())
			continue
		}
		for _, m := range markers {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			snap.Markers = append(snap.Markers, m)
		}
	}

	sortByStart(snap.Ops)
	sortByStart(snap.Sim)
	sort.Slice(snap.Markers, func(i, j int) bool { return snap.Markers[i].String() < snap.Markers[j].String() })

	appLog.Info("provider load completed", "ops", len(snap.Ops), "sim", len(snap.Sim),
		"markers", len(snap.Markers), "errors", len(snap.Errors))
	return snap
}

// Close releases sources that hold resources.
func (l *Loader) Close() error {
	var errs []error
	for _, c := range l.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	l.closers = nil
	return errors.Join(errs...)
}

func sortByStart(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].PlannedStart.Before(events[j].PlannedStart)
	})
}
