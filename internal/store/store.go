// Package store reads planning events and marker dates from a SQLite
// database. Instants are stored as fixed-width UTC text so range filters
// can compare them as strings.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"planview/internal/interval"
	appLog "planview/internal/log"
	"planview/internal/model"
	"planview/internal/nightly"
)

const timeLayout = "2006-01-02T15:04:05Z"

// ErrNoTicket is returned by PutEvent for records without a ticket id.
var ErrNoTicket = errors.New("store: record has no ticket")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS planning_states (
		name  TEXT PRIMARY KEY,
		color TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS planning_events (
		ticket        TEXT PRIMARY KEY,
		description   TEXT NOT NULL DEFAULT '',
		planned_start TEXT NOT NULL,
		planned_end   TEXT NOT NULL,
		state         TEXT NOT NULL DEFAULT '',
		event_type    TEXT NOT NULL DEFAULT 'OPS',
		notam         INTEGER NOT NULL DEFAULT 0,
		disturbant    INTEGER NOT NULL DEFAULT 0,
		nightly       INTEGER,
		url           TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS planning_events_start ON planning_events (planned_start)`,
	`CREATE TABLE IF NOT EXISTS marker_dates (
		day   TEXT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT ''
	)`,
}

const eventsQuery = `
		SELECT e.ticket, e.description, e.planned_start, e.planned_end,
			e.state, COALESCE(s.color, ''), e.event_type,
			e.notam, e.disturbant, e.nightly, e.url
		FROM planning_events e
		LEFT JOIN planning_states s ON s.name = e.state
		WHERE e.planned_end >= ? AND e.planned_start <= ?
		ORDER BY e.planned_start, e.ticket
	`

const markersQuery = `SELECT day FROM marker_dates WHERE day >= ? AND day <= ? ORDER BY day`

// Record is one row of planning_events together with its state colour.
type Record struct {
	Ticket       string
	Description  string
	PlannedStart time.Time
	PlannedEnd   time.Time
	State        string
	StateColor   string
	EventType    model.EventType
	Notam        bool
	Disturbant   bool
	// Nightly nil means "derive from the planned times".
	Nightly *bool
	URL     string
}

// Store is a planning database.
type Store struct {
	id        string
	db        *sql.DB
	loc       *time.Location
	eventType model.EventType
}

// Open opens (and creates if needed) the SQLite database at path.
func Open(id, path string, loc *time.Location, eventType model.EventType) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return New(id, db, loc, eventType), nil
}

// OpenDB opens the SQLite handle behind Open. Several stores may share it
// through New.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return db, nil
}

// New wraps an existing handle. eventType, when non-empty, overrides the
// event_type column.
func New(id string, db *sql.DB, loc *time.Location, eventType model.EventType) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{id: id, db: db, loc: loc, eventType: eventType}
}

func (s *Store) ID() string { return s.id }

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.id, err)
		}
	}
	return tx.Commit()
}

// Events returns planned work overlapping window, ordered by planned start.
func (s *Store) Events(ctx context.Context, window interval.Interval) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, eventsQuery, formatTime(window.Start), formatTime(window.End))
	if err != nil {
		return nil, fmt.Errorf("query events %s: %w", s.id, err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			r          Record
			start, end string
			eventType  string
			isNightly  sql.NullBool
		)
		if err := rows.Scan(
			&r.Ticket, &r.Description, &start, &end,
			&r.State, &r.StateColor, &eventType,
			&r.Notam, &r.Disturbant, &isNightly, &r.URL,
		); err != nil {
			return nil, fmt.Errorf("scan event %s: %w", s.id, err)
		}
		if r.PlannedStart, err = time.Parse(timeLayout, start); err != nil {
			appLog.Error("store: bad planned_start", err, "id", s.id, "ticket", r.Ticket)
			continue
		}
		if r.PlannedEnd, err = time.Parse(timeLayout, end); err != nil {
			appLog.Error("store: bad planned_end", err, "id", s.id, "ticket", r.Ticket)
			continue
		}
		r.EventType = model.ParseEventType(eventType)
		if isNightly.Valid {
			r.Nightly = &isNightly.Bool
		}
		events = append(events, s.toEvent(r))
	}
	return events, rows.Err()
}

// Markers returns the marker days within window.
func (s *Store) Markers(ctx context.Context, window interval.Interval) ([]model.MarkerDate, error) {
	from := window.Start.In(s.loc).Format(time.DateOnly)
	to := window.End.In(s.loc).Format(time.DateOnly)

	rows, err := s.db.QueryContext(ctx, markersQuery, from, to)
	if err != nil {
		return nil, fmt.Errorf("query markers %s: %w", s.id, err)
	}
	defer rows.Close()

	var markers []model.MarkerDate
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan marker %s: %w", s.id, err)
		}
		t, err := time.Parse(time.DateOnly, day)
		if err != nil {
			appLog.Error("store: bad marker day", err, "id", s.id, "day", day)
			continue
		}
		markers = append(markers, model.MarkerDateOf(t))
	}
	return markers, rows.Err()
}

// PutEvent inserts or replaces a planning record and its state colour.
func (s *Store) PutEvent(ctx context.Context, r Record) error {
	if r.Ticket == "" {
		return ErrNoTicket
	}
	if r.EventType == "" {
		r.EventType = model.EventTypeOps
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if r.State != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO planning_states (name, color) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET color = excluded.color`,
			r.State, r.StateColor,
		); err != nil {
			return fmt.Errorf("put state %s: %w", r.State, err)
		}
	}

	var isNightly sql.NullBool
	if r.Nightly != nil {
		isNightly = sql.NullBool{Bool: *r.Nightly, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO planning_events (
			ticket, description, planned_start, planned_end, state,
			event_type, notam, disturbant, nightly, url
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticket) DO UPDATE SET
			description = excluded.description,
			planned_start = excluded.planned_start,
			planned_end = excluded.planned_end,
			state = excluded.state,
			event_type = excluded.event_type,
			notam = excluded.notam,
			disturbant = excluded.disturbant,
			nightly = excluded.nightly,
			url = excluded.url`,
		r.Ticket, r.Description, formatTime(r.PlannedStart), formatTime(r.PlannedEnd), r.State,
		string(r.EventType), r.Notam, r.Disturbant, isNightly, r.URL,
	); err != nil {
		return fmt.Errorf("put event %s: %w", r.Ticket, err)
	}
	return tx.Commit()
}

// PutMarker flags day as a marker date.
func (s *Store) PutMarker(ctx context.Context, day model.MarkerDate, label string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO marker_dates (day, label) VALUES (?, ?)
		ON CONFLICT(day) DO UPDATE SET label = excluded.label`,
		day.String(), label,
	)
	return err
}

func (s *Store) toEvent(r Record) model.Event {
	start := r.PlannedStart.In(s.loc)
	end := r.PlannedEnd.In(s.loc)

	isNightly := nightly.Classify(start, end)
	if r.Nightly != nil {
		isNightly = *r.Nightly
	}
	eventType := r.EventType
	if s.eventType != "" {
		eventType = s.eventType
	}

	return model.Event{
		ID:            r.Ticket,
		Description:   r.Description,
		PlannedStart:  start,
		PlannedEnd:    end,
		Category:      r.State,
		CategoryColor: r.StateColor,
		IsNightly:     isNightly,
		HasNotam:      r.Notam,
		IsDisturbant:  r.Disturbant,
		EventType:     eventType,
		ClickPayload:  model.Reference{Source: s.id, Key: r.Ticket, Ticket: r.Ticket, URL: r.URL},
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
