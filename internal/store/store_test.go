package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"planview/internal/interval"
	"planview/internal/model"
)

func utc(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

var march = interval.New(utc("2024-03-01T00:00"), utc("2024-04-01T00:00"))

func TestMigrate_Unit(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	for _, stmt := range schema {
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	if err := New("db", db, time.UTC, "").Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestMigrateFailureRollsBack_Unit(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(schema[0]).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	if err := New("db", db, time.UTC, "").Migrate(context.Background()); err == nil {
		t.Fatal("expected migrate error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestEvents_Unit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"ticket", "description", "planned_start", "planned_end",
		"state", "color", "event_type", "notam", "disturbant", "nightly", "url",
	}).
		AddRow("T-1", "Runway works", "2024-03-05T21:00:00Z", "2024-03-06T03:00:00Z",
			"Ingepland", "#06309e", "OPS", true, false, nil, "https://planning.example/T-1").
		AddRow("T-2", "Broken row", "yesterday", "2024-03-06T03:00:00Z",
			"", "", "OPS", false, false, nil, "").
		AddRow("T-3", "Sim session", "2024-03-07T09:00:00Z", "2024-03-07T12:00:00Z",
			"Uitgevoerd", "", "sim", false, true, true, "")

	mock.ExpectQuery(`SELECT (.+) FROM planning_events e LEFT JOIN planning_states s`).
		WithArgs("2024-03-01T00:00:00Z", "2024-04-01T00:00:00Z").
		WillReturnRows(rows)

	events, err := New("db", db, time.UTC, "").Events(context.Background(), march)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (bad row skipped)", len(events))
	}

	e := events[0]
	if e.ID != "T-1" || e.Category != "Ingepland" || e.CategoryColor != "#06309e" || !e.HasNotam {
		t.Errorf("event 0 = %+v", e)
	}
	if !e.IsNightly {
		t.Error("21:00 for six hours should be derived as nightly")
	}
	if ref := e.ClickPayload.(model.Reference); ref.Source != "db" || ref.URL != "https://planning.example/T-1" {
		t.Errorf("payload = %+v", ref)
	}

	e = events[1]
	if e.EventType != model.EventTypeSim || !e.IsDisturbant || !e.IsNightly {
		t.Errorf("event 1 = %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestEventsQueryError_Unit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM planning_events`).WillReturnError(errors.New("no such table: planning_events"))

	if _, err := New("db", db, time.UTC, "").Events(context.Background(), march); err == nil {
		t.Fatal("expected query error")
	}
}

func TestMarkers_Unit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"day"}).AddRow("2024-03-21").AddRow("garbage")
	mock.ExpectQuery(`SELECT day FROM marker_dates`).
		WithArgs("2024-03-01", "2024-04-01").
		WillReturnRows(rows)

	markers, err := New("db", db, time.UTC, "").Markers(context.Background(), march)
	if err != nil {
		t.Fatalf("Markers: %v", err)
	}
	if len(markers) != 1 || markers[0].String() != "2024-03-21" {
		t.Errorf("markers = %v", markers)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open("planning", filepath.Join(t.TempDir(), "planning.db"), time.UTC, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// Migrate is repeatable.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	no := false
	records := []Record{
		{Ticket: "T-2", Description: "Later", PlannedStart: utc("2024-03-10T08:00"), PlannedEnd: utc("2024-03-10T10:00"),
			State: "Ingepland", StateColor: "#06309e", EventType: model.EventTypeSim},
		{Ticket: "T-1", Description: "Earlier", PlannedStart: utc("2024-03-02T22:00"), PlannedEnd: utc("2024-03-03T02:00"),
			State: "Ingepland", StateColor: "#112233", Notam: true, Nightly: &no},
		{Ticket: "T-OLD", Description: "Last year", PlannedStart: utc("2023-03-02T08:00"), PlannedEnd: utc("2023-03-02T09:00")},
	}
	for _, r := range records {
		if err := s.PutEvent(ctx, r); err != nil {
			t.Fatalf("PutEvent %s: %v", r.Ticket, err)
		}
	}
	if err := s.PutEvent(ctx, Record{}); !errors.Is(err, ErrNoTicket) {
		t.Errorf("expected ErrNoTicket, got %v", err)
	}
	if err := s.PutMarker(ctx, model.MarkerDate{Year: 2024, Month: time.March, Day: 21}, "AIRAC 2403"); err != nil {
		t.Fatalf("PutMarker: %v", err)
	}

	events, err := s.Events(ctx, march)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 || events[0].ID != "T-1" || events[1].ID != "T-2" {
		t.Fatalf("events = %+v", events)
	}
	if events[0].IsNightly || !events[0].HasNotam {
		t.Errorf("T-1 flags = %+v", events[0])
	}
	// The state colour is shared; the last write wins.
	if events[1].CategoryColor != "#112233" || events[1].EventType != model.EventTypeSim {
		t.Errorf("T-2 = %+v", events[1])
	}
	if !events[0].PlannedStart.Equal(utc("2024-03-02T22:00")) {
		t.Errorf("start = %s", events[0].PlannedStart)
	}

	markers, err := s.Markers(ctx, march)
	if err != nil {
		t.Fatalf("Markers: %v", err)
	}
	if len(markers) != 1 || markers[0] != (model.MarkerDate{Year: 2024, Month: time.March, Day: 21}) {
		t.Errorf("markers = %v", markers)
	}
}

func TestForcedEventType(t *testing.T) {
	s := New("sim-db", nil, time.UTC, model.EventTypeSim)
	ev := s.toEvent(Record{Ticket: "X", EventType: model.EventTypeOps, PlannedStart: utc("2024-03-01T10:00"), PlannedEnd: utc("2024-03-01T11:00")})
	if ev.EventType != model.EventTypeSim {
		t.Errorf("event type = %s", ev.EventType)
	}
}
