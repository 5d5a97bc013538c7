package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"planview/internal/timeline"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PLANVIEW_LISTEN", "PLANVIEW_TIMEZONE", "PLANVIEW_LOG_LEVEL", "PLANVIEW_REFRESH", "PLANVIEW_CACHE_DIR"} {
		t.Setenv(k, "")
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeline.PixelsPerDay != 96 || *cfg.Timeline.DaysAfterScopeEnd != 10 {
		t.Errorf("timeline defaults = %+v", cfg.Timeline)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestLoadYAMLNormalizes(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
listen: ":9000"
timezone: UTC
timeline:
  pixels_per_day: 48
sources:
  - url: https://example.com/ops.ics
  - path: /data/planning.db
    event_type: sim
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.Timeline.PixelsPerDay != 48 {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.Timeline.RowHeightPixels != 16 || cfg.Timeline.VisibilityFloorPixels != 5 ||
		cfg.Timeline.DayViewWidthPixels != 1440 || *cfg.Timeline.DaysAfterScopeEnd != 10 {
		t.Errorf("missing timeline values not defaulted: %+v", cfg.Timeline)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("sources = %+v", cfg.Sources)
	}
	if cfg.Sources[0].Kind != KindICS || cfg.Sources[0].ID != "source-1" {
		t.Errorf("source 0 = %+v", cfg.Sources[0])
	}
	if cfg.Sources[1].Kind != KindSQLite || cfg.Sources[1].EventType != "SIM" {
		t.Errorf("source 1 = %+v", cfg.Sources[1])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
listen = "127.0.0.1:7000"
timezone = "UTC"

[timeline]
days_after_scope_end = 3

[[markers]]
id = "airac"
url = "https://example.com/airac.ics"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:7000" || *cfg.Timeline.DaysAfterScopeEnd != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Markers) != 1 || cfg.Markers[0].ID != "airac" || cfg.Markers[0].Kind != KindICS {
		t.Errorf("markers = %+v", cfg.Markers)
	}
	if cfg.Location().String() != "UTC" {
		t.Errorf("location = %s", cfg.Location())
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PLANVIEW_LISTEN=:1234\nPLANVIEW_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLANVIEW_LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":1234" {
		t.Errorf("listen = %q, want value from .env", cfg.Listen)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level = %q, process env should win over .env", cfg.LogLevel)
	}
}

func TestSaveTOMLRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "ops", Password: "secret"}
	cfg.Sources = []SourceConfig{{ID: "db", Kind: KindSQLite, Path: "/tmp/p.db"}}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.BasicAuth == nil || got.BasicAuth.Username != "ops" {
		t.Errorf("basic auth = %+v", got.BasicAuth)
	}
	if len(got.Sources) != 1 || got.Sources[0].Path != "/tmp/p.db" {
		t.Errorf("sources = %+v", got.Sources)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = []SourceConfig{
		{ID: "a", Kind: KindICS},
		{ID: "b", Kind: "ftp", URL: "ftp://x"},
		{ID: "c", Kind: KindSQLite, Path: "p.db", EventType: "TRAINING"},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"source a", "source b", "source c"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestTimelineOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "UTC"
	opts := cfg.TimelineOptions()
	if opts.PixelsPerDay != 96 || opts.RowHeightPixels != 16 || opts.Location.String() != "UTC" {
		t.Errorf("options = %+v", opts)
	}
	if opts.DaysAfterScopeEnd != 10 || opts.DayViewWidthPixels != 1440 {
		t.Errorf("scope buffer = %d day width = %v", opts.DaysAfterScopeEnd, opts.DayViewWidthPixels)
	}
}

func TestLoadZeroScopeBufferAndDayWidth(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
timezone: UTC
timeline:
  days_after_scope_end: 0
  day_view_width_pixels: 720
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeline.DaysAfterScopeEnd == nil || *cfg.Timeline.DaysAfterScopeEnd != 0 {
		t.Fatalf("explicit zero buffer lost: %v", cfg.Timeline.DaysAfterScopeEnd)
	}
	opts := cfg.TimelineOptions()
	if opts.DaysAfterScopeEnd != timeline.NoScopeBuffer {
		t.Errorf("DaysAfterScopeEnd = %d, want NoScopeBuffer", opts.DaysAfterScopeEnd)
	}
	if opts.DayViewWidthPixels != 720 {
		t.Errorf("DayViewWidthPixels = %v", opts.DayViewWidthPixels)
	}
}
