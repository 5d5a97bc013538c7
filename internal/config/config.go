package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"planview/internal/model"
	"planview/internal/timeline"
)

// Source kinds understood by the provider layer.
const (
	KindICS    = "ics"
	KindSQLite = "sqlite"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "/etc/planview/config.yaml"

// SourceConfig describes one place planning data is read from.
type SourceConfig struct {
	// ID is an internal identifier used for logging and cache file names.
	ID string `yaml:"id" toml:"id" json:"id"`
	// Kind is "ics" or "sqlite".
	Kind string `yaml:"kind" toml:"kind" json:"kind"`
	// URL is the ICS subscription endpoint (kind ics).
	URL string `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"`
	// Path is the database file (kind sqlite).
	Path string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty"`
	// EventType forces the partition of every event from this source. Empty
	// means the source decides per event, falling back to OPS.
	EventType string `yaml:"event_type,omitempty" toml:"event_type,omitempty" json:"event_type,omitempty"`
}

// TimelineConfig holds the layout constants.
type TimelineConfig struct {
	// DaysAfterScopeEnd is nil when unset; an explicit 0 disables the buffer.
	DaysAfterScopeEnd     *int    `yaml:"days_after_scope_end" toml:"days_after_scope_end" json:"days_after_scope_end"`
	VisibilityFloorPixels float64 `yaml:"visibility_floor_pixels" toml:"visibility_floor_pixels" json:"visibility_floor_pixels"`
	PixelsPerDay          float64 `yaml:"pixels_per_day" toml:"pixels_per_day" json:"pixels_per_day"`
	RowHeightPixels       float64 `yaml:"row_height_pixels" toml:"row_height_pixels" json:"row_height_pixels"`
	DayViewWidthPixels    float64 `yaml:"day_view_width_pixels" toml:"day_view_width_pixels" json:"day_view_width_pixels"`
}

// ActivationConfig controls what happens when a placed event is clicked.
// Without a webhook the payload is only logged.
type ActivationConfig struct {
	WebhookURL     string `yaml:"webhook_url,omitempty" toml:"webhook_url,omitempty" json:"webhook_url,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds"`
}

// CaptureConfig controls the headless browser PNG preview.
type CaptureConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	OutputPath string `yaml:"output_path" toml:"output_path" json:"output_path"`
	Width      int    `yaml:"width" toml:"width" json:"width"`
	Height     int    `yaml:"height" toml:"height" json:"height"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// Timezone is the IANA timezone planning instants are shown in.
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic provider refresh.
	RefreshCron string `yaml:"refresh" toml:"refresh" json:"refresh"`

	// HorizonDays and BackfillDays bound recurrence expansion around now.
	HorizonDays  int `yaml:"horizon_days" toml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" toml:"backfill_days" json:"backfill_days"`

	// CacheDir holds ICS bodies and ETags between fetches.
	CacheDir string `yaml:"cache_dir" toml:"cache_dir" json:"cache_dir"`

	Timeline   TimelineConfig   `yaml:"timeline" toml:"timeline" json:"timeline"`
	Sources    []SourceConfig   `yaml:"sources" toml:"sources" json:"sources"`
	Markers    []SourceConfig   `yaml:"markers" toml:"markers" json:"markers"`
	Activation ActivationConfig `yaml:"activation" toml:"activation" json:"activation"`
	Capture    CaptureConfig    `yaml:"capture" toml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "Europe/Amsterdam",
		LogLevel:     "info",
		RefreshCron:  "*/15 * * * *",
		HorizonDays:  60,
		BackfillDays: 7,
		CacheDir:     "/var/cache/planview",
		Timeline: TimelineConfig{
			DaysAfterScopeEnd:     intPtr(10),
			VisibilityFloorPixels: 5,
			PixelsPerDay:          96,
			RowHeightPixels:       16,
			DayViewWidthPixels:    1440,
		},
		Sources: []SourceConfig{},
		Markers: []SourceConfig{},
		Activation: ActivationConfig{
			TimeoutSeconds: 10,
		},
		Capture: CaptureConfig{
			OutputPath: "/var/cache/planview/preview.png",
			Width:      1600,
			Height:     900,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = d.HorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}

	if c.Timeline.DaysAfterScopeEnd == nil || *c.Timeline.DaysAfterScopeEnd < 0 {
		c.Timeline.DaysAfterScopeEnd = d.Timeline.DaysAfterScopeEnd
	}
	if c.Timeline.VisibilityFloorPixels <= 0 {
		c.Timeline.VisibilityFloorPixels = d.Timeline.VisibilityFloorPixels
	}
	if c.Timeline.PixelsPerDay <= 0 {
		c.Timeline.PixelsPerDay = d.Timeline.PixelsPerDay
	}
	if c.Timeline.RowHeightPixels <= 0 {
		c.Timeline.RowHeightPixels = d.Timeline.RowHeightPixels
	}
	if c.Timeline.DayViewWidthPixels <= 0 {
		c.Timeline.DayViewWidthPixels = d.Timeline.DayViewWidthPixels
	}

	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	if c.Markers == nil {
		c.Markers = []SourceConfig{}
	}
	normalizeSources(c.Sources, "source")
	normalizeSources(c.Markers, "markers")

	if c.Activation.TimeoutSeconds <= 0 {
		c.Activation.TimeoutSeconds = d.Activation.TimeoutSeconds
	}
	if c.Capture.OutputPath == "" {
		c.Capture.OutputPath = filepath.Join(c.CacheDir, "preview.png")
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = d.Capture.Width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = d.Capture.Height
	}
}

func normalizeSources(srcs []SourceConfig, prefix string) {
	for i := range srcs {
		s := &srcs[i]
		s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
		if s.Kind == "" {
			if s.Path != "" && s.URL == "" {
				s.Kind = KindSQLite
			} else {
				s.Kind = KindICS
			}
		}
		s.EventType = strings.ToUpper(strings.TrimSpace(s.EventType))
		if s.ID == "" {
			s.ID = fmt.Sprintf("%s-%d", prefix, i+1)
		}
	}
}

// Validate reports configuration errors Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	for _, s := range append(append([]SourceConfig(nil), c.Sources...), c.Markers...) {
		switch s.Kind {
		case KindICS:
			if s.URL == "" {
				errs = append(errs, fmt.Errorf("source %s: url is required for kind ics", s.ID))
			}
		case KindSQLite:
			if s.Path == "" {
				errs = append(errs, fmt.Errorf("source %s: path is required for kind sqlite", s.ID))
			}
		default:
			errs = append(errs, fmt.Errorf("source %s: unknown kind %q", s.ID, s.Kind))
		}
		if s.EventType != "" && string(model.ParseEventType(s.EventType)) != s.EventType {
			errs = append(errs, fmt.Errorf("source %s: unknown event_type %q", s.ID, s.EventType))
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	return time.Local
}

// TimelineOptions converts the timeline section into controller options.
func (c *Config) TimelineOptions() timeline.Options {
	opts := timeline.Options{
		VisibilityFloorPixels: c.Timeline.VisibilityFloorPixels,
		PixelsPerDay:          c.Timeline.PixelsPerDay,
		RowHeightPixels:       c.Timeline.RowHeightPixels,
		DayViewWidthPixels:    c.Timeline.DayViewWidthPixels,
		Location:              c.Location(),
	}
	if days := c.Timeline.DaysAfterScopeEnd; days != nil {
		opts.DaysAfterScopeEnd = *days
		if *days == 0 {
			opts.DaysAfterScopeEnd = timeline.NoScopeBuffer
		}
	}
	return opts
}

func intPtr(v int) *int { return &v }

// Load loads configuration from the given YAML or TOML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the file is decoded by extension and normalized.
//   - In both cases PLANVIEW_* variables from the environment or from a
//     .env file next to the config (or in the working directory) override
//     the file values.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := readFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		// First run: create default config file.
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			// Even if save fails, return cfg with error so caller can decide.
			return cfg, err
		}
	}

	applyEnv(cfg, newEnvLookup(filepath.Join(filepath.Dir(path), ".env"), ".env"))
	cfg.Normalize()
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// envLookup resolves a variable from the process environment first and from
// .env files second. Process variables set to the empty string count as unset.
type envLookup struct {
	dotenv map[string]string
}

func newEnvLookup(files ...string) envLookup {
	l := envLookup{dotenv: map[string]string{}}
	for _, f := range files {
		values, err := godotenv.Read(f)
		if err != nil {
			continue
		}
		for k, v := range values {
			if _, seen := l.dotenv[k]; !seen {
				l.dotenv[k] = v
			}
		}
	}
	return l
}

func (l envLookup) get(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(l.dotenv[key])
}

func applyEnv(cfg *Config, env envLookup) {
	if v := env.get("PLANVIEW_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := env.get("PLANVIEW_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := env.get("PLANVIEW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := env.get("PLANVIEW_REFRESH"); v != "" {
		cfg.RefreshCron = v
	}
	if v := env.get("PLANVIEW_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
}

// Save writes the given configuration to the specified path, as TOML when the
// path ends in .toml and YAML otherwise.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".planview-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
