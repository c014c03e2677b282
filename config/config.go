// Package config loads the settings of the schedule cache from a YAML or JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"sigs.k8s.io/yaml"
)

// Duration accepts "90m", "1h30m" or a bare number of minutes.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("duration %q: %w", s, err)
		}
		d.Duration = v
		return nil
	}
	var minutes float64
	if err := json.Unmarshal(b, &minutes); err != nil {
		return fmt.Errorf("duration: want a string or minutes, got %s", b)
	}
	d.Duration = time.Duration(minutes * float64(time.Minute))
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Config is the whole configuration file.
type Config struct {
	Upstream Upstream `json:"upstream"`
	Probe    Probe    `json:"probe"`
	Cache    Cache    `json:"cache"`
	TTL      TTL      `json:"ttl"`
	Week     Week     `json:"week"`
	Device   Device   `json:"device"`
	Refresh  Refresh  `json:"refresh"`
	Log      Log      `json:"log"`
}

type Upstream struct {
	BaseURL string   `json:"baseURL"`
	Timeout Duration `json:"timeout"`
}

// Probe configures the connectivity check. An empty URL means "always online".
type Probe struct {
	URL      string   `json:"url"`
	Remember Duration `json:"remember"`
}

type Cache struct {
	// Driver is "memory" or "sqlite".
	Driver string `json:"driver"`
	Path   string `json:"path"`

	HotEntries int `json:"hotEntries"`

	// WritePolicy is "write-through" or "write-back".
	WritePolicy     string `json:"writePolicy"`
	WriteBackBuffer int    `json:"writeBackBuffer"`
}

type TTL struct {
	Day    Duration `json:"day"`
	Week   Duration `json:"week"`
	Course Duration `json:"course"`
}

type Week struct {
	FirstDay string `json:"firstDay"`
	TimeZone string `json:"timeZone"`
}

type Device struct {
	Platform string `json:"platform"`
	Name     string `json:"name"`
}

type Refresh struct {
	Background bool     `json:"background"`
	Timeout    Duration `json:"timeout"`
}

type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"` // text or json
}

// Default returns the configuration used for every field a file leaves out.
func Default() Config {
	return Config{
		Upstream: Upstream{Timeout: Duration{15 * time.Second}},
		Probe:    Probe{Remember: Duration{10 * time.Second}},
		Cache: Cache{
			Driver:          "sqlite",
			Path:            "schedule-cache.db",
			HotEntries:      256,
			WritePolicy:     "write-through",
			WriteBackBuffer: 128,
		},
		TTL: TTL{
			Day:    Duration{time.Hour},
			Week:   Duration{time.Hour},
			Course: Duration{24 * time.Hour},
		},
		Week:    Week{FirstDay: "monday", TimeZone: "Local"},
		Device:  Device{Platform: "android"},
		Refresh: Refresh{Background: true, Timeout: Duration{30 * time.Second}},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Parse reads YAML or JSON on top of Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Load reads and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides a few fields from the environment:
// SCHEDULE_UPSTREAM_URL, SCHEDULE_CACHE_DRIVER, SCHEDULE_CACHE_PATH, SCHEDULE_LOG_LEVEL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("SCHEDULE_UPSTREAM_URL"); ok {
		c.Upstream.BaseURL = v
	}
	if v, ok := lookup("SCHEDULE_CACHE_DRIVER"); ok {
		c.Cache.Driver = v
	}
	if v, ok := lookup("SCHEDULE_CACHE_PATH"); ok {
		c.Cache.Path = v
	}
	if v, ok := lookup("SCHEDULE_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.baseURL is required"))
	}
	switch c.Cache.Driver {
	case "memory":
	case "sqlite":
		if c.Cache.Path == "" {
			errs = append(errs, errors.New("cache.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.driver %q: want memory or sqlite", c.Cache.Driver))
	}
	switch c.Cache.WritePolicy {
	case "write-through":
	case "write-back":
		if c.Cache.WriteBackBuffer <= 0 {
			errs = append(errs, errors.New("cache.writeBackBuffer must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.writePolicy %q: want write-through or write-back", c.Cache.WritePolicy))
	}
	for name, d := range map[string]Duration{"ttl.day": c.TTL.Day, "ttl.week": c.TTL.Week, "ttl.course": c.TTL.Course} {
		if d.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if _, err := c.FirstWeekday(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// FirstWeekday parses week.firstDay ("monday", "Sunday", or 0-6).
func (c Config) FirstWeekday() (time.Weekday, error) {
	s := strings.ToLower(strings.TrimSpace(c.Week.FirstDay))
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("week.firstDay %q is not a weekday", c.Week.FirstDay)
}

// Location loads week.timeZone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Week.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("week.timeZone: %w", err)
	}
	return loc, nil
}

// LogLevel parses log.level.
func (c Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// NewLogger builds the slog.Logger described by the log section.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
