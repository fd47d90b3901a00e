// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/deathlog/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080". Empty disables HTTP.
	Addr string `koanf:"addr"`

	// SubjectID restricts the damage window to one target. Empty accepts all.
	SubjectID string `koanf:"subject_id"`

	// WindowSeconds is how far back damage is kept for attribution.
	WindowSeconds float64 `koanf:"window_seconds"`

	// MaxEntries, ScreenshotOn and ScreenshotDelaySeconds are the initial
	// settings. A persisted state overrides them.
	MaxEntries             int     `koanf:"max_entries"`
	ScreenshotOn           bool    `koanf:"screenshot_on"`
	ScreenshotDelaySeconds float64 `koanf:"screenshot_delay_seconds"`

	// QueueSize bounds the in-memory message queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets how many inbound event IDs are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// DBPath is the SQLite database holding history and settings. Empty
	// keeps everything in memory.
	DBPath string `koanf:"db_path"`

	// CombatLogPath is the NDJSON feed to tail. Empty disables the tailer.
	CombatLogPath string `koanf:"combat_log_path"`

	// CombatLogFromStart replays the existing feed content on startup.
	CombatLogFromStart bool `koanf:"combat_log_from_start"`

	// SnapshotPath is the JSON document the host keeps current with the
	// character state. Empty disables snapshots.
	SnapshotPath string `koanf:"snapshot_path"`

	// ExportPath receives one NDJSON line per death. Empty disables export.
	ExportPath string `koanf:"export_path"`

	// ExportMaxBytes rotates the export file at this size. 0 never rotates.
	ExportMaxBytes int64 `koanf:"export_max_bytes"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		WindowSeconds:          6.0,
		MaxEntries:             200,
		ScreenshotOn:           true,
		ScreenshotDelaySeconds: 1.0,
		QueueSize:              4096,
		DedupeSize:             10_000,
		DBPath:                 "deathlog.db",
		ExportPath:             "deaths.ndjson",
		ExportMaxBytes:         10 << 20,
	}
}

// Window returns the damage window span.
func (c *Config) Window() time.Duration {
	return seconds(c.WindowSeconds)
}

// Settings returns the initial recorder settings.
func (c *Config) Settings() model.Settings {
	return model.Settings{
		MaxEntries:      c.MaxEntries,
		ScreenshotOn:    c.ScreenshotOn,
		ScreenshotDelay: seconds(c.ScreenshotDelaySeconds),
	}
}

// Validate reports the first out-of-range value.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q must be text or json", ErrInvalidConfig, c.LogFormat)
	}
	switch {
	case c.WindowSeconds <= 0 || c.WindowSeconds > float64(model.MaxDelaySeconds):
		return fmt.Errorf("%w: window_seconds must be positive and at most %d", ErrInvalidConfig, model.MaxDelaySeconds)
	case c.MaxEntries < 1:
		return fmt.Errorf("%w: max_entries must be at least 1", ErrInvalidConfig)
	case c.ScreenshotDelaySeconds < 0 || c.ScreenshotDelaySeconds > float64(model.MaxDelaySeconds):
		return fmt.Errorf("%w: screenshot_delay_seconds must be between 0 and %d", ErrInvalidConfig, model.MaxDelaySeconds)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be at least 1", ErrInvalidConfig)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	case c.ExportMaxBytes < 0:
		return fmt.Errorf("%w: export_max_bytes must not be negative", ErrInvalidConfig)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
