package model

import (
	"math"
	"time"
)

// MessageKind enumerates what the host can deliver to the recorder.
type MessageKind int

const (
	DamageEventReceived MessageKind = iota + 1
	DeathOccurred
	ConfigChanged
)

func (k MessageKind) String() string {
	switch k {
	case DamageEventReceived:
		return "damage"
	case DeathOccurred:
		return "death"
	case ConfigChanged:
		return "config"
	}
	return "unknown"
}

// Message is one inbound host notification. Exactly one payload is set,
// matching Kind; At is the host time of a death notification.
type Message struct {
	Kind   MessageKind
	Damage *DamageEvent
	At     time.Time
	Config *ConfigChange
}

// ConfigChange carries the settings to update; nil fields stay unchanged.
type ConfigChange struct {
	MaxEntries      *int
	ScreenshotOn    *bool
	ScreenshotDelay *time.Duration
}

// Empty reports whether the change updates nothing.
func (c ConfigChange) Empty() bool {
	return c.MaxEntries == nil && c.ScreenshotOn == nil && c.ScreenshotDelay == nil
}

// MaxDelaySeconds is the largest screenshot delay, in whole seconds, that
// fits a time.Duration.
const MaxDelaySeconds = math.MaxInt64 / int64(time.Second)

// DelayFromSeconds converts a delay given in seconds. ok is false for
// negative, NaN or out-of-range values.
func DelayFromSeconds(secs float64) (d time.Duration, ok bool) {
	if math.IsNaN(secs) || secs < 0 || secs > float64(MaxDelaySeconds) {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// Settings are the user-tunable values persisted with the history.
type Settings struct {
	MaxEntries      int           `json:"maxEntries"`
	ScreenshotOn    bool          `json:"screenshotOn"`
	ScreenshotDelay time.Duration `json:"screenshotDelay"`
}

// Apply returns s with the non-nil fields of c applied.
func (s Settings) Apply(c ConfigChange) Settings {
	if c.MaxEntries != nil {
		s.MaxEntries = *c.MaxEntries
	}
	if c.ScreenshotOn != nil {
		s.ScreenshotOn = *c.ScreenshotOn
	}
	if c.ScreenshotDelay != nil {
		s.ScreenshotDelay = *c.ScreenshotDelay
	}
	return s
}

// State is the durable layout: the bounded record history plus settings.
type State struct {
	Records  []DeathRecord
	Settings Settings
}

// Notification is what the recorder hands to external consumers after a
// record was written. ScreenshotAt is set when screenshots are enabled.
type Notification struct {
	Record       DeathRecord `json:"record"`
	ScreenshotAt *time.Time  `json:"screenshotAt,omitempty"`
}
