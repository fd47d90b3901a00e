// Package types contains the JSON shapes exchanged with the host.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/deathlog/internal/domain/model"
)

// Inbound message types.
const (
	TypeDamage = "damage"
	TypeDeath  = "death"
	TypeConfig = "config"
)

// ErrInvalidMessage is returned for inbound messages that cannot be decoded
// into a model.Message.
var ErrInvalidMessage = errors.New("invalid message")

// Inbound is one host notification as delivered over HTTP or in the combat
// log feed. Fields irrelevant to Type are ignored.
type Inbound struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`
	TS      string `json:"ts,omitempty"`

	// damage
	Kind       string  `json:"kind,omitempty"`
	TargetID   string  `json:"target_id,omitempty"`
	SourceID   *string `json:"source_id,omitempty"`
	SourceName string  `json:"source_name,omitempty"`
	Spell      string  `json:"spell,omitempty"`
	Amount     *int64  `json:"amount,omitempty"`
	Overkill   *int64  `json:"overkill,omitempty"`

	// config
	MaxEntries             *int     `json:"max_entries,omitempty"`
	ScreenshotOn           *bool    `json:"screenshot_on,omitempty"`
	ScreenshotDelaySeconds *float64 `json:"screenshot_delay_seconds,omitempty"`
}

// Validate checks the message shape. Unknown damage kinds are accepted here
// and filtered at ingest.
func (in Inbound) Validate() error {
	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case TypeDamage:
		if strings.TrimSpace(in.Kind) == "" {
			return fmt.Errorf("%w: missing kind", ErrInvalidMessage)
		}
	case TypeDeath:
	case TypeConfig:
		if in.MaxEntries == nil && in.ScreenshotOn == nil && in.ScreenshotDelaySeconds == nil {
			return fmt.Errorf("%w: config changes nothing", ErrInvalidMessage)
		}
		if in.MaxEntries != nil && *in.MaxEntries < 1 {
			return fmt.Errorf("%w: max_entries must be at least 1", ErrInvalidMessage)
		}
		if in.ScreenshotDelaySeconds != nil {
			if _, ok := model.DelayFromSeconds(*in.ScreenshotDelaySeconds); !ok {
				return fmt.Errorf("%w: screenshot_delay_seconds must be between 0 and %d", ErrInvalidMessage, model.MaxDelaySeconds)
			}
		}
	case "":
		return fmt.Errorf("%w: missing type", ErrInvalidMessage)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, in.Type)
	}
	if in.TS != "" {
		if _, err := time.Parse(time.RFC3339Nano, in.TS); err != nil {
			return fmt.Errorf("%w: invalid ts; must be RFC3339", ErrInvalidMessage)
		}
	}
	return nil
}

// ToMessage validates in and converts it. now stamps messages without ts.
func (in Inbound) ToMessage(now time.Time) (model.Message, error) {
	if err := in.Validate(); err != nil {
		return model.Message{}, err
	}
	at := now
	if in.TS != "" {
		at, _ = time.Parse(time.RFC3339Nano, in.TS)
	}

	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case TypeDamage:
		kind, ok := model.ParseKind(in.Kind)
		if !ok {
			kind = model.EventKind(strings.TrimSpace(in.Kind))
		}
		ev := model.DamageEvent{
			ID:               in.EventID,
			Timestamp:        at,
			Kind:             kind,
			TargetID:         in.TargetID,
			SourceID:         in.SourceID,
			SourceName:       in.SourceName,
			SpellOrCauseName: in.Spell,
			Amount:           in.Amount,
			Overkill:         in.Overkill,
		}
		return model.Message{Kind: model.DamageEventReceived, Damage: &ev, At: at}, nil
	case TypeDeath:
		return model.Message{Kind: model.DeathOccurred, At: at}, nil
	default:
		change := model.ConfigChange{MaxEntries: in.MaxEntries, ScreenshotOn: in.ScreenshotOn}
		if in.ScreenshotDelaySeconds != nil {
			d, _ := model.DelayFromSeconds(*in.ScreenshotDelaySeconds)
			change.ScreenshotDelay = &d
		}
		return model.Message{Kind: model.ConfigChanged, Config: &change, At: at}, nil
	}
}

// Ack is the response to an accepted inbound message.
type Ack struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// CommandRequest carries one line typed by the user.
type CommandRequest struct {
	Text string `json:"text"`
}

// CommandResponse carries the lines to show the user.
type CommandResponse struct {
	Lines []string `json:"lines"`
}
