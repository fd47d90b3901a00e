// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// EventKind classifies an inbound damage event.
type EventKind string

// Damage kinds the window accepts.
const (
	KindMeleeSwing    EventKind = "MeleeSwing"
	KindRanged        EventKind = "Ranged"
	KindSpell         EventKind = "Spell"
	KindPeriodicSpell EventKind = "PeriodicSpell"
	KindEnvironmental EventKind = "Environmental"
)

// Labels synthesized for incomplete telemetry.
const (
	MeleeLabel      = "Melee"
	UnknownLabel    = "Unknown"
	environmentName = "Environment"
)

var subeventKinds = map[string]EventKind{
	"SWING_DAMAGE":          KindMeleeSwing,
	"RANGE_DAMAGE":          KindRanged,
	"SPELL_DAMAGE":          KindSpell,
	"SPELL_PERIODIC_DAMAGE": KindPeriodicSpell,
	"ENVIRONMENTAL_DAMAGE":  KindEnvironmental,
}

// ParseKind maps a kind name or a combat-log sub-event name to an EventKind.
// It reports false for anything that is not one of the ingested damage kinds.
func ParseKind(s string) (EventKind, bool) {
	s = strings.TrimSpace(s)
	if k, ok := subeventKinds[strings.ToUpper(s)]; ok {
		return k, true
	}
	k := EventKind(s)
	return k, k.Valid()
}

// Valid reports whether k is one of the ingested damage kinds.
func (k EventKind) Valid() bool {
	switch k {
	case KindMeleeSwing, KindRanged, KindSpell, KindPeriodicSpell, KindEnvironmental:
		return true
	}
	return false
}

// DamageEvent is one observed hit on the tracked subject.
// Amount, Overkill and SourceID are optional: nil means the host did not report them.
type DamageEvent struct {
	ID               string    `json:"id,omitempty"` // host event id, used only for inbound de-duplication
	Timestamp        time.Time `json:"timestamp"`
	Kind             EventKind `json:"kind"`
	TargetID         string    `json:"targetId,omitempty"`
	SourceID         *string   `json:"sourceId,omitempty"`
	SourceName       string    `json:"sourceName"`
	SpellOrCauseName string    `json:"spellOrCauseName"`
	Amount           *int64    `json:"amount,omitempty"`
	Overkill         *int64    `json:"overkill,omitempty"`
}

// Normalize fills the display labels the host leaves implicit: swings are
// labelled "Melee" and environmental damage gets an "Environment: <cause>"
// source name when no source is known.
func (e DamageEvent) Normalize() DamageEvent {
	switch e.Kind {
	case KindMeleeSwing:
		if e.SpellOrCauseName == "" {
			e.SpellOrCauseName = MeleeLabel
		}
	case KindEnvironmental:
		cause := e.SpellOrCauseName
		if cause == "" {
			cause = UnknownLabel
			e.SpellOrCauseName = cause
		}
		if e.SourceName == "" {
			e.SourceName = environmentName + ": " + cause
		}
	}
	return e
}

// HasOverkill reports whether the event carried positive excess damage.
func (e DamageEvent) HasOverkill() bool {
	return e.Overkill != nil && *e.Overkill > 0
}

// Int64 returns a pointer to v; handy for optional numeric fields.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v; handy for optional string fields.
func String(v string) *string { return &v }
