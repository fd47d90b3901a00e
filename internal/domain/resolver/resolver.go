// Package resolver picks the most likely fatal hit from a window snapshot.
package resolver

import "github.com/okian/deathlog/internal/domain/model"

// Attribution methods, reported to metrics.
const (
	MethodOverkill = "overkill"
	MethodLatest   = "latest"
	MethodNone     = "none"
)

// Resolve returns the attribution for events given in chronological order.
// The most recent event with positive overkill wins; without one, the most
// recent event is used. An empty input yields model.UnknownKiller.
func Resolve(events []model.DamageEvent) model.KillerAttribution {
	i, _ := pick(events)
	if i < 0 {
		return model.UnknownKiller()
	}
	return attribute(events[i].Normalize())
}

// Method reports which rule Resolve applies to events.
func Method(events []model.DamageEvent) string {
	_, method := pick(events)
	return method
}

// Detail renders the human-readable cause of ev.
func Detail(ev model.DamageEvent) string {
	switch ev.Kind {
	case model.KindEnvironmental:
		cause := ev.SpellOrCauseName
		if cause == "" {
			cause = model.UnknownLabel
		}
		return "Environmental (" + cause + ")"
	case model.KindMeleeSwing:
		return model.MeleeLabel
	}
	if ev.SpellOrCauseName == "" {
		return model.UnknownLabel
	}
	return ev.SpellOrCauseName
}

func pick(events []model.DamageEvent) (int, string) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].HasOverkill() {
			return i, MethodOverkill
		}
	}
	if len(events) == 0 {
		return -1, MethodNone
	}
	return len(events) - 1, MethodLatest
}

func attribute(ev model.DamageEvent) model.KillerAttribution {
	name := ev.SourceName
	if name == "" {
		name = model.UnknownLabel
	}
	ts := ev.Timestamp
	return model.KillerAttribution{
		SourceName:       name,
		Detail:           Detail(ev),
		Kind:             ev.Kind,
		SpellOrCauseName: ev.SpellOrCauseName,
		Amount:           ev.Amount,
		Overkill:         ev.Overkill,
		Timestamp:        &ts,
	}
}
