package window_test

import (
	"testing"
	"time"

	"github.com/okian/deathlog/internal/domain/model"
	"github.com/okian/deathlog/internal/domain/window"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func hit(at time.Time, kind model.EventKind, spell string) model.DamageEvent {
	return model.DamageEvent{
		Timestamp:        at,
		Kind:             kind,
		TargetID:         "player-1",
		SourceName:       "Defias Bandit",
		SpellOrCauseName: spell,
		Amount:           model.Int64(10),
	}
}

func TestEventWindowIngest(t *testing.T) {
	Convey("Given a window on a fake clock", t, func() {
		clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
		w := window.New(window.WithClock(clock.Now), window.WithSubject("player-1"))

		So(w.Span(), ShouldEqual, window.DefaultWindow)

		Convey("When events within the span are ingested", func() {
			w.Ingest(hit(clock.Now(), model.KindSpell, "Fireball"))
			clock.Advance(2 * time.Second)
			w.Ingest(hit(clock.Now(), model.KindMeleeSwing, ""))

			Convey("Then they are kept in insertion order", func() {
				events := w.Snapshot()
				So(events, ShouldHaveLength, 2)
				So(events[0].SpellOrCauseName, ShouldEqual, "Fireball")
				So(events[1].SpellOrCauseName, ShouldEqual, "Melee")
			})
		})

		Convey("When time passes beyond the span", func() {
			w.Ingest(hit(clock.Now(), model.KindSpell, "Old"))
			clock.Advance(7 * time.Second)
			w.Ingest(hit(clock.Now(), model.KindSpell, "New"))

			Convey("Then stale events are pruned on ingest", func() {
				events := w.Snapshot()
				So(events, ShouldHaveLength, 1)
				So(events[0].SpellOrCauseName, ShouldEqual, "New")
			})
		})

		Convey("When an event is exactly at the edge of the span", func() {
			w.Ingest(hit(clock.Now(), model.KindSpell, "Edge"))
			clock.Advance(window.DefaultWindow)
			w.Prune(clock.Now())

			Convey("Then it is retained", func() {
				So(w.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the event kind is unknown", func() {
			ev := hit(clock.Now(), model.EventKind("Heal"), "Flash Heal")
			w.Ingest(ev)

			Convey("Then it is dropped", func() {
				So(w.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the event targets someone else", func() {
			ev := hit(clock.Now(), model.KindSpell, "Frostbolt")
			ev.TargetID = "player-2"
			w.Ingest(ev)

			Convey("Then it is dropped", func() {
				So(w.Len(), ShouldEqual, 0)
			})
		})

		Convey("When an event is missing amount and source", func() {
			w.Ingest(model.DamageEvent{Timestamp: clock.Now(), Kind: model.KindEnvironmental, TargetID: "player-1", SpellOrCauseName: "Lava"})

			Convey("Then it is stored with synthesized labels", func() {
				events := w.Snapshot()
				So(events, ShouldHaveLength, 1)
				So(events[0].Amount, ShouldBeNil)
				So(events[0].SourceName, ShouldEqual, "Environment: Lava")
			})
		})

		Convey("When the window is cleared", func() {
			w.Ingest(hit(clock.Now(), model.KindSpell, "Shadow Bolt"))
			w.Clear()
			w.Ingest(hit(clock.Now(), model.KindRanged, "Shoot"))

			Convey("Then only events after the clear remain", func() {
				events := w.Snapshot()
				So(events, ShouldHaveLength, 1)
				So(events[0].SpellOrCauseName, ShouldEqual, "Shoot")
			})
		})

		Convey("When a snapshot is modified by the caller", func() {
			w.Ingest(hit(clock.Now(), model.KindSpell, "Fireball"))
			snap := w.Snapshot()
			snap[0].SpellOrCauseName = "changed"

			Convey("Then the window is unaffected", func() {
				So(w.Snapshot()[0].SpellOrCauseName, ShouldEqual, "Fireball")
			})
		})
	})
}

func TestEventWindowBound(t *testing.T) {
	Convey("Given a window with a short span", t, func() {
		start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		clock := &fakeClock{t: start}
		span := 3 * time.Second
		w := window.New(window.WithClock(clock.Now), window.WithWindow(span))

		Convey("When a long irregular stream is ingested", func() {
			steps := []time.Duration{0, 500 * time.Millisecond, time.Second, 4 * time.Second, 100 * time.Millisecond, 2 * time.Second, 3 * time.Second}
			for i := 0; i < 30; i++ {
				clock.Advance(steps[i%len(steps)])
				w.Ingest(hit(clock.Now(), model.KindPeriodicSpell, "Corruption"))

				for _, ev := range w.Snapshot() {
					So(clock.Now().Sub(ev.Timestamp), ShouldBeLessThanOrEqualTo, span)
				}
			}

			Convey("Then every retained event is within the span after an explicit prune", func() {
				later := clock.Now().Add(2 * time.Second)
				w.Prune(later)
				for _, ev := range w.Snapshot() {
					So(later.Sub(ev.Timestamp), ShouldBeLessThanOrEqualTo, span)
				}
			})
		})

		Convey("When a late timestamp arrives after a fresh one", func() {
			w.Ingest(hit(clock.Now(), model.KindSpell, "Fresh"))
			w.Ingest(hit(clock.Now().Add(-10*time.Second), model.KindSpell, "Late"))

			Convey("Then the stale event is not retained", func() {
				events := w.Snapshot()
				So(events, ShouldHaveLength, 1)
				So(events[0].SpellOrCauseName, ShouldEqual, "Fresh")
			})
		})

		Convey("When no subject is configured", func() {
			ev := hit(clock.Now(), model.KindSpell, "Any")
			ev.TargetID = "someone"
			w.Ingest(ev)

			Convey("Then every target is accepted", func() {
				So(w.Len(), ShouldEqual, 1)
			})
		})
	})
}
