package types_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/deathlog/internal/domain/model"
	types "github.com/okian/deathlog/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func decode(raw string) types.Inbound {
	var in types.Inbound
	So(json.Unmarshal([]byte(raw), &in), ShouldBeNil)
	return in
}

func TestInboundDamage(t *testing.T) {
	Convey("Given a damage message", t, func() {
		Convey("When it is a combat-log sub-event with a timestamp", func() {
			in := decode(`{"type":"damage","event_id":"e-1","ts":"2024-05-01T11:59:58.5Z","kind":"SPELL_DAMAGE",
				"target_id":"Player-1","source_id":"Creature-9","source_name":"Onyxia","spell":"Flame Breath","amount":900,"overkill":120}`)
			msg, err := in.ToMessage(now)

			Convey("Then it converts to a damage event", func() {
				So(err, ShouldBeNil)
				So(msg.Kind, ShouldEqual, model.DamageEventReceived)
				So(msg.Damage.ID, ShouldEqual, "e-1")
				So(msg.Damage.Kind, ShouldEqual, model.KindSpell)
				So(msg.Damage.Timestamp, ShouldEqual, time.Date(2024, 5, 1, 11, 59, 58, 500_000_000, time.UTC))
				So(*msg.Damage.SourceID, ShouldEqual, "Creature-9")
				So(msg.Damage.SpellOrCauseName, ShouldEqual, "Flame Breath")
				So(*msg.Damage.Amount, ShouldEqual, 900)
				So(*msg.Damage.Overkill, ShouldEqual, 120)
			})
		})

		Convey("When it has no timestamp or optional fields", func() {
			msg, err := decode(`{"type":"damage","kind":"Environmental","target_id":"Player-1","spell":"Lava"}`).ToMessage(now)

			Convey("Then it is stamped with now and keeps the gaps", func() {
				So(err, ShouldBeNil)
				So(msg.Damage.Timestamp, ShouldEqual, now)
				So(msg.Damage.Amount, ShouldBeNil)
				So(msg.Damage.Overkill, ShouldBeNil)
				So(msg.Damage.SourceID, ShouldBeNil)
			})
		})

		Convey("When the kind is not a damage kind", func() {
			msg, err := decode(`{"type":"damage","kind":"SPELL_HEAL","target_id":"Player-1"}`).ToMessage(now)

			Convey("Then it is passed through for the window to drop", func() {
				So(err, ShouldBeNil)
				So(msg.Damage.Kind.Valid(), ShouldBeFalse)
			})
		})

		Convey("When the kind is missing", func() {
			_, err := decode(`{"type":"damage","target_id":"Player-1"}`).ToMessage(now)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, types.ErrInvalidMessage), ShouldBeTrue)
			})
		})

		Convey("When the timestamp is malformed", func() {
			_, err := decode(`{"type":"damage","kind":"Spell","ts":"yesterday"}`).ToMessage(now)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, types.ErrInvalidMessage), ShouldBeTrue)
			})
		})
	})
}

func TestInboundDeathAndConfig(t *testing.T) {
	Convey("Given death and config messages", t, func() {
		Convey("When a death is reported", func() {
			msg, err := decode(`{"type":"DEATH"}`).ToMessage(now)

			Convey("Then it converts to a death notification", func() {
				So(err, ShouldBeNil)
				So(msg.Kind, ShouldEqual, model.DeathOccurred)
				So(msg.At, ShouldEqual, now)
			})
		})

		Convey("When a config change is sent", func() {
			msg, err := decode(`{"type":"config","max_entries":50,"screenshot_on":false,"screenshot_delay_seconds":2.5}`).ToMessage(now)

			Convey("Then every field is carried", func() {
				So(err, ShouldBeNil)
				So(msg.Kind, ShouldEqual, model.ConfigChanged)
				So(*msg.Config.MaxEntries, ShouldEqual, 50)
				So(*msg.Config.ScreenshotOn, ShouldBeFalse)
				So(*msg.Config.ScreenshotDelay, ShouldEqual, 2500*time.Millisecond)
			})
		})

		Convey("When a config change is out of range or empty", func() {
			Convey("Then it is rejected", func() {
				for _, raw := range []string{
					`{"type":"config"}`,
					`{"type":"config","max_entries":0}`,
					`{"type":"config","screenshot_delay_seconds":-1}`,
					`{"type":"config","screenshot_delay_seconds":1e11}`,
				} {
					_, err := decode(raw).ToMessage(now)
					So(errors.Is(err, types.ErrInvalidMessage), ShouldBeTrue)
				}
			})
		})

		Convey("When the type is missing or unknown", func() {
			Convey("Then it is rejected", func() {
				So(errors.Is(decode(`{}`).Validate(), types.ErrInvalidMessage), ShouldBeTrue)
				So(errors.Is(decode(`{"type":"heal"}`).Validate(), types.ErrInvalidMessage), ShouldBeTrue)
			})
		})
	})
}
