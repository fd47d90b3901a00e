package recorder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/deathlog/internal/adapters/repository"
	"github.com/okian/deathlog/internal/domain/model"
	"github.com/okian/deathlog/internal/domain/recorder"
	"github.com/okian/deathlog/internal/domain/snapshot"
	"github.com/okian/deathlog/internal/domain/window"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixedProviders struct {
	identity    model.Identity
	identityErr error
	money       int64
	moneyErr    error
	locationErr error
}

func (f *fixedProviders) Identity(context.Context) (model.Identity, error) {
	return f.identity, f.identityErr
}

func (f *fixedProviders) Location(context.Context) (model.Location, error) {
	if f.locationErr != nil {
		return model.Location{}, f.locationErr
	}
	return model.Location{Zone: "Westfall", Subzone: "Moonbrook"}, nil
}

func (f *fixedProviders) Currency(context.Context) (int64, error) {
	return f.money, f.moneyErr
}

type captureEmitter struct {
	got []model.Notification
	err error
}

func (c *captureEmitter) Emit(_ context.Context, n model.Notification) error {
	c.got = append(c.got, n)
	return c.err
}

func damage(at time.Time, source string, overkill int64) model.DamageEvent {
	return model.DamageEvent{
		Timestamp:        at,
		Kind:             model.KindSpell,
		TargetID:         "me",
		SourceName:       source,
		SpellOrCauseName: source + " Bolt",
		Amount:           model.Int64(250),
		Overkill:         model.Int64(overkill),
	}
}

func TestOnDeath(t *testing.T) {
	Convey("Given a recorder over a window and a history", t, func() {
		ctx := context.Background()
		clock := func() time.Time { return now }
		w := window.New(window.WithClock(clock), window.WithSubject("me"))
		h := repository.NewHistory(repository.WithCapacity(3))
		p := &fixedProviders{identity: model.Identity{Name: "Thrall", Realm: "Durotar", Level: 60}, money: 123456}
		emitter := &captureEmitter{}
		id := uuid.MustParse("6f1c1c1e-4a39-4e0c-9a3b-8f1e0d8a1c11")

		r := recorder.New(w, h,
			recorder.WithClock(clock),
			recorder.WithIDGenerator(func() uuid.UUID { return id }),
			recorder.WithProviders(snapshot.Providers{Identity: p, Location: p, Currency: p}),
			recorder.WithEmitter(emitter),
			recorder.WithSettings(func() model.Settings {
				return model.Settings{ScreenshotOn: true, ScreenshotDelay: time.Second}
			}),
		)

		Convey("When a death follows lethal damage", func() {
			w.Ingest(damage(now.Add(-3*time.Second), "Edwin", 0))
			w.Ingest(damage(now.Add(-2*time.Second), "Vancleef", 40))
			w.Ingest(damage(now.Add(-time.Second), "Cookie", 0))
			rec := r.OnDeath(ctx)

			Convey("Then the record is attributed and enriched", func() {
				So(rec.ID, ShouldResemble, id)
				So(rec.RecordedAt, ShouldEqual, now)
				So(rec.Killer.SourceName, ShouldEqual, "Vancleef")
				So(rec.Killer.Detail, ShouldEqual, "Vancleef Bolt")
				So(rec.Identity.Key(), ShouldEqual, "Thrall@Durotar")
				So(rec.Zone(), ShouldEqual, "Westfall - Moonbrook")
				So(rec.Currency.Gold, ShouldEqual, 12)
				So(rec.Currency.Silver, ShouldEqual, 34)
				So(rec.Currency.Copper, ShouldEqual, 56)
				So(rec.Inventory, ShouldBeNil)
				So(rec.Instance, ShouldBeNil)
			})

			Convey("Then it is appended and the window is cleared", func() {
				So(h.Count(ctx), ShouldEqual, 1)
				last, err := h.Last(ctx)
				So(err, ShouldBeNil)
				So(last.ID, ShouldResemble, id)
				So(w.Len(), ShouldEqual, 0)
			})

			Convey("Then a notification with the screenshot time is emitted", func() {
				So(emitter.got, ShouldHaveLength, 1)
				So(emitter.got[0].Record.ID, ShouldResemble, id)
				So(*emitter.got[0].ScreenshotAt, ShouldEqual, now.Add(time.Second))
			})

			Convey("Then new events start a fresh window", func() {
				w.Ingest(damage(now, "Defias", 0))
				So(w.Snapshot(), ShouldHaveLength, 1)
				So(w.Snapshot()[0].SourceName, ShouldEqual, "Defias")
			})
		})

		Convey("When a death is reported with an earlier host time", func() {
			at := now.Add(-5 * time.Second)
			rec := r.OnDeathAt(ctx, at)

			Convey("Then the record and screenshot use that time", func() {
				So(rec.RecordedAt, ShouldEqual, at)
				So(emitter.got, ShouldHaveLength, 1)
				So(*emitter.got[0].ScreenshotAt, ShouldEqual, at.Add(time.Second))
			})
		})

		Convey("When a death happens with an empty window", func() {
			rec := r.OnDeath(ctx)

			Convey("Then the fallback attribution is recorded", func() {
				So(rec.Killer.SourceName, ShouldEqual, "Unknown")
				So(rec.Killer.Detail, ShouldEqual, "No recent damage events")
				So(h.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When providers are unavailable or failing", func() {
			p.identityErr = snapshot.ErrUnavailable
			p.moneyErr = errors.New("addon api error")
			p.locationErr = snapshot.ErrUnavailable
			rec := r.OnDeath(ctx)

			Convey("Then the fields are absent and the record is still stored", func() {
				So(rec.Identity, ShouldBeNil)
				So(rec.Currency, ShouldBeNil)
				So(rec.Location, ShouldBeNil)
				So(rec.Zone(), ShouldEqual, "Unknown")
				So(h.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When emission fails", func() {
			emitter.err = errors.New("disk full")
			r.OnDeath(ctx)

			Convey("Then the record is still stored and the window cleared", func() {
				So(h.Count(ctx), ShouldEqual, 1)
				So(w.Len(), ShouldEqual, 0)
			})
		})

		Convey("When deaths exceed the history capacity", func() {
			for i := 0; i < 5; i++ {
				r.OnDeath(ctx)
			}

			Convey("Then only the newest records are kept", func() {
				So(h.Count(ctx), ShouldEqual, 3)
			})
		})
	})

	Convey("Given a recorder with defaults", t, func() {
		ctx := context.Background()
		w := window.New()
		h := repository.NewHistory()
		r := recorder.New(w, h)

		Convey("When two deaths are recorded", func() {
			a := r.OnDeath(ctx)
			b := r.OnDeath(ctx)

			Convey("Then each gets its own ID", func() {
				So(a.ID, ShouldNotResemble, b.ID)
				So(a.ID, ShouldNotResemble, uuid.Nil)
				So(h.Count(ctx), ShouldEqual, 2)
			})
		})
	})
}
