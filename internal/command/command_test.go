package command_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/deathlog/internal/adapters/repository"
	"github.com/okian/deathlog/internal/command"
	"github.com/okian/deathlog/internal/domain/model"
)

type fakeControl struct {
	history  *repository.History
	settings model.Settings
	applied  []model.ConfigChange
	fail     error
}

func (f *fakeControl) Settings() model.Settings { return f.settings }

func (f *fakeControl) ApplyConfig(ctx context.Context, c model.ConfigChange) error {
	if f.fail != nil {
		return f.fail
	}
	f.applied = append(f.applied, c)
	f.settings = f.settings.Apply(c)
	if c.MaxEntries != nil {
		return f.history.SetCapacity(ctx, *c.MaxEntries)
	}
	return nil
}

func (f *fakeControl) ClearHistory(ctx context.Context) error {
	f.history.Clear(ctx)
	return nil
}

func record(at time.Time, killer, detail, zone string) model.DeathRecord {
	return model.DeathRecord{
		ID:         uuid.New(),
		RecordedAt: at,
		Location:   &model.Location{Zone: zone},
		Killer:     model.KillerAttribution{SourceName: killer, Detail: detail},
	}
}

func TestHandler(t *testing.T) {
	Convey("Given a handler over a small history", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		h := repository.NewHistory(repository.WithCapacity(10))
		ctl := &fakeControl{
			history:  h,
			settings: model.Settings{MaxEntries: 10, ScreenshotOn: true, ScreenshotDelay: time.Second},
		}
		cmd := command.New(h, ctl, command.WithClock(func() time.Time { return now }))

		Convey("When the history is empty", func() {
			So(cmd.Run(ctx, "count"), ShouldResemble, []string{"0 deaths recorded (keeping up to 10)."})
			So(cmd.Run(ctx, "last"), ShouldResemble, []string{"No deaths recorded."})
			So(cmd.Run(ctx, "list"), ShouldResemble, []string{"No deaths recorded."})
			So(cmd.Run(ctx, "show"), ShouldResemble, []string{"No deaths recorded."})
		})

		Convey("When deaths were recorded", func() {
			h.Append(ctx, record(now.Add(-2*time.Hour), "Hogger", "Melee", "Elwynn Forest"))
			h.Append(ctx, record(now.Add(-3*time.Minute), "Ragnaros", "Wrath of Ragnaros", "Molten Core"))

			Convey("Then count and last describe them", func() {
				So(cmd.Run(ctx, "COUNT"), ShouldResemble, []string{"2 deaths recorded (keeping up to 10)."})
				So(cmd.Run(ctx, "last"), ShouldResemble,
					[]string{"Last death 3 minutes ago: Ragnaros (Wrath of Ragnaros) in Molten Core."})
			})

			Convey("Then list shows newest first and caps n", func() {
				out := cmd.Run(ctx, "list 5")
				So(out, ShouldHaveLength, 2)
				So(out[0], ShouldStartWith, "1. ")
				So(out[0], ShouldContainSubstring, "Ragnaros")
				So(out[1], ShouldContainSubstring, "Hogger (Melee)")

				So(cmd.Run(ctx, "list 1"), ShouldHaveLength, 1)
			})

			Convey("Then show renders the selected record", func() {
				out := cmd.Run(ctx, "show 2")
				So(out, ShouldContain, "Killer: Hogger (Melee)")
				So(out, ShouldContain, "Location: Elwynn Forest")
				So(out[0], ShouldEndWith, "(2 hours ago)")

				So(cmd.Run(ctx, "show 3"), ShouldResemble, []string{"Only 2 deaths recorded."})
			})

			Convey("Then clear empties the history", func() {
				So(cmd.Run(ctx, "clear"), ShouldResemble, []string{"Death history cleared."})
				So(h.Count(ctx), ShouldEqual, 0)
			})

			Convey("Then max shrinks the history", func() {
				So(cmd.Run(ctx, "max 1"), ShouldResemble, []string{"Keeping up to 1 deaths."})
				So(h.Capacity(ctx), ShouldEqual, 1)
				So(ctl.settings.MaxEntries, ShouldEqual, 1)
			})
		})

		Convey("When settings are changed", func() {
			So(cmd.Run(ctx, "screenshot off"), ShouldResemble, []string{"Screenshots on death disabled."})
			So(ctl.settings.ScreenshotOn, ShouldBeFalse)

			So(cmd.Run(ctx, "delay 2.5"), ShouldResemble, []string{"Screenshot delay set to 2.5s."})
			So(ctl.settings.ScreenshotDelay, ShouldEqual, 2500*time.Millisecond)

			So(cmd.Run(ctx, "status"), ShouldResemble, []string{
				"Recorded: 0 deaths recorded (keeping up to 10).",
				"Max entries: 10",
				"Screenshots: off",
			})
		})

		Convey("When input is invalid", func() {
			for _, line := range []string{"max 0", "max -3", "max ten", "max", "delay -1", "delay nan", "delay inf", "delay 1e11", "screenshot maybe", "list 0", "show x"} {
				out := cmd.Run(ctx, line)
				So(out, ShouldHaveLength, 1)
				So(out[0], ShouldNotStartWith, "Keeping")
			}

			Convey("Then nothing was applied", func() {
				So(ctl.applied, ShouldBeEmpty)
				So(h.Capacity(ctx), ShouldEqual, 10)
			})
		})

		Convey("When the controller rejects a change", func() {
			ctl.fail = errors.New("storage offline")
			So(cmd.Run(ctx, "max 3"), ShouldResemble, []string{"Rejected: storage offline"})
		})

		Convey("When the command is unknown or empty", func() {
			So(cmd.Run(ctx, "dance")[0], ShouldStartWith, `Unknown command "dance"`)
			So(cmd.Run(ctx, "")[0], ShouldEqual, "Death log commands:")
			So(cmd.Run(ctx, "help"), ShouldResemble, cmd.Run(ctx, "  "))
		})
	})
}
