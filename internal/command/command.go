// Package command implements the text commands of the death log UI.
package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/okian/deathlog/internal/adapters/repository"
	"github.com/okian/deathlog/internal/domain/model"
	"github.com/okian/deathlog/internal/domain/money"
)

const (
	defaultListSize = 5
	timeLayout      = "2006-01-02 15:04:05"
)

// Reader is the read side of the history.
type Reader interface {
	All(ctx context.Context) []model.DeathRecord
	Summary(ctx context.Context, now time.Time) repository.Summary
}

// Controller applies the mutating commands.
type Controller interface {
	Settings() model.Settings
	ApplyConfig(ctx context.Context, change model.ConfigChange) error
	ClearHistory(ctx context.Context) error
}

// Handler parses and runs commands.
type Handler struct {
	history Reader
	control Controller
	now     func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock replaces the time source used for relative times.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// New creates a Handler.
func New(history Reader, control Controller, opts ...Option) *Handler {
	h := &Handler{history: history, control: control, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var helpLines = []string{
	"Death log commands:",
	"  count               number of recorded deaths",
	"  last                summary of the most recent death",
	"  show [n]            details of the n-th most recent death (default 1)",
	"  list [n]            the n most recent deaths (default 5)",
	"  clear               delete every recorded death",
	"  max <n>             keep at most n deaths (n >= 1)",
	"  screenshot on|off   take a screenshot after each death",
	"  delay <seconds>     wait before the screenshot (>= 0)",
	"  status              current settings",
}

// Run executes one command line and returns the lines to display.
// Invalid input yields a rejection message and changes nothing.
func (h *Handler) Run(ctx context.Context, line string) []string {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return helpLines
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "help", "?":
		return helpLines
	case "count":
		return []string{h.count(ctx)}
	case "last":
		return []string{h.last(ctx)}
	case "show":
		return h.show(ctx, args)
	case "list":
		return h.list(ctx, args)
	case "clear":
		if err := h.control.ClearHistory(ctx); err != nil {
			return []string{"Could not clear the death history: " + err.Error()}
		}
		return []string{"Death history cleared."}
	case "max":
		return []string{h.max(ctx, args)}
	case "screenshot":
		return []string{h.screenshot(ctx, args)}
	case "delay":
		return []string{h.delay(ctx, args)}
	case "status":
		return h.status(ctx)
	}
	return []string{fmt.Sprintf("Unknown command %q. Type \"help\" for a list of commands.", name)}
}

func (h *Handler) count(ctx context.Context) string {
	s := h.history.Summary(ctx, h.now())
	return fmt.Sprintf("%s recorded (keeping up to %d).", plural(s.Count, "death"), s.Capacity)
}

func (h *Handler) last(ctx context.Context) string {
	s := h.history.Summary(ctx, h.now())
	if s.Last == nil {
		return "No deaths recorded."
	}
	return fmt.Sprintf("Last death %s: %s in %s.", s.Since, killedBy(*s.Last), s.Last.Zone())
}

func (h *Handler) show(ctx context.Context, args []string) []string {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return []string{fmt.Sprintf("Invalid index %q: expected a whole number of at least 1.", args[0])}
		}
		n = v
	}
	all := h.history.All(ctx)
	if len(all) == 0 {
		return []string{"No deaths recorded."}
	}
	if n > len(all) {
		return []string{fmt.Sprintf("Only %s recorded.", plural(len(all), "death"))}
	}
	return h.describe(all[len(all)-n])
}

func (h *Handler) list(ctx context.Context, args []string) []string {
	n := defaultListSize
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return []string{fmt.Sprintf("Invalid count %q: expected a whole number of at least 1.", args[0])}
		}
		n = v
	}
	all := h.history.All(ctx)
	if len(all) == 0 {
		return []string{"No deaths recorded."}
	}
	if n > len(all) {
		n = len(all)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		rec := all[len(all)-1-i]
		out = append(out, fmt.Sprintf("%d. %s  %s  %s", i+1,
			rec.RecordedAt.Local().Format(timeLayout), killedBy(rec), rec.Zone()))
	}
	return out
}

func (h *Handler) max(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: max <n>"
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return fmt.Sprintf("Invalid maximum %q: expected a whole number of at least 1.", args[0])
	}
	if err := h.control.ApplyConfig(ctx, model.ConfigChange{MaxEntries: &n}); err != nil {
		return rejected(err)
	}
	return fmt.Sprintf("Keeping up to %d deaths.", n)
}

func (h *Handler) screenshot(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: screenshot on|off"
	}
	var on bool
	switch args[0] {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return fmt.Sprintf("Invalid value %q: expected on or off.", args[0])
	}
	if err := h.control.ApplyConfig(ctx, model.ConfigChange{ScreenshotOn: &on}); err != nil {
		return rejected(err)
	}
	if on {
		return "Screenshots on death enabled."
	}
	return "Screenshots on death disabled."
}

func (h *Handler) delay(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: delay <seconds>"
	}
	secs, err := strconv.ParseFloat(args[0], 64)
	d, ok := model.DelayFromSeconds(secs)
	if err != nil || !ok {
		return fmt.Sprintf("Invalid delay %q: expected a number of seconds between 0 and %d.", args[0], model.MaxDelaySeconds)
	}
	if err := h.control.ApplyConfig(ctx, model.ConfigChange{ScreenshotDelay: &d}); err != nil {
		return rejected(err)
	}
	return fmt.Sprintf("Screenshot delay set to %s.", d)
}

func (h *Handler) status(ctx context.Context) []string {
	s := h.control.Settings()
	shots := "off"
	if s.ScreenshotOn {
		shots = fmt.Sprintf("on (after %s)", s.ScreenshotDelay)
	}
	return []string{
		fmt.Sprintf("Recorded: %s", h.count(ctx)),
		fmt.Sprintf("Max entries: %d", s.MaxEntries),
		fmt.Sprintf("Screenshots: %s", shots),
	}
}

// describe renders every known section of rec.
func (h *Handler) describe(rec model.DeathRecord) []string {
	out := []string{
		fmt.Sprintf("Died %s (%s)", rec.RecordedAt.Local().Format(timeLayout),
			humanize.RelTime(rec.RecordedAt, h.now(), "ago", "from now")),
		"Killer: " + killedBy(rec),
		"Location: " + rec.Zone(),
	}
	if loc := rec.Location; loc != nil && loc.X != nil && loc.Y != nil {
		out = append(out, fmt.Sprintf("Coordinates: %.2f, %.2f", *loc.X, *loc.Y))
	}
	if id := rec.Identity; id != nil {
		out = append(out, fmt.Sprintf("Character: %s-%s, level %d %s", id.Name, id.Realm, id.Level, id.Class))
	}
	if inst := rec.Instance; inst != nil {
		line := "Instance: " + inst.Name
		if inst.DifficultyName != "" {
			line += " (" + inst.DifficultyName + ")"
		}
		out = append(out, line)
	}
	if cur := rec.Currency; cur != nil {
		out = append(out, "Money: "+money.Format(cur.Total))
	}
	if inv := rec.Inventory; inv != nil {
		items := 0
		for _, bag := range inv.Bags {
			for _, slot := range bag.Slots {
				if slot.ItemID != nil {
					items++
				}
			}
		}
		out = append(out, fmt.Sprintf("Inventory: %s in %s, %s equipped",
			plural(items, "item"), plural(len(inv.Bags), "bag"), plural(len(inv.Equipped), "item")))
	}
	return out
}

func killedBy(rec model.DeathRecord) string {
	k := rec.Killer
	if k.Detail == "" || k.Detail == k.SourceName {
		return k.SourceName
	}
	return fmt.Sprintf("%s (%s)", k.SourceName, k.Detail)
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

func rejected(err error) string {
	return "Rejected: " + err.Error()
}
