// Package recorder turns a death notification into a stored record.
package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/okian/deathlog/internal/domain/model"
	"github.com/okian/deathlog/internal/domain/money"
	"github.com/okian/deathlog/internal/domain/resolver"
	"github.com/okian/deathlog/internal/domain/snapshot"
	"github.com/okian/deathlog/pkg/logger"
	"github.com/okian/deathlog/pkg/metrics"
)

// Window is the part of the event window the recorder needs.
type Window interface {
	Snapshot() []model.DamageEvent
	Clear()
}

// Appender is the part of the history the recorder needs.
type Appender interface {
	Append(ctx context.Context, rec model.DeathRecord) int
}

// Emitter receives a notification after each record is stored.
type Emitter interface {
	Emit(ctx context.Context, n model.Notification) error
}

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithProviders sets the snapshot sources consulted on death.
func WithProviders(p snapshot.Providers) Option {
	return func(r *Recorder) {
		r.providers = p
	}
}

// WithClock replaces the time source used for RecordedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator replaces the record ID source.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(r *Recorder) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithEmitter sets where notifications are sent.
func WithEmitter(e Emitter) Option {
	return func(r *Recorder) {
		r.emitter = e
	}
}

// WithSettings sets the source of the screenshot settings.
func WithSettings(settings func() model.Settings) Option {
	return func(r *Recorder) {
		if settings != nil {
			r.settings = settings
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// Recorder orchestrates one death: resolve, snapshot, store, clear, emit.
// It is not safe for concurrent OnDeath calls; the caller serializes them.
type Recorder struct {
	window    Window
	store     Appender
	providers snapshot.Providers
	emitter   Emitter
	settings  func() model.Settings
	now       func() time.Time
	newID     func() uuid.UUID
	logger    logger.Logger
}

// New creates a Recorder over the given window and store.
func New(w Window, store Appender, opts ...Option) *Recorder {
	r := &Recorder{
		window:   w,
		store:    store,
		settings: func() model.Settings { return model.Settings{} },
		now:      time.Now,
		newID:    uuid.New,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnDeath records a death at the current time. See OnDeathAt.
func (r *Recorder) OnDeath(ctx context.Context) model.DeathRecord {
	return r.OnDeathAt(ctx, r.now())
}

// OnDeathAt records a death that happened at the given time and returns
// the stored record. It never fails: missing snapshots leave fields empty
// and emission errors are only logged.
func (r *Recorder) OnDeathAt(ctx context.Context, at time.Time) model.DeathRecord {
	events := r.window.Snapshot()
	method := resolver.Method(events)

	rec := model.DeathRecord{
		ID:     r.newID(),
		Killer: resolver.Resolve(events),
	}
	r.gather(ctx, &rec)
	rec.RecordedAt = at

	evicted := r.store.Append(ctx, rec)
	r.window.Clear()

	metrics.RecordDeath()
	metrics.RecordAttribution(method)
	r.logger.Info(ctx, "death recorded",
		logger.String("id", rec.ID.String()),
		logger.String("killer", rec.Killer.SourceName),
		logger.String("detail", rec.Killer.Detail),
		logger.String("method", method),
		logger.Int("events", len(events)),
		logger.Int("evicted", evicted),
	)

	r.emit(ctx, rec)
	return rec
}

func (r *Recorder) gather(ctx context.Context, rec *model.DeathRecord) {
	p := r.providers
	if p.Identity != nil {
		if v, err := p.Identity.Identity(ctx); r.ok(ctx, "identity", err) {
			rec.Identity = &v
		}
	}
	if p.Location != nil {
		if v, err := p.Location.Location(ctx); r.ok(ctx, "location", err) {
			rec.Location = &v
		}
	}
	if p.Inventory != nil {
		if v, err := p.Inventory.Inventory(ctx); r.ok(ctx, "inventory", err) {
			rec.Inventory = &v
		}
	}
	if p.Currency != nil {
		if total, err := p.Currency.Currency(ctx); r.ok(ctx, "currency", err) {
			cur := money.Breakdown(total)
			rec.Currency = &cur
		}
	}
	if p.Instance != nil {
		if v, err := p.Instance.Instance(ctx); r.ok(ctx, "instance", err) {
			rec.Instance = &v
		}
	}
}

func (r *Recorder) ok(ctx context.Context, provider string, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, snapshot.ErrUnavailable):
		r.logger.Debug(ctx, "snapshot unavailable", logger.String("provider", provider))
	default:
		r.logger.Warn(ctx, "snapshot failed", logger.String("provider", provider), logger.Error(err))
	}
	return false
}

func (r *Recorder) emit(ctx context.Context, rec model.DeathRecord) {
	if r.emitter == nil {
		return
	}
	n := model.Notification{Record: rec}
	if s := r.settings(); s.ScreenshotOn {
		at := rec.RecordedAt.Add(s.ScreenshotDelay)
		n.ScreenshotAt = &at
	}
	if err := r.emitter.Emit(ctx, n); err != nil {
		metrics.RecordSinkError("recorder")
		r.logger.Error(ctx, "failed to emit death record",
			logger.String("id", rec.ID.String()),
			logger.Error(err),
		)
	}
}
