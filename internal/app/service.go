// Package service wires the death recorder core to its inbound queue,
// history store and persistence, and implements the dependencies required
// by the HTTP API and the feed tailer.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	eventqueue "github.com/okian/deathlog/internal/adapters/mq/queue"
	"github.com/okian/deathlog/internal/adapters/mq/worker"
	"github.com/okian/deathlog/internal/adapters/repository"
	"github.com/okian/deathlog/internal/command"
	"github.com/okian/deathlog/internal/domain/dedupe"
	"github.com/okian/deathlog/internal/domain/model"
	"github.com/okian/deathlog/internal/domain/recorder"
	"github.com/okian/deathlog/internal/domain/snapshot"
	"github.com/okian/deathlog/internal/domain/types"
	"github.com/okian/deathlog/pkg/logger"
	"github.com/okian/deathlog/pkg/metrics"
)

const (
	defaultQueueSize  = 4096
	defaultDedupeSize = 10000
)

// DefaultSettings are used until a configuration or restored state says otherwise.
var DefaultSettings = model.Settings{
	MaxEntries:      repository.DefaultCapacity,
	ScreenshotOn:    true,
	ScreenshotDelay: time.Second,
}

// Window is the rolling damage window the service feeds.
type Window interface {
	Ingest(ev model.DamageEvent)
	Snapshot() []model.DamageEvent
	Clear()
	Len() int
}

// StateStore persists the history and settings between runs.
type StateStore interface {
	LoadState(ctx context.Context) (model.State, bool, error)
	SaveState(ctx context.Context, state model.State) error
}

// Service processes host messages one at a time and answers queries.
type Service struct {
	// mu serializes Dispatch, ApplyConfig and ClearHistory.
	mu sync.Mutex

	// lifeMu guards the started flag and the queue/worker pair.
	lifeMu  sync.RWMutex
	started bool
	queue   *eventqueue.InMemoryQueue
	worker  *worker.Worker
	cancel  context.CancelFunc

	settingsMu sync.RWMutex
	settings   model.Settings

	window   Window
	history  repository.Store
	recorder *recorder.Recorder
	commands *command.Handler
	state    StateStore
	deduper  dedupe.Deduper

	providers  snapshot.Providers
	emitter    recorder.Emitter
	queueSize  int
	dedupeSize int
	now        func() time.Time

	damage     atomic.Int64
	deaths     atomic.Int64
	configs    atomic.Int64
	duplicates atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSettings sets the initial settings. A restored state replaces them.
func WithSettings(settings model.Settings) Option {
	return func(s *Service) { s.settings = settings }
}

// WithStateStore enables persistence after every mutating message.
func WithStateStore(store StateStore) Option {
	return func(s *Service) { s.state = store }
}

// WithProviders sets the snapshot providers consulted on death.
func WithProviders(p snapshot.Providers) Option {
	return func(s *Service) { s.providers = p }
}

// WithEmitter sets where finished records are announced.
func WithEmitter(e recorder.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithQueueSize sets the maximum size of the message queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many inbound event IDs are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over the given window and history.
func New(w Window, history repository.Store, opts ...Option) *Service {
	s := &Service{
		window:     w,
		history:    history,
		settings:   DefaultSettings,
		queueSize:  defaultQueueSize,
		dedupeSize: defaultDedupeSize,
		now:        time.Now,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	recOpts := []recorder.Option{
		recorder.WithProviders(s.providers),
		recorder.WithClock(s.now),
		recorder.WithSettings(s.Settings),
		recorder.WithLogger(s.logger.Named("recorder")),
	}
	if s.emitter != nil {
		recOpts = append(recOpts, recorder.WithEmitter(s.emitter))
	}
	s.recorder = recorder.New(w, history, recOpts...)
	s.commands = command.New(history, s, command.WithClock(s.now))
	return s
}

// Start restores persisted state and starts the dispatcher.
func (s *Service) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.started {
		return nil
	}

	if err := s.restore(ctx); err != nil {
		return err
	}

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.worker = worker.New(s.queue, worker.HandlerFunc(s.Dispatch), worker.WithLogger(s.logger))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.worker.Run(runCtx)

	s.started = true
	settings := s.Settings()
	s.logger.Info(ctx, "death recorder started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("maxEntries", settings.MaxEntries),
		logger.Int("records", s.history.Count(ctx)),
	)
	return nil
}

// Stop stops accepting messages, dispatches what is already queued and
// waits for the dispatcher until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	_ = s.queue.Close()
	err := s.worker.Shutdown(ctx)
	s.cancel()

	s.logger.Info(ctx, "death recorder stopped")
	return err
}

func (s *Service) restore(ctx context.Context) error {
	if s.state != nil {
		state, found, err := s.state.LoadState(ctx)
		if err != nil {
			return fmt.Errorf("restore state: %w", err)
		}
		if found {
			if err := validate(state.Settings); err != nil {
				s.logger.Warn(ctx, "ignoring persisted settings", logger.Error(err))
			} else {
				s.setSettings(state.Settings)
			}
			s.history.Load(ctx, state.Records)
			s.logger.Info(ctx, "restored death history", logger.Int("records", len(state.Records)))
		}
	}
	return s.history.SetCapacity(ctx, s.Settings().MaxEntries)
}

// Submit validates and converts an inbound message and queues it. Messages
// that carry an event ID already seen are reported as duplicates and dropped.
func (s *Service) Submit(ctx context.Context, in types.Inbound) (duplicate bool, err error) {
	msg, err := in.ToMessage(s.now())
	if err != nil {
		return false, err
	}

	if in.EventID != "" && s.deduper.SeenAndRecord(ctx, in.EventID) {
		s.duplicates.Add(1)
		metrics.RecordEventDuplicate()
		s.logger.Debug(ctx, "duplicate event detected, skipping", logger.String("eventID", in.EventID))
		return true, nil
	}

	if err := s.Enqueue(ctx, msg); err != nil {
		if in.EventID != "" {
			s.deduper.Unrecord(ctx, in.EventID)
		}
		return false, err
	}
	return false, nil
}

// Enqueue queues msg for the dispatcher.
func (s *Service) Enqueue(ctx context.Context, msg model.Message) error {
	s.lifeMu.RLock()
	defer s.lifeMu.RUnlock()

	if !s.started {
		return ErrStopped
	}
	err := s.queue.Enqueue(ctx, msg)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, eventqueue.ErrFull):
		return fmt.Errorf("%w: %w", ErrBackpressure, err)
	case errors.Is(err, eventqueue.ErrClosed):
		return fmt.Errorf("%w: %w", ErrStopped, err)
	}
	return err
}

// Dispatch handles one message. Calls are serialized.
func (s *Service) Dispatch(ctx context.Context, msg model.Message) error { //nolint:gocritic // hugeParam: Message is passed by value
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Kind {
	case model.DamageEventReceived:
		if msg.Damage == nil {
			return fmt.Errorf("%w: damage message without event", ErrUnknownMessage)
		}
		s.damage.Add(1)
		s.window.Ingest(*msg.Damage)
		return nil
	case model.DeathOccurred:
		s.deaths.Add(1)
		at := msg.At
		if at.IsZero() {
			at = s.now()
		}
		rec := s.recorder.OnDeathAt(ctx, at)
		s.logger.Debug(ctx, "death dispatched",
			logger.String("id", rec.ID.String()),
			logger.Duration("hostDelay", s.now().Sub(at)),
		)
		s.persistLocked(ctx)
		return nil
	case model.ConfigChanged:
		if msg.Config == nil {
			return fmt.Errorf("%w: config message without change", ErrUnknownMessage)
		}
		s.configs.Add(1)
		return s.applyConfigLocked(ctx, *msg.Config)
	}
	return fmt.Errorf("%w: kind %d", ErrUnknownMessage, msg.Kind)
}

// ApplyConfig validates and applies change. Invalid changes are rejected
// with ErrInvalidConfig and leave the settings untouched.
func (s *Service) ApplyConfig(ctx context.Context, change model.ConfigChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyConfigLocked(ctx, change)
}

func (s *Service) applyConfigLocked(ctx context.Context, change model.ConfigChange) error {
	if change.Empty() {
		return nil
	}
	next := s.Settings().Apply(change)
	if err := validate(next); err != nil {
		s.logger.Warn(ctx, "rejected configuration change", logger.Error(err))
		return err
	}
	if err := s.history.SetCapacity(ctx, next.MaxEntries); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s.setSettings(next)
	s.logger.Info(ctx, "configuration updated",
		logger.Int("maxEntries", next.MaxEntries),
		logger.Bool("screenshotOn", next.ScreenshotOn),
		logger.Duration("screenshotDelay", next.ScreenshotDelay),
	)
	s.persistLocked(ctx)
	return nil
}

func validate(settings model.Settings) error {
	if settings.MaxEntries < 1 {
		return fmt.Errorf("%w: max entries must be at least 1, got %d", ErrInvalidConfig, settings.MaxEntries)
	}
	if settings.ScreenshotDelay < 0 {
		return fmt.Errorf("%w: screenshot delay must not be negative, got %s", ErrInvalidConfig, settings.ScreenshotDelay)
	}
	return nil
}

// ClearHistory removes every recorded death.
func (s *Service) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Clear(ctx)
	s.logger.Info(ctx, "death history cleared")
	s.persistLocked(ctx)
	return nil
}

// persistLocked writes the current state. Failures are logged and counted;
// the in-memory state stays authoritative.
func (s *Service) persistLocked(ctx context.Context) {
	if s.state == nil {
		return
	}
	start := time.Now()
	state := model.State{Records: s.history.All(ctx), Settings: s.Settings()}
	err := s.state.SaveState(ctx, state)
	metrics.RecordPersistDuration(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordPersistError()
		s.logger.Error(ctx, "failed to persist state", logger.Error(err))
	}
}

// Settings returns the current settings.
func (s *Service) Settings() model.Settings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings
}

func (s *Service) setSettings(settings model.Settings) {
	s.settingsMu.Lock()
	s.settings = settings
	s.settingsMu.Unlock()
}

// RunCommand executes one text command.
func (s *Service) RunCommand(ctx context.Context, line string) []string {
	return s.commands.Run(ctx, line)
}

// History exposes the record store for read-only queries.
func (s *Service) History() repository.Store {
	return s.history
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	ctx := context.Background()
	settings := s.Settings()
	summary := s.history.Summary(ctx, s.now())

	stats := map[string]interface{}{
		"started":         false,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"dedupeEntries":   s.deduper.Size(),
		"windowEvents":    s.window.Len(),
		"records":         summary.Count,
		"maxEntries":      settings.MaxEntries,
		"screenshotOn":    settings.ScreenshotOn,
		"screenshotDelay": settings.ScreenshotDelay.Seconds(),
		"damageMessages":  s.damage.Load(),
		"deathMessages":   s.deaths.Load(),
		"configMessages":  s.configs.Load(),
		"duplicates":      s.duplicates.Load(),
	}
	if summary.Last != nil {
		stats["lastDeath"] = summary.Last.RecordedAt
		stats["lastDeathSince"] = summary.Since
		stats["lastKiller"] = summary.Last.Killer.SourceName
	}

	s.lifeMu.RLock()
	defer s.lifeMu.RUnlock()
	if s.started {
		queueLen := s.queue.Len()
		stats["started"] = true
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
