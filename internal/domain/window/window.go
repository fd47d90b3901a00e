// Package window keeps the recent damage events of the tracked subject.
package window

import (
	"sync"
	"time"

	"github.com/okian/deathlog/internal/domain/model"
	"github.com/okian/deathlog/pkg/metrics"
)

// DefaultWindow is how long an event stays eligible for attribution.
const DefaultWindow = 6 * time.Second

// Drop reasons reported to metrics.
const (
	dropUnknownKind = "unknown_kind"
	dropOtherTarget = "other_target"
)

// Option applies a configuration option to the EventWindow.
type Option func(*EventWindow)

// WithWindow sets the retention span. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(w *EventWindow) {
		if d > 0 {
			w.span = d
		}
	}
}

// WithClock replaces the time source used when pruning on ingest.
func WithClock(now func() time.Time) Option {
	return func(w *EventWindow) {
		if now != nil {
			w.now = now
		}
	}
}

// WithSubject restricts ingestion to events whose TargetID equals id.
// An empty id accepts every target.
func WithSubject(id string) Option {
	return func(w *EventWindow) {
		w.subject = id
	}
}

// EventWindow is a chronologically ordered buffer of damage events no older
// than the configured span. Mutations are exclusive; Snapshot is shared.
type EventWindow struct {
	mu      sync.RWMutex
	events  []model.DamageEvent
	span    time.Duration
	now     func() time.Time
	subject string
}

// New creates an empty window.
func New(opts ...Option) *EventWindow {
	w := &EventWindow{
		span: DefaultWindow,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Span returns the retention span.
func (w *EventWindow) Span() time.Duration {
	return w.span
}

// Ingest appends ev to the tail and prunes against the clock. Events of an
// unknown kind or for another target are dropped. Incomplete events are kept.
func (w *EventWindow) Ingest(ev model.DamageEvent) {
	if !ev.Kind.Valid() {
		metrics.RecordEventDropped(dropUnknownKind)
		return
	}
	if w.subject != "" && ev.TargetID != w.subject {
		metrics.RecordEventDropped(dropOtherTarget)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.events = append(w.events, ev.Normalize())
	metrics.RecordEventIngested(string(ev.Kind))
	w.pruneLocked(w.now())
}

// Prune removes every event with now - timestamp > span.
func (w *EventWindow) Prune(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
}

func (w *EventWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.span)

	// head trim covers the usual monotonic stream
	i := 0
	for i < len(w.events) && w.events[i].Timestamp.Before(cutoff) {
		i++
	}
	kept := w.events[i:]

	// a late host timestamp can leave a stale event behind a fresh one
	n := 0
	for _, ev := range kept {
		if !ev.Timestamp.Before(cutoff) {
			kept[n] = ev
			n++
		}
	}
	pruned := len(w.events) - n

	if pruned > 0 {
		fresh := make([]model.DamageEvent, n)
		copy(fresh, kept[:n])
		w.events = fresh
		metrics.RecordWindowPruned(pruned)
	}
	metrics.UpdateWindowEvents(len(w.events))
}

// Snapshot returns a copy of the current events in insertion order.
func (w *EventWindow) Snapshot() []model.DamageEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]model.DamageEvent, len(w.events))
	copy(out, w.events)
	return out
}

// Clear empties the window.
func (w *EventWindow) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.events = nil
	metrics.UpdateWindowEvents(0)
}

// Len returns the number of retained events.
func (w *EventWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.events)
}
