package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/okian/deathlog/internal/domain/model"
	"github.com/okian/deathlog/pkg/metrics"
)

// History is the in-memory Store. Records are kept oldest first; eviction
// always removes from the head. Reads share the lock, mutations own it.
type History struct {
	mu       sync.RWMutex
	records  []model.DeathRecord
	capacity int
}

var _ Store = (*History)(nil)

// NewHistory creates an empty History.
func NewHistory(opts ...Option) *History {
	h := &History{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(h)
	}
	metrics.UpdateStoreCapacity(h.capacity)
	metrics.UpdateStoreRecords(0)
	return h
}

// Append implements Store.
func (h *History) Append(_ context.Context, rec model.DeathRecord) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, rec)
	evicted := 0
	if excess := len(h.records) - h.capacity; excess > 0 {
		kept := make([]model.DeathRecord, h.capacity)
		copy(kept, h.records[excess:])
		h.records = kept
		evicted = excess
		metrics.RecordStoreEvictions(excess)
	}
	metrics.UpdateStoreRecords(len(h.records))
	return evicted
}

// Clear implements Store.
func (h *History) Clear(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = nil
	metrics.UpdateStoreRecords(0)
}

// Count implements Store.
func (h *History) Count(_ context.Context) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Last implements Store.
func (h *History) Last(_ context.Context) (model.DeathRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.records) == 0 {
		return model.DeathRecord{}, ErrEmpty
	}
	return h.records[len(h.records)-1], nil
}

// All implements Store. The returned slice is a copy.
func (h *History) All(_ context.Context) []model.DeathRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]model.DeathRecord, len(h.records))
	copy(out, h.records)
	return out
}

// SetCapacity implements Store.
func (h *History) SetCapacity(_ context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, n)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.capacity = n
	metrics.UpdateStoreCapacity(n)
	return nil
}

// Capacity implements Store.
func (h *History) Capacity(_ context.Context) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.capacity
}

// Load implements Store.
func (h *History) Load(_ context.Context, records []model.DeathRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = make([]model.DeathRecord, len(records))
	copy(h.records, records)
	metrics.UpdateStoreRecords(len(h.records))
}

// Summary implements Store.
func (h *History) Summary(_ context.Context, now time.Time) Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Summary{Count: len(h.records), Capacity: h.capacity}
	if len(h.records) == 0 {
		return s
	}
	last := h.records[len(h.records)-1]
	s.Last = &last
	s.Since = humanize.RelTime(last.RecordedAt, now, "ago", "from now")
	return s
}
