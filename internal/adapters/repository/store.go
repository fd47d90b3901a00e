// Package repository defines the death record store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/okian/deathlog/internal/domain/model"
)

// DefaultCapacity is the number of records kept when none is configured.
const DefaultCapacity = 200

// Summary is the at-a-glance view of the history.
type Summary struct {
	Count    int
	Capacity int
	Last     *model.DeathRecord
	// Since is the humanized age of Last, empty when there is none.
	Since string
}

// Store is a bounded, append-only log of death records with FIFO eviction.
type Store interface {
	// Append adds rec at the tail and evicts the oldest records until the
	// log fits its capacity. It returns the number of evicted records.
	Append(ctx context.Context, rec model.DeathRecord) int
	// Clear removes every record.
	Clear(ctx context.Context)

	// Count returns the number of stored records.
	Count(ctx context.Context) int
	// Last returns the most recent record or ErrEmpty.
	Last(ctx context.Context) (model.DeathRecord, error)
	// All returns the records oldest first.
	All(ctx context.Context) []model.DeathRecord

	// SetCapacity changes the bound. Shrinking evicts on the next Append.
	SetCapacity(ctx context.Context, n int) error
	// Capacity returns the current bound.
	Capacity(ctx context.Context) int

	// Load replaces the records with a restored history without evicting.
	Load(ctx context.Context, records []model.DeathRecord)
	// Summary reports the count and the last record relative to now.
	Summary(ctx context.Context, now time.Time) Summary
}
