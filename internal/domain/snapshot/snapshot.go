// Package snapshot defines the point-in-time state sources consulted when a
// death is recorded. Providers are implemented by the host.
package snapshot

import (
	"context"
	"errors"
	"math"

	"github.com/okian/deathlog/internal/domain/model"
)

// ErrUnavailable reports that a provider has no data right now.
var ErrUnavailable = errors.New("snapshot unavailable")

// IdentityProvider returns who the tracked subject is.
type IdentityProvider interface {
	Identity(ctx context.Context) (model.Identity, error)
}

// LocationProvider returns where the tracked subject is.
type LocationProvider interface {
	Location(ctx context.Context) (model.Location, error)
}

// InventoryProvider returns bag and equipment contents.
type InventoryProvider interface {
	Inventory(ctx context.Context) (model.Inventory, error)
}

// CurrencyProvider returns the balance in copper.
type CurrencyProvider interface {
	Currency(ctx context.Context) (int64, error)
}

// InstanceProvider returns the dungeon or raid context, if any.
type InstanceProvider interface {
	Instance(ctx context.Context) (model.InstanceContext, error)
}

// Providers bundles the sources. Nil members are skipped.
type Providers struct {
	Identity  IdentityProvider
	Location  LocationProvider
	Inventory InventoryProvider
	Currency  CurrencyProvider
	Instance  InstanceProvider
}

// RoundCoord rounds a map percentage to two decimals.
func RoundCoord(v float64) float64 {
	return math.Round(v*100) / 100
}
