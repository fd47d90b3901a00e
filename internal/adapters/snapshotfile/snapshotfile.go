// Package snapshotfile serves snapshot providers from a JSON file the host
// rewrites whenever the subject's state changes.
package snapshotfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/okian/deathlog/internal/domain/model"
	"github.com/okian/deathlog/internal/domain/snapshot"
)

// Document is the on-disk layout. Missing sections are unavailable.
type Document struct {
	Identity  *model.Identity        `json:"identity,omitempty"`
	Location  *model.Location        `json:"location,omitempty"`
	Inventory *model.Inventory       `json:"inventory,omitempty"`
	Money     *int64                 `json:"moneyCopper,omitempty"`
	Instance  *model.InstanceContext `json:"instance,omitempty"`
}

// Source reads Document from path on every call so each death sees the
// latest state written by the host.
type Source struct {
	path string
}

// New creates a Source for path.
func New(path string) *Source {
	return &Source{path: path}
}

// Providers returns a bundle where every member is served by s.
func (s *Source) Providers() snapshot.Providers {
	return snapshot.Providers{
		Identity:  s,
		Location:  s,
		Inventory: s,
		Currency:  s,
		Instance:  s,
	}
}

func (s *Source) load(ctx context.Context) (Document, error) {
	var doc Document
	if err := ctx.Err(); err != nil {
		return doc, err
	}
	if s.path == "" {
		return doc, snapshot.ErrUnavailable
	}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, snapshot.ErrUnavailable
	}
	if err != nil {
		return doc, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return doc, nil
}

// Identity implements snapshot.IdentityProvider.
func (s *Source) Identity(ctx context.Context) (model.Identity, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return model.Identity{}, err
	}
	if doc.Identity == nil || doc.Identity.Name == "" {
		return model.Identity{}, snapshot.ErrUnavailable
	}
	return *doc.Identity, nil
}

// Location implements snapshot.LocationProvider. Coordinates are rounded.
func (s *Source) Location(ctx context.Context) (model.Location, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return model.Location{}, err
	}
	if doc.Location == nil {
		return model.Location{}, snapshot.ErrUnavailable
	}
	loc := *doc.Location
	if loc.X != nil {
		x := snapshot.RoundCoord(*loc.X)
		loc.X = &x
	}
	if loc.Y != nil {
		y := snapshot.RoundCoord(*loc.Y)
		loc.Y = &y
	}
	return loc, nil
}

// Inventory implements snapshot.InventoryProvider.
func (s *Source) Inventory(ctx context.Context) (model.Inventory, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return model.Inventory{}, err
	}
	if doc.Inventory == nil {
		return model.Inventory{}, snapshot.ErrUnavailable
	}
	return *doc.Inventory, nil
}

// Currency implements snapshot.CurrencyProvider.
func (s *Source) Currency(ctx context.Context) (int64, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	if doc.Money == nil {
		return 0, snapshot.ErrUnavailable
	}
	return *doc.Money, nil
}

// Instance implements snapshot.InstanceProvider. Open-world locations
// without an instance name are unavailable.
func (s *Source) Instance(ctx context.Context) (model.InstanceContext, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return model.InstanceContext{}, err
	}
	if doc.Instance == nil || doc.Instance.Name == "" {
		return model.InstanceContext{}, snapshot.ErrUnavailable
	}
	return *doc.Instance, nil
}
