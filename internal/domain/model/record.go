package model

import (
	"time"

	"github.com/google/uuid"
)

// KillerAttribution names the most likely cause of a death.
type KillerAttribution struct {
	SourceName       string     `json:"name"`
	Detail           string     `json:"detail"`
	Kind             EventKind  `json:"kind,omitempty"`
	SpellOrCauseName string     `json:"spell,omitempty"`
	Amount           *int64     `json:"amount,omitempty"`
	Overkill         *int64     `json:"overkill,omitempty"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
}

// UnknownKiller is the attribution used when no damage was observed.
func UnknownKiller() KillerAttribution {
	return KillerAttribution{SourceName: UnknownLabel, Detail: "No recent damage events"}
}

// Identity describes the tracked subject at the time of death.
type Identity struct {
	Name   string `json:"player"`
	Realm  string `json:"realm"`
	Level  int    `json:"level"`
	Class  string `json:"class"`
	SpecID *int   `json:"specId,omitempty"`
}

// Key identifies the subject across records, "name@realm".
func (i Identity) Key() string {
	return i.Name + "@" + i.Realm
}

// Location is where the death happened. Coordinates are map percentages.
type Location struct {
	Zone    string   `json:"zone,omitempty"`
	Subzone string   `json:"subzone,omitempty"`
	MapID   *int     `json:"mapId,omitempty"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
}

// Currency is a balance in minor units plus its gold/silver/copper split.
type Currency struct {
	Total  int64 `json:"moneyCopper"`
	Gold   int64 `json:"moneyGold"`
	Silver int64 `json:"moneySilver"`
	Copper int64 `json:"moneyCopperOnly"`
}

// BagSlot is one occupied or empty bag slot.
type BagSlot struct {
	Slot       int     `json:"slot"`
	ItemID     *int    `json:"itemId,omitempty"`
	StackCount *int    `json:"count,omitempty"`
	Hyperlink  *string `json:"link,omitempty"`
	Icon       *string `json:"icon,omitempty"`
	Quality    *int    `json:"quality,omitempty"`
}

// Bag is the content of one container.
type Bag struct {
	BagID int       `json:"bag"`
	Slots []BagSlot `json:"slots"`
}

// EquippedItem is one worn item.
type EquippedItem struct {
	Slot      int    `json:"slot"`
	Hyperlink string `json:"link"`
}

// Inventory is attached to records verbatim.
type Inventory struct {
	Bags     []Bag          `json:"bags"`
	Equipped []EquippedItem `json:"equipped"`
}

// InstanceContext describes the dungeon or raid the subject was in.
type InstanceContext struct {
	Name           string `json:"instanceName,omitempty"`
	DifficultyID   *int   `json:"instanceDifficulty,omitempty"`
	DifficultyName string `json:"difficultyName,omitempty"`
	InstanceID     *int   `json:"instanceID,omitempty"`
}

// DeathRecord is one entry of the death history. It is never modified once
// appended; optional sections are nil when their provider had no data.
type DeathRecord struct {
	ID         uuid.UUID         `json:"id"`
	RecordedAt time.Time         `json:"at"`
	Identity   *Identity         `json:"identity,omitempty"`
	Location   *Location         `json:"location,omitempty"`
	Killer     KillerAttribution `json:"killer"`
	Currency   *Currency         `json:"money,omitempty"`
	Inventory  *Inventory        `json:"inventory,omitempty"`
	Instance   *InstanceContext  `json:"instance,omitempty"`
}

// Zone returns the best available place name for display.
func (r DeathRecord) Zone() string {
	if r.Location == nil {
		return UnknownLabel
	}
	switch {
	case r.Location.Zone != "" && r.Location.Subzone != "" && r.Location.Subzone != r.Location.Zone:
		return r.Location.Zone + " - " + r.Location.Subzone
	case r.Location.Zone != "":
		return r.Location.Zone
	case r.Location.Subzone != "":
		return r.Location.Subzone
	}
	return UnknownLabel
}
