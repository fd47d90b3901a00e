// Package money converts minor-unit balances into gold/silver/copper.
package money

import (
	"fmt"

	"github.com/okian/deathlog/internal/domain/model"
)

const (
	copperPerSilver = 100
	copperPerGold   = 100 * copperPerSilver
)

// Decompose splits a copper total into gold, silver and copper.
// Negative totals are treated as zero.
func Decompose(total int64) (gold, silver, copper int64) {
	if total < 0 {
		total = 0
	}
	gold = total / copperPerGold
	silver = (total % copperPerGold) / copperPerSilver
	copper = total % copperPerSilver
	return gold, silver, copper
}

// Format renders a copper total as "12g 34s 56c".
func Format(total int64) string {
	g, s, c := Decompose(total)
	return fmt.Sprintf("%dg %ds %dc", g, s, c)
}

// Breakdown returns the currency section of a death record.
func Breakdown(total int64) model.Currency {
	g, s, c := Decompose(total)
	if total < 0 {
		total = 0
	}
	return model.Currency{Total: total, Gold: g, Silver: s, Copper: c}
}
