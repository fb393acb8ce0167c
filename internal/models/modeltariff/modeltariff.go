// Package modeltariff provides the static tariff catalog.

package modeltariff

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OneHour  = "1_hour"
	TwoHours = "2_hours"

	// Default is the resting tariff of an account created without one.
	Default = OneHour
)

// Tariff is a named price and rental duration.
type Tariff struct {
	Key      string
	Label    string
	Price    decimal.Decimal
	Duration time.Duration
}

var catalog = map[string]Tariff{
	OneHour: {
		Key:      OneHour,
		Label:    "1 hour",
		Price:    decimal.NewFromInt(7),
		Duration: 60 * time.Minute,
	},
	TwoHours: {
		Key:      TwoHours,
		Label:    "2 hours",
		Price:    decimal.NewFromInt(14),
		Duration: 120 * time.Minute,
	},
}

// Lookup returns the tariff registered under key.
func Lookup(key string) (Tariff, bool) {
	t, ok := catalog[key]
	return t, ok
}

// All returns every tariff ordered by duration.
func All() []Tariff {
	out := make([]Tariff, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Duration < out[j].Duration })
	return out
}
