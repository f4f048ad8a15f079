// Package catalog resolves food mentions to per-serving nutrient entries
// through a layered lookup: in-memory cache, logged history, then a fresh
// estimate.
package catalog

import (
	"strings"

	"github.com/nutrilog/backend/internal/nutrition"
)

// DefaultServingGrams is the assumed gram weight when neither the
// mention nor any prior entry carries serving information.
const DefaultServingGrams = 100

// Serving describes one serving of a catalog entry.
type Serving struct {
	Unit  string  `json:"unit"`
	Grams float64 `json:"grams"`
}

// Entry is a resolved food with per-serving nutrients and provenance.
// Entries are replaced whole, never partially updated.
type Entry struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Serving   Serving          `json:"serving"`
	Nutrients nutrition.Vector `json:"nutrients"`
	Source    string           `json:"source"`
}

// NeedsRefresh reports whether the entry was produced by a degraded
// estimate and should be re-estimated on its next resolution.
func (e Entry) NeedsRefresh() bool {
	return strings.Contains(e.Source, "fallback")
}

// LookupKey normalizes (brand, food) into the cache identity key.
func LookupKey(brand, food string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimSpace(brand) + " " + strings.TrimSpace(food)))
}
