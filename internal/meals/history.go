package meals

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/nutrilog/backend/internal/catalog"
)

// History serves the catalog resolver from previously logged meal items,
// so foods a user has eaten before skip re-estimation. Stored items hold
// nutrients scaled by quantity; history divides them back down to one
// serving before handing them to the catalog.
type History struct {
	db *gorm.DB
}

func NewHistory(db *gorm.DB) *History {
	return &History{db: db}
}

// FindByName returns the most recently logged item matching the display
// name, or nil when the food has never been logged.
func (h *History) FindByName(ctx context.Context, displayName string) (*catalog.Entry, error) {
	if h.db == nil {
		return nil, errMissingDatabase
	}

	var item MealItem
	err := h.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(displayName))).
		Order("created_at DESC").
		First(&item).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	quantity := item.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	grams := item.Grams / quantity
	if grams <= 0 {
		grams = catalog.DefaultServingGrams
	}
	unit := item.Unit
	if unit == "" {
		unit = "serving"
	}

	entry := catalog.Entry{
		ID:        item.FoodID,
		Name:      item.Name,
		Serving:   catalog.Serving{Unit: unit, Grams: grams},
		Nutrients: item.Nutrients().Scale(1 / quantity),
		Source:    "history",
	}
	return &entry, nil
}
