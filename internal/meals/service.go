package meals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nutrilog/backend/internal/catalog"
	"github.com/nutrilog/backend/internal/extraction"
	"github.com/nutrilog/backend/internal/nutrition"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingExtractor  = errors.New("food extractor is required")
	errMissingResolver   = errors.New("food resolver is required")
	noOpLogger           = zap.NewNop()
)

// Sentinel errors the transport layer maps onto response codes. They are
// always wrapped in a ServiceError, so match with errors.Is.
var (
	ErrTextRequired  = errors.New("meal text is required")
	ErrUserRequired  = errors.New("user identifier is required")
	ErrMealNotFound  = errors.New("meal not found")
	ErrItemNotFound  = errors.New("meal item not found")
	ErrStartRequired = errors.New("start date is required")
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "meals.service.new"
	opCreate     = "meals.create"
	opEditItem   = "meals.edit_item"
	opDaily      = "meals.daily"
	opRange      = "meals.range"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// Extractor turns free-form meal text into structured food mentions.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]extraction.Mention, error)
}

// FoodResolver resolves a mention to a catalog entry with per-serving nutrients.
type FoodResolver interface {
	Resolve(ctx context.Context, mention extraction.Mention) (catalog.Entry, error)
}

type IDProvider interface {
	NewID() (string, error)
}

type ServiceConfig struct {
	Database   *gorm.DB
	Extractor  Extractor
	Resolver   FoodResolver
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns the meal logging workflow: extraction, resolution, scaling,
// persistence, and daily aggregate maintenance.
type Service struct {
	db         *gorm.DB
	extractor  Extractor
	resolver   FoodResolver
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Extractor == nil {
		return nil, newServiceError(opServiceNew, "missing_extractor", errMissingExtractor)
	}
	if cfg.Resolver == nil {
		return nil, newServiceError(opServiceNew, "missing_resolver", errMissingResolver)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		extractor:  cfg.Extractor,
		resolver:   cfg.Resolver,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateRequest describes one meal to log. ConsumedAt defaults to the
// current time and Date to the UTC calendar date of ConsumedAt when the
// client does not supply its local date.
type CreateRequest struct {
	UserID          string
	Text            string
	MealType        string
	ConsumedAt      time.Time
	Date            string
	TZOffsetMinutes int
}

// DayTotals is the fully recomputed nutrient aggregate for one local day.
type DayTotals struct {
	Date   string           `json:"date"`
	Totals nutrition.Vector `json:"totals"`
}

type CreateResult struct {
	Meal Meal      `json:"meal"`
	Day  DayTotals `json:"day"`
}

// Create extracts foods from the request text, resolves and scales their
// nutrients, persists the meal, and recomputes the owning day's totals.
// The meal write and the aggregate update share one transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	if req.UserID == "" {
		return CreateResult{}, newServiceError(opCreate, "missing_user", ErrUserRequired)
	}
	if req.Text == "" {
		return CreateResult{}, newServiceError(opCreate, "missing_text", ErrTextRequired)
	}

	consumedAt := req.ConsumedAt
	if consumedAt.IsZero() {
		consumedAt = s.clock().UTC()
	}
	mealType := ResolveMealType(req.MealType, req.Text, consumedAt)

	mentions, err := s.extractor.Extract(ctx, req.Text)
	if err != nil {
		if errors.Is(err, extraction.ErrNoFoods) {
			return CreateResult{}, newServiceError(opCreate, "no_foods_detected", err)
		}
		s.logError(opCreate, "extract_failed", err, zap.String("user_id", req.UserID))
		return CreateResult{}, newServiceError(opCreate, "extract_failed", err)
	}

	mealID, err := s.idProvider.NewID()
	if err != nil {
		return CreateResult{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	items := make([]MealItem, 0, len(mentions))
	for _, mention := range mentions {
		entry, err := s.resolver.Resolve(ctx, mention)
		if err != nil {
			s.logError(opCreate, "resolve_failed", err,
				zap.String("user_id", req.UserID),
				zap.String("food", mention.Food))
			return CreateResult{}, newServiceError(opCreate, "resolve_failed", err)
		}
		itemID, err := s.idProvider.NewID()
		if err != nil {
			return CreateResult{}, newServiceError(opCreate, "id_generation_failed", err)
		}
		item := MealItem{
			ID:       itemID,
			MealID:   mealID,
			FoodID:   entry.ID,
			Name:     mention.DisplayName(),
			Quantity: mention.Quantity,
			Unit:     mention.Unit,
			Grams:    entry.Serving.Grams * mention.Quantity,
			Source:   entry.Source,
		}
		item.SetNutrients(entry.Nutrients.Scale(mention.Quantity))
		items = append(items, item)
	}

	meal := Meal{
		ID:         mealID,
		UserID:     req.UserID,
		MealType:   mealType,
		ConsumedAt: consumedAt,
		Text:       req.Text,
		Items:      items,
	}

	date := req.Date
	if date == "" {
		date = consumedAt.UTC().Format(dateLayout)
	} else if _, err := time.ParseInLocation(dateLayout, date, time.UTC); err != nil {
		return CreateResult{}, newServiceError(opCreate, "invalid_date", err)
	}

	var dayTotals nutrition.Vector
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&meal).Error; err != nil {
			return newServiceError(opCreate, "meal_insert_failed", err)
		}
		totals, err := s.recomputeDay(tx, req.UserID, date, req.TZOffsetMinutes)
		if err != nil {
			return newServiceError(opCreate, "day_recompute_failed", err)
		}
		dayTotals = totals
		return nil
	})
	if txErr != nil {
		s.logError(opCreate, "transaction_failed", txErr, zap.String("user_id", req.UserID))
		return CreateResult{}, txErr
	}

	return CreateResult{
		Meal: meal,
		Day:  DayTotals{Date: date, Totals: dayTotals},
	}, nil
}

// EditItemRequest overrides the stored nutrients of one meal item. Date
// defaults to the UTC calendar date of the owning meal.
type EditItemRequest struct {
	UserID          string
	MealID          string
	ItemID          string
	Nutrients       nutrition.Vector
	Date            string
	TZOffsetMinutes int
}

type EditItemResult struct {
	Item       MealItem         `json:"item"`
	MealTotals nutrition.Vector `json:"mealTotals"`
	Day        DayTotals        `json:"day"`
}

// EditItem replaces an item's nutrients with user-supplied values, marks
// the item edited, and recomputes both the meal total and the day's
// aggregate from the stored rows.
func (s *Service) EditItem(ctx context.Context, req EditItemRequest) (EditItemResult, error) {
	if req.UserID == "" {
		return EditItemResult{}, newServiceError(opEditItem, "missing_user", ErrUserRequired)
	}

	var meal Meal
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", req.MealID, req.UserID).
		First(&meal).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return EditItemResult{}, newServiceError(opEditItem, "meal_not_found", ErrMealNotFound)
	}
	if err != nil {
		s.logError(opEditItem, "meal_select_failed", err, zap.String("meal_id", req.MealID))
		return EditItemResult{}, newServiceError(opEditItem, "meal_select_failed", err)
	}

	itemIndex := -1
	for i := range meal.Items {
		if meal.Items[i].ID == req.ItemID {
			itemIndex = i
			break
		}
	}
	if itemIndex < 0 {
		return EditItemResult{}, newServiceError(opEditItem, "item_not_found", ErrItemNotFound)
	}

	edited := req.Nutrients.Normalized()
	meal.Items[itemIndex].SetNutrients(edited)
	meal.Items[itemIndex].UserEdited = true

	date := req.Date
	if date == "" {
		date = meal.ConsumedAt.UTC().Format(dateLayout)
	}

	var dayTotals nutrition.Vector
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"user_edited": true}
		for key, value := range edited.Map() {
			updates[key] = value
		}
		result := tx.Model(&MealItem{}).
			Where("id = ? AND meal_id = ?", req.ItemID, req.MealID).
			Updates(updates)
		if result.Error != nil {
			return newServiceError(opEditItem, "item_update_failed", result.Error)
		}
		totals, err := s.recomputeDay(tx, req.UserID, date, req.TZOffsetMinutes)
		if err != nil {
			return newServiceError(opEditItem, "day_recompute_failed", err)
		}
		dayTotals = totals
		return nil
	})
	if txErr != nil {
		s.logError(opEditItem, "transaction_failed", txErr, zap.String("meal_id", req.MealID))
		return EditItemResult{}, txErr
	}

	return EditItemResult{
		Item:       meal.Items[itemIndex],
		MealTotals: meal.Total(),
		Day:        DayTotals{Date: date, Totals: dayTotals},
	}, nil
}

// DaySummary is one local day's meals together with the recomputed totals.
type DaySummary struct {
	Date   string           `json:"date"`
	Totals nutrition.Vector `json:"totals"`
	Meals  []Meal           `json:"meals"`
}

// Daily lists the meals whose consumption time falls inside the local day
// window and returns their summed totals. The date defaults to today in UTC.
func (s *Service) Daily(ctx context.Context, userID, date string, tzOffsetMinutes int) (DaySummary, error) {
	if userID == "" {
		return DaySummary{}, newServiceError(opDaily, "missing_user", ErrUserRequired)
	}
	if date == "" {
		date = s.clock().UTC().Format(dateLayout)
	}
	start, end, err := DayWindow(date, tzOffsetMinutes)
	if err != nil {
		return DaySummary{}, newServiceError(opDaily, "invalid_date", err)
	}

	var dayMeals []Meal
	err = s.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND consumed_at >= ? AND consumed_at < ?", userID, start, end).
		Order("consumed_at DESC").
		Find(&dayMeals).
		Error
	if err != nil {
		s.logError(opDaily, "meal_select_failed", err, zap.String("user_id", userID))
		return DaySummary{}, newServiceError(opDaily, "meal_select_failed", err)
	}

	var totals nutrition.Vector
	for _, meal := range dayMeals {
		totals = totals.Add(meal.Total())
	}

	return DaySummary{Date: date, Totals: totals, Meals: dayMeals}, nil
}

// Range returns the stored daily aggregates between two local dates,
// inclusive, in ascending date order. End defaults to today in UTC.
func (s *Service) Range(ctx context.Context, userID, start, end string) ([]DailyTotal, error) {
	if userID == "" {
		return nil, newServiceError(opRange, "missing_user", ErrUserRequired)
	}
	if start == "" {
		return nil, newServiceError(opRange, "missing_start", ErrStartRequired)
	}
	if _, err := time.ParseInLocation(dateLayout, start, time.UTC); err != nil {
		return nil, newServiceError(opRange, "invalid_start", err)
	}
	if end == "" {
		end = s.clock().UTC().Format(dateLayout)
	} else if _, err := time.ParseInLocation(dateLayout, end, time.UTC); err != nil {
		return nil, newServiceError(opRange, "invalid_end", err)
	}

	var totals []DailyTotal
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, start, end).
		Order("date ASC").
		Find(&totals).
		Error
	if err != nil {
		s.logError(opRange, "total_select_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opRange, "total_select_failed", err)
	}
	return totals, nil
}

// recomputeDay rebuilds the stored aggregate for one (user, local date)
// from the meal rows inside the day window. It runs inside the caller's
// transaction so the meal write and the aggregate never diverge.
func (s *Service) recomputeDay(tx *gorm.DB, userID, date string, tzOffsetMinutes int) (nutrition.Vector, error) {
	start, end, err := DayWindow(date, tzOffsetMinutes)
	if err != nil {
		return nutrition.Vector{}, err
	}

	var dayMeals []Meal
	err = tx.
		Preload("Items").
		Where("user_id = ? AND consumed_at >= ? AND consumed_at < ?", userID, start, end).
		Find(&dayMeals).
		Error
	if err != nil {
		return nutrition.Vector{}, err
	}

	var totals nutrition.Vector
	for _, meal := range dayMeals {
		totals = totals.Add(meal.Total())
	}

	row := DailyTotal{
		UserID:   userID,
		Date:     date,
		Calories: totals.Calories,
		ProteinG: totals.ProteinG,
		CarbsG:   totals.CarbsG,
		FatG:     totals.FatG,
	}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"calories", "protein_g", "carbs_g", "fat_g", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nutrition.Vector{}, err
	}
	return totals, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}, fields...)
	s.logger.Error("meal operation failed", allFields...)
}
