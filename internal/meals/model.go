// Package meals assembles extracted food mentions into persisted meals
// and maintains the per-day nutrient aggregates derived from them.
package meals

import (
	"time"

	"github.com/nutrilog/backend/internal/nutrition"
)

// Meal types accepted by the API. Unspecified is a sentinel asking the
// service to infer the type from text or time of day.
const (
	MealTypeBreakfast   = "breakfast"
	MealTypeLunch       = "lunch"
	MealTypeDinner      = "dinner"
	MealTypeSnack       = "snack"
	MealTypeUnspecified = "unspecified"
)

// Meal is one logged meal with its extracted line items.
type Meal struct {
	ID         string     `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	UserID     string     `gorm:"column:user_id;size:36;not null;index:idx_meals_user_consumed,priority:1" json:"userId"`
	MealType   string     `gorm:"column:meal_type;size:16;not null" json:"mealType"`
	ConsumedAt time.Time  `gorm:"column:consumed_at;not null;index:idx_meals_user_consumed,priority:2" json:"consumedAt"`
	Text       string     `gorm:"column:text;type:text;not null" json:"text"`
	Items      []MealItem `gorm:"foreignKey:MealID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Meal) TableName() string {
	return "meals"
}

// Total recomputes the meal's nutrient total from its items. Totals are
// always derived, never independently stored.
func (m Meal) Total() nutrition.Vector {
	var total nutrition.Vector
	for _, item := range m.Items {
		total = total.Add(item.Nutrients())
	}
	return total
}

// MealItem is one resolved food line inside a meal. Nutrient columns hold
// the already-scaled values for the logged quantity.
type MealItem struct {
	ID         string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	MealID     string    `gorm:"column:meal_id;size:36;not null;index" json:"mealId"`
	FoodID     string    `gorm:"column:food_id;size:190;not null" json:"foodId"`
	Name       string    `gorm:"column:name;size:320;not null;index" json:"name"`
	Quantity   float64   `gorm:"column:quantity;not null;default:1" json:"quantity"`
	Unit       string    `gorm:"column:unit;size:64;not null;default:'serving'" json:"unit"`
	Grams      float64   `gorm:"column:grams;not null;default:0" json:"grams"`
	Source     string    `gorm:"column:source;size:190;not null;default:''" json:"source"`
	UserEdited bool      `gorm:"column:user_edited;not null;default:false" json:"userEdited"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`

	Calories      float64 `gorm:"column:calories;not null;default:0" json:"calories"`
	ProteinG      float64 `gorm:"column:protein_g;not null;default:0" json:"protein_g"`
	CarbsG        float64 `gorm:"column:carbs_g;not null;default:0" json:"carbs_g"`
	FatG          float64 `gorm:"column:fat_g;not null;default:0" json:"fat_g"`
	FiberG        float64 `gorm:"column:fiber_g;not null;default:0" json:"fiber_g"`
	SugarsG       float64 `gorm:"column:sugars_g;not null;default:0" json:"sugars_g"`
	SaturatedFatG float64 `gorm:"column:saturated_fat_g;not null;default:0" json:"saturated_fat_g"`
	TransFatG     float64 `gorm:"column:trans_fat_g;not null;default:0" json:"trans_fat_g"`
	CholesterolMG float64 `gorm:"column:cholesterol_mg;not null;default:0" json:"cholesterol_mg"`
	SodiumMG      float64 `gorm:"column:sodium_mg;not null;default:0" json:"sodium_mg"`
	VitaminDMCG   float64 `gorm:"column:vitamin_d_mcg;not null;default:0" json:"vitamin_d_mcg"`
	CalciumMG     float64 `gorm:"column:calcium_mg;not null;default:0" json:"calcium_mg"`
	IronMG        float64 `gorm:"column:iron_mg;not null;default:0" json:"iron_mg"`
	PotassiumMG   float64 `gorm:"column:potassium_mg;not null;default:0" json:"potassium_mg"`
}

// TableName provides the explicit table binding for GORM.
func (MealItem) TableName() string {
	return "meal_items"
}

// Nutrients reads the item's scaled nutrient columns as a vector.
func (i MealItem) Nutrients() nutrition.Vector {
	return nutrition.Vector{
		Calories:      i.Calories,
		ProteinG:      i.ProteinG,
		CarbsG:        i.CarbsG,
		FatG:          i.FatG,
		FiberG:        i.FiberG,
		SugarsG:       i.SugarsG,
		SaturatedFatG: i.SaturatedFatG,
		TransFatG:     i.TransFatG,
		CholesterolMG: i.CholesterolMG,
		SodiumMG:      i.SodiumMG,
		VitaminDMCG:   i.VitaminDMCG,
		CalciumMG:     i.CalciumMG,
		IronMG:        i.IronMG,
		PotassiumMG:   i.PotassiumMG,
	}
}

// SetNutrients writes a vector into the item's nutrient columns.
func (i *MealItem) SetNutrients(v nutrition.Vector) {
	i.Calories = v.Calories
	i.ProteinG = v.ProteinG
	i.CarbsG = v.CarbsG
	i.FatG = v.FatG
	i.FiberG = v.FiberG
	i.SugarsG = v.SugarsG
	i.SaturatedFatG = v.SaturatedFatG
	i.TransFatG = v.TransFatG
	i.CholesterolMG = v.CholesterolMG
	i.SodiumMG = v.SodiumMG
	i.VitaminDMCG = v.VitaminDMCG
	i.CalciumMG = v.CalciumMG
	i.IronMG = v.IronMG
	i.PotassiumMG = v.PotassiumMG
}

// DailyTotal is the derived per-(user, local date) aggregate. It stores
// the headline subset and is always rebuildable from meals; reads that
// need the full vector recompute it from source rows.
type DailyTotal struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:36;not null" json:"userId"`
	Date      string    `gorm:"column:date;primaryKey;size:10;not null" json:"date"`
	Calories  float64   `gorm:"column:calories;not null;default:0" json:"calories"`
	ProteinG  float64   `gorm:"column:protein_g;not null;default:0" json:"protein_g"`
	CarbsG    float64   `gorm:"column:carbs_g;not null;default:0" json:"carbs_g"`
	FatG      float64   `gorm:"column:fat_g;not null;default:0" json:"fat_g"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (DailyTotal) TableName() string {
	return "daily_totals"
}
