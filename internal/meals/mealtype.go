package meals

import (
	"strings"
	"time"
)

var mealTypeKeywords = []struct {
	keyword  string
	mealType string
}{
	{"breakfast", MealTypeBreakfast},
	{"brunch", MealTypeBreakfast},
	{"lunch", MealTypeLunch},
	{"dinner", MealTypeDinner},
	{"supper", MealTypeDinner},
	{"snack", MealTypeSnack},
}

// ValidMealType reports whether the value is one of the accepted meal types.
func ValidMealType(mealType string) bool {
	switch mealType {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return true
	}
	return false
}

// InferMealType picks a meal type from keywords in the logged text, then
// falls back to UTC time-of-day buckets: before 11:00 is breakfast,
// before 17:00 is lunch, anything later is dinner.
func InferMealType(text string, consumedAt time.Time) string {
	lowered := strings.ToLower(text)
	for _, candidate := range mealTypeKeywords {
		if strings.Contains(lowered, candidate.keyword) {
			return candidate.mealType
		}
	}
	switch hour := consumedAt.UTC().Hour(); {
	case hour < 11:
		return MealTypeBreakfast
	case hour < 17:
		return MealTypeLunch
	default:
		return MealTypeDinner
	}
}

// ResolveMealType returns the requested type when valid, otherwise infers one.
func ResolveMealType(requested, text string, consumedAt time.Time) string {
	if ValidMealType(requested) {
		return requested
	}
	return InferMealType(text, consumedAt)
}
