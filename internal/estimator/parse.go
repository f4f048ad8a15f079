package estimator

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/nutrilog/backend/internal/llm"
	"github.com/nutrilog/backend/internal/nutrition"
)

// promptKeys are the field names the prompt asks the model for. The carb
// and fat keys differ from the canonical vector names; resolveKey maps
// between them.
var promptKeys = []string{
	"calories",
	"protein_g",
	"total_carbs_g",
	"fiber_g",
	"sugars_g",
	"total_fat_g",
	"saturated_fat_g",
	"trans_fat_g",
	"cholesterol_mg",
	"sodium_mg",
	"vitamin_d_mcg",
	"calcium_mg",
	"iron_mg",
	"potassium_mg",
}

// looseKeys additionally accept the canonical aliases so loose scanning
// still works when the model answers with carbs_g/fat_g.
var looseKeys = append([]string{"carbs_g", "fat_g"}, promptKeys...)

var loosePatterns = buildLoosePatterns()

func buildLoosePatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(looseKeys))
	for _, key := range looseKeys {
		patterns[key] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(key) + `["']?\s*:\s*(-?[\d.]+)`)
	}
	return patterns
}

// parseStrict extracts the first balanced JSON object from the response
// and keeps its numeric members. A nil map means no object was usable.
func parseStrict(response string) map[string]float64 {
	block, err := llm.ExtractJSONObject(response)
	if err != nil {
		return nil
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return nil
	}

	values := make(map[string]float64)
	for key, value := range raw {
		number, ok := value.(float64)
		if !ok {
			continue
		}
		values[strings.ToLower(key)] = number
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

// parseLoose regex-scans the raw response for "key: number" pairs,
// independent of whether the payload parses as JSON.
func parseLoose(response string) map[string]float64 {
	values := make(map[string]float64)
	for key, pattern := range loosePatterns {
		match := pattern.FindStringSubmatch(response)
		if match == nil {
			continue
		}
		number, err := parseFloat(match[1])
		if err != nil {
			continue
		}
		values[key] = number
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func parseFloat(s string) (float64, error) {
	var number float64
	err := json.Unmarshal([]byte(s), &number)
	return number, err
}

// mergeParses overlays strict values on top of loose ones. Strict wins on
// collision because a parseable object is more trustworthy than a regex
// hit inside arbitrary text.
func mergeParses(loose, strict map[string]float64) map[string]float64 {
	if len(loose) == 0 && len(strict) == 0 {
		return nil
	}
	merged := make(map[string]float64, len(loose)+len(strict))
	for key, value := range loose {
		merged[key] = value
	}
	for key, value := range strict {
		merged[key] = value
	}
	return merged
}

// resolveKey reads a canonical vector key out of merged parse results,
// preferring the prompt's alias (total_carbs_g/total_fat_g) when present.
func resolveKey(merged map[string]float64, key string) (float64, bool) {
	aliases := []string{key}
	switch key {
	case "carbs_g":
		aliases = []string{"total_carbs_g", "carbs_g"}
	case "fat_g":
		aliases = []string{"total_fat_g", "fat_g"}
	}
	for _, alias := range aliases {
		if value, ok := merged[alias]; ok {
			return value, true
		}
	}
	return 0, false
}

// Missing-key defaults, keyed by canonical vector names.
var perKeyDefaults = map[string]float64{
	"calories":        150,
	"protein_g":       20,
	"carbs_g":         0,
	"fat_g":           8,
	"fiber_g":         0,
	"sugars_g":        0,
	"saturated_fat_g": 1,
	"trans_fat_g":     0,
	"cholesterol_mg":  50,
	"sodium_mg":       60,
	"vitamin_d_mcg":   0,
	"calcium_mg":      20,
	"iron_mg":         0.5,
	"potassium_mg":    300,
}

// Sanity maxima for generated values. These are plausible-data bounds for
// a single serving, not validated nutrition science; mg-scale and
// vitamin/mineral keys get wider or narrower ceilings.
const defaultMax = 2000

var perKeyMax = map[string]float64{
	"cholesterol_mg": 1000,
	"sodium_mg":      10000,
	"vitamin_d_mcg":  200,
	"calcium_mg":     5000,
	"iron_mg":        100,
	"potassium_mg":   10000,
}

func clamp(value, max float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	if value > max {
		return max
	}
	return value
}

// buildVector assembles the final per-serving vector from merged parse
// results, filling gaps with defaults and clamping every component.
func buildVector(merged map[string]float64) nutrition.Vector {
	values := make(map[string]float64, len(nutrition.Keys()))
	for _, key := range nutrition.Keys() {
		value, ok := resolveKey(merged, key)
		if !ok {
			value = perKeyDefaults[key]
		}
		max := perKeyMax[key]
		if max == 0 {
			max = defaultMax
		}
		values[key] = clamp(value, max)
	}
	return nutrition.Normalize(values)
}
