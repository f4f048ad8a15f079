// Package nutrition defines the fixed-shape nutrient vector shared by the
// estimation, catalog, and meal aggregation layers.
package nutrition

import "math"

// Vector holds per-serving or totaled nutrient magnitudes for the closed
// set of tracked nutrients. Every field is always present and finite; the
// per-serving versus totaled distinction is contextual, not structural.
type Vector struct {
	Calories      float64 `json:"calories"`
	ProteinG      float64 `json:"protein_g"`
	CarbsG        float64 `json:"carbs_g"`
	FatG          float64 `json:"fat_g"`
	FiberG        float64 `json:"fiber_g"`
	SugarsG       float64 `json:"sugars_g"`
	SaturatedFatG float64 `json:"saturated_fat_g"`
	TransFatG     float64 `json:"trans_fat_g"`
	CholesterolMG float64 `json:"cholesterol_mg"`
	SodiumMG      float64 `json:"sodium_mg"`
	VitaminDMCG   float64 `json:"vitamin_d_mcg"`
	CalciumMG     float64 `json:"calcium_mg"`
	IronMG        float64 `json:"iron_mg"`
	PotassiumMG   float64 `json:"potassium_mg"`
}

// Keys lists the canonical wire names in declaration order.
func Keys() []string {
	return []string{
		"calories",
		"protein_g",
		"carbs_g",
		"fat_g",
		"fiber_g",
		"sugars_g",
		"saturated_fat_g",
		"trans_fat_g",
		"cholesterol_mg",
		"sodium_mg",
		"vitamin_d_mcg",
		"calcium_mg",
		"iron_mg",
		"potassium_mg",
	}
}

// fields returns pointers to every component in canonical key order.
func (v *Vector) fields() []*float64 {
	return []*float64{
		&v.Calories,
		&v.ProteinG,
		&v.CarbsG,
		&v.FatG,
		&v.FiberG,
		&v.SugarsG,
		&v.SaturatedFatG,
		&v.TransFatG,
		&v.CholesterolMG,
		&v.SodiumMG,
		&v.VitaminDMCG,
		&v.CalciumMG,
		&v.IronMG,
		&v.PotassiumMG,
	}
}

// Normalize builds a Vector from loosely typed key/value input. Unknown
// keys are ignored; missing or non-finite values become zero.
func Normalize(raw map[string]float64) Vector {
	var out Vector
	targets := out.fields()
	for index, key := range Keys() {
		value, ok := raw[key]
		if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		*targets[index] = value
	}
	return out
}

// Normalized replaces any non-finite component with zero.
func (v Vector) Normalized() Vector {
	targets := v.fields()
	for _, field := range targets {
		if math.IsNaN(*field) || math.IsInf(*field, 0) {
			*field = 0
		}
	}
	return v
}

// Scale multiplies every component by factor. The factor is applied
// arithmetically; quantity validation belongs to the caller.
func (v Vector) Scale(factor float64) Vector {
	targets := v.fields()
	for _, field := range targets {
		*field *= factor
	}
	return v
}

// Add returns the elementwise sum of v and other.
func (v Vector) Add(other Vector) Vector {
	targets := v.fields()
	sources := other.fields()
	for index := range targets {
		*targets[index] += *sources[index]
	}
	return v
}

// Get returns the component stored under the canonical wire name.
func (v Vector) Get(key string) float64 {
	targets := v.fields()
	for index, candidate := range Keys() {
		if candidate == key {
			return *targets[index]
		}
	}
	return 0
}

// Map renders the vector as a canonical key/value mapping.
func (v Vector) Map() map[string]float64 {
	targets := v.fields()
	out := make(map[string]float64, len(targets))
	for index, key := range Keys() {
		out[key] = *targets[index]
	}
	return out
}
