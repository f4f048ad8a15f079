package nutrition

import (
	"math"
	"testing"
)

func TestNormalizeProducesFullFiniteVector(t *testing.T) {
	raw := map[string]float64{
		"calories":  250,
		"protein_g": math.NaN(),
		"sodium_mg": math.Inf(1),
		"iron_mg":   -3,
		"unknown":   99,
	}

	vector := Normalize(raw)
	if vector.Calories != 250 {
		t.Fatalf("expected calories 250, got %v", vector.Calories)
	}
	if vector.ProteinG != 0 {
		t.Fatalf("expected NaN protein to normalize to 0, got %v", vector.ProteinG)
	}
	if vector.SodiumMG != 0 {
		t.Fatalf("expected infinite sodium to normalize to 0, got %v", vector.SodiumMG)
	}
	if vector.IronMG != -3 {
		t.Fatalf("expected finite iron to pass through, got %v", vector.IronMG)
	}
	for key, value := range vector.Map() {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			t.Fatalf("component %s is not finite: %v", key, value)
		}
	}
}

func TestMapCoversAllFourteenKeys(t *testing.T) {
	rendered := Vector{}.Map()
	if len(rendered) != 14 {
		t.Fatalf("expected 14 keys, got %d", len(rendered))
	}
	for _, key := range Keys() {
		if _, ok := rendered[key]; !ok {
			t.Fatalf("missing key %s", key)
		}
	}
}

func TestScaleMultipliesEveryComponent(t *testing.T) {
	vector := Normalize(map[string]float64{
		"calories":     100,
		"protein_g":    10,
		"sodium_mg":    50,
		"potassium_mg": 200,
	})

	scaled := vector.Scale(2.5)
	if scaled.Calories != 250 {
		t.Fatalf("expected calories 250, got %v", scaled.Calories)
	}
	if scaled.ProteinG != 25 {
		t.Fatalf("expected protein 25, got %v", scaled.ProteinG)
	}
	if scaled.SodiumMG != 125 {
		t.Fatalf("expected sodium 125, got %v", scaled.SodiumMG)
	}
	if vector.Calories != 100 {
		t.Fatalf("scale mutated its receiver: %v", vector.Calories)
	}

	zeroed := vector.Scale(0)
	for key, value := range zeroed.Map() {
		if value != 0 {
			t.Fatalf("expected zero %s after scaling by 0, got %v", key, value)
		}
	}
}

func TestAddSumsElementwise(t *testing.T) {
	left := Normalize(map[string]float64{"calories": 72, "protein_g": 6, "carbs_g": 0.4, "fat_g": 4.8})
	right := Normalize(map[string]float64{"calories": 80, "protein_g": 3, "carbs_g": 14, "fat_g": 1})

	sum := left.Add(right)
	if sum.Calories != 152 {
		t.Fatalf("expected calories 152, got %v", sum.Calories)
	}
	if sum.ProteinG != 9 {
		t.Fatalf("expected protein 9, got %v", sum.ProteinG)
	}
	if sum.CarbsG != 14.4 {
		t.Fatalf("expected carbs 14.4, got %v", sum.CarbsG)
	}
	if left.Calories != 72 {
		t.Fatalf("add mutated its receiver: %v", left.Calories)
	}
}

func TestGetMatchesMap(t *testing.T) {
	vector := Normalize(map[string]float64{"calcium_mg": 120, "vitamin_d_mcg": 4})
	for key, value := range vector.Map() {
		if got := vector.Get(key); got != value {
			t.Fatalf("Get(%s) = %v, Map has %v", key, got, value)
		}
	}
	if vector.Get("nope") != 0 {
		t.Fatalf("expected unknown key to read as 0")
	}
}
