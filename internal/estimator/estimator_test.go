package estimator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nutrilog/backend/internal/llm"
)

func newTestEstimator(t *testing.T, backends ...llm.Generator) *Estimator {
	t.Helper()
	est, err := New(Config{Backends: backends})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return est
}

func staticBackend(name, response string) llm.Generator {
	return llm.GeneratorFunc{Name: name, Fn: func(context.Context, string) (string, error) {
		return response, nil
	}}
}

func failingBackend(name string) llm.Generator {
	return llm.GeneratorFunc{Name: name, Fn: func(context.Context, string) (string, error) {
		return "", errors.New("backend down")
	}}
}

func TestEstimateParsesWellFormedResponse(t *testing.T) {
	response := "```json\n" + `{
		"calories": 95,
		"protein_g": 0.5,
		"total_carbs_g": 25,
		"fiber_g": 4.4,
		"sugars_g": 19,
		"total_fat_g": 0.3,
		"saturated_fat_g": 0.1,
		"trans_fat_g": 0,
		"cholesterol_mg": 0,
		"sodium_mg": 2,
		"vitamin_d_mcg": 0,
		"calcium_mg": 11,
		"iron_mg": 0.2,
		"potassium_mg": 195
	}` + "\n```"

	est := newTestEstimator(t, staticBackend("llm_test_model", response))
	estimate, err := est.Estimate(context.Background(), "apple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.Source != "llm_test_model" {
		t.Fatalf("unexpected source: %s", estimate.Source)
	}
	if estimate.Fallback() {
		t.Fatalf("clean estimate should not be marked as fallback")
	}
	if estimate.Nutrients.Calories != 95 {
		t.Fatalf("expected calories 95, got %v", estimate.Nutrients.Calories)
	}
	if estimate.Nutrients.CarbsG != 25 {
		t.Fatalf("expected total_carbs_g to map onto carbs, got %v", estimate.Nutrients.CarbsG)
	}
	if estimate.Nutrients.FatG != 0.3 {
		t.Fatalf("expected total_fat_g to map onto fat, got %v", estimate.Nutrients.FatG)
	}
}

func TestEstimateSalvagesMalformedResponse(t *testing.T) {
	// Broken JSON: loose scanning should still pick up numbers.
	response := `Here are the values: "calories": 210, "protein_g": 12, total_fat_g: 9 but I forgot the braces`

	est := newTestEstimator(t, staticBackend("llm_test_model", response))
	estimate, err := est.Estimate(context.Background(), "sandwich")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.Source != "llm_test_model" {
		t.Fatalf("loose-only parse should still use the backend source, got %s", estimate.Source)
	}
	if estimate.Nutrients.Calories != 210 {
		t.Fatalf("expected loose calories 210, got %v", estimate.Nutrients.Calories)
	}
	if estimate.Nutrients.FatG != 9 {
		t.Fatalf("expected loose fat 9, got %v", estimate.Nutrients.FatG)
	}
	// Unparsed keys fall back to per-key defaults.
	if estimate.Nutrients.PotassiumMG != 300 {
		t.Fatalf("expected default potassium 300, got %v", estimate.Nutrients.PotassiumMG)
	}
}

func TestStrictValuesOverrideLoose(t *testing.T) {
	// The object is valid, but the surrounding prose repeats a key with a
	// different number. Strict parsing must win.
	response := `calories: 999 as I was saying {"calories": 120, "protein_g": 10}`

	est := newTestEstimator(t, staticBackend("llm_test_model", response))
	estimate, err := est.Estimate(context.Background(), "bowl of rice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.Nutrients.Calories != 120 {
		t.Fatalf("expected strict calories 120 to override loose 999, got %v", estimate.Nutrients.Calories)
	}
}

func TestEstimateClampsAdversarialValues(t *testing.T) {
	response := `{"calories": 900000, "protein_g": -50, "sodium_mg": 99999, "iron_mg": 4000, "potassium_mg": 12000}`

	est := newTestEstimator(t, staticBackend("llm_test_model", response))
	estimate, err := est.Estimate(context.Background(), "mystery stew")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.Nutrients.Calories != 2000 {
		t.Fatalf("expected calories clamped to 2000, got %v", estimate.Nutrients.Calories)
	}
	if estimate.Nutrients.ProteinG != 0 {
		t.Fatalf("expected negative protein floored to 0, got %v", estimate.Nutrients.ProteinG)
	}
	if estimate.Nutrients.SodiumMG != 10000 {
		t.Fatalf("expected sodium clamped to 10000, got %v", estimate.Nutrients.SodiumMG)
	}
	if estimate.Nutrients.IronMG != 100 {
		t.Fatalf("expected iron clamped to 100, got %v", estimate.Nutrients.IronMG)
	}
	if estimate.Nutrients.PotassiumMG != 10000 {
		t.Fatalf("expected potassium clamped to 10000, got %v", estimate.Nutrients.PotassiumMG)
	}
}

func TestEstimateTagsParseFallback(t *testing.T) {
	est := newTestEstimator(t, staticBackend("llm_test_model", "I cannot help with that."))
	estimate, err := est.Estimate(context.Background(), "something")
	if err != nil {
		t.Fatalf("parse failure must not surface an error: %v", err)
	}
	if estimate.Source != "llm_test_model_fallback_parse" {
		t.Fatalf("unexpected source: %s", estimate.Source)
	}
	if !estimate.Fallback() {
		t.Fatalf("parse fallback should be marked degraded")
	}
	if estimate.Nutrients.Calories != 150 {
		t.Fatalf("expected fallback calories 150, got %v", estimate.Nutrients.Calories)
	}
}

func TestEstimateFallsThroughToSecondaryBackend(t *testing.T) {
	est := newTestEstimator(t,
		failingBackend("llm_primary"),
		staticBackend("llm_secondary", `{"calories": 42}`),
	)
	estimate, err := est.Estimate(context.Background(), "snack")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.Source != "llm_secondary" {
		t.Fatalf("expected secondary backend source, got %s", estimate.Source)
	}
	if estimate.Nutrients.Calories != 42 {
		t.Fatalf("expected calories 42, got %v", estimate.Nutrients.Calories)
	}
}

func TestEstimateNeverPanicsAndTagsErrorFallback(t *testing.T) {
	est := newTestEstimator(t, failingBackend("llm_primary"), failingBackend("llm_secondary"))

	for _, input := range []string{"", "egg", `{"weird": "input"}`, strings.Repeat("x", 4096)} {
		estimate, err := est.Estimate(context.Background(), input)
		if err == nil {
			t.Fatalf("expected joined backend error for %q", input)
		}
		if estimate.Source != "llm_primary_fallback_error" {
			t.Fatalf("unexpected source for %q: %s", input, estimate.Source)
		}
		for key, value := range estimate.Nutrients.Map() {
			if value < 0 {
				t.Fatalf("fallback %s is negative: %v", key, value)
			}
		}
	}
}
