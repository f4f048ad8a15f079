package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSONObjectHandlesFences(t *testing.T) {
	response := "Sure! Here you go:\n```json\n{\"calories\": 100, \"protein_g\": 5}\n```\nEnjoy."
	block, err := ExtractJSONObject(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed map[string]float64
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		t.Fatalf("extracted block is not valid JSON: %v", err)
	}
	if parsed["calories"] != 100 {
		t.Fatalf("expected calories 100, got %v", parsed["calories"])
	}
}

func TestExtractJSONObjectHandlesNestedBraces(t *testing.T) {
	response := `prefix {"outer": {"inner": 1}, "note": "a } inside a string"} suffix`
	block, err := ExtractJSONObject(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block != `{"outer": {"inner": 1}, "note": "a } inside a string"}` {
		t.Fatalf("unexpected block: %s", block)
	}
}

func TestExtractJSONObjectSalvagesTruncatedOutput(t *testing.T) {
	response := `{"calories": 120, "protein_g": 8} and then the model rambled {`
	block, err := ExtractJSONObject(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed map[string]float64
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		t.Fatalf("salvaged block is not valid JSON: %v", err)
	}
	if parsed["protein_g"] != 8 {
		t.Fatalf("expected protein 8, got %v", parsed["protein_g"])
	}
}

func TestExtractJSONObjectRejectsGarbage(t *testing.T) {
	if _, err := ExtractJSONObject("no json here"); err == nil {
		t.Fatalf("expected error for response without JSON")
	}
}

func TestExtractJSONArray(t *testing.T) {
	response := "```json\n[{\"food\": \"latte\", \"brand\": \"Starbucks\"}]\n```"
	block, err := ExtractJSONArray(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed []map[string]any
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		t.Fatalf("extracted block is not valid JSON: %v", err)
	}
	if len(parsed) != 1 || parsed[0]["food"] != "latte" {
		t.Fatalf("unexpected parse result: %#v", parsed)
	}
}

func TestExtractJSONArrayRejectsObjects(t *testing.T) {
	if _, err := ExtractJSONArray(`{"food": "latte"}`); err == nil {
		t.Fatalf("expected error when response holds no array")
	}
}
