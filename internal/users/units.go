package users

import (
	"math"
	"strings"
)

const (
	centimetersPerInch = 2.54
	kilogramsPerPound  = 0.453592
)

// HeightInput carries the raw height fields from a registration or
// profile update. Value is used for cm and inch units, Feet and Inches
// for the combined imperial form.
type HeightInput struct {
	Unit   string
	Value  *float64
	Feet   *float64
	Inches *float64
}

// WeightInput carries the raw weight fields from a registration or
// profile update.
type WeightInput struct {
	Unit  string
	Value *float64
}

// NormalizeHeight converts the input to centimeters. It returns nil when
// the unit is unknown or the values are absent or non-finite, so callers
// store an empty profile field instead of a bogus number.
func NormalizeHeight(input HeightInput) *float64 {
	switch strings.ToLower(input.Unit) {
	case "cm":
		return finiteOrNil(input.Value)
	case "in", "inch", "inches":
		value := finiteOrNil(input.Value)
		if value == nil {
			return nil
		}
		converted := *value * centimetersPerInch
		return &converted
	case "ft", "feet", "ftin":
		totalInches := finiteOrZero(input.Feet)*12 + finiteOrZero(input.Inches)
		if totalInches <= 0 {
			return nil
		}
		converted := totalInches * centimetersPerInch
		return &converted
	}
	return nil
}

// NormalizeWeight converts the input to kilograms, with the same nil
// semantics as NormalizeHeight.
func NormalizeWeight(input WeightInput) *float64 {
	switch strings.ToLower(input.Unit) {
	case "kg", "kgs", "kilograms":
		return finiteOrNil(input.Value)
	case "lb", "lbs", "pounds":
		value := finiteOrNil(input.Value)
		if value == nil {
			return nil
		}
		converted := *value * kilogramsPerPound
		return &converted
	}
	return nil
}

func finiteOrNil(value *float64) *float64 {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return nil
	}
	copied := *value
	return &copied
}

func finiteOrZero(value *float64) float64 {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return 0
	}
	return *value
}
