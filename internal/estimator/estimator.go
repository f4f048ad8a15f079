// Package estimator turns a food display name into a per-serving nutrient
// vector by asking a text-generation backend and parsing its output
// defensively. Estimates are always usable: any backend or parse failure
// degrades to a fixed fallback vector with a provenance tag, never an
// unusable result.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nutrilog/backend/internal/llm"
	"github.com/nutrilog/backend/internal/nutrition"
)

const defaultTimeout = 30 * time.Second

var errMissingBackend = errors.New("estimator: at least one generation backend is required")

// Estimate is a per-serving nutrient vector with its provenance. A Source
// ending in "_fallback_error" or "_fallback_parse" marks degraded quality;
// the catalog uses that suffix to schedule re-estimation.
type Estimate struct {
	Nutrients nutrition.Vector
	Source    string
}

// Fallback reports whether the estimate came from a degraded path.
func (e Estimate) Fallback() bool {
	return strings.Contains(e.Source, "fallback")
}

// Config configures an Estimator.
type Config struct {
	// Backends are tried in order; the first one that produces a response
	// wins. Later entries are consulted only on call failure, never on
	// low-quality output.
	Backends []llm.Generator
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Estimator queries generation backends for nutrition label values.
type Estimator struct {
	backends []llm.Generator
	timeout  time.Duration
	logger   *zap.Logger
}

// New validates the configuration and constructs an Estimator.
func New(cfg Config) (*Estimator, error) {
	if len(cfg.Backends) == 0 {
		return nil, errMissingBackend
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{
		backends: cfg.Backends,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

func buildPrompt(name string) string {
	return fmt.Sprintf(`Extract nutrition label values for a single typical serving of: %q.
If the name includes a quantity (e.g., "2 servings" or "2 cups"), keep values per ONE serving only.
Return JSON only with these exact keys (per serving): calories, protein_g, total_carbs_g, fiber_g, sugars_g, total_fat_g, saturated_fat_g, trans_fat_g, cholesterol_mg, sodium_mg, vitamin_d_mcg, calcium_mg, iron_mg, potassium_mg.
No text, only JSON.`, name)
}

// fallbackVector is returned whenever no usable numbers can be produced.
// Propagating it is preferred over refusing the meal; the source tag makes
// the degradation visible and recoverable.
func fallbackVector() nutrition.Vector {
	return nutrition.Normalize(map[string]float64{
		"calories":        150,
		"protein_g":       5,
		"carbs_g":         20,
		"fat_g":           5,
		"fiber_g":         2,
		"sugars_g":        5,
		"saturated_fat_g": 1,
		"trans_fat_g":     0,
		"cholesterol_mg":  10,
		"sodium_mg":       100,
		"vitamin_d_mcg":   0,
		"calcium_mg":      50,
		"iron_mg":         1,
		"potassium_mg":    200,
	})
}

// Estimate resolves a nutrient vector for the display name. The returned
// Estimate is always usable. The error is non-nil only when every backend
// call failed; callers may log it but need not treat it as fatal.
func (e *Estimator) Estimate(ctx context.Context, foodDisplayName string) (Estimate, error) {
	prompt := buildPrompt(foodDisplayName)

	var failures []error
	for _, backend := range e.backends {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		response, err := backend.Generate(callCtx, prompt)
		cancel()
		if err != nil {
			e.logger.Warn("nutrition estimate backend failed",
				zap.String("backend", backend.Label()),
				zap.String("food", foodDisplayName),
				zap.Error(err))
			failures = append(failures, fmt.Errorf("%s: %w", backend.Label(), err))
			continue
		}

		merged := mergeParses(parseLoose(response), parseStrict(response))
		if merged == nil {
			// The backend answered but produced no extractable numbers.
			return Estimate{
				Nutrients: fallbackVector(),
				Source:    backend.Label() + "_fallback_parse",
			}, nil
		}

		return Estimate{
			Nutrients: buildVector(merged),
			Source:    backend.Label(),
		}, nil
	}

	return Estimate{
		Nutrients: fallbackVector(),
		Source:    e.backends[0].Label() + "_fallback_error",
	}, errors.Join(failures...)
}
