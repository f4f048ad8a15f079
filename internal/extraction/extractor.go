// Package extraction turns free-text meal descriptions into structured
// food mentions. The primary path asks a text-generation backend to
// segment the sentence; a deterministic heuristic segmenter keeps the
// pipeline available when the backend is degraded.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nutrilog/backend/internal/llm"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrNoFoods reports that neither extraction tier identified a food.
	// This is the single case where meal creation refuses to proceed.
	ErrNoFoods = errors.New("extraction: could not identify any foods in that description")

	errMissingGenerator = errors.New("extraction: generation backend is required")
)

// Mention is one structured food reference extracted from meal text.
// Quantity is a serving multiplier, not a gram weight.
type Mention struct {
	Food     string  `json:"food"`
	Brand    string  `json:"brand"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// DisplayName joins brand and food into the human-facing lookup name.
func (m Mention) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(m.Brand) + " " + strings.TrimSpace(m.Food))
	if name == "" {
		return m.Food
	}
	return name
}

// Config configures an Extractor.
type Config struct {
	Generator llm.Generator
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Extractor segments meal text into mentions.
type Extractor struct {
	generator llm.Generator
	timeout   time.Duration
	logger    *zap.Logger
}

// New validates the configuration and constructs an Extractor.
func New(cfg Config) (*Extractor, error) {
	if cfg.Generator == nil {
		return nil, errMissingGenerator
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		generator: cfg.Generator,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func buildExtractionPrompt(text string) string {
	return fmt.Sprintf(`Identify distinct foods in this meal description: %q.
Return JSON ONLY as an array of objects with keys:
- food (string, the food name without brand words)
- brand (string|null, brand or restaurant if mentioned)
- quantity (number, default 1)
- unit (string, like "serving","cup","oz","g","slice","bottle")
Examples (input -> output):
  "I had a large Starbucks latte and a croissant" ->
  [{"food":"latte","brand":"Starbucks","quantity":1,"unit":"serving"},{"food":"croissant","brand":null,"quantity":1,"unit":"serving"}]
  "2 cups of cooked brown rice with 5 oz grilled chicken" ->
  [{"food":"cooked brown rice","brand":null,"quantity":2,"unit":"cup"},{"food":"grilled chicken","brand":null,"quantity":5,"unit":"oz"}]
Only return the JSON array. If nothing is found return [] with no extra text.`, text)
}

// Extract produces the ordered mention list for the meal text. The
// generation tier is tried first; any failure there counts as zero
// mentions and engages the heuristic tier. ErrNoFoods is returned only
// when both tiers come up empty.
func (e *Extractor) Extract(ctx context.Context, mealText string) ([]Mention, error) {
	mentions := e.extractWithGenerator(ctx, mealText)
	if len(mentions) == 0 {
		mentions = heuristicExtract(mealText)
	}
	if len(mentions) == 0 {
		return nil, ErrNoFoods
	}
	return mentions, nil
}

type rawMention struct {
	Food     string          `json:"food"`
	Name     string          `json:"name"`
	Brand    *string         `json:"brand"`
	Quantity json.RawMessage `json:"quantity"`
	Unit     string          `json:"unit"`
	Serving  string          `json:"serving"`
}

func (e *Extractor) extractWithGenerator(ctx context.Context, mealText string) []Mention {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	response, err := e.generator.Generate(callCtx, buildExtractionPrompt(mealText))
	if err != nil {
		e.logger.Warn("food extraction backend failed",
			zap.String("backend", e.generator.Label()),
			zap.Error(err))
		return nil
	}

	block, err := llm.ExtractJSONArray(response)
	if err != nil {
		e.logger.Warn("food extraction produced no array", zap.Error(err))
		return nil
	}

	var raws []rawMention
	if err := json.Unmarshal([]byte(block), &raws); err != nil {
		e.logger.Warn("food extraction array did not parse", zap.Error(err))
		return nil
	}

	mentions := make([]Mention, 0, len(raws))
	for _, raw := range raws {
		mention, ok := normalizeRawMention(raw)
		if !ok {
			continue
		}
		mentions = append(mentions, mention)
	}
	return mentions
}

func normalizeRawMention(raw rawMention) (Mention, bool) {
	food := strings.TrimSpace(raw.Food)
	if food == "" {
		food = strings.TrimSpace(raw.Name)
	}
	if food == "" {
		return Mention{}, false
	}

	brand := ""
	if raw.Brand != nil {
		brand = strings.TrimSpace(*raw.Brand)
	}

	quantity := 1.0
	if len(raw.Quantity) > 0 {
		// Models sometimes quote the number; accept both forms.
		var number float64
		if err := json.Unmarshal(raw.Quantity, &number); err != nil {
			var text string
			if err := json.Unmarshal(raw.Quantity, &text); err == nil {
				fmt.Sscanf(strings.TrimSpace(text), "%f", &number)
			}
		}
		if number > 0 {
			quantity = number
		}
	}

	unit := strings.TrimSpace(raw.Unit)
	if unit == "" {
		unit = strings.TrimSpace(raw.Serving)
	}
	if unit == "" {
		unit = "serving"
	}

	return Mention{Food: food, Brand: brand, Quantity: quantity, Unit: unit}, true
}
