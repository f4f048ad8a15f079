package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

// The heuristic tier is intentionally crude: it exists to keep meal
// logging available while the generation backend is down, not to match
// the backend's segmentation quality.

var (
	framingPattern = regexp.MustCompile(`(?i)\b(i\s+ate|i\s+had|i\s+drank|for\s+breakfast|for\s+lunch|for\s+dinner|for\s+snack|today|this\s+morning|this\s+evening)\b`)

	phraseSplitPattern      = regexp.MustCompile(`[,;]`)
	conjunctionSplitPattern = regexp.MustCompile(`(?i)\s+\b(?:and|with)\b\s+`)

	unitPattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(cups?|tbsp|tablespoons?|tsp|teaspoons?|slices?|oz|ounces?|g|grams?|ml|bottles?|cans?|pack|pieces?|servings?)\b`)

	ofPattern        = regexp.MustCompile(`(?i)\bof\b`)
	fromBrandPattern = regexp.MustCompile(`(?i)\bfrom\s+([A-Za-z0-9'’\-\s]+)$`)
)

func heuristicExtract(mealText string) []Mention {
	cleaned := strings.TrimSpace(framingPattern.ReplaceAllString(mealText, ""))
	if cleaned == "" {
		return nil
	}

	var phrases []string
	for _, chunk := range phraseSplitPattern.Split(cleaned, -1) {
		phrases = append(phrases, conjunctionSplitPattern.Split(chunk, -1)...)
	}

	var mentions []Mention
	for _, raw := range phrases {
		chunk := strings.TrimSpace(raw)
		if chunk == "" {
			continue
		}

		quantity := 1.0
		unit := "serving"
		food := chunk
		if match := unitPattern.FindStringSubmatch(chunk); match != nil {
			if parsed, err := strconv.ParseFloat(match[1], 64); err == nil && parsed > 0 {
				quantity = parsed
			}
			unit = strings.ToLower(match[2])
			food = strings.TrimSpace(ofPattern.ReplaceAllString(strings.Replace(chunk, match[0], "", 1), ""))
		}

		brand := ""
		if match := fromBrandPattern.FindStringSubmatch(food); match != nil {
			brand = strings.TrimSpace(match[1])
			food = strings.TrimSpace(strings.Replace(food, match[0], "", 1))
		}

		// Leading capitalized word reads as a brand when enough words remain
		// for a food name, e.g. "Starbucks iced latte".
		if brand == "" {
			words := strings.Fields(food)
			if len(words) > 2 && words[0][0] >= 'A' && words[0][0] <= 'Z' {
				brand = words[0]
				food = strings.Join(words[1:], " ")
			}
		}

		mention, ok := normalizeRawMention(rawMention{Food: food, Brand: &brand, Unit: unit})
		if !ok {
			continue
		}
		mention.Quantity = quantity
		mentions = append(mentions, mention)
	}
	return mentions
}
