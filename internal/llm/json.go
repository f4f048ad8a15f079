package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeFencePattern = regexp.MustCompile("```(?:json)?\\s*")

// StripFences removes markdown code fences that models often wrap around
// JSON payloads.
func StripFences(response string) string {
	return strings.TrimSpace(codeFencePattern.ReplaceAllString(response, ""))
}

// ExtractJSONObject returns the first balanced {...} block in a model
// response after stripping code fences. When the block is unbalanced
// (truncated output), it salvages by cutting to the last closing brace.
func ExtractJSONObject(response string) (string, error) {
	cleaned := StripFences(response)

	if block, ok := extractBalanced(cleaned, '{', '}'); ok {
		if json.Valid([]byte(block)) {
			return block, nil
		}
	}

	// Truncated output: drop everything after the last closing brace and retry.
	if last := strings.LastIndexByte(cleaned, '}'); last > 0 {
		start := strings.IndexByte(cleaned, '{')
		if start >= 0 && start < last {
			candidate := cleaned[start : last+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("llm: no valid JSON object in response")
}

// ExtractJSONArray returns the first balanced [...] block in a model
// response after stripping code fences.
func ExtractJSONArray(response string) (string, error) {
	cleaned := StripFences(response)

	if block, ok := extractBalanced(cleaned, '[', ']'); ok {
		if json.Valid([]byte(block)) {
			return block, nil
		}
	}

	trimmed := strings.TrimSpace(cleaned)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "[") {
		return trimmed, nil
	}

	return "", fmt.Errorf("llm: no valid JSON array in response")
}

// extractBalanced finds the first balanced block opened by openChar,
// tracking string literals and escapes so braces inside values do not
// confuse the depth count.
func extractBalanced(s string, openChar, closeChar byte) (string, bool) {
	start := strings.IndexByte(s, openChar)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
