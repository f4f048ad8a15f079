// Package llm wraps the text-generation backends used for food extraction
// and nutrient estimation behind a single Generator capability.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrAllBackendsFailed reports that every generator in a chain failed.
var ErrAllBackendsFailed = errors.New("llm: all backends failed")

// Generator produces free text for a prompt. Implementations must honor
// context cancellation and deadlines.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Label identifies the backend for provenance tagging, e.g.
	// "llm_ollama_llama3".
	Label() string
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc struct {
	Fn   func(ctx context.Context, prompt string) (string, error)
	Name string
}

// Generate implements Generator.
func (g GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	if g.Fn == nil {
		return "", errors.New("llm: generator func not configured")
	}
	return g.Fn(ctx, prompt)
}

// Label implements Generator.
func (g GeneratorFunc) Label() string {
	if g.Name == "" {
		return "llm_func"
	}
	return g.Name
}

type chain struct {
	generators []Generator
}

// Chain composes generators as an ordered fallback: each is tried in turn
// and the first successful response wins. The chain fails only when every
// backend fails.
func Chain(generators ...Generator) Generator {
	return &chain{generators: generators}
}

// Generate implements Generator.
func (c *chain) Generate(ctx context.Context, prompt string) (string, error) {
	if len(c.generators) == 0 {
		return "", ErrAllBackendsFailed
	}
	var failures []error
	for _, generator := range c.generators {
		response, err := generator.Generate(ctx, prompt)
		if err == nil {
			return response, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", generator.Label(), err))
	}
	return "", fmt.Errorf("%w: %w", ErrAllBackendsFailed, errors.Join(failures...))
}

// Label implements Generator. The chain is identified by its primary
// backend so provenance tags stay stable across fallbacks.
func (c *chain) Label() string {
	labels := make([]string, 0, len(c.generators))
	for _, generator := range c.generators {
		labels = append(labels, generator.Label())
	}
	if len(labels) == 0 {
		return "llm_chain"
	}
	return strings.Join(labels, "+")
}
