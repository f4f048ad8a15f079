package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/nutrilog/backend/internal/estimator"
	"github.com/nutrilog/backend/internal/extraction"
	"github.com/nutrilog/backend/internal/nutrition"
)

type stubEstimator struct {
	estimate estimator.Estimate
	err      error
	calls    int
}

func (s *stubEstimator) Estimate(context.Context, string) (estimator.Estimate, error) {
	s.calls++
	return s.estimate, s.err
}

type stubHistory struct {
	entry *Entry
	err   error
	calls int
}

func (s *stubHistory) FindByName(context.Context, string) (*Entry, error) {
	s.calls++
	return s.entry, s.err
}

func cleanEstimate(calories float64) estimator.Estimate {
	return estimator.Estimate{
		Nutrients: nutrition.Normalize(map[string]float64{"calories": calories}),
		Source:    "llm_test_model",
	}
}

func newTestResolver(t *testing.T, cfg ResolverConfig) *Resolver {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	resolver, err := NewResolver(cfg)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return resolver
}

func TestLookupKeyNormalizesBrandAndFood(t *testing.T) {
	if key := LookupKey(" Starbucks ", " Latte "); key != "starbucks latte" {
		t.Fatalf("unexpected key: %q", key)
	}
	if key := LookupKey("", "Egg"); key != "egg" {
		t.Fatalf("brandless key should omit the brand, got %q", key)
	}
}

func TestResolveIsIdempotentForCleanEntries(t *testing.T) {
	est := &stubEstimator{estimate: cleanEstimate(120)}
	resolver := newTestResolver(t, ResolverConfig{Store: NewMemoryStore(), Estimator: est})
	mention := extraction.Mention{Food: "quinoa salad", Quantity: 1, Unit: "serving"}

	first, err := resolver.Resolve(context.Background(), mention)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := resolver.Resolve(context.Background(), mention)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.calls != 1 {
		t.Fatalf("expected exactly one estimator call, got %d", est.calls)
	}
	if first != second {
		t.Fatalf("expected identical entries, got %+v and %+v", first, second)
	}
	if first.ID != "food-quinoa-salad" {
		t.Fatalf("unexpected entry id: %s", first.ID)
	}
}

func TestResolveUsesSeedCatalog(t *testing.T) {
	store := NewMemoryStore()
	store.Seed()
	est := &stubEstimator{estimate: cleanEstimate(999)}
	resolver := newTestResolver(t, ResolverConfig{Store: store, Estimator: est})

	entry, err := resolver.Resolve(context.Background(), extraction.Mention{Food: "egg", Quantity: 1, Unit: "serving"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Source != "catalog" {
		t.Fatalf("expected seed entry, got source %s", entry.Source)
	}
	if entry.Nutrients.Calories != 72 {
		t.Fatalf("expected seed calories 72, got %v", entry.Nutrients.Calories)
	}
	if est.calls != 0 {
		t.Fatalf("seed hit must not call the estimator")
	}
}

func TestResolveRefreshesFallbackTaggedEntries(t *testing.T) {
	store := NewMemoryStore()
	store.Put("mystery soup", Entry{
		ID:        "food-mystery-soup",
		Name:      "mystery soup",
		Serving:   Serving{Unit: "bowl", Grams: 250},
		Nutrients: nutrition.Normalize(map[string]float64{"calories": 150}),
		Source:    "llm_test_model_fallback_error",
	})
	est := &stubEstimator{estimate: cleanEstimate(240)}
	resolver := newTestResolver(t, ResolverConfig{Store: store, Estimator: est})

	entry, err := resolver.Resolve(context.Background(), extraction.Mention{Food: "mystery soup", Quantity: 1, Unit: "bowl"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.calls != 1 {
		t.Fatalf("fallback-tagged entry must trigger re-estimation")
	}
	if entry.Nutrients.Calories != 240 {
		t.Fatalf("expected refreshed calories 240, got %v", entry.Nutrients.Calories)
	}
	if entry.ID != "food-mystery-soup" {
		t.Fatalf("refresh should keep the prior id, got %s", entry.ID)
	}
	if entry.Serving.Grams != 250 {
		t.Fatalf("refresh should keep the prior serving grams, got %v", entry.Serving.Grams)
	}

	// The refreshed entry is clean, so the next resolve hits the cache.
	if _, err := resolver.Resolve(context.Background(), extraction.Mention{Food: "mystery soup", Quantity: 1, Unit: "bowl"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.calls != 1 {
		t.Fatalf("clean refreshed entry must not re-estimate, got %d calls", est.calls)
	}
}

func TestResolveReadsHistoryBeforeEstimating(t *testing.T) {
	history := &stubHistory{entry: &Entry{
		ID:        "food-overnight-oats",
		Name:      "overnight oats",
		Serving:   Serving{Unit: "jar", Grams: 180},
		Nutrients: nutrition.Normalize(map[string]float64{"calories": 310}),
		Source:    "history",
	}}
	est := &stubEstimator{estimate: cleanEstimate(999)}
	store := NewMemoryStore()
	resolver := newTestResolver(t, ResolverConfig{Store: store, History: history, Estimator: est})

	entry, err := resolver.Resolve(context.Background(), extraction.Mention{Food: "overnight oats", Quantity: 1, Unit: "serving"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Source != "history" {
		t.Fatalf("expected history entry, got source %s", entry.Source)
	}
	if est.calls != 0 {
		t.Fatalf("history hit must not call the estimator")
	}
	if cached, ok := store.Get("overnight oats"); !ok || cached.Source != "history" {
		t.Fatalf("history entry should populate the cache, got %+v ok=%v", cached, ok)
	}
	// Second resolve hits the cache, not history again.
	if _, err := resolver.Resolve(context.Background(), extraction.Mention{Food: "overnight oats", Quantity: 1, Unit: "serving"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if history.calls != 1 {
		t.Fatalf("expected one history lookup, got %d", history.calls)
	}
}

func TestResolveSurvivesHistoryFailure(t *testing.T) {
	history := &stubHistory{err: errors.New("database offline")}
	est := &stubEstimator{estimate: cleanEstimate(180)}
	resolver := newTestResolver(t, ResolverConfig{Store: NewMemoryStore(), History: history, Estimator: est})

	entry, err := resolver.Resolve(context.Background(), extraction.Mention{Food: "bagel", Quantity: 1, Unit: "serving"})
	if err != nil {
		t.Fatalf("history failure must not fail resolution: %v", err)
	}
	if entry.Nutrients.Calories != 180 {
		t.Fatalf("expected estimated calories 180, got %v", entry.Nutrients.Calories)
	}
}

func TestForceRefreshSkipsCacheAndHistory(t *testing.T) {
	store := NewMemoryStore()
	store.Seed()
	history := &stubHistory{}
	est := &stubEstimator{estimate: cleanEstimate(70)}
	resolver := newTestResolver(t, ResolverConfig{Store: store, History: history, Estimator: est, ForceRefresh: true})

	for range 2 {
		if _, err := resolver.Resolve(context.Background(), extraction.Mention{Food: "egg", Quantity: 1, Unit: "piece"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if est.calls != 2 {
		t.Fatalf("force refresh must re-estimate every time, got %d calls", est.calls)
	}
	if history.calls != 0 {
		t.Fatalf("force refresh must not consult history")
	}
}

func TestResolveNeverFailsOnDegradedEstimate(t *testing.T) {
	est := &stubEstimator{
		estimate: estimator.Estimate{
			Nutrients: nutrition.Normalize(map[string]float64{"calories": 150}),
			Source:    "llm_primary_fallback_error",
		},
		err: errors.New("all backends failed"),
	}
	resolver := newTestResolver(t, ResolverConfig{Store: NewMemoryStore(), Estimator: est})

	entry, err := resolver.Resolve(context.Background(), extraction.Mention{Food: "stew", Quantity: 1, Unit: "serving"})
	if err != nil {
		t.Fatalf("degraded estimate must still resolve: %v", err)
	}
	if !entry.NeedsRefresh() {
		t.Fatalf("degraded entry should be marked for refresh")
	}
}
