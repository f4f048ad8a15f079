package catalog

import (
	"sync"

	"github.com/nutrilog/backend/internal/nutrition"
)

// Store is the injected cache collaborator for resolved entries.
// Implementations must replace entries atomically as whole values.
type Store interface {
	Get(key string) (Entry, bool)
	Put(key string, entry Entry)
}

// MemoryStore is a process-lifetime, unbounded in-memory Store. The
// key-space is bounded by the distinct foods users actually log, and
// stale fallback entries self-heal through re-estimation, so no eviction
// is needed.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

// Put implements Store.
func (s *MemoryStore) Put(key string, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
}

// Seed loads the fixed starter catalog.
func (s *MemoryStore) Seed() {
	s.Put("egg", Entry{
		ID:      "food-egg",
		Name:    "Egg, whole",
		Serving: Serving{Unit: "piece", Grams: 50},
		Nutrients: nutrition.Normalize(map[string]float64{
			"calories": 72, "protein_g": 6, "carbs_g": 0.4, "fat_g": 4.8,
		}),
		Source: "catalog",
	})
	s.Put("toast", Entry{
		ID:      "food-toast",
		Name:    "Toast, white bread slice",
		Serving: Serving{Unit: "slice", Grams: 30},
		Nutrients: nutrition.Normalize(map[string]float64{
			"calories": 80, "protein_g": 3, "carbs_g": 14, "fat_g": 1,
		}),
		Source: "catalog",
	})
}

var _ Store = (*MemoryStore)(nil)
