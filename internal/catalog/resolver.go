package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nutrilog/backend/internal/estimator"
	"github.com/nutrilog/backend/internal/extraction"
)

var (
	errMissingStore     = errors.New("catalog: store is required")
	errMissingEstimator = errors.New("catalog: estimator is required")
)

// NutrientEstimator abstracts the estimation backend for injection.
type NutrientEstimator interface {
	Estimate(ctx context.Context, foodDisplayName string) (estimator.Estimate, error)
}

// HistorySource reads previously logged items so returning foods do not
// need re-estimation. A nil entry with nil error means no history.
type HistorySource interface {
	FindByName(ctx context.Context, displayName string) (*Entry, error)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	Store     Store
	History   HistorySource
	Estimator NutrientEstimator
	// ForceRefresh is an operating mode, not a per-call flag: when set,
	// cache and history reads are skipped so every resolution produces a
	// fresh estimate. Intended for non-production environments.
	ForceRefresh bool
	Logger       *zap.Logger
}

// Resolver maps mentions to per-serving catalog entries. Resolution never
// fails outward: the estimator's guaranteed fallback means the final step
// always produces a usable entry.
type Resolver struct {
	store        Store
	history      HistorySource
	estimator    NutrientEstimator
	forceRefresh bool
	logger       *zap.Logger
}

// NewResolver validates the configuration and constructs a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Estimator == nil {
		return nil, errMissingEstimator
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:        cfg.Store,
		history:      cfg.History,
		estimator:    cfg.Estimator,
		forceRefresh: cfg.ForceRefresh,
		logger:       logger,
	}, nil
}

// Resolve returns the catalog entry for a mention, consulting the cache,
// then logged history, then a fresh estimate. Fallback-tagged entries are
// treated as misses so a degraded guess is re-estimated once the backend
// recovers instead of poisoning the cache.
func (r *Resolver) Resolve(ctx context.Context, mention extraction.Mention) (Entry, error) {
	key := LookupKey(mention.Brand, mention.Food)
	displayName := mention.DisplayName()

	var prior *Entry
	if !r.forceRefresh {
		if cached, ok := r.store.Get(key); ok {
			if !cached.NeedsRefresh() {
				return cached, nil
			}
			prior = &cached
		}
		if prior == nil && r.history != nil {
			fromHistory, err := r.history.FindByName(ctx, displayName)
			if err != nil {
				r.logger.Warn("history lookup failed",
					zap.String("food", displayName),
					zap.Error(err))
			} else if fromHistory != nil {
				if !fromHistory.NeedsRefresh() {
					r.store.Put(key, *fromHistory)
					return *fromHistory, nil
				}
				prior = fromHistory
			}
		}
	}

	estimate, err := r.estimator.Estimate(ctx, displayName)
	if err != nil {
		// The estimate is still usable; the tag records the degradation.
		r.logger.Warn("nutrition estimation degraded",
			zap.String("food", displayName),
			zap.Error(err))
	}

	entry := Entry{
		ID:        entryID(key, prior),
		Name:      displayName,
		Serving:   servingFor(mention, prior),
		Nutrients: estimate.Nutrients,
		Source:    estimate.Source,
	}
	r.store.Put(key, entry)
	return entry, nil
}

func entryID(key string, prior *Entry) string {
	if prior != nil && prior.ID != "" {
		return prior.ID
	}
	slug := strings.ReplaceAll(key, " ", "-")
	if slug == "" {
		slug = "unknown"
	}
	return fmt.Sprintf("food-%s", slug)
}

func servingFor(mention extraction.Mention, prior *Entry) Serving {
	serving := Serving{Unit: strings.TrimSpace(mention.Unit), Grams: DefaultServingGrams}
	if prior != nil {
		if serving.Unit == "" {
			serving.Unit = prior.Serving.Unit
		}
		if prior.Serving.Grams > 0 {
			serving.Grams = prior.Serving.Grams
		}
	}
	if serving.Unit == "" {
		serving.Unit = "serving"
	}
	return serving
}
