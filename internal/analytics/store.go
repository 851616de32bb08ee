// Package analytics records per-generation outcomes and derives the
// per-style and per-pair aggregates the recommendation layer ranks on.
package analytics

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/cache"
	"github.com/fleveque/stylelab/internal/model"
)

// ErrInvalidRecord is returned by TrackGeneration for a record with no style.
var ErrInvalidRecord = errors.New("invalid analytics record")

// Repository is the persistence the store needs. storage.AnalyticsRepository
// satisfies it; tests use an in-memory fake.
type Repository interface {
	Insert(ctx context.Context, rec *model.AnalyticsRecord) error
	ListByStyle(ctx context.Context, styleID string) ([]model.AnalyticsRecord, error)
	TopCombined(ctx context.Context, limit int) ([]model.AnalyticsRecord, error)
}

// Store is the write path and the cached read path of style analytics.
// The durable log lives in Repository; aggregates are a derived view kept
// in the shared cache under "style_analytics_<id>".
type Store struct {
	repo   Repository
	cache  *cache.Cache
	ttl    time.Duration
	logger *zap.Logger

	// versions counts writes per style. A read only caches its aggregate
	// when no write touched the style while it was computing.
	mu       sync.Mutex
	versions map[string]uint64
}

// NewStore creates a store. A non-positive ttl means cache.AnalyticsTTL.
func NewStore(repo Repository, c *cache.Cache, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = cache.AnalyticsTTL
	}
	return &Store{
		repo:     repo,
		cache:    c,
		ttl:      ttl,
		logger:   logger,
		versions: make(map[string]uint64),
	}
}

// CacheKey is the cache key of a style's aggregate.
func CacheKey(styleID string) string {
	return "style_analytics_" + styleID
}

// TrackGeneration appends rec to the log and drops the cached aggregates of
// both styles it touches. Aggregates are recomputed on the next read.
func (s *Store) TrackGeneration(ctx context.Context, rec *model.AnalyticsRecord) error {
	if rec.StyleID == "" {
		return ErrInvalidRecord
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return err
	}

	s.invalidate(rec.StyleID)
	if partner, ok := rec.Partner(); ok {
		s.invalidate(partner)
	}
	return nil
}

func (s *Store) invalidate(styleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[styleID]++
	s.cache.Delete(CacheKey(styleID))
}

func (s *Store) version(styleID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[styleID]
}

// GetStyleAnalytics returns the aggregate for styleID. ok is false when no
// records exist for the style yet.
func (s *Store) GetStyleAnalytics(ctx context.Context, styleID string) (model.StyleAnalytics, bool, error) {
	key := CacheKey(styleID)
	if cached, ok := cache.Lookup[model.StyleAnalytics](s.cache, key); ok {
		return cloneAnalytics(cached), true, nil
	}

	s.logger.Debug("analytics cache miss", zap.String("style_id", styleID))

	seen := s.version(styleID)
	recs, err := s.repo.ListByStyle(ctx, styleID)
	if err != nil {
		return model.StyleAnalytics{}, false, err
	}
	if len(recs) == 0 {
		return model.StyleAnalytics{}, false, nil
	}

	result := calculateMetrics(styleID, recs)

	s.mu.Lock()
	if s.versions[styleID] == seen {
		s.cache.Set(key, result, s.ttl)
	} else {
		s.logger.Debug("analytics changed during read, not caching", zap.String("style_id", styleID))
	}
	s.mu.Unlock()

	return cloneAnalytics(result), true, nil
}

// GetPopularCombinations reduces the limit highest-scoring combined records
// to pair aggregates. It samples by score; it is not time-windowed.
func (s *Store) GetPopularCombinations(ctx context.Context, limit int) ([]model.Combination, error) {
	if limit <= 0 {
		limit = 5
	}
	recs, err := s.repo.TopCombined(ctx, limit)
	if err != nil {
		return nil, err
	}
	return groupCombinations(recs), nil
}

func calculateMetrics(styleID string, recs []model.AnalyticsRecord) model.StyleAnalytics {
	var quality, speed, guidance float64
	successes := 0
	for _, r := range recs {
		quality += r.QualityScore
		speed += r.GenerationTime
		guidance += r.Guidance
		if r.Success {
			successes++
		}
	}
	n := float64(len(recs))

	return model.StyleAnalytics{
		StyleID:             styleID,
		UsageCount:          len(recs),
		AverageQualityScore: quality / n,
		PopularCombinations: groupCombinations(recs),
		Performance: model.Performance{
			GenerationSpeed: speed / n,
			SuccessRate:     100 * float64(successes) / n,
			AverageGuidance: guidance / n,
		},
	}
}

// groupCombinations groups records by their unordered style pair. Pairs are
// reported in sorted order; groups are ordered by count, ties keep the
// order in which the pair was first seen.
func groupCombinations(recs []model.AnalyticsRecord) []model.Combination {
	type group struct {
		pair  [2]string
		count int
		total float64
	}
	var groups []*group
	index := make(map[[2]string]*group)

	for _, r := range recs {
		partner, ok := r.Partner()
		if !ok {
			continue
		}
		pair := [2]string{r.StyleID, partner}
		if pair[1] < pair[0] {
			pair[0], pair[1] = pair[1], pair[0]
		}
		g, ok := index[pair]
		if !ok {
			g = &group{pair: pair}
			index[pair] = g
			groups = append(groups, g)
		}
		g.count++
		g.total += r.QualityScore
	}

	out := make([]model.Combination, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.Combination{
			Styles:       g.pair,
			Count:        g.count,
			AverageScore: g.total / float64(g.count),
		})
	}
	slices.SortStableFunc(out, func(a, b model.Combination) int {
		return b.Count - a.Count
	})
	return out
}

// cloneAnalytics copies the combinations slice so callers cannot mutate
// the cached aggregate.
func cloneAnalytics(a model.StyleAnalytics) model.StyleAnalytics {
	a.PopularCombinations = slices.Clone(a.PopularCombinations)
	return a
}
