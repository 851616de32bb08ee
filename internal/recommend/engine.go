// Package recommend ranks styles and style pairs from their analytics.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fleveque/stylelab/internal/cache"
	"github.com/fleveque/stylelab/internal/model"
	"github.com/fleveque/stylelab/internal/style"
)

const (
	// DefaultGuidance is suggested when there is nothing to learn from.
	DefaultGuidance = 7.5
	// SuggestedRatio is the mix ratio offered for every pair. No per-pair
	// ratio is learned.
	SuggestedRatio = 0.5

	categoryBoost = 1.2
)

// AnalyticsSource provides per-style aggregates. *analytics.Store satisfies it.
type AnalyticsSource interface {
	GetStyleAnalytics(ctx context.Context, styleID string) (model.StyleAnalytics, bool, error)
}

// Params is the context a recommendation is made for. Every field is optional.
type Params struct {
	BaseStyle         string `json:"baseStyle,omitempty"`
	Prompt            string `json:"prompt,omitempty"`
	PreferredCategory string `json:"preferredCategory,omitempty"`
}

type Recommendation struct {
	StyleID           string  `json:"styleId"`
	Confidence        float64 `json:"confidence"`
	Reason            string  `json:"reason"`
	SuggestedGuidance float64 `json:"suggestedGuidance"`
}

type CombinationRecommendation struct {
	Styles            [2]string `json:"styles"`
	Confidence        float64   `json:"confidence"`
	Reason            string    `json:"reason"`
	SuggestedRatio    float64   `json:"suggestedRatio"`
	SuggestedGuidance float64   `json:"suggestedGuidance"`
}

// OptimalParameters is the suggested guidance, plus a mix ratio when the
// request named a known pair.
type OptimalParameters struct {
	Guidance float64  `json:"guidance"`
	Ratio    *float64 `json:"ratio,omitempty"`
	Reason   string   `json:"reason"`
}

// Engine derives recommendations. Results are cached in the shared cache
// under "recommendations_" and "combinations_" keys.
type Engine struct {
	registry  *style.Registry
	analytics AnalyticsSource
	cache     *cache.Cache
	ttl       time.Duration
	logger    *zap.Logger
}

// NewEngine creates an engine. A non-positive ttl means cache.AnalyticsTTL.
func NewEngine(registry *style.Registry, analytics AnalyticsSource, c *cache.Cache, ttl time.Duration, logger *zap.Logger) *Engine {
	if ttl <= 0 {
		ttl = cache.AnalyticsTTL
	}
	return &Engine{registry: registry, analytics: analytics, cache: c, ttl: ttl, logger: logger}
}

// GetRecommendations scores every style that has analytics, highest
// confidence first. Styles without analytics are left out.
func (e *Engine) GetRecommendations(ctx context.Context, params Params) ([]Recommendation, error) {
	keyJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding recommendation key: %w", err)
	}
	key := "recommendations_" + string(keyJSON)
	if cached, ok := cache.Lookup[[]Recommendation](e.cache, key); ok {
		return slices.Clone(cached), nil
	}

	presets := e.registry.All()
	ids := make([]string, len(presets))
	for i, p := range presets {
		ids[i] = p.ID
	}
	results, err := e.fetchAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	recs := make([]Recommendation, 0, len(presets))
	for i, preset := range presets {
		a := results[i]
		if a == nil {
			continue
		}

		// The two terms are on different scales (0..100 vs 0..10 scaled by
		// 40); the clamp below bounds the result.
		confidence := (a.Performance.SuccessRate*0.6 + a.AverageQualityScore*40) / 100
		reason := "Based on historical performance data"

		if params.PreferredCategory != "" && preset.Category == params.PreferredCategory {
			confidence *= categoryBoost
			reason = "Matches preferred category " + params.PreferredCategory
		}

		if params.BaseStyle != "" {
			// First matching pair wins, which may be the base style itself.
			if i := slices.IndexFunc(a.PopularCombinations, func(c model.Combination) bool {
				return c.Includes(params.BaseStyle)
			}); i >= 0 {
				confidence *= 1 + a.PopularCombinations[i].AverageScore/10
				reason = "Good compatibility with " + e.registry.Name(params.BaseStyle)
			}
		}

		recs = append(recs, Recommendation{
			StyleID:           preset.ID,
			Confidence:        min(confidence, 1),
			Reason:            reason,
			SuggestedGuidance: a.Performance.AverageGuidance,
		})
	}

	slices.SortStableFunc(recs, func(a, b Recommendation) int {
		return compareDesc(a.Confidence, b.Confidence)
	})

	e.cache.Set(key, recs, e.ttl)
	return slices.Clone(recs), nil
}

// GetStyleCombinations turns a style's popular pairs into mix suggestions.
func (e *Engine) GetStyleCombinations(ctx context.Context, styleID string) ([]CombinationRecommendation, error) {
	key := "combinations_" + styleID
	if cached, ok := cache.Lookup[[]CombinationRecommendation](e.cache, key); ok {
		return slices.Clone(cached), nil
	}

	a, ok, err := e.analytics.GetStyleAnalytics(ctx, styleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []CombinationRecommendation{}, nil
	}

	combos := make([]CombinationRecommendation, 0, len(a.PopularCombinations))
	for _, c := range a.PopularCombinations {
		combos = append(combos, CombinationRecommendation{
			Styles:            c.Styles,
			Confidence:        c.AverageScore / 10,
			Reason:            fmt.Sprintf("Successfully used %d times", c.Count),
			SuggestedRatio:    SuggestedRatio,
			SuggestedGuidance: a.Performance.AverageGuidance,
		})
	}
	slices.SortStableFunc(combos, func(a, b CombinationRecommendation) int {
		return compareDesc(a.Confidence, b.Confidence)
	})

	e.cache.Set(key, combos, e.ttl)
	return slices.Clone(combos), nil
}

// GetOptimalParameters suggests a guidance for the given styles, weighting
// each style's average guidance by its success rate.
func (e *Engine) GetOptimalParameters(ctx context.Context, styles []string) (OptimalParameters, error) {
	if len(styles) == 0 {
		return OptimalParameters{Guidance: DefaultGuidance, Reason: "Default parameters"}, nil
	}

	results, err := e.fetchAll(ctx, styles)
	if err != nil {
		return OptimalParameters{}, err
	}

	var weighted, weights, plain float64
	n := 0
	for _, a := range results {
		if a == nil {
			continue
		}
		n++
		weighted += a.Performance.AverageGuidance * a.Performance.SuccessRate
		weights += a.Performance.SuccessRate
		plain += a.Performance.AverageGuidance
	}
	if n == 0 {
		return OptimalParameters{Guidance: DefaultGuidance, Reason: "No historical data available"}, nil
	}

	out := OptimalParameters{Reason: "Based on historical performance data"}
	if weights > 0 {
		out.Guidance = weighted / weights
	} else {
		// Every style has only failures; fall back to the plain mean.
		out.Guidance = plain / float64(n)
	}

	if len(styles) == 2 {
		combos, err := e.GetStyleCombinations(ctx, styles[0])
		if err != nil {
			return OptimalParameters{}, err
		}
		for _, c := range combos {
			if c.Styles[0] == styles[1] || c.Styles[1] == styles[1] {
				ratio := c.SuggestedRatio
				out.Ratio = &ratio
				out.Reason = "Based on pair history: " + c.Reason
				break
			}
		}
	}
	return out, nil
}

// fetchAll loads analytics for ids concurrently. A nil entry means the
// style has no records.
func (e *Engine) fetchAll(ctx context.Context, ids []string) ([]*model.StyleAnalytics, error) {
	results := make([]*model.StyleAnalytics, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			a, ok, err := e.analytics.GetStyleAnalytics(gctx, id)
			if err != nil {
				return fmt.Errorf("analytics for %s: %w", id, err)
			}
			if ok {
				results[i] = &a
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Warn("fetching style analytics", zap.Error(err))
		return nil, err
	}
	return results, nil
}

func compareDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}
