package service

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/cache"
	"github.com/fleveque/stylelab/internal/generation"
	"github.com/fleveque/stylelab/internal/model"
	"github.com/fleveque/stylelab/internal/style"
)

// Tracker receives one analytics record per finished unit.
// *analytics.Store satisfies it.
type Tracker interface {
	TrackGeneration(ctx context.Context, rec *model.AnalyticsRecord) error
}

// Studio is the caller side of the orchestrator: it runs batches and
// reports every unit outcome to analytics. It also serves cached style
// combinations and previews.
type Studio struct {
	orchestrator *generation.Orchestrator
	combiner     *style.Combiner
	tracker      Tracker
	cache        *cache.Cache
	logger       *zap.Logger
}

func NewStudio(
	orchestrator *generation.Orchestrator,
	combiner *style.Combiner,
	tracker Tracker,
	c *cache.Cache,
	logger *zap.Logger,
) *Studio {
	return &Studio{
		orchestrator: orchestrator,
		combiner:     combiner,
		tracker:      tracker,
		cache:        c,
		logger:       logger,
	}
}

// Prepare validates and admits a batch without running it.
func (s *Studio) Prepare(b *generation.Batch, params model.GenerationParams) (*generation.Plan, error) {
	return s.orchestrator.Prepare(b, params)
}

// Execute runs a prepared batch, tracking each unit as it finishes.
func (s *Studio) Execute(ctx context.Context, b *generation.Batch, plan *generation.Plan) (generation.Outcome, error) {
	next := b.OnUnit
	b.OnUnit = func(rep generation.UnitReport) {
		s.report(ctx, rep)
		if next != nil {
			next(rep)
		}
	}
	return s.orchestrator.Execute(ctx, b, plan)
}

// Generate prepares and executes a batch.
func (s *Studio) Generate(ctx context.Context, b *generation.Batch, params model.GenerationParams) (generation.Outcome, error) {
	plan, err := s.Prepare(b, params)
	if err != nil {
		return generation.Outcome{State: generation.StateFailed}, err
	}
	return s.Execute(ctx, b, plan)
}

// Combine returns the merged configuration of styleIDs, served from the
// cache when the same selection was combined before. Weights that do not
// form a complementary pair bypass the cache.
func (s *Studio) Combine(styleIDs []string, weights []float64) (model.StyleResult, error) {
	key, cacheable := combinationKey(styleIDs, weights)
	if cacheable {
		if cached, ok := cache.Lookup[model.StyleResult](s.cache, key); ok {
			return cached, nil
		}
	}

	result, err := s.combiner.Combine(styleIDs, weights)
	if err != nil {
		return model.StyleResult{}, err
	}
	if cacheable {
		s.cache.Set(key, result, 0)
	}
	return result, nil
}

func combinationKey(styleIDs []string, weights []float64) (string, bool) {
	var ratio float64
	if len(styleIDs) > 1 {
		ratio = 0.5
	}
	if len(styleIDs) > 1 && weights != nil {
		if len(weights) != 2 || math.Abs(weights[0]+weights[1]-1) > 1e-9 {
			return "", false
		}
		ratio = weights[0]
	}
	key := cache.StyleCombinationKey(styleIDs, ratio)
	// The key sorts ids; the merged prompt keeps selection order.
	if len(styleIDs) > 1 && styleIDs[0] > styleIDs[1] {
		key += "_rev"
	}
	return key, true
}

// StylePreview returns the URL of a recent single-style render, if any.
func (s *Studio) StylePreview(styleID string) (string, bool) {
	return cache.Lookup[string](s.cache, cache.StylePreviewKey(styleID))
}

// report turns a unit outcome into an analytics record. Units without a
// style have nothing to attribute and are skipped, as are units aborted by
// the caller. Tracking errors are logged; they never fail the batch.
func (s *Studio) report(ctx context.Context, rep generation.UnitReport) {
	u := rep.Unit
	if u.StylePreset == "" || rep.Cancelled {
		return
	}

	rec := &model.AnalyticsRecord{
		StyleID:        u.StylePreset,
		GenerationTime: rep.Duration.Seconds(),
		Success:        rep.Err == nil,
		Guidance:       u.Guidance,
	}
	if u.CombinedWith != "" {
		partner := u.CombinedWith
		rec.CombinedWith = &partner
	}
	if rep.Result != nil {
		if q := rep.Result.Metadata.QualityScore; q != nil {
			rec.QualityScore = *q
		}
		if u.CombinedWith == "" {
			s.cache.Set(cache.StylePreviewKey(u.StylePreset), rep.Result.URL, 0)
		}
	}

	// Analytics outlive the request that produced them.
	if err := s.tracker.TrackGeneration(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("tracking generation",
			zap.String("style_id", rec.StyleID),
			zap.Error(err),
		)
	}
}
