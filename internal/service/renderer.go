package service

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/generation"
	"github.com/fleveque/stylelab/internal/inference"
	"github.com/fleveque/stylelab/internal/model"
	"github.com/fleveque/stylelab/internal/storage"
)

// maxRandomSeed bounds seeds drawn for units that did not ask for one.
const maxRandomSeed = 1_000_000

// Scorer rates a rendered image 0-10. *scoring.Provider satisfies it.
type Scorer interface {
	Enabled() bool
	Score(ctx context.Context, generationID string, image []byte, prompt string) (float64, error)
}

// Renderer implements generation.Renderer: inference, PNG normalisation,
// upload, quality scoring, and the art_generations row.
type Renderer struct {
	client       inference.Client
	processor    *ImageProcessor
	store        storage.ObjectStore
	generations  storage.GenerationRepository
	scorer       Scorer // nil means defaultScore for every image
	defaultScore float64
	logger       *zap.Logger

	randomSeed func() int64
}

func NewRenderer(
	client inference.Client,
	processor *ImageProcessor,
	store storage.ObjectStore,
	generations storage.GenerationRepository,
	scorer Scorer,
	defaultScore float64,
	logger *zap.Logger,
) *Renderer {
	return &Renderer{
		client:       client,
		processor:    processor,
		store:        store,
		generations:  generations,
		scorer:       scorer,
		defaultScore: defaultScore,
		logger:       logger,
		randomSeed:   func() int64 { return rand.Int64N(maxRandomSeed) },
	}
}

func (r *Renderer) Render(ctx context.Context, unit generation.Unit) (model.GenerationResult, error) {
	// The seed is resolved here so the reported seed is the one used.
	// Models without seed support pick their own, reported as 0.
	var seed int64
	if unit.Model.Supports(model.FeatureSeed) {
		seed = r.randomSeed()
		if unit.Seed != nil {
			seed = *unit.Seed
		}
	}

	raw, err := r.client.GenerateImage(ctx, inference.Request{
		Model:          unit.Model,
		Prompt:         unit.Prompt,
		NegativePrompt: unit.NegativePrompt,
		Guidance:       unit.Guidance,
		Seed:           seed,
	})
	if err != nil {
		return model.GenerationResult{}, err
	}

	img, err := r.processor.Process(raw)
	if err != nil {
		return model.GenerationResult{}, fmt.Errorf("processing image: %w", err)
	}

	id := uuid.NewString()
	imagePath := "generated/" + id + ".png"
	thumbPath := "thumbnails/" + id + ".png"
	if err := r.store.Upload(ctx, imagePath, img.PNG, "image/png"); err != nil {
		return model.GenerationResult{}, err
	}
	if err := r.store.Upload(ctx, thumbPath, img.Thumbnail, "image/png"); err != nil {
		return model.GenerationResult{}, err
	}

	score := r.score(ctx, id, img.PNG, unit.Prompt)
	meta := model.GenerationMetadata{
		Model:          unit.Model.ID,
		Provider:       r.client.ProviderName(),
		Guidance:       unit.Guidance,
		Seed:           seed,
		NegativePrompt: unit.NegativePrompt,
		StylePreset:    unit.StylePreset,
		CombinedWith:   unit.CombinedWith,
		StyleStrength:  unit.StyleStrength,
		ThumbnailURL:   r.store.PublicURL(thumbPath),
		QualityScore:   &score,
	}

	gen := &model.ArtGeneration{
		ID:          id,
		Prompt:      unit.Prompt,
		ResultURL:   r.store.PublicURL(imagePath),
		Model:       unit.Model.ID,
		Seed:        seed,
		StylePreset: unit.StylePreset,
		Status:      model.GenerationCompleted,
		Metadata:    meta,
	}
	if err := r.generations.Create(ctx, gen); err != nil {
		return model.GenerationResult{}, err
	}

	r.logger.Debug("unit rendered",
		zap.String("id", id),
		zap.String("model", unit.Model.ID),
		zap.Int64("seed", seed),
		zap.Float64("quality_score", score),
	)

	return model.GenerationResult{
		ID:          id,
		URL:         gen.ResultURL,
		Seed:        seed,
		Prompt:      unit.Prompt,
		Model:       unit.Model.ID,
		StylePreset: unit.StylePreset,
		Metadata:    meta,
	}, nil
}

// score never fails the unit; a scorer error falls back to the default.
func (r *Renderer) score(ctx context.Context, id string, image []byte, prompt string) float64 {
	if r.scorer == nil || !r.scorer.Enabled() {
		return r.defaultScore
	}
	s, err := r.scorer.Score(ctx, id, image, prompt)
	if err != nil {
		r.logger.Warn("quality scoring failed, using default",
			zap.String("id", id),
			zap.Error(err),
		)
		return r.defaultScore
	}
	return s
}
