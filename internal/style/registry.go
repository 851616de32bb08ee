// Package style holds the style preset catalog and the combination math
// that merges presets into one effective generation configuration.
package style

import (
	"errors"
	"fmt"
	"maps"

	"github.com/fleveque/stylelab/internal/model"
)

var (
	// ErrNotFound is returned when a style id is not in the registry.
	ErrNotFound = errors.New("style not found")
	// ErrInvalidInput is returned for malformed combination requests.
	ErrInvalidInput = errors.New("invalid style input")
)

// Registry is the read-only, ordered catalog of style presets.
// It has no mutating methods, so it is safe to share between goroutines.
type Registry struct {
	presets []model.StylePreset
	byID    map[string]int
}

// NewRegistry builds a registry from an ordered preset list.
// Duplicate ids are rejected.
func NewRegistry(presets []model.StylePreset) (*Registry, error) {
	r := &Registry{
		presets: make([]model.StylePreset, 0, len(presets)),
		byID:    make(map[string]int, len(presets)),
	}
	for _, p := range presets {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: preset %q has an empty id", ErrInvalidInput, p.Name)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate style id %q", ErrInvalidInput, p.ID)
		}
		r.byID[p.ID] = len(r.presets)
		r.presets = append(r.presets, clonePreset(p))
	}
	return r, nil
}

// NewDefaultRegistry returns the registry of built-in presets.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultPresets())
	if err != nil {
		// The built-in catalog is static; a failure here is a programming error.
		panic(err)
	}
	return r
}

// All returns the presets in catalog order.
func (r *Registry) All() []model.StylePreset {
	out := make([]model.StylePreset, len(r.presets))
	for i, p := range r.presets {
		out[i] = clonePreset(p)
	}
	return out
}

// FindByID returns the preset with the given id.
func (r *Registry) FindByID(id string) (model.StylePreset, bool) {
	i, ok := r.byID[id]
	if !ok {
		return model.StylePreset{}, false
	}
	return clonePreset(r.presets[i]), true
}

// Name returns the display name of a style, or the id itself when unknown.
func (r *Registry) Name(id string) string {
	if p, ok := r.FindByID(id); ok {
		return p.Name
	}
	return id
}

// IsMixCompatible is true only if both presets exist and both allow mixing.
func (r *Registry) IsMixCompatible(a, b string) bool {
	pa, okA := r.FindByID(a)
	pb, okB := r.FindByID(b)
	return okA && okB && pa.MixCompatible && pb.MixCompatible
}

// clonePreset copies the Extra map so callers cannot mutate the catalog.
func clonePreset(p model.StylePreset) model.StylePreset {
	p.TechnicalParams.Extra = maps.Clone(p.TechnicalParams.Extra)
	return p
}

// DefaultPresets is the built-in catalog, in display order.
func DefaultPresets() []model.StylePreset {
	return []model.StylePreset{
		{
			ID:             "realistic",
			Name:           "Realistic",
			Category:       "Photography",
			Description:    "Photorealistic renders with fine detail",
			Prompt:         "highly detailed, photorealistic, 8k resolution, masterpiece",
			NegativePrompt: "cartoon, anime, illustration, painting, drawing, artificial, fake",
			MixCompatible:  true,
			TechnicalParams: model.TechnicalParams{
				Guidance:  7.5,
				BaseModel: model.BaseModelSDXL,
				Extra: map[string]model.ParamValue{
					"steps":   model.Number(50),
					"sampler": model.String("DPM++ 2M Karras"),
				},
			},
		},
		{
			ID:             "anime",
			Name:           "Anime",
			Category:       "Illustration",
			Description:    "Clean line art and saturated anime colors",
			Prompt:         "anime style, high quality, detailed, sharp, vibrant colors",
			NegativePrompt: "photorealistic, photograph, 3d, western style",
			MixCompatible:  true,
			TechnicalParams: model.TechnicalParams{
				Guidance:  9,
				BaseModel: model.BaseModelSD15,
				Extra: map[string]model.ParamValue{
					"steps":    model.Number(30),
					"clipSkip": model.Number(2),
				},
			},
		},
		{
			ID:             "digital-art",
			Name:           "Digital Art",
			Category:       "Digital Art",
			Description:    "Polished digital painting",
			Prompt:         "digital art, high quality, detailed, sharp, vibrant colors, artistic",
			NegativePrompt: "photograph, realistic, noisy, blurry",
			MixCompatible:  true,
			TechnicalParams: model.TechnicalParams{
				Guidance:  8,
				BaseModel: model.BaseModelSD21,
				Extra: map[string]model.ParamValue{
					"steps":   model.Number(40),
					"sampler": model.String("Euler a"),
				},
			},
		},
		{
			ID:             "cyberpunk",
			Name:           "Cyberpunk",
			Category:       "Digital Art",
			Description:    "Neon-lit futuristic cityscapes",
			Prompt:         "cyberpunk, neon lights, futuristic city, high contrast, cinematic",
			NegativePrompt: "pastoral, daylight, vintage",
			MixCompatible:  true,
			TechnicalParams: model.TechnicalParams{
				Guidance:  8.5,
				BaseModel: model.BaseModelSDXL,
				Extra: map[string]model.ParamValue{
					"steps":   model.Number(40),
					"sampler": model.String("DPM++ SDE Karras"),
				},
			},
		},
		{
			ID:             "watercolor",
			Name:           "Watercolor",
			Category:       "Fine Art",
			Description:    "Soft washes and paper texture",
			Prompt:         "watercolor painting, soft edges, paper texture, flowing pigments",
			NegativePrompt: "",
			MixCompatible:  true,
			TechnicalParams: model.TechnicalParams{
				Guidance:  6.5,
				BaseModel: model.BaseModelSD15,
				Extra: map[string]model.ParamValue{
					"steps": model.Number(30),
				},
			},
		},
		{
			ID:             "abstract",
			Name:           "Abstract",
			Category:       "Fine Art",
			Description:    "Non-representational shapes and bold color",
			Prompt:         "abstract art, non-representational, geometric shapes, bold colors",
			NegativePrompt: "realistic, recognizable objects, faces, natural",
			MixCompatible:  false,
			TechnicalParams: model.TechnicalParams{
				Guidance:  7,
				BaseModel: model.BaseModelSD21,
				Extra: map[string]model.ParamValue{
					"steps": model.Number(35),
				},
			},
		},
	}
}
