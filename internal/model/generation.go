package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AIModel describes the capabilities of one inference model.
type AIModel struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Provider          string   `json:"provider"`
	Repo              string   `json:"repo"` // provider-side model identifier
	MaxBatchSize      int      `json:"maxBatchSize"`
	MaxPromptLength   int      `json:"maxPromptLength"`
	SupportedFeatures []string `json:"supportedFeatures"`
}

// Supports reports whether the model accepts the named parameter.
func (m AIModel) Supports(feature string) bool {
	for _, f := range m.SupportedFeatures {
		if f == feature {
			return true
		}
	}
	return false
}

// Feature names used in AIModel.SupportedFeatures.
const (
	FeatureNegativePrompt = "negative_prompt"
	FeatureGuidanceScale  = "guidance_scale"
	FeatureSeed           = "seed"
)

// AIModels is the ordered catalog of models a batch may target.
var AIModels = []AIModel{
	{
		ID:                BaseModelSD15,
		Name:              "Stable Diffusion v1.5",
		Provider:          "huggingface",
		Repo:              "runwayml/stable-diffusion-v1-5",
		MaxBatchSize:      4,
		MaxPromptLength:   500,
		SupportedFeatures: []string{FeatureNegativePrompt, FeatureGuidanceScale, FeatureSeed},
	},
	{
		ID:                BaseModelSD21,
		Name:              "Stable Diffusion v2.1",
		Provider:          "huggingface",
		Repo:              "stabilityai/stable-diffusion-2-1",
		MaxBatchSize:      4,
		MaxPromptLength:   500,
		SupportedFeatures: []string{FeatureNegativePrompt, FeatureGuidanceScale, FeatureSeed},
	},
	{
		ID:                BaseModelSDXL,
		Name:              "Stable Diffusion XL",
		Provider:          "huggingface",
		Repo:              "stabilityai/stable-diffusion-xl-base-1.0",
		MaxBatchSize:      4,
		MaxPromptLength:   500,
		SupportedFeatures: []string{FeatureNegativePrompt, FeatureGuidanceScale, FeatureSeed},
	},
	{
		ID:                "kandinsky-2.2",
		Name:              "Kandinsky v2.2",
		Provider:          "huggingface",
		Repo:              "kandinsky-community/kandinsky-2-2-decoder",
		MaxBatchSize:      2,
		MaxPromptLength:   300,
		SupportedFeatures: []string{FeatureNegativePrompt, FeatureGuidanceScale},
	},
}

// FindModel looks up a catalog entry by id.
func FindModel(id string) (AIModel, bool) {
	for _, m := range AIModels {
		if m.ID == id {
			return m, true
		}
	}
	return AIModel{}, false
}

// GenerationParams is the per-request input of a batch.
type GenerationParams struct {
	Model          string    `json:"model"`
	Prompt         string    `json:"prompt"`
	NegativePrompt string    `json:"negativePrompt,omitempty"`
	Guidance       float64   `json:"guidance"`
	Seed           *int64    `json:"seed,omitempty"`
	BatchSize      int       `json:"batchSize"`
	StylePreset    string    `json:"stylePreset,omitempty"`
	SelectedStyles []string  `json:"selectedStyles,omitempty"`
	StyleWeights   []float64 `json:"styleWeights,omitempty"`
	StyleStrength  *float64  `json:"styleStrength,omitempty"`
}

// Styles returns the style ids the request asks for. SelectedStyles wins
// over the single StylePreset field.
func (p GenerationParams) Styles() []string {
	if len(p.SelectedStyles) > 0 {
		return p.SelectedStyles
	}
	if p.StylePreset != "" {
		return []string{p.StylePreset}
	}
	return nil
}

// GenerationMetadata is stored alongside each generated image.
// It implements driver.Valuer and sql.Scanner so sqlx can persist it as JSON.
type GenerationMetadata struct {
	Model          string   `json:"model"`
	Provider       string   `json:"provider,omitempty"`
	Guidance       float64  `json:"guidance"`
	Seed           int64    `json:"seed"`
	NegativePrompt string   `json:"negativePrompt,omitempty"`
	StylePreset    string   `json:"stylePreset,omitempty"`
	CombinedWith   string   `json:"combinedWith,omitempty"`
	StyleStrength  *float64 `json:"styleStrength,omitempty"`
	ThumbnailURL   string   `json:"thumbnailUrl,omitempty"`
	QualityScore   *float64 `json:"qualityScore,omitempty"`
}

func (m GenerationMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *GenerationMetadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = GenerationMetadata{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), m)
	case []byte:
		return json.Unmarshal(v, m)
	default:
		return fmt.Errorf("cannot scan %T into GenerationMetadata", src)
	}
}

// GenerationResult is the output of one successful unit generation.
type GenerationResult struct {
	ID          string             `json:"id"`
	URL         string             `json:"url"`
	Seed        int64              `json:"seed"`
	Prompt      string             `json:"prompt"`
	Model       string             `json:"model"`
	StylePreset string             `json:"stylePreset,omitempty"`
	Metadata    GenerationMetadata `json:"metadata"`
}

// GenerationStatus is the persisted state of an art generation row.
type GenerationStatus string

const (
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// ArtGeneration is one row of the art_generations table.
type ArtGeneration struct {
	ID          string             `db:"id" json:"id"`
	Prompt      string             `db:"prompt" json:"prompt"`
	ResultURL   string             `db:"result_url" json:"resultUrl"`
	Model       string             `db:"model" json:"model"`
	Seed        int64              `db:"seed" json:"seed"`
	StylePreset string             `db:"style_preset" json:"stylePreset"`
	Status      GenerationStatus   `db:"status" json:"status"`
	Metadata    GenerationMetadata `db:"metadata" json:"metadata"`
	CreatedAt   time.Time          `db:"created_at" json:"createdAt"`
}
