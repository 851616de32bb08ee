// Package scoring rates rendered images on a 0-10 quality scale using a
// vision-capable LLM. The score feeds the style analytics log.
package scoring

import (
	"context"
	"fmt"
)

// MaxScore is the top of the quality scale.
const MaxScore = 10.0

// Rating is one scorer's verdict on an image.
type Rating struct {
	Score     float64
	Rationale string
}

// Client is implemented by each LLM vendor. Provider tries them in order.
type Client interface {
	ScoreImage(ctx context.Context, image []byte, prompt string) (*Rating, error)
	ProviderName() string
	ModelName() string
}

const submitToolName = "submit_quality_score"

// submitScoreInput is the schema of the tool the model calls to answer.
type submitScoreInput struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

var scoreSchema = map[string]interface{}{
	"score": map[string]interface{}{
		"type":        "number",
		"minimum":     0,
		"maximum":     MaxScore,
		"description": "Overall quality from 0 (unusable) to 10 (excellent).",
	},
	"rationale": map[string]interface{}{
		"type":        "string",
		"description": "One sentence explaining the score.",
	},
}

func buildPrompt(prompt string) string {
	return fmt.Sprintf(`Rate the attached AI-generated image.

It was generated from this prompt:
%q

Judge prompt adherence, composition, and the absence of artifacts such as
distorted anatomy, garbled text, or noise. Call the %s tool exactly once
with a score between 0 and 10.`, prompt, submitToolName)
}

func clampScore(s float64) float64 {
	return max(0, min(s, MaxScore))
}
