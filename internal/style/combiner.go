package style

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/fleveque/stylelab/internal/model"
)

// MaxCombinedStyles is the most presets a single combination may merge.
const MaxCombinedStyles = 2

// baseModelPriority ranks base models when presets disagree. Unknown
// identifiers rank 0.
var baseModelPriority = map[string]int{
	model.BaseModelSDXL: 3,
	model.BaseModelSD21: 2,
	model.BaseModelSD15: 1,
}

// Combiner merges presets from a registry. It holds no mutable state:
// the same ids and weights always yield the same result.
type Combiner struct {
	registry *Registry
}

func NewCombiner(registry *Registry) *Combiner {
	return &Combiner{registry: registry}
}

// Combine merges one or two presets. With a single id the preset's own
// fields are returned unchanged and weights are ignored. With two ids and
// no weights the split is 0.5/0.5.
func (c *Combiner) Combine(styleIDs []string, weights []float64) (model.StyleResult, error) {
	if len(styleIDs) == 0 {
		return model.StyleResult{}, fmt.Errorf("%w: at least one style is required", ErrInvalidInput)
	}
	if len(styleIDs) > MaxCombinedStyles {
		return model.StyleResult{}, fmt.Errorf("%w: at most %d styles can be combined, got %d",
			ErrInvalidInput, MaxCombinedStyles, len(styleIDs))
	}

	presets := make([]model.StylePreset, len(styleIDs))
	for i, id := range styleIDs {
		p, ok := c.registry.FindByID(id)
		if !ok {
			return model.StyleResult{}, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		presets[i] = p
	}

	if len(presets) == 1 {
		p := presets[0]
		return model.StyleResult{
			Prompt:          p.Prompt,
			NegativePrompt:  p.NegativePrompt,
			Guidance:        p.TechnicalParams.Guidance,
			BaseModel:       p.TechnicalParams.BaseModel,
			TechnicalParams: maps.Clone(p.TechnicalParams.Extra),
		}, nil
	}

	if weights == nil {
		weights = equalWeights(len(presets))
	}
	if len(weights) != len(presets) {
		return model.StyleResult{}, fmt.Errorf("%w: %d weights for %d styles",
			ErrInvalidInput, len(weights), len(presets))
	}

	return merge(presets, weights), nil
}

func merge(presets []model.StylePreset, weights []float64) model.StyleResult {
	prompts := make([]string, len(presets))
	var negatives []string
	var guidance float64

	best := 0
	for i, p := range presets {
		prompts[i] = fmt.Sprintf("(%s) %s", p.Prompt, formatWeight(weights[i]))
		if p.NegativePrompt != "" {
			negatives = append(negatives, p.NegativePrompt)
		}
		guidance += weights[i] * p.TechnicalParams.Guidance

		// Strictly greater: ties and unknown models keep the earlier pick.
		if baseModelPriority[p.TechnicalParams.BaseModel] > baseModelPriority[presets[best].TechnicalParams.BaseModel] {
			best = i
		}
	}

	return model.StyleResult{
		Prompt:          strings.Join(prompts, " + "),
		NegativePrompt:  strings.Join(negatives, ", "),
		Guidance:        guidance,
		BaseModel:       presets[best].TechnicalParams.BaseModel,
		TechnicalParams: mergeExtra(presets, weights),
	}
}

// mergeExtra sums numeric parameters by weight across the presets that
// define them. Other values keep whichever preset defined them first.
func mergeExtra(presets []model.StylePreset, weights []float64) map[string]model.ParamValue {
	out := make(map[string]model.ParamValue)
	for i, p := range presets {
		keys := slices.Sorted(maps.Keys(p.TechnicalParams.Extra))
		for _, k := range keys {
			v := p.TechnicalParams.Extra[k]
			existing, seen := out[k]
			n, isNum := v.Float()
			switch {
			case !seen && isNum:
				out[k] = model.Number(weights[i] * n)
			case !seen:
				out[k] = v
			case isNum:
				if sum, ok := existing.Float(); ok {
					out[k] = model.Number(sum + weights[i]*n)
				}
			}
		}
	}
	return out
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// formatWeight prints the literal weight, e.g. 0.5 or 1.
func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}
