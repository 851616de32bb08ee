package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/cache"
	"github.com/fleveque/stylelab/internal/model"
	"github.com/fleveque/stylelab/internal/style"
)

type fakeAnalytics struct {
	mu    sync.Mutex
	data  map[string]model.StyleAnalytics
	calls int
	err   error
}

func (f *fakeAnalytics) GetStyleAnalytics(_ context.Context, id string) (model.StyleAnalytics, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return model.StyleAnalytics{}, false, f.err
	}
	a, ok := f.data[id]
	return a, ok, nil
}

func stats(id string, successRate, quality, guidance float64, combos ...model.Combination) model.StyleAnalytics {
	return model.StyleAnalytics{
		StyleID:             id,
		UsageCount:          10,
		AverageQualityScore: quality,
		PopularCombinations: combos,
		Performance: model.Performance{
			GenerationSpeed: 3,
			SuccessRate:     successRate,
			AverageGuidance: guidance,
		},
	}
}

func newTestEngine(data map[string]model.StyleAnalytics) (*Engine, *fakeAnalytics) {
	src := &fakeAnalytics{data: data}
	return NewEngine(style.NewDefaultRegistry(), src, cache.New(0), 0, zap.NewNop()), src
}

func TestGetRecommendations_PreferredCategoryRanksHigher(t *testing.T) {
	e, _ := newTestEngine(map[string]model.StyleAnalytics{
		"realistic":   stats("realistic", 50, 1, 7),
		"digital-art": stats("digital-art", 50, 1, 8),
	})

	recs, err := e.GetRecommendations(context.Background(), Params{PreferredCategory: "Digital Art"})
	require.NoError(t, err)

	require.Len(t, recs, 2)
	assert.Equal(t, "digital-art", recs[0].StyleID)
	assert.Greater(t, recs[0].Confidence, recs[1].Confidence)
	assert.InDelta(t, 0.84, recs[0].Confidence, 1e-9)
	assert.InDelta(t, 0.7, recs[1].Confidence, 1e-9)
	assert.Equal(t, "Matches preferred category Digital Art", recs[0].Reason)
	assert.Equal(t, "Based on historical performance data", recs[1].Reason)
	assert.Equal(t, 8.0, recs[0].SuggestedGuidance)
}

func TestGetRecommendations_SkipsStylesWithoutAnalytics(t *testing.T) {
	e, _ := newTestEngine(map[string]model.StyleAnalytics{
		"anime": stats("anime", 100, 2, 9),
	})

	recs, err := e.GetRecommendations(context.Background(), Params{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "anime", recs[0].StyleID)
}

func TestGetRecommendations_BaseStyleBoostAndClamp(t *testing.T) {
	e, _ := newTestEngine(map[string]model.StyleAnalytics{
		"anime": stats("anime", 50, 1, 9,
			model.Combination{Styles: [2]string{"anime", "realistic"}, Count: 3, AverageScore: 2}),
		"watercolor": stats("watercolor", 100, 8, 6.5),
	})

	recs, err := e.GetRecommendations(context.Background(), Params{BaseStyle: "realistic"})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// watercolor: (60 + 320) / 100 clamps to 1.
	assert.Equal(t, "watercolor", recs[0].StyleID)
	assert.Equal(t, 1.0, recs[0].Confidence)

	// anime: 0.7 * (1 + 2/10)
	assert.Equal(t, "anime", recs[1].StyleID)
	assert.InDelta(t, 0.84, recs[1].Confidence, 1e-9)
	assert.Equal(t, "Good compatibility with Realistic", recs[1].Reason)
}

func TestGetRecommendations_Cached(t *testing.T) {
	e, src := newTestEngine(map[string]model.StyleAnalytics{
		"anime": stats("anime", 100, 2, 9),
	})
	ctx := context.Background()

	_, err := e.GetRecommendations(ctx, Params{Prompt: "a cat"})
	require.NoError(t, err)
	calls := src.calls

	_, err = e.GetRecommendations(ctx, Params{Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, calls, src.calls, "second call must be served from cache")

	_, err = e.GetRecommendations(ctx, Params{Prompt: "a dog"})
	require.NoError(t, err)
	assert.Greater(t, src.calls, calls, "different params use a different key")
}

func TestGetRecommendations_PropagatesErrors(t *testing.T) {
	e, src := newTestEngine(nil)
	boom := errors.New("db down")
	src.err = boom

	_, err := e.GetRecommendations(context.Background(), Params{})
	assert.ErrorIs(t, err, boom)
}

func TestGetStyleCombinations(t *testing.T) {
	e, _ := newTestEngine(map[string]model.StyleAnalytics{
		"anime": stats("anime", 80, 7, 8.5,
			model.Combination{Styles: [2]string{"anime", "watercolor"}, Count: 4, AverageScore: 6},
			model.Combination{Styles: [2]string{"anime", "cyberpunk"}, Count: 2, AverageScore: 9},
		),
	})

	combos, err := e.GetStyleCombinations(context.Background(), "anime")
	require.NoError(t, err)
	require.Len(t, combos, 2)

	assert.Equal(t, [2]string{"anime", "cyberpunk"}, combos[0].Styles)
	assert.InDelta(t, 0.9, combos[0].Confidence, 1e-9)
	assert.Equal(t, "Successfully used 2 times", combos[0].Reason)
	assert.Equal(t, 8.5, combos[0].SuggestedGuidance)
	for _, c := range combos {
		assert.Equal(t, 0.5, c.SuggestedRatio)
	}
}

func TestGetStyleCombinations_NoAnalytics(t *testing.T) {
	e, _ := newTestEngine(nil)
	combos, err := e.GetStyleCombinations(context.Background(), "abstract")
	require.NoError(t, err)
	assert.Empty(t, combos)
}

func TestGetOptimalParameters_Defaults(t *testing.T) {
	e, _ := newTestEngine(nil)
	ctx := context.Background()

	got, err := e.GetOptimalParameters(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, OptimalParameters{Guidance: 7.5, Reason: "Default parameters"}, got)

	got, err = e.GetOptimalParameters(ctx, []string{"anime"})
	require.NoError(t, err)
	assert.Equal(t, OptimalParameters{Guidance: 7.5, Reason: "No historical data available"}, got)
}

func TestGetOptimalParameters_WeightedGuidanceAndRatio(t *testing.T) {
	e, _ := newTestEngine(map[string]model.StyleAnalytics{
		"anime": stats("anime", 75, 7, 9,
			model.Combination{Styles: [2]string{"anime", "cyberpunk"}, Count: 3, AverageScore: 8}),
		"cyberpunk": stats("cyberpunk", 25, 6, 5),
	})

	got, err := e.GetOptimalParameters(context.Background(), []string{"anime", "cyberpunk"})
	require.NoError(t, err)

	// (9*75 + 5*25) / 100
	assert.InDelta(t, 8.0, got.Guidance, 1e-9)
	require.NotNil(t, got.Ratio)
	assert.Equal(t, 0.5, *got.Ratio)
	assert.Contains(t, got.Reason, "Successfully used 3 times")
}

func TestGetOptimalParameters_AllFailures(t *testing.T) {
	e, _ := newTestEngine(map[string]model.StyleAnalytics{
		"anime":     stats("anime", 0, 2, 9),
		"cyberpunk": stats("cyberpunk", 0, 2, 7),
	})

	got, err := e.GetOptimalParameters(context.Background(), []string{"anime", "cyberpunk", "realistic"})
	require.NoError(t, err)
	assert.InDelta(t, 8.0, got.Guidance, 1e-9)
	assert.Nil(t, got.Ratio)
}
