package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/cache"
	"github.com/fleveque/stylelab/internal/generation"
	"github.com/fleveque/stylelab/internal/model"
	"github.com/fleveque/stylelab/internal/style"
)

// stubRenderer returns canned results; failAt < 0 never fails. started,
// when set, receives each unit index as it begins. release, when set,
// blocks each unit until a value is received.
type stubRenderer struct {
	failAt  int
	score   float64
	started chan int
	release chan struct{}
}

func (s *stubRenderer) Render(_ context.Context, u generation.Unit) (model.GenerationResult, error) {
	if s.started != nil {
		s.started <- u.Index
	}
	if s.release != nil {
		<-s.release
	}
	if u.Index == s.failAt {
		return model.GenerationResult{}, errors.New("provider timeout")
	}
	score := s.score
	return model.GenerationResult{
		ID:       fmt.Sprintf("gen-%d", u.Index),
		URL:      fmt.Sprintf("http://cdn/generated/%d.png", u.Index),
		Model:    u.Model.ID,
		Metadata: model.GenerationMetadata{QualityScore: &score},
	}, nil
}

type memTracker struct {
	mu   sync.Mutex
	recs []model.AnalyticsRecord
	err  error
}

func (m *memTracker) TrackGeneration(_ context.Context, rec *model.AnalyticsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, *rec)
	return m.err
}

func (m *memTracker) records() []model.AnalyticsRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AnalyticsRecord{}, m.recs...)
}

func newTestStudio(r generation.Renderer, tracker Tracker) (*Studio, *cache.Cache) {
	registry := style.NewDefaultRegistry()
	combiner := style.NewCombiner(registry)
	c := cache.New(0)
	o := generation.NewOrchestrator(combiner, r, generation.NewRateLimiter(100, time.Minute), zap.NewNop())
	return NewStudio(o, combiner, tracker, c, zap.NewNop()), c
}

func studioParams(styles ...string) model.GenerationParams {
	return model.GenerationParams{
		Model:          model.BaseModelSDXL,
		Prompt:         "a quiet harbour",
		Guidance:       7,
		BatchSize:      3,
		SelectedStyles: styles,
	}
}

func TestStudio_TracksEveryUnit(t *testing.T) {
	tracker := &memTracker{}
	s, _ := newTestStudio(&stubRenderer{failAt: 2, score: 7}, tracker)

	_, err := s.Generate(context.Background(), generation.NewBatch(), studioParams("anime", "cyberpunk"))
	var bf *generation.BatchFailedError
	require.ErrorAs(t, err, &bf)

	recs := tracker.records()
	require.Len(t, recs, 3, "successes and the failure are all reported")
	for _, r := range recs[:2] {
		assert.Equal(t, "anime", r.StyleID)
		require.NotNil(t, r.CombinedWith)
		assert.Equal(t, "cyberpunk", *r.CombinedWith)
		assert.True(t, r.Success)
		assert.Equal(t, 7.0, r.QualityScore)
		assert.InDelta(t, 8.75, r.Guidance, 1e-9)
	}
	assert.False(t, recs[2].Success)
	assert.Zero(t, recs[2].QualityScore)
}

func TestStudio_KeepsCallerOnUnit(t *testing.T) {
	s, _ := newTestStudio(&stubRenderer{failAt: -1}, &memTracker{})

	seen := 0
	b := generation.NewBatch()
	b.OnUnit = func(generation.UnitReport) { seen++ }

	_, err := s.Generate(context.Background(), b, studioParams("realistic"))
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}

func TestStudio_SkipsUnstyledUnitsAndTrackerErrors(t *testing.T) {
	tracker := &memTracker{err: errors.New("db locked")}
	s, _ := newTestStudio(&stubRenderer{failAt: -1}, tracker)
	ctx := context.Background()

	out, err := s.Generate(ctx, generation.NewBatch(), studioParams())
	require.NoError(t, err)
	assert.Len(t, out.Results, 3)
	assert.Empty(t, tracker.records())

	// A failing tracker never fails the batch.
	_, err = s.Generate(ctx, generation.NewBatch(), studioParams("anime"))
	require.NoError(t, err)
	assert.Len(t, tracker.records(), 3)
}

// abortingRenderer cancels the batch context while unit at is in flight.
type abortingRenderer struct {
	stubRenderer
	at     int
	cancel context.CancelFunc
}

func (a *abortingRenderer) Render(ctx context.Context, u generation.Unit) (model.GenerationResult, error) {
	if u.Index == a.at {
		a.cancel()
		return model.GenerationResult{}, fmt.Errorf("calling huggingface: %w", ctx.Err())
	}
	return a.stubRenderer.Render(ctx, u)
}

func TestStudio_AbortedUnitIsNotTracked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := &memTracker{}
	r := &abortingRenderer{stubRenderer: stubRenderer{failAt: -1, score: 6}, at: 1, cancel: cancel}
	s, _ := newTestStudio(r, tracker)

	b := generation.NewBatch()
	out, err := s.Generate(ctx, b, studioParams("anime"))
	require.NoError(t, err)
	assert.Equal(t, generation.StateInterrupted, out.State)
	assert.Len(t, out.Results, 1)

	recs := tracker.records()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Success)
}

func TestStudio_CachesStylePreview(t *testing.T) {
	s, _ := newTestStudio(&stubRenderer{failAt: -1}, &memTracker{})

	_, ok := s.StylePreview("watercolor")
	assert.False(t, ok)

	_, err := s.Generate(context.Background(), generation.NewBatch(), studioParams("watercolor"))
	require.NoError(t, err)

	url, ok := s.StylePreview("watercolor")
	require.True(t, ok)
	assert.Equal(t, "http://cdn/generated/2.png", url)
}

func TestStudio_CombineUsesCache(t *testing.T) {
	s, c := newTestStudio(&stubRenderer{failAt: -1}, &memTracker{})

	first, err := s.Combine([]string{"anime", "cyberpunk"}, nil)
	require.NoError(t, err)
	assert.True(t, c.Has("style_combination_anime_cyberpunk_0.5"))

	second, err := s.Combine([]string{"anime", "cyberpunk"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	reversed, err := s.Combine([]string{"cyberpunk", "anime"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Prompt, reversed.Prompt, "selection order is preserved")

	weighted, err := s.Combine([]string{"anime", "cyberpunk"}, []float64{0.7, 0.3})
	require.NoError(t, err)
	assert.True(t, c.Has("style_combination_anime_cyberpunk_0.7"))
	assert.NotEqual(t, first.Guidance, weighted.Guidance)

	_, err = s.Combine([]string{"anime", "nope"}, nil)
	assert.ErrorIs(t, err, style.ErrNotFound)
}
