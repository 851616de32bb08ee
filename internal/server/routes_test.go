package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/analytics"
	"github.com/fleveque/stylelab/internal/cache"
	"github.com/fleveque/stylelab/internal/config"
	"github.com/fleveque/stylelab/internal/generation"
	"github.com/fleveque/stylelab/internal/model"
	"github.com/fleveque/stylelab/internal/recommend"
	"github.com/fleveque/stylelab/internal/service"
	"github.com/fleveque/stylelab/internal/storage"
	"github.com/fleveque/stylelab/internal/style"
)

const (
	studioKey = "studio-key"
	adminKey  = "admin-key"
)

type echoRenderer struct{}

func (echoRenderer) Render(_ context.Context, u generation.Unit) (model.GenerationResult, error) {
	return model.GenerationResult{
		ID:     fmt.Sprintf("gen-%d", u.Index),
		URL:    fmt.Sprintf("http://localhost/images/generated/%d.png", u.Index),
		Prompt: u.Prompt,
		Model:  u.Model.ID,
	}, nil
}

// newTestRouter wires real components over a temp sqlite database. Only
// the unit renderer is stubbed. modelLimit caps batches per model.
func newTestRouter(t *testing.T, modelLimit int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	generationRepo := storage.NewGenerationRepository(db)
	analyticsRepo := storage.NewAnalyticsRepository(db)
	scoringRepo := storage.NewScoringCallRepository(db)

	c := cache.New(0)
	registry := style.NewDefaultRegistry()
	combiner := style.NewCombiner(registry)
	store := analytics.NewStore(analyticsRepo, c, 0, logger)
	engine := recommend.NewEngine(registry, store, c, 0, logger)
	orch := generation.NewOrchestrator(combiner, echoRenderer{}, generation.NewRateLimiter(modelLimit, time.Minute), logger)
	studio := service.NewStudio(orch, combiner, store, c, logger)
	jobs := service.NewJobManager(studio, logger)
	t.Cleanup(func() { _ = jobs.Shutdown(context.Background()) })

	cfg := &config.Config{
		Auth:      config.AuthConfig{APIKeys: []string{studioKey}, AdminKeys: []string{adminKey}},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}

	r := gin.New()
	RegisterRoutes(r, cfg, Deps{
		Registry:       registry,
		Studio:         studio,
		Jobs:           jobs,
		Analytics:      store,
		Engine:         engine,
		Cache:          c,
		GenerationRepo: generationRepo,
		AnalyticsRepo:  analyticsRepo,
		ScoringRepo:    scoringRepo,
		ScorerNames:    []string{"anthropic"},
	}, logger)
	return r
}

func do(t *testing.T, r http.Handler, method, target, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, 10)
	w := do(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stylelab")
}

func TestStyles(t *testing.T) {
	r := newTestRouter(t, 10)

	w := do(t, r, http.MethodGet, "/api/v1/styles", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/styles", studioKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Styles []model.StylePreset `json:"styles"`
	}](t, w)
	require.Len(t, list.Styles, 6)
	assert.Equal(t, "realistic", list.Styles[0].ID)

	w = do(t, r, http.MethodGet, "/api/v1/styles/anime", studioKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Anime", decode[model.StylePreset](t, w).Name)

	w = do(t, r, http.MethodGet, "/api/v1/styles/vaporwave", studioKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCombineStyles(t *testing.T) {
	r := newTestRouter(t, 10)

	w := do(t, r, http.MethodPost, "/api/v1/styles/combine", studioKey,
		map[string]any{"styleIds": []string{"anime", "cyberpunk"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 8.75, decode[model.StyleResult](t, w).Guidance, 1e-9)

	tests := []struct {
		name string
		ids  []string
		want int
	}{
		{"unknown style", []string{"anime", "vaporwave"}, http.StatusNotFound},
		{"too many styles", []string{"anime", "cyberpunk", "realistic"}, http.StatusBadRequest},
		{"no styles", []string{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/styles/combine", studioKey, map[string]any{"styleIds": tt.ids})
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestAnalyticsFlow(t *testing.T) {
	r := newTestRouter(t, 10)

	w := do(t, r, http.MethodGet, "/api/v1/styles/anime/analytics", studioKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[model.StyleAnalytics](t, w).UsageCount)

	for _, score := range []float64{8, 6} {
		w = do(t, r, http.MethodPost, "/api/v1/analytics", studioKey, map[string]any{
			"styleId":        "anime",
			"combinedWith":   "cyberpunk",
			"qualityScore":   score,
			"generationTime": 2.5,
			"success":        true,
			"guidance":       8,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/v1/styles/anime/analytics", studioKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	a := decode[model.StyleAnalytics](t, w)
	assert.Equal(t, 2, a.UsageCount)
	assert.InDelta(t, 7.0, a.AverageQualityScore, 1e-9)
	require.Len(t, a.PopularCombinations, 1)

	w = do(t, r, http.MethodGet, "/api/v1/combinations/popular?limit=3", studioKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	popular := decode[struct {
		Combinations []model.Combination `json:"combinations"`
	}](t, w)
	require.Len(t, popular.Combinations, 1)
	assert.Equal(t, 2, popular.Combinations[0].Count)

	w = do(t, r, http.MethodGet, "/api/v1/styles/anime/combinations", studioKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Successfully used 2 times")

	w = do(t, r, http.MethodGet, "/api/v1/recommendations?category=Illustration&base_style=cyberpunk", studioKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"styleId":"anime"`)

	w = do(t, r, http.MethodPost, "/api/v1/parameters/optimal", studioKey, map[string]any{"styles": []string{"anime"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 8.0, decode[recommend.OptimalParameters](t, w).Guidance, 1e-9)
}

func TestAnalyticsValidation(t *testing.T) {
	r := newTestRouter(t, 10)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing style", map[string]any{"qualityScore": 5}, http.StatusBadRequest},
		{"score above 10", map[string]any{"styleId": "anime", "qualityScore": 11}, http.StatusBadRequest},
		{"unknown style", map[string]any{"styleId": "vaporwave"}, http.StatusNotFound},
		{"unknown partner", map[string]any{"styleId": "anime", "combinedWith": "vaporwave"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/analytics", studioKey, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	w := do(t, r, http.MethodGet, "/api/v1/combinations/popular?limit=0", studioKey, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, r, http.MethodGet, "/api/v1/styles/vaporwave/analytics", studioKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOptimalParameters_Default(t *testing.T) {
	r := newTestRouter(t, 10)

	w := do(t, r, http.MethodPost, "/api/v1/parameters/optimal", studioKey, map[string]any{"styles": []string{}})
	require.Equal(t, http.StatusOK, w.Code)
	p := decode[recommend.OptimalParameters](t, w)
	assert.Equal(t, recommend.DefaultGuidance, p.Guidance)
	assert.Equal(t, "Default parameters", p.Reason)
	assert.Nil(t, p.Ratio)
}

func TestModels(t *testing.T) {
	r := newTestRouter(t, 10)
	w := do(t, r, http.MethodGet, "/api/v1/models", studioKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Models []model.AIModel `json:"models"`
	}](t, w).Models, len(model.AIModels))
}

func generationBody(prompt string) map[string]any {
	return map[string]any{
		"model":          model.BaseModelSDXL,
		"prompt":         prompt,
		"guidance":       7,
		"seed":           100,
		"batchSize":      2,
		"selectedStyles": []string{"anime", "cyberpunk"},
	}
}

func TestGenerations_SubmitAndPoll(t *testing.T) {
	r := newTestRouter(t, 10)

	w := do(t, r, http.MethodPost, "/api/v1/generations", studioKey, generationBody("a neon koi pond"))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	snap := decode[service.JobSnapshot](t, w)
	assert.Equal(t, "/api/v1/generations/"+snap.ID, w.Header().Get("Location"))
	assert.Equal(t, 2, snap.Total)

	require.Eventually(t, func() bool {
		w := do(t, r, http.MethodGet, "/api/v1/generations/"+snap.ID, studioKey, nil)
		snap = decode[service.JobSnapshot](t, w)
		return snap.FinishedAt != nil
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, generation.StateCompleted, snap.State)
	require.Len(t, snap.Results, 2)
	assert.Contains(t, snap.Results[0].Prompt, "a neon koi pond, ")

	// Every unit was reported to analytics under the first style.
	w = do(t, r, http.MethodGet, "/api/v1/styles/anime/analytics", studioKey, nil)
	assert.Equal(t, 2, decode[model.StyleAnalytics](t, w).UsageCount)
}

func TestGenerations_Errors(t *testing.T) {
	r := newTestRouter(t, 1)

	w := do(t, r, http.MethodPost, "/api/v1/generations", studioKey, generationBody("hi"))
	assert.Equal(t, http.StatusBadRequest, w.Code, "prompt below minimum length")

	w = do(t, r, http.MethodPost, "/api/v1/generations", studioKey, generationBody("a neon koi pond"))
	require.Equal(t, http.StatusAccepted, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/generations", studioKey, generationBody("a neon koi pond"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = do(t, r, http.MethodGet, "/api/v1/generations/unknown", studioKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodDelete, "/api/v1/generations/unknown", studioKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin(t *testing.T) {
	r := newTestRouter(t, 10)

	w := do(t, r, http.MethodGet, "/api/v1/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(t, r, http.MethodGet, "/api/v1/admin/stats", studioKey, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/analytics", studioKey, map[string]any{"styleId": "watercolor", "success": true})
	require.Equal(t, http.StatusCreated, w.Code)
	do(t, r, http.MethodGet, "/api/v1/styles/watercolor/analytics", studioKey, nil)

	w = do(t, r, http.MethodGet, "/api/v1/admin/stats", adminKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, stats["analyticsRecords"])
	assert.EqualValues(t, 1, stats["cacheEntries"])
	assert.Equal(t, map[string]any{"anthropic": float64(0)}, stats["scoringCalls"])

	w = do(t, r, http.MethodDelete, "/api/v1/admin/cache", adminKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["cleared"])
}
