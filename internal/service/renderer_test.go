package service

import (
	"context"
	"errors"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/generation"
	"github.com/fleveque/stylelab/internal/inference"
	"github.com/fleveque/stylelab/internal/model"
	"github.com/fleveque/stylelab/internal/storage"
)

type fakeInference struct {
	reqs  []inference.Request
	image []byte
	err   error
}

func (f *fakeInference) GenerateImage(_ context.Context, req inference.Request) ([]byte, error) {
	f.reqs = append(f.reqs, req)
	return f.image, f.err
}

func (f *fakeInference) ProviderName() string { return "fake" }

type fakeScorer struct {
	score float64
	err   error
	ids   []string
}

func (f *fakeScorer) Enabled() bool { return true }

func (f *fakeScorer) Score(_ context.Context, id string, _ []byte, _ string) (float64, error) {
	f.ids = append(f.ids, id)
	return f.score, f.err
}

type rendererDeps struct {
	renderer *Renderer
	client   *fakeInference
	fs       *storage.FileSystem
	repo     storage.GenerationRepository
}

func setupRenderer(t *testing.T, scorer Scorer) *rendererDeps {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.NewDatabase(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fs, err := storage.NewFileSystem(filepath.Join(dir, "images"), "http://localhost:8080/images")
	require.NoError(t, err)

	client := &fakeInference{image: createTestPNG(96, 64, color.RGBA{R: 200, A: 255})}
	repo := storage.NewGenerationRepository(db)
	r := NewRenderer(client, NewImageProcessor(32), fs, repo, scorer, 5, zap.NewNop())
	r.randomSeed = func() int64 { return 4242 }

	return &rendererDeps{renderer: r, client: client, fs: fs, repo: repo}
}

func testUnit(seed *int64) generation.Unit {
	m, _ := model.FindModel(model.BaseModelSDXL)
	return generation.Unit{
		Model:          m,
		Prompt:         "a lighthouse, watercolor painting",
		NegativePrompt: "photo",
		Guidance:       7,
		Seed:           seed,
		StylePreset:    "watercolor",
	}
}

func TestRenderer_Render(t *testing.T) {
	scorer := &fakeScorer{score: 8.5}
	deps := setupRenderer(t, scorer)
	ctx := context.Background()

	seed := int64(101)
	res, err := deps.renderer.Render(ctx, testUnit(&seed))
	require.NoError(t, err)

	assert.Equal(t, int64(101), res.Seed)
	require.Len(t, deps.client.reqs, 1)
	assert.Equal(t, int64(101), deps.client.reqs[0].Seed)
	assert.Equal(t, "photo", deps.client.reqs[0].NegativePrompt)

	assert.Equal(t, "http://localhost:8080/images/generated/"+res.ID+".png", res.URL)
	assert.True(t, deps.fs.Exists("generated/"+res.ID+".png"))
	assert.True(t, deps.fs.Exists("thumbnails/"+res.ID+".png"))
	assert.Equal(t, "http://localhost:8080/images/thumbnails/"+res.ID+".png", res.Metadata.ThumbnailURL)

	require.NotNil(t, res.Metadata.QualityScore)
	assert.Equal(t, 8.5, *res.Metadata.QualityScore)
	assert.Equal(t, []string{res.ID}, scorer.ids)

	row, err := deps.repo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.URL, row.ResultURL)
	assert.Equal(t, "watercolor", row.StylePreset)
	assert.Equal(t, "fake", row.Metadata.Provider)
}

func TestRenderer_DrawsSeedWhenMissing(t *testing.T) {
	deps := setupRenderer(t, nil)

	res, err := deps.renderer.Render(context.Background(), testUnit(nil))
	require.NoError(t, err)

	assert.Equal(t, int64(4242), res.Seed)
	assert.Equal(t, int64(4242), deps.client.reqs[0].Seed, "the drawn seed is sent to the provider")
	require.NotNil(t, res.Metadata.QualityScore)
	assert.Equal(t, 5.0, *res.Metadata.QualityScore, "no scorer means the default score")
}

func TestRenderer_SeedlessModelReportsNoSeed(t *testing.T) {
	deps := setupRenderer(t, nil)
	u := testUnit(nil)
	u.Model, _ = model.FindModel("kandinsky-2.2")

	res, err := deps.renderer.Render(context.Background(), u)
	require.NoError(t, err)

	assert.Zero(t, res.Seed, "the provider chose the seed")
	assert.Zero(t, res.Metadata.Seed)
	row, err := deps.repo.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Zero(t, row.Seed)
}

func TestRenderer_ScorerFailureUsesDefault(t *testing.T) {
	deps := setupRenderer(t, &fakeScorer{err: errors.New("overloaded")})

	res, err := deps.renderer.Render(context.Background(), testUnit(nil))
	require.NoError(t, err)
	assert.Equal(t, 5.0, *res.Metadata.QualityScore)
}

func TestRenderer_InferenceErrorPropagates(t *testing.T) {
	deps := setupRenderer(t, nil)
	boom := &inference.ProviderError{Provider: "fake", StatusCode: 503, Body: "loading"}
	deps.client.err = boom

	_, err := deps.renderer.Render(context.Background(), testUnit(nil))

	var pe *inference.ProviderError
	assert.ErrorAs(t, err, &pe)
	n, _ := deps.repo.Count(context.Background())
	assert.Zero(t, n, "nothing is persisted for a failed unit")
}

type failingStore struct{}

func (failingStore) Upload(context.Context, string, []byte, string) error {
	return &storage.StorageError{Op: "upload", Path: "x", Err: errors.New("bucket not found")}
}

func (failingStore) PublicURL(p string) string { return p }

func TestRenderer_StorageErrorPropagates(t *testing.T) {
	deps := setupRenderer(t, nil)
	deps.renderer.store = failingStore{}

	_, err := deps.renderer.Render(context.Background(), testUnit(nil))

	var se *storage.StorageError
	assert.ErrorAs(t, err, &se)
}
