// Package app builds the component graph shared by the server and CLI.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/analytics"
	"github.com/fleveque/stylelab/internal/cache"
	"github.com/fleveque/stylelab/internal/config"
	"github.com/fleveque/stylelab/internal/generation"
	"github.com/fleveque/stylelab/internal/inference"
	"github.com/fleveque/stylelab/internal/recommend"
	"github.com/fleveque/stylelab/internal/scoring"
	"github.com/fleveque/stylelab/internal/service"
	"github.com/fleveque/stylelab/internal/storage"
	"github.com/fleveque/stylelab/internal/style"
)

// App holds the wired components. Close releases the database and the
// object store client.
type App struct {
	DB             *sqlx.DB
	GenerationRepo storage.GenerationRepository
	AnalyticsRepo  storage.AnalyticsRepository
	ScoringRepo    storage.ScoringCallRepository
	Cache          *cache.Cache
	Registry       *style.Registry
	Combiner       *style.Combiner
	Analytics      *analytics.Store
	Engine         *recommend.Engine
	Scorer         *scoring.Provider
	Orchestrator   *generation.Orchestrator
	Studio         *service.Studio
	Jobs           *service.JobManager
	// ImageDir is set for the filesystem backend only.
	ImageDir string

	closers []func() error
}

// New wires every component from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	a.GenerationRepo = storage.NewGenerationRepository(db)
	a.AnalyticsRepo = storage.NewAnalyticsRepository(db)
	a.ScoringRepo = storage.NewScoringCallRepository(db)

	store, err := a.objectStore(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}

	client, err := inferenceClient(cfg.Inference, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Cache = cache.New(cfg.Cache.DefaultTTL)
	a.Registry = style.NewDefaultRegistry()
	a.Combiner = style.NewCombiner(a.Registry)
	a.Analytics = analytics.NewStore(a.AnalyticsRepo, a.Cache, cfg.Cache.AnalyticsTTL, logger.Named("analytics"))
	a.Engine = recommend.NewEngine(a.Registry, a.Analytics, a.Cache, cfg.Cache.AnalyticsTTL, logger.Named("recommend"))

	a.Scorer = scoring.NewProvider(scoringClients(cfg.Scoring, logger), cfg.Scoring.RatePerMinute, a.ScoringRepo, logger.Named("scoring"))

	renderer := service.NewRenderer(
		client,
		service.NewImageProcessor(service.DefaultThumbnailSize),
		store,
		a.GenerationRepo,
		a.Scorer,
		cfg.Scoring.DefaultQualityScore,
		logger.Named("renderer"),
	)
	limiter := generation.NewRateLimiter(cfg.Generation.RateLimitRequests, cfg.Generation.RateLimitWindow)
	a.Orchestrator = generation.NewOrchestrator(a.Combiner, renderer, limiter, logger.Named("generation"))
	a.Studio = service.NewStudio(a.Orchestrator, a.Combiner, a.Analytics, a.Cache, logger.Named("studio"))
	a.Jobs = service.NewJobManager(a.Studio, logger.Named("jobs"))

	logger.Info("components wired",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("inference_provider", client.ProviderName()),
		zap.Strings("scoring_providers", a.Scorer.ProviderNames()),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *App) objectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Backend {
	case "gcs":
		gcs, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSPublicDomain)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gcs.Close)
		return gcs, nil
	default:
		fs, err := storage.NewFileSystem(cfg.ImageDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		a.ImageDir = fs.BaseDir()
		return fs, nil
	}
}

func inferenceClient(cfg config.InferenceConfig, logger *zap.Logger) (inference.Client, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("inference.openai.api_key is required for the openai provider")
		}
		return inference.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model), nil
	default:
		if cfg.HuggingFace.APIKey == "" {
			logger.Warn("no huggingface api key configured, requests may be throttled")
		}
		return inference.NewHuggingFaceClient(cfg.HuggingFace.APIKey, cfg.HuggingFace.BaseURL, logger.Named("huggingface")), nil
	}
}

// scoringClients builds clients in provider_order, skipping those without
// an API key.
func scoringClients(cfg config.ScoringConfig, logger *zap.Logger) []scoring.Client {
	var clients []scoring.Client
	for _, name := range cfg.ProviderOrder {
		switch name {
		case "anthropic":
			if cfg.Anthropic.APIKey != "" {
				clients = append(clients, scoring.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
			}
		case "openai":
			if cfg.OpenAI.APIKey != "" {
				clients = append(clients, scoring.NewOpenAIClientWithConfig(openai.DefaultConfig(cfg.OpenAI.APIKey), cfg.OpenAI.Model))
			}
		default:
			logger.Warn("unknown scoring provider, skipping", zap.String("provider", name))
		}
	}
	if len(clients) == 0 {
		logger.Info("no scoring providers configured, using default quality score",
			zap.Float64("score", cfg.DefaultQualityScore))
	}
	return clients
}
