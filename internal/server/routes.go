// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/analytics"
	"github.com/fleveque/stylelab/internal/cache"
	"github.com/fleveque/stylelab/internal/config"
	"github.com/fleveque/stylelab/internal/handler"
	"github.com/fleveque/stylelab/internal/middleware"
	"github.com/fleveque/stylelab/internal/recommend"
	"github.com/fleveque/stylelab/internal/service"
	"github.com/fleveque/stylelab/internal/storage"
	"github.com/fleveque/stylelab/internal/style"
)

// Deps holds everything the handlers need. Dependencies are passed
// explicitly; cmd/server builds them.
type Deps struct {
	Registry       *style.Registry
	Studio         *service.Studio
	Jobs           *service.JobManager
	Analytics      *analytics.Store
	Engine         *recommend.Engine
	Cache          *cache.Cache
	GenerationRepo storage.GenerationRepository
	AnalyticsRepo  storage.AnalyticsRepository
	ScoringRepo    storage.ScoringCallRepository
	ScorerNames    []string
	// ImageDir is served under /images when images are stored locally.
	ImageDir string
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler()
	styleHandler := handler.NewStyleHandler(deps.Registry, deps.Studio, logger)
	analyticsHandler := handler.NewAnalyticsHandler(deps.Analytics, deps.Registry, logger)
	recommendHandler := handler.NewRecommendHandler(deps.Engine, deps.Registry, logger)
	generationHandler := handler.NewGenerationHandler(deps.Jobs, deps.GenerationRepo, logger)
	adminHandler := handler.NewAdminHandler(
		deps.GenerationRepo, deps.AnalyticsRepo, deps.ScoringRepo,
		deps.ScorerNames, deps.Jobs, deps.Cache, logger,
	)

	// Public endpoints (no auth)
	r.GET("/healthz", healthHandler.Healthz)
	if deps.ImageDir != "" {
		r.Static("/images", deps.ImageDir)
	}

	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.GET("/styles", styleHandler.List)
		authed.POST("/styles/combine", styleHandler.Combine)
		authed.GET("/styles/:id", styleHandler.Get)
		authed.GET("/styles/:id/analytics", analyticsHandler.StyleAnalytics)
		authed.GET("/styles/:id/combinations", recommendHandler.Combinations)

		authed.GET("/combinations/popular", analyticsHandler.Popular)
		authed.POST("/analytics", analyticsHandler.Track)

		authed.GET("/recommendations", recommendHandler.Recommendations)
		authed.POST("/parameters/optimal", recommendHandler.OptimalParameters)

		authed.GET("/models", generationHandler.Models)
		authed.POST("/generations", generationHandler.Submit)
		authed.GET("/generations/:id", generationHandler.Get)
		authed.DELETE("/generations/:id", generationHandler.Cancel)
	}

	// Admin endpoints (separate auth with admin keys)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.DELETE("/cache", adminHandler.ClearCache)
	}
}
