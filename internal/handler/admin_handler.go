package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/cache"
	"github.com/fleveque/stylelab/internal/model"
	"github.com/fleveque/stylelab/internal/service"
	"github.com/fleveque/stylelab/internal/storage"
)

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	generations  storage.GenerationRepository
	analytics    storage.AnalyticsRepository
	scoringCalls storage.ScoringCallRepository
	scorers      []string
	jobs         *service.JobManager
	cache        *cache.Cache
	logger       *zap.Logger
}

// NewAdminHandler creates an AdminHandler. scorers names the configured
// scoring providers, reported with their call counts.
func NewAdminHandler(
	generations storage.GenerationRepository,
	analytics storage.AnalyticsRepository,
	scoringCalls storage.ScoringCallRepository,
	scorers []string,
	jobs *service.JobManager,
	c *cache.Cache,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		generations:  generations,
		analytics:    analytics,
		scoringCalls: scoringCalls,
		scorers:      scorers,
		jobs:         jobs,
		cache:        c,
		logger:       logger,
	}
}

// Stats returns generation, analytics, scoring and runtime counters.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := h.generations.Count(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	completed, err := h.generations.CountByStatus(ctx, model.GenerationCompleted)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	records, err := h.analytics.Count(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	calls := make(map[string]int64, len(h.scorers))
	for _, name := range h.scorers {
		n, err := h.scoringCalls.CountByProvider(ctx, name)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		calls[name] = n
	}

	c.JSON(http.StatusOK, gin.H{
		"generations": gin.H{
			"total":     total,
			"completed": completed,
		},
		"analyticsRecords": records,
		"scoringCalls":     calls,
		"runningJobs":      h.jobs.Running(),
		"cacheEntries":     h.cache.Len(),
	})
}

// ClearCache drops every cached aggregate, recommendation and preview.
// Route: DELETE /api/v1/admin/cache
func (h *AdminHandler) ClearCache(c *gin.Context) {
	n := h.cache.Len()
	h.cache.Clear()
	h.logger.Info("cache cleared", zap.Int("entries", n))
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}
