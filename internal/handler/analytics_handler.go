package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/analytics"
	"github.com/fleveque/stylelab/internal/model"
	"github.com/fleveque/stylelab/internal/style"
)

// maxPopularLimit caps the limit query param of Popular.
const maxPopularLimit = 50

// AnalyticsHandler exposes style usage analytics.
type AnalyticsHandler struct {
	store    *analytics.Store
	registry *style.Registry
	logger   *zap.Logger
}

func NewAnalyticsHandler(store *analytics.Store, registry *style.Registry, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// StyleAnalytics returns the aggregate for one style. A known style with
// no history yet is answered with an empty aggregate.
// Route: GET /api/v1/styles/:id/analytics
func (h *AnalyticsHandler) StyleAnalytics(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.registry.FindByID(id); !ok {
		respondError(c, h.logger, style.ErrNotFound)
		return
	}

	a, ok, err := h.store.GetStyleAnalytics(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !ok {
		a = model.StyleAnalytics{StyleID: id, PopularCombinations: []model.Combination{}}
	}
	c.JSON(http.StatusOK, a)
}

type trackRequest struct {
	StyleID        string  `json:"styleId" binding:"required"`
	CombinedWith   *string `json:"combinedWith"`
	QualityScore   float64 `json:"qualityScore" binding:"gte=0,lte=10"`
	GenerationTime float64 `json:"generationTime" binding:"gte=0"`
	Success        bool    `json:"success"`
	Guidance       float64 `json:"guidance"`
}

// Track appends an explicit analytics record, e.g. a user rating.
// Route: POST /api/v1/analytics
func (h *AnalyticsHandler) Track(c *gin.Context) {
	var req trackRequest
	if !bindJSON(c, &req) {
		return
	}

	ids := []string{req.StyleID}
	if req.CombinedWith != nil && *req.CombinedWith != "" {
		ids = append(ids, *req.CombinedWith)
	}
	for _, id := range ids {
		if _, ok := h.registry.FindByID(id); !ok {
			respondError(c, h.logger, style.ErrNotFound)
			return
		}
	}

	rec := &model.AnalyticsRecord{
		StyleID:        req.StyleID,
		CombinedWith:   req.CombinedWith,
		QualityScore:   req.QualityScore,
		GenerationTime: req.GenerationTime,
		Success:        req.Success,
		Guidance:       req.Guidance,
	}
	if err := h.store.TrackGeneration(c.Request.Context(), rec); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// Popular returns the most used style pairs across all records.
// Route: GET /api/v1/combinations/popular?limit=5
func (h *AnalyticsHandler) Popular(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if err != nil || limit < 1 || limit > maxPopularLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 50"})
		return
	}

	combos, err := h.store.GetPopularCombinations(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"combinations": combos})
}
