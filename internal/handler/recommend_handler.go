package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/recommend"
	"github.com/fleveque/stylelab/internal/style"
)

type RecommendHandler struct {
	engine   *recommend.Engine
	registry *style.Registry
	logger   *zap.Logger
}

func NewRecommendHandler(engine *recommend.Engine, registry *style.Registry, logger *zap.Logger) *RecommendHandler {
	return &RecommendHandler{
		engine:   engine,
		registry: registry,
		logger:   logger,
	}
}

// Recommendations ranks styles by historical performance.
// Route: GET /api/v1/recommendations?base_style=&prompt=&category=
func (h *RecommendHandler) Recommendations(c *gin.Context) {
	params := recommend.Params{
		BaseStyle:         c.Query("base_style"),
		Prompt:            c.Query("prompt"),
		PreferredCategory: c.Query("category"),
	}

	recs, err := h.engine.GetRecommendations(c.Request.Context(), params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// Combinations suggests partners for one style.
// Route: GET /api/v1/styles/:id/combinations
func (h *RecommendHandler) Combinations(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.registry.FindByID(id); !ok {
		respondError(c, h.logger, style.ErrNotFound)
		return
	}

	combos, err := h.engine.GetStyleCombinations(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"combinations": combos})
}

type optimalRequest struct {
	Styles []string `json:"styles"`
}

// OptimalParameters suggests guidance (and a ratio for pairs).
// Route: POST /api/v1/parameters/optimal
func (h *RecommendHandler) OptimalParameters(c *gin.Context) {
	var req optimalRequest
	if !bindJSON(c, &req) {
		return
	}

	params, err := h.engine.GetOptimalParameters(c.Request.Context(), req.Styles)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, params)
}
