package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/model"
	"github.com/fleveque/stylelab/internal/service"
	"github.com/fleveque/stylelab/internal/style"
)

// StyleHandler serves the preset catalog and style combination.
type StyleHandler struct {
	registry *style.Registry
	studio   *service.Studio
	logger   *zap.Logger
}

func NewStyleHandler(registry *style.Registry, studio *service.Studio, logger *zap.Logger) *StyleHandler {
	return &StyleHandler{
		registry: registry,
		studio:   studio,
		logger:   logger,
	}
}

// styleResponse is a preset plus the URL of a recent render in that style.
type styleResponse struct {
	model.StylePreset
	PreviewURL string `json:"previewUrl,omitempty"`
}

// List returns every preset in registry order.
// Route: GET /api/v1/styles
func (h *StyleHandler) List(c *gin.Context) {
	presets := h.registry.All()
	out := make([]styleResponse, len(presets))
	for i, p := range presets {
		out[i] = h.withPreview(p)
	}
	c.JSON(http.StatusOK, gin.H{"styles": out})
}

// Get returns one preset.
// Route: GET /api/v1/styles/:id
func (h *StyleHandler) Get(c *gin.Context) {
	p, ok := h.registry.FindByID(c.Param("id"))
	if !ok {
		respondError(c, h.logger, style.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, h.withPreview(p))
}

type combineRequest struct {
	StyleIDs []string  `json:"styleIds" binding:"required"`
	Weights  []float64 `json:"weights"`
}

// Combine merges one or two presets into a single configuration.
// Route: POST /api/v1/styles/combine
func (h *StyleHandler) Combine(c *gin.Context) {
	var req combineRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.studio.Combine(req.StyleIDs, req.Weights)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *StyleHandler) withPreview(p model.StylePreset) styleResponse {
	url, _ := h.studio.StylePreview(p.ID)
	return styleResponse{StylePreset: p, PreviewURL: url}
}
