package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/model"
	"github.com/fleveque/stylelab/internal/service"
	"github.com/fleveque/stylelab/internal/storage"
)

// GenerationHandler submits batches as background jobs and serves their
// state. Persisted generations can be fetched by id as well.
type GenerationHandler struct {
	jobs        *service.JobManager
	generations storage.GenerationRepository
	logger      *zap.Logger
}

func NewGenerationHandler(jobs *service.JobManager, generations storage.GenerationRepository, logger *zap.Logger) *GenerationHandler {
	return &GenerationHandler{
		jobs:        jobs,
		generations: generations,
		logger:      logger,
	}
}

// Models lists the generation model catalog.
// Route: GET /api/v1/models
func (h *GenerationHandler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": model.AIModels})
}

// Submit validates params and starts a batch. Validation and rate limit
// errors are returned immediately; unit failures show up on the job.
// Route: POST /api/v1/generations
func (h *GenerationHandler) Submit(c *gin.Context) {
	var params model.GenerationParams
	if !bindJSON(c, &params) {
		return
	}

	snap, err := h.jobs.Submit(params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Location", "/api/v1/generations/"+snap.ID)
	c.JSON(http.StatusAccepted, snap)
}

// Get returns a job snapshot, or a stored generation when id is not a job.
// Route: GET /api/v1/generations/:id
func (h *GenerationHandler) Get(c *gin.Context) {
	id := c.Param("id")

	snap, err := h.jobs.Get(id)
	if err == nil {
		c.JSON(http.StatusOK, snap)
		return
	}
	if !errors.Is(err, service.ErrJobNotFound) {
		respondError(c, h.logger, err)
		return
	}

	gen, err := h.generations.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gen)
}

// Cancel interrupts a running job. The unit in flight still completes.
// Route: DELETE /api/v1/generations/:id
func (h *GenerationHandler) Cancel(c *gin.Context) {
	snap, err := h.jobs.Cancel(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, snap)
}
