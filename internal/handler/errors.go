// Package handler contains HTTP request handlers.
// In Gin, a handler is any function with signature func(*gin.Context).
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/analytics"
	"github.com/fleveque/stylelab/internal/generation"
	"github.com/fleveque/stylelab/internal/service"
	"github.com/fleveque/stylelab/internal/storage"
	"github.com/fleveque/stylelab/internal/style"
)

// respondError maps domain errors to status codes. Anything unrecognised
// is logged and reported as an opaque 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var rateErr *generation.RateLimitError
	var batchErr *generation.BatchFailedError

	switch {
	case errors.Is(err, generation.ErrInvalidParams),
		errors.Is(err, style.ErrInvalidInput),
		errors.Is(err, analytics.ErrInvalidRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, style.ErrNotFound),
		errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.As(err, &rateErr):
		c.Header("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds()))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      err.Error(),
			"retryAfter": rateErr.RetryAfterSeconds(),
		})

	case errors.As(err, &batchErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     err.Error(),
			"completed": batchErr.Completed,
			"total":     batchErr.Total,
			"results":   batchErr.Results,
		})

	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// bindJSON decodes the body into dst, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}
