package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/yugal82/sports-screening-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) abortWithError(c *gin.Context, err error) {
	h.writeError(c, err)
	c.Abort()
}

// writeError maps domain errors onto HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var capacity *models.InsufficientCapacityError
	if errors.As(err, &capacity) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient capacity",
			"remaining": capacity.Remaining,
		})
		return
	}

	var limited *models.RateLimitedError
	if errors.As(err, &limited) {
		secs := limited.RetryAfterSeconds()
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "too many requests",
			"retryAfterSeconds": secs,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, models.ErrEventStarted):
		c.JSON(http.StatusConflict, gin.H{"error": "event has already started"})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid booking state", "details": err.Error()})
	case errors.Is(err, models.ErrInvariantViolation):
		h.logger.Error("Invariant violation surfaced to client",
			zap.Bool("invariant", true),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	case errors.Is(err, models.ErrUpstreamUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
	default:
		h.logger.Error("Unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}
