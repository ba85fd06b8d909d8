package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/ratelimit"
	"github.com/yugal82/sports-screening-server/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const actorKey = "actor"

// authMiddleware resolves the bearer token into an actor. Failed attempts
// count against the auth rate limit of the caller's address.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))

		actor, err := h.deps.Auth.ResolveActor(token)
		if err != nil {
			decision := h.deps.Limiter.Allow(c.Request.Context(), ratelimit.ActionAuth, ratelimit.ActorKey("", c.ClientIP()))
			if !decision.Allowed {
				h.abortWithError(c, &models.RateLimitedError{Action: string(ratelimit.ActionAuth), RetryAfter: decision.RetryAfter})
				return
			}
			h.abortWithError(c, models.ErrUnauthorized)
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// rateLimit enforces the window of class for the current actor
func (h *Handler) rateLimit(class ratelimit.ActionClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID string
		if actor := currentActor(c); actor != nil {
			userID = actor.ID
		}

		decision := h.deps.Limiter.Allow(c.Request.Context(), class, ratelimit.ActorKey(userID, c.ClientIP()))
		if !decision.Allowed {
			h.abortWithError(c, &models.RateLimitedError{Action: string(class), RetryAfter: decision.RetryAfter})
			return
		}

		if !decision.Degraded {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining(), 10))
		}
		c.Next()
	}
}

func currentActor(c *gin.Context) *models.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*models.Actor)
	return actor
}

func bearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// accessLogMiddleware writes one structured line per request
func accessLogMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if actor := currentActor(c); actor != nil {
			fields = append(fields, zap.String("actor_id", actor.ID))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
