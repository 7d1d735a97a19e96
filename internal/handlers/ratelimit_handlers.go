package handlers

import (
	"net/http"

	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"github.com/gangwalparul19/rupiya-sync/internal/services"
	"github.com/gin-gonic/gin"
)

// RateLimitHandlers exposes rate limiter introspection and administrative
// resets, mainly for dashboards and tests.
type RateLimitHandlers struct {
	limiter *services.RateLimiter
	logger  *logging.SafeLogger
}

// NewRateLimitHandlers wires the rate limit endpoints
func NewRateLimitHandlers(limiter *services.RateLimiter, logger *logging.SafeLogger) *RateLimitHandlers {
	return &RateLimitHandlers{
		limiter: limiter,
		logger:  logger,
	}
}

// Status godoc
// @Summary      Window usage for a key
// @Tags         ratelimit
// @Produce      json
// @Param        key path string true "Rate limit key"
// @Success      200 {object} map[string]int
// @Router       /ratelimit/{key} [get]
func (h *RateLimitHandlers) Status(c *gin.Context) {
	key := c.Param("key")
	used, max := h.limiter.Status(key)
	c.JSON(http.StatusOK, gin.H{
		"key":          key,
		"used":         used,
		"max_requests": max,
	})
}

// Reset godoc
// @Summary      Clear the window for a key
// @Tags         ratelimit
// @Success      204
// @Param        key path string true "Rate limit key"
// @Router       /ratelimit/{key}/reset [post]
func (h *RateLimitHandlers) Reset(c *gin.Context) {
	h.limiter.Reset(c.Param("key"))
	c.Status(http.StatusNoContent)
}

// ResetAll godoc
// @Summary      Clear all rate limit windows
// @Tags         ratelimit
// @Success      204
// @Router       /ratelimit/reset [post]
func (h *RateLimitHandlers) ResetAll(c *gin.Context) {
	h.limiter.ResetAll()
	c.Status(http.StatusNoContent)
}
