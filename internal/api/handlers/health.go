package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/multi-builder/internal/services"
)

type HealthHandler struct {
	catalogs CatalogProvider
	cache    *services.CacheService
}

func NewHealthHandler(catalogs CatalogProvider, cache *services.CacheService) *HealthHandler {
	return &HealthHandler{
		catalogs: catalogs,
		cache:    cache,
	}
}

// GetHealth returns basic health status - always returns 200 if server is running
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "NRL Multi-Backend is running",
	})
}

// GetReady returns 200 only once a catalog is loaded and the cache, when
// configured, answers.
func (h *HealthHandler) GetReady(c *gin.Context) {
	status := h.catalogs.Status()

	checks := gin.H{
		"catalog": status.Games > 0,
		"cache":   "disabled",
	}
	ready := status.Games > 0

	if h.cache.Enabled() {
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			checks["cache"] = err.Error()
			ready = false
		} else {
			checks["cache"] = "ok"
		}
	}

	body := gin.H{
		"status":    "ready",
		"checks":    checks,
		"catalog":   status,
		"timestamp": time.Now().UTC(),
	}
	if !ready {
		body["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
