package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/multi-builder/internal/api/handlers"
	"github.com/stitts-dev/multi-builder/internal/api/middleware"
	"github.com/stitts-dev/multi-builder/internal/services"
	"github.com/stitts-dev/multi-builder/pkg/config"
)

// NewRouter builds the gin engine with middleware and every route attached.
func NewRouter(catalogs handlers.CatalogProvider, cache *services.CacheService, cfg *config.Config, log *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))

	SetupRoutes(router, catalogs, cache, cfg)
	return router
}

// SetupRoutes configures all API routes on the given router
func SetupRoutes(router *gin.Engine, catalogs handlers.CatalogProvider, cache *services.CacheService, cfg *config.Config) {
	multiHandler := handlers.NewMultiHandler(catalogs, cfg)
	catalogHandler := handlers.NewCatalogHandler(catalogs)
	healthHandler := handlers.NewHealthHandler(catalogs, cache)

	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)

	// Route used by the existing frontend
	router.POST("/api/generate-multi", multiHandler.GenerateMulti)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/multi", multiHandler.GenerateMulti)
		v1.GET("/catalog", catalogHandler.GetCatalog)
		v1.POST("/catalog/refresh", catalogHandler.RefreshCatalog)
	}
}
