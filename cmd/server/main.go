package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/multi-builder/internal/api"
	"github.com/stitts-dev/multi-builder/internal/catalog"
	"github.com/stitts-dev/multi-builder/internal/services"
	"github.com/stitts-dev/multi-builder/pkg/config"
	"github.com/stitts-dev/multi-builder/pkg/database"
	"github.com/stitts-dev/multi-builder/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to Redis when configured
	cacheService, err := services.NewCacheServiceFromURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to configure Redis: %v", err)
	}
	if err := cacheService.Ping(context.Background()); err != nil {
		log.Warnf("Redis unavailable, continuing without catalog cache: %v", err)
	}
	defer cacheService.Close()

	source, cleanup, err := buildSource(cfg, log)
	if err != nil {
		log.Fatalf("Failed to configure catalog source: %v", err)
	}
	defer cleanup()

	provider := catalog.NewProvider(source, cacheService, catalog.ProviderConfig{
		Schedule: cfg.CatalogRefreshSchedule,
		CacheTTL: cfg.CatalogCacheTTL,
	})

	// Warm the catalog so the first search does not pay for the load
	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 30*time.Second)
	if cat, err := provider.Snapshot(warmCtx); err != nil {
		log.Errorf("Initial catalog load failed, searches will retry: %v", err)
	} else {
		log.WithFields(logrus.Fields{
			"source":     cat.Source,
			"version":    cat.Version,
			"games":      len(cat.Games),
			"selections": cat.SelectionCount(),
		}).Info("Catalog loaded")
	}
	cancelWarm()

	if err := provider.Start(); err != nil {
		log.Errorf("Failed to start catalog refresh: %v", err)
	}
	defer provider.Stop()

	router := api.NewRouter(provider, cacheService, cfg, log)

	log.Info("=== REGISTERED ROUTES ===")
	for _, route := range router.Routes() {
		log.Infof("%s %s", route.Method, route.Path)
	}
	log.Info("=========================")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})

	// Setup server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SearchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

// buildSource picks the catalog source named by CATALOG_SOURCE. The bundled
// files are always chained last as a fallback.
func buildSource(cfg *config.Config, log *logrus.Logger) (catalog.Source, func(), error) {
	files := catalog.NewFileSource(cfg.CatalogDataDir, cfg.CatalogFixtureFile)
	noop := func() {}

	switch cfg.CatalogSource {
	case "database":
		db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
		if err != nil {
			return nil, noop, err
		}
		store := catalog.NewDatabaseSource(db.DB)
		if err := store.Migrate(); err != nil {
			db.Close()
			return nil, noop, err
		}
		seedDatabase(store, files, log)
		return catalog.Chain{store, files}, func() { db.Close() }, nil

	case "feed":
		feed := catalog.NewFeedSource(catalog.FeedConfig{
			URL:              cfg.CatalogFeedURL,
			Timeout:          cfg.ExternalAPITimeout,
			RequestsPerMin:   cfg.CatalogFeedRatePerMinute,
			FailureThreshold: cfg.CircuitBreakerThreshold,
		})
		return catalog.Chain{feed, files}, noop, nil

	default:
		return files, noop, nil
	}
}

// seedDatabase copies the bundled round into an empty database.
func seedDatabase(store *catalog.DatabaseSource, files *catalog.FileSource, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := store.Load(ctx); !errors.Is(err, catalog.ErrNoGames) {
		return
	}

	cat, err := files.Load(ctx)
	if err != nil {
		log.Warnf("No bundled catalog to seed the database with: %v", err)
		return
	}
	if err := store.Replace(ctx, cat); err != nil {
		log.Errorf("Failed to seed catalog database: %v", err)
		return
	}
	log.Infof("Seeded catalog database with %d games", len(cat.Games))
}
