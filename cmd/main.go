package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"merchant-docs-platform/internal/ai"
	"merchant-docs-platform/internal/config"
	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/internal/logger"
	"merchant-docs-platform/internal/telemetry"
	"merchant-docs-platform/middleware"
	"merchant-docs-platform/routes"
	"merchant-docs-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("merchant-docs-platform")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	ctx := context.Background()
	pool, err := config.NewPostgresPool(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to Postgres:", err)
	}
	defer pool.Close()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	queueClient := asynq.NewClient(config.AsynqRedisOpt(cfg))
	defer queueClient.Close()

	docs := database.NewPostgresDocumentStore(pool)
	chunks := database.NewPostgresChunkStore(pool)

	// The vector tier is optional: without an embedding provider search
	// degrades to the database backend
	var (
		embedder ai.Embedder
		index    services.VectorIndex
		vector   services.SearchBackend
	)
	embedder, err = ai.NewEmbedder(ctx, cfg)
	if err != nil {
		logger.Warn("Embeddings unavailable, vector search disabled", "error", err)
	} else {
		defer embedder.Close()
		index = services.NewPgVectorIndex(pool, cfg)
		if cfg.EncryptionKey != "" {
			index, err = services.NewEncryptedVectorIndex(index, cfg.EncryptionKey)
			if err != nil {
				log.Fatal("Invalid encryption key:", err)
			}
		}
		vector = services.NewVectorSearchBackend(index, embedder, cfg.VectorNamespaces)
	}

	cache := services.NewSearchCache(
		time.Duration(cfg.SearchCacheTTLHours)*time.Hour, cfg.SearchCacheMaxSize)
	defer cache.Close()

	fallback := services.NewDatabaseSearchBackend(docs)
	search := services.NewSearchManager(vector, fallback, index, docs, cache, metrics)

	ocr := services.NewOCRClient(cfg)
	extractor := services.NewTextExtractor(cfg, ocr, docs)
	chunker := services.NewChunker()
	previews := services.NewPreviewService(docs, extractor)
	processor := services.NewDocumentProcessor(
		cfg, docs, chunks, extractor, chunker, embedder, index, search, metrics)

	scheduler := services.NewScheduler(cache, docs, queueClient)
	if err := scheduler.Start(); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
	}
	defer scheduler.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	if metrics != nil {
		router.Use(middleware.MetricsMiddleware(metrics))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	router.GET("/ready", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	routes.SetupDocumentRoutes(router, cfg, docs, processor, previews, search, queueClient)
	routes.SetupSearchRoutes(router, search)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
