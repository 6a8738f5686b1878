package main

import (
	"context"
	"log"

	"merchant-docs-platform/internal/ai"
	"merchant-docs-platform/internal/config"
	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/internal/logger"
	"merchant-docs-platform/internal/queue"
	"merchant-docs-platform/internal/telemetry"
	"merchant-docs-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

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

	docs := database.NewPostgresDocumentStore(pool)
	chunks := database.NewPostgresChunkStore(pool)

	var (
		embedder ai.Embedder
		index    services.VectorIndex
	)
	embedder, err = ai.NewEmbedder(ctx, cfg)
	if err != nil {
		logger.Warn("Embeddings unavailable, chunks will not be indexed", "error", err)
	} else {
		defer embedder.Close()
		index = services.NewPgVectorIndex(pool, cfg)
		if cfg.EncryptionKey != "" {
			index, err = services.NewEncryptedVectorIndex(index, cfg.EncryptionKey)
			if err != nil {
				log.Fatal("Invalid encryption key:", err)
			}
		}
	}

	ocr := services.NewOCRClient(cfg)
	extractor := services.NewTextExtractor(cfg, ocr, docs)
	chunker := services.NewChunker()

	// The search cache lives in the API process, so no SearchManager here;
	// the processor skips invalidation when it is nil
	processor := services.NewDocumentProcessor(
		cfg, docs, chunks, extractor, chunker, embedder, index, nil, metrics)

	server := asynq.NewServer(
		config.AsynqRedisOpt(cfg),
		asynq.Config{
			Concurrency: 20,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	taskProcessor := queue.NewTaskProcessor(processor)
	mux := asynq.NewServeMux()
	taskProcessor.Register(mux)

	logger.Info("Starting worker",
		"concurrency", 20, "queues", "critical(6), default(3), low(1)")

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
