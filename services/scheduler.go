package services

import (
	"context"
	"time"

	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/internal/logger"
	"merchant-docs-platform/internal/queue"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"
)

// Scheduler runs periodic maintenance: sweeping expired cache entries
// and enqueueing documents that were uploaded but never processed.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cache     *SearchCache
	docs      database.DocumentStore
	client    *asynq.Client
}

func NewScheduler(cache *SearchCache, docs database.DocumentStore, client *asynq.Client) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{
		scheduler: s,
		cache:     cache,
		docs:      docs,
		client:    client,
	}
}

// Start registers the maintenance jobs and runs them asynchronously
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1 * time.Hour).Tag("cache-sweep").Do(s.sweepCache); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(15 * time.Minute).Tag("enqueue-unprocessed").Do(s.enqueueUnprocessed); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	logger.Info("Maintenance scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) sweepCache() {
	removed := s.cache.Sweep()
	if removed > 0 {
		logger.Debug("Swept expired cache entries", "removed", removed)
	}
}

// enqueueUnprocessed picks up documents whose processing task was lost
// (crash between upload and completion) and re-enqueues them
func (s *Scheduler) enqueueUnprocessed() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	docs, err := s.docs.ListUnprocessed(ctx, 20)
	if err != nil {
		logger.Error("Failed to list unprocessed documents", "error", err)
		return
	}

	for _, doc := range docs {
		// Skip very recent uploads; their original task is likely still
		// in flight
		if time.Since(doc.CreatedAt) < 10*time.Minute {
			continue
		}

		task, err := queue.NewDocumentProcessTask(doc.ID, doc.Path)
		if err != nil {
			logger.Error("Failed to build process task", "document_id", doc.ID, "error", err)
			continue
		}
		if _, err := s.client.EnqueueContext(ctx, task); err != nil {
			logger.Error("Failed to enqueue process task", "document_id", doc.ID, "error", err)
			continue
		}
		logger.Info("Re-enqueued unprocessed document", "document_id", doc.ID)
	}
}
