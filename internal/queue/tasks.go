package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"merchant-docs-platform/internal/logger"
	"merchant-docs-platform/models"
)

const (
	TaskDocumentProcess = "document:process"
	TaskDocumentReindex = "document:reindex"
)

type DocumentProcessPayload struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
}

type DocumentReindexPayload struct {
	DocumentID string `json:"document_id"`
}

// Task creators
func NewDocumentProcessTask(documentID, path string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentProcessPayload{
		DocumentID: documentID,
		Path:       path,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDocumentProcess,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewDocumentReindexTask(documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentReindexPayload{DocumentID: documentID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDocumentReindex,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

// Processor runs the document pipeline. The concrete implementation lives
// in the services package; the indirection keeps the queue free of service
// dependencies.
type Processor interface {
	ProcessDocument(ctx context.Context, documentID string) (*models.ProcessingResult, error)
	ReindexDocument(ctx context.Context, documentID string) error
}

// TaskProcessor adapts Processor to asynq handlers
type TaskProcessor struct {
	processor Processor
}

func NewTaskProcessor(processor Processor) *TaskProcessor {
	return &TaskProcessor{processor: processor}
}

func (p *TaskProcessor) HandleDocumentProcess(ctx context.Context, t *asynq.Task) error {
	var payload DocumentProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing document", "document_id", payload.DocumentID)

	result, err := p.processor.ProcessDocument(ctx, payload.DocumentID)
	if err != nil {
		logger.Error("Document processing failed", "document_id", payload.DocumentID, "error", err)
		return err // Will retry
	}

	logger.Info("Document processed",
		"document_id", payload.DocumentID,
		"chunks", result.ChunksCreated,
		"quality", result.Quality,
		"duration", result.ProcessingTime.String())
	return nil
}

func (p *TaskProcessor) HandleDocumentReindex(ctx context.Context, t *asynq.Task) error {
	var payload DocumentReindexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Reindexing document", "document_id", payload.DocumentID)

	if err := p.processor.ReindexDocument(ctx, payload.DocumentID); err != nil {
		logger.Error("Document reindex failed", "document_id", payload.DocumentID, "error", err)
		return err
	}
	return nil
}

// Register wires the handlers into an asynq mux
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskDocumentProcess, p.HandleDocumentProcess)
	mux.HandleFunc(TaskDocumentReindex, p.HandleDocumentReindex)
}
