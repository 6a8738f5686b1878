package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"merchant-docs-platform/internal/ai"
	"merchant-docs-platform/internal/config"
	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/internal/logger"
	"merchant-docs-platform/internal/telemetry"
	"merchant-docs-platform/models"
	"merchant-docs-platform/utils"
)

// DocumentProcessor runs the pipeline for one document: extract, chunk,
// persist chunks, embed and index. Chunks are derived data; reprocessing
// deletes and recreates them, so a crash mid-run is repaired by the next
// run rather than guarded against.
type DocumentProcessor struct {
	cfg       *config.Config
	docs      database.DocumentStore
	chunks    database.ChunkStore
	extractor *TextExtractor
	chunker   *Chunker
	embedder  ai.Embedder
	index     VectorIndex
	search    *SearchManager
	metrics   *telemetry.Metrics
}

func NewDocumentProcessor(
	cfg *config.Config,
	docs database.DocumentStore,
	chunks database.ChunkStore,
	extractor *TextExtractor,
	chunker *Chunker,
	embedder ai.Embedder,
	index VectorIndex,
	search *SearchManager,
	metrics *telemetry.Metrics,
) *DocumentProcessor {
	return &DocumentProcessor{
		cfg:       cfg,
		docs:      docs,
		chunks:    chunks,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		search:    search,
		metrics:   metrics,
	}
}

// ProcessDocument runs the full pipeline. Insufficient content is a
// non-error outcome: the result reports zero chunks and the reason.
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, documentID string) (*models.ProcessingResult, error) {
	start := time.Now()

	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	text := p.extractor.Extract(ctx, doc)
	if len(strings.TrimSpace(text)) < p.cfg.MinExtractedChars {
		p.recordProcessing(start, "insufficient_content", 0)
		return &models.ProcessingResult{
			Success:        false,
			DocumentID:     documentID,
			ChunksCreated:  0,
			ProcessingTime: time.Since(start),
			Error:          "insufficient content",
		}, nil
	}

	hash := utils.ContentHash(text)
	if existing, err := p.docs.FindByContentHash(ctx, hash); err == nil && existing.ID != documentID {
		logger.Warn("Duplicate document content detected",
			"document_id", documentID, "duplicate_of", existing.ID)
	}

	chunks := p.chunker.Chunk(text, doc)
	if len(chunks) == 0 {
		p.recordProcessing(start, "no_chunks", 0)
		return &models.ProcessingResult{
			Success:        false,
			DocumentID:     documentID,
			ProcessingTime: time.Since(start),
			Error:          "chunker produced no chunks",
		}, nil
	}

	if err := p.chunks.ReplaceForDocument(ctx, documentID, chunks); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	p.indexChunks(ctx, doc, chunks)

	if err := p.docs.SetProcessed(ctx, documentID, text, hash); err != nil {
		logger.Warn("Failed to mark document processed", "document_id", documentID, "error", err)
	}
	if p.search != nil {
		p.search.DocumentChanged(documentID)
	}

	quality := processingQuality(text, chunks)
	p.recordProcessing(start, "completed", len(chunks))

	return &models.ProcessingResult{
		Success:        true,
		DocumentID:     documentID,
		ChunksCreated:  len(chunks),
		ProcessingTime: time.Since(start),
		Quality:        quality,
	}, nil
}

// ReindexDocument re-embeds and re-upserts stored chunks without
// re-running extraction
func (p *DocumentProcessor) ReindexDocument(ctx context.Context, documentID string) error {
	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	chunks, err := p.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no chunks to reindex", documentID)
	}

	p.indexChunks(ctx, doc, chunks)
	if p.search != nil {
		p.search.DocumentChanged(documentID)
	}
	return nil
}

// RemoveDocument deletes the document and all derived data
func (p *DocumentProcessor) RemoveDocument(ctx context.Context, documentID string) error {
	// Best-effort index cleanup first; orphaned vectors are repaired by
	// the next reprocess
	if p.index != nil {
		if err := p.index.DeleteByDocument(ctx, documentID); err != nil {
			logger.Warn("Failed to delete vectors", "document_id", documentID, "error", err)
		}
	}
	if err := p.chunks.DeleteByDocument(ctx, documentID); err != nil {
		logger.Warn("Failed to delete chunks", "document_id", documentID, "error", err)
	}
	if err := p.docs.Delete(ctx, documentID); err != nil {
		return err
	}
	if p.search != nil {
		p.search.DocumentChanged(documentID)
	}
	return nil
}

// ProcessBatch processes documents in fixed-size batches, awaiting each
// batch before starting the next. Per-document failures do not abort
// siblings.
func (p *DocumentProcessor) ProcessBatch(ctx context.Context, documentIDs []string) []*models.ProcessingResult {
	concurrency := p.cfg.ProcessingConcurrency
	if concurrency <= 0 {
		concurrency = 3
	}

	results := make([]*models.ProcessingResult, len(documentIDs))
	for start := 0; start < len(documentIDs); start += concurrency {
		end := start + concurrency
		if end > len(documentIDs) {
			end = len(documentIDs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				result, err := p.ProcessDocument(ctx, documentIDs[i])
				if err != nil {
					result = &models.ProcessingResult{
						Success:    false,
						DocumentID: documentIDs[i],
						Error:      err.Error(),
					}
				}
				results[i] = result
			}(i)
		}
		wg.Wait()
	}
	return results
}

// indexChunks embeds and upserts chunks in small batches. Batch-level
// embedding failures are logged and skipped; sibling batches continue.
func (p *DocumentProcessor) indexChunks(ctx context.Context, doc *models.Document, chunks []*models.DocumentChunk) {
	if p.embedder == nil || p.index == nil {
		return
	}

	batchSize := p.cfg.ProcessingConcurrency
	if batchSize <= 0 {
		batchSize = 3
	}

	var records []VectorRecord
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if p.metrics != nil {
			p.metrics.RecordEmbeddingCall(p.embedder.Name(), err == nil)
		}
		if err != nil {
			logger.Warn("Embedding batch failed, skipping",
				"document_id", doc.ID, "batch_start", start, "error", err)
			continue
		}

		for i, chunk := range batch {
			records = append(records, VectorRecord{
				ID:            chunk.ID,
				DocumentID:    doc.ID,
				Namespace:     namespaceFor(doc, p.cfg.VectorNamespaces),
				Values:        vectors[i],
				Content:       chunk.Content,
				DocumentName:  doc.Name,
				MimeType:      doc.MimeType,
				ChunkIndex:    chunk.ChunkIndex,
				KeyTerms:      chunk.KeyTerms,
				SemanticScore: chunk.SemanticScore,
				Quality:       chunk.Metadata.Quality,
			})
		}
	}

	if len(records) == 0 {
		return
	}
	if err := p.index.Upsert(ctx, records); err != nil {
		logger.Warn("Vector upsert failed", "document_id", doc.ID, "error", err)
	}
}

// namespaceFor maps a document to a configured namespace, defaulting to
// the first configured one
func namespaceFor(doc *models.Document, namespaces []string) string {
	if doc.Category != "" {
		for _, ns := range namespaces {
			if strings.EqualFold(ns, doc.Category) {
				return ns
			}
		}
	}
	if len(namespaces) > 0 {
		return namespaces[0]
	}
	return "default"
}

// processingQuality is a 0-100 composite: coverage of the source text,
// average semantic score, and share of high-quality chunks
func processingQuality(text string, chunks []*models.DocumentChunk) float64 {
	if len(chunks) == 0 || len(text) == 0 {
		return 0
	}

	totalChunkLen := 0
	semanticSum := 0.0
	highQuality := 0
	for _, chunk := range chunks {
		totalChunkLen += len(chunk.Content)
		semanticSum += chunk.SemanticScore
		if chunk.Metadata.Quality == models.QualityHigh {
			highQuality++
		}
	}

	coverage := float64(totalChunkLen) / float64(len(text))
	if coverage > 1 {
		coverage = 1
	}
	avgSemantic := semanticSum / float64(len(chunks))
	highShare := float64(highQuality) / float64(len(chunks))

	return (coverage*0.4 + avgSemantic*0.4 + highShare*0.2) * 100
}

func (p *DocumentProcessor) recordProcessing(start time.Time, status string, chunks int) {
	if p.metrics != nil {
		p.metrics.RecordProcessing(time.Since(start).Seconds(), status, chunks)
	}
}
