package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"merchant-docs-platform/internal/ai"
	"merchant-docs-platform/internal/config"
	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		MinExtractedChars:     100,
		ProcessingConcurrency: 3,
		VectorNamespaces:      []string{"default", "rates"},
		ScannedMinWords:       50,
		ScannedMinAvgWordLen:  2.0,
	}
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func newTestProcessor(t *testing.T, store *database.MemoryStore, index VectorIndex) *DocumentProcessor {
	t.Helper()
	cfg := testConfig()
	extractor := NewTextExtractor(cfg, nil, store)
	return NewDocumentProcessor(cfg, store, store, extractor, NewChunker(),
		ai.NewHashEmbedder(64), index, nil, nil)
}

func merchantText(sentences int) string {
	var sb strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&sb, "Merchant processing statement line %d lists interchange fees and settlement amounts. ", i)
	}
	return sb.String()
}

func TestProcessDocumentFullPipeline(t *testing.T) {
	store := database.NewMemoryStore()
	index := newFakeVectorIndex()
	processor := newTestProcessor(t, store, index)

	ctx := context.Background()
	path := writeTestFile(t, "statement.txt", merchantText(30))
	require.NoError(t, store.Create(ctx, &models.Document{
		ID: "doc-1", Name: "statement.txt", OriginalName: "statement.txt",
		MimeType: "text/plain", Path: path,
	}))

	result, err := processor.ProcessDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Greater(t, result.ChunksCreated, 0)
	assert.Greater(t, result.Quality, 0.0)

	// Chunks are stored with contiguous indices
	chunks, err := store.ListByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, result.ChunksCreated)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
	}

	// Vectors were upserted
	stats, err := index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.ChunksCreated, stats.TotalVectors)

	// The document is marked processed with a content hash
	doc, err := store.GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.NotNil(t, doc.ProcessedAt)
	assert.NotEmpty(t, doc.ContentHash)
}

func TestProcessDocumentInsufficientContent(t *testing.T) {
	store := database.NewMemoryStore()
	processor := newTestProcessor(t, store, newFakeVectorIndex())

	ctx := context.Background()
	path := writeTestFile(t, "tiny.txt", "too short")
	require.NoError(t, store.Create(ctx, &models.Document{
		ID: "doc-1", Name: "tiny.txt", OriginalName: "tiny.txt",
		MimeType: "text/plain", Path: path,
	}))

	result, err := processor.ProcessDocument(ctx, "doc-1")
	require.NoError(t, err, "insufficient content is a non-error outcome")
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.ChunksCreated)
	assert.NotEmpty(t, result.Error)

	chunks, err := store.ListByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestProcessDocumentIdempotentReprocess(t *testing.T) {
	store := database.NewMemoryStore()
	index := newFakeVectorIndex()
	processor := newTestProcessor(t, store, index)

	ctx := context.Background()
	path := writeTestFile(t, "statement.txt", merchantText(30))
	require.NoError(t, store.Create(ctx, &models.Document{
		ID: "doc-1", Name: "statement.txt", OriginalName: "statement.txt",
		MimeType: "text/plain", Path: path,
	}))

	first, err := processor.ProcessDocument(ctx, "doc-1")
	require.NoError(t, err)
	second, err := processor.ProcessDocument(ctx, "doc-1")
	require.NoError(t, err)

	assert.Equal(t, first.ChunksCreated, second.ChunksCreated)

	// Chunks were replaced, not appended
	count, err := store.CountByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, first.ChunksCreated, count)

	stats, err := index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ChunksCreated, stats.TotalVectors)
}

func TestProcessDocumentUnknownID(t *testing.T) {
	processor := newTestProcessor(t, database.NewMemoryStore(), newFakeVectorIndex())
	_, err := processor.ProcessDocument(context.Background(), "missing")
	assert.Error(t, err)
}

func TestRemoveDocumentCleansDerivedData(t *testing.T) {
	store := database.NewMemoryStore()
	index := newFakeVectorIndex()
	processor := newTestProcessor(t, store, index)

	ctx := context.Background()
	path := writeTestFile(t, "statement.txt", merchantText(30))
	require.NoError(t, store.Create(ctx, &models.Document{
		ID: "doc-1", Name: "statement.txt", OriginalName: "statement.txt",
		MimeType: "text/plain", Path: path,
	}))

	_, err := processor.ProcessDocument(ctx, "doc-1")
	require.NoError(t, err)

	require.NoError(t, processor.RemoveDocument(ctx, "doc-1"))

	_, err = store.GetByID(ctx, "doc-1")
	assert.ErrorIs(t, err, database.ErrNotFound)

	count, err := store.CountByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	stats, err := index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalVectors)
}

func TestReindexDocument(t *testing.T) {
	store := database.NewMemoryStore()
	index := newFakeVectorIndex()
	processor := newTestProcessor(t, store, index)

	ctx := context.Background()
	path := writeTestFile(t, "statement.txt", merchantText(30))
	require.NoError(t, store.Create(ctx, &models.Document{
		ID: "doc-1", Name: "statement.txt", OriginalName: "statement.txt",
		MimeType: "text/plain", Path: path,
	}))

	_, err := processor.ProcessDocument(ctx, "doc-1")
	require.NoError(t, err)

	require.NoError(t, processor.ReindexDocument(ctx, "doc-1"))

	// Reindex before processing has nothing to work with
	require.NoError(t, store.Create(ctx, &models.Document{
		ID: "doc-2", Name: "empty", OriginalName: "empty", MimeType: "text/plain",
	}))
	assert.Error(t, processor.ReindexDocument(ctx, "doc-2"))
}

func TestProcessBatch(t *testing.T) {
	store := database.NewMemoryStore()
	processor := newTestProcessor(t, store, newFakeVectorIndex())

	ctx := context.Background()
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = fmt.Sprintf("doc-%d", i)
		path := writeTestFile(t, fmt.Sprintf("f%d.txt", i), merchantText(20))
		require.NoError(t, store.Create(ctx, &models.Document{
			ID: ids[i], Name: "f.txt", OriginalName: "f.txt",
			MimeType: "text/plain", Path: path,
		}))
	}
	// One missing document must not abort the batch
	ids = append(ids, "missing")

	results := processor.ProcessBatch(ctx, ids)
	require.Len(t, results, 6)
	for i := 0; i < 5; i++ {
		assert.True(t, results[i].Success, "document %d", i)
	}
	assert.False(t, results[5].Success)
	assert.NotEmpty(t, results[5].Error)
}

func TestNamespaceFor(t *testing.T) {
	namespaces := []string{"default", "rates"}

	assert.Equal(t, "rates", namespaceFor(&models.Document{Category: "Rates"}, namespaces))
	assert.Equal(t, "default", namespaceFor(&models.Document{Category: "unknown"}, namespaces))
	assert.Equal(t, "default", namespaceFor(&models.Document{}, namespaces))
	assert.Equal(t, "default", namespaceFor(&models.Document{}, nil))
}

func TestProcessingQuality(t *testing.T) {
	assert.Equal(t, 0.0, processingQuality("", nil))

	text := merchantText(20)
	chunks := NewChunker().Chunk(text, &models.Document{ID: "d", Name: "n"})
	require.NotEmpty(t, chunks)

	quality := processingQuality(text, chunks)
	assert.Greater(t, quality, 0.0)
	assert.LessOrEqual(t, quality, 100.0)
}
