package services

import (
	"context"
	"testing"

	"merchant-docs-platform/internal/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorSearchBackendThresholdAndNamespaces(t *testing.T) {
	index := newFakeVectorIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, []VectorRecord{
		{ID: "doc-1-chunk-0", DocumentID: "doc-1", Namespace: "default",
			Content: "qualified processing rates start at 2.5%", DocumentName: "Rates Guide"},
		{ID: "doc-1-chunk-1", DocumentID: "doc-1", Namespace: "default",
			Content: "office hours and holiday schedule"},
		{ID: "doc-2-chunk-0", DocumentID: "doc-2", Namespace: "rates",
			Content: "interchange fee categories explained"},
	}))
	index.scores["doc-1-chunk-0"] = 0.92
	index.scores["doc-1-chunk-1"] = 0.55
	index.scores["doc-2-chunk-0"] = 0.81

	backend := NewVectorSearchBackend(index, ai.NewHashEmbedder(8), []string{"default", "rates"})

	results, err := backend.Search(ctx, "processing rates", 10, 0.7)
	require.NoError(t, err)
	require.Len(t, results, 2, "the match below threshold is discarded")

	// Matches from both namespaces merge, ordered by score
	assert.Equal(t, "doc-1-chunk-0", results[0].ID)
	assert.Equal(t, "doc-2-chunk-0", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.True(t, results[0].Metadata.SemanticMatch)
	assert.Equal(t, "Rates Guide", results[0].Metadata.DocumentName)
}

func TestVectorSearchBackendRespectsLimit(t *testing.T) {
	index := newFakeVectorIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, []VectorRecord{
		{ID: "doc-1-chunk-0", DocumentID: "doc-1", Namespace: "default", Content: "rates overview"},
		{ID: "doc-2-chunk-0", DocumentID: "doc-2", Namespace: "rates", Content: "fee schedule"},
	}))
	index.scores["doc-1-chunk-0"] = 0.95
	index.scores["doc-2-chunk-0"] = 0.85

	backend := NewVectorSearchBackend(index, ai.NewHashEmbedder(8), []string{"default", "rates"})

	results, err := backend.Search(ctx, "rates", 1, 0.7)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1-chunk-0", results[0].ID)
}

func TestVectorSearchBackendDefaultsNamespace(t *testing.T) {
	backend := NewVectorSearchBackend(newFakeVectorIndex(), ai.NewHashEmbedder(8), nil)
	assert.Equal(t, []string{"default"}, backend.namespaces)
	assert.Equal(t, "pgvector", backend.Name())
}
