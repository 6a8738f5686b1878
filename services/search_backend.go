package services

import (
	"context"
	"sort"

	"merchant-docs-platform/models"
)

// SearchBackend answers a text query with ranked results. The façade
// composes two implementations in a fixed fallback order; callers never
// branch on which backend is configured.
type SearchBackend interface {
	Name() string
	Search(ctx context.Context, query string, limit int, threshold float64) ([]models.SearchResult, error)
}

// VectorRecord is the index-side representation of a chunk. Lifecycle is
// 1:1 with the chunk: upserted on creation, deleted with the document.
type VectorRecord struct {
	ID            string
	DocumentID    string
	Namespace     string
	Values        []float32
	Content       string
	DocumentName  string
	MimeType      string
	ChunkIndex    int
	KeyTerms      []string
	SemanticScore float64
	Quality       string
}

// VectorMatch is a scored record returned by an index query
type VectorMatch struct {
	Record VectorRecord
	Score  float64
}

// IndexStats describes the vector index for health reporting
type IndexStats struct {
	TotalVectors int            `json:"total_vectors"`
	Namespaces   map[string]int `json:"namespaces"`
	Dimension    int            `json:"dimension"`
}

// VectorIndex is the storage contract for vector records. Implementations
// must ensure the index exists lazily before the first read or write.
type VectorIndex interface {
	EnsureReady(ctx context.Context) error
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float32, topK int, namespace string) ([]VectorMatch, error)
	Delete(ctx context.Context, ids []string) error
	DeleteByDocument(ctx context.Context, documentID string) error
	Stats(ctx context.Context) (*IndexStats, error)
}

// sortResultsByScore orders results descending by score, breaking ties
// by id for deterministic output
func sortResultsByScore(results []models.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
