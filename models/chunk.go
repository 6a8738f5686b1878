package models

import (
	"fmt"
	"time"
)

// ChunkQuality tiers assigned during chunking
const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// DocumentChunk is a bounded slice of a document's extracted text.
// Chunks are derived data: reprocessing a document deletes and recreates
// every chunk, so they are never mutated in place.
type DocumentChunk struct {
	ID            string        `json:"id"` // {documentID}-chunk-{index}
	DocumentID    string        `json:"document_id"`
	Content       string        `json:"content"`
	ChunkIndex    int           `json:"chunk_index"`
	Tokens        int           `json:"tokens"`
	SemanticScore float64       `json:"semantic_score"` // [0,1]
	KeyTerms      []string      `json:"key_terms"`
	Metadata      ChunkMetadata `json:"metadata"`
}

// ChunkMetadata mirrors the chunk's provenance for search results
type ChunkMetadata struct {
	DocumentName string    `json:"document_name"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	StartChar    int       `json:"start_char"`
	EndChar      int       `json:"end_char"`
	Quality      string    `json:"quality"` // high, medium, low
	ProcessedAt  time.Time `json:"processed_at"`
}

// ChunkID builds the canonical chunk identifier
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-chunk-%d", documentID, index)
}

// SearchResult is the shape returned to the presentation layer for both
// the vector path and the database fallback path.
type SearchResult struct {
	ID         string               `json:"id"`
	Score      float64              `json:"score"`
	DocumentID string               `json:"document_id"`
	Content    string               `json:"content"`
	Metadata   SearchResultMetadata `json:"metadata"`
}

// SearchResultMetadata carries ranking signals alongside each result
type SearchResultMetadata struct {
	DocumentName   string   `json:"document_name"`
	RelevanceScore float64  `json:"relevance_score"`
	MimeType       string   `json:"mime_type"`
	ChunkIndex     int      `json:"chunk_index"`
	KeywordMatches []string `json:"keyword_matches,omitempty"`
	SemanticMatch  bool     `json:"semantic_match"`
	ContextualInfo string   `json:"contextual_info,omitempty"`
}
