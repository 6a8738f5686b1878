package database

import (
	"context"
	"errors"

	"merchant-docs-platform/models"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// DocumentListFilter narrows List queries. Zero values mean "no filter".
type DocumentListFilter struct {
	UserID   string
	Category string
	FolderID string
	Limit    int
	Offset   int
}

// DocumentStore persists document rows. Extracted text lives on the row
// itself so keyword fallback search works without the vector index.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter DocumentListFilter) ([]*models.Document, error)
	Update(ctx context.Context, id string, patch *models.DocumentPatch) (*models.Document, error)
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
	SetProcessed(ctx context.Context, id string, content, contentHash string) error
	FindByContentHash(ctx context.Context, hash string) (*models.Document, error)
	ListUnprocessed(ctx context.Context, limit int) ([]*models.Document, error)

	// SearchCandidates returns documents whose name, content or tags match
	// any of the given terms (case-insensitive substring). Scoring happens
	// in the caller so the same ranking runs against any store.
	SearchCandidates(ctx context.Context, terms []string, limit int) ([]*models.Document, error)
}

// ChunkStore persists derived chunks. Chunks are replaced wholesale on
// reprocessing, never updated row by row.
type ChunkStore interface {
	ReplaceForDocument(ctx context.Context, documentID string, chunks []*models.DocumentChunk) error
	ListByDocument(ctx context.Context, documentID string) ([]*models.DocumentChunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	CountByDocument(ctx context.Context, documentID string) (int, error)
}
