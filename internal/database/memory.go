package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"merchant-docs-platform/models"
)

// MemoryStore is an in-memory DocumentStore and ChunkStore used in tests
// and local development without PostgreSQL.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]*models.Document
	chunks map[string][]*models.DocumentChunk // keyed by document ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]*models.Document),
		chunks: make(map[string][]*models.DocumentChunk),
	}
}

var (
	_ DocumentStore = (*MemoryStore)(nil)
	_ ChunkStore    = (*MemoryStore)(nil)
)

func (m *MemoryStore) Create(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	stored := *doc
	m.docs[doc.ID] = &stored
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *MemoryStore) List(_ context.Context, filter DocumentListFilter) ([]*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*models.Document
	for _, doc := range m.docs {
		if filter.UserID != "" && doc.UserID != filter.UserID {
			continue
		}
		if filter.Category != "" && doc.Category != filter.Category {
			continue
		}
		if filter.FolderID != "" && doc.FolderID != filter.FolderID {
			continue
		}
		copied := *doc
		docs = append(docs, &copied)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(docs) {
			return nil, nil
		}
		docs = docs[filter.Offset:]
	}
	if filter.Limit > 0 && len(docs) > filter.Limit {
		docs = docs[:filter.Limit]
	}
	return docs, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, patch *models.DocumentPatch) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}

	if patch.Name != nil {
		doc.Name = *patch.Name
	}
	if patch.Content != nil {
		doc.Content = *patch.Content
	}
	if patch.Category != nil {
		doc.Category = *patch.Category
	}
	if patch.Tags != nil {
		doc.Tags = *patch.Tags
	}
	if patch.Description != nil {
		doc.Description = *patch.Description
	}
	if patch.IsPublic != nil {
		doc.IsPublic = *patch.IsPublic
	}
	if patch.AdminOnly != nil {
		doc.AdminOnly = *patch.AdminOnly
	}
	if patch.ManagerOnly != nil {
		doc.ManagerOnly = *patch.ManagerOnly
	}
	doc.UpdatedAt = time.Now()

	copied := *doc
	return &copied, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	return nil
}

func (m *MemoryStore) IncrementViews(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	doc.Views++
	return nil
}

func (m *MemoryStore) SetProcessed(_ context.Context, id string, content, contentHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	doc.Content = content
	doc.ContentHash = contentHash
	doc.ProcessedAt = &now
	doc.UpdatedAt = now
	return nil
}

func (m *MemoryStore) FindByContentHash(_ context.Context, hash string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, doc := range m.docs {
		if doc.ContentHash != "" && doc.ContentHash == hash {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListUnprocessed(_ context.Context, limit int) ([]*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*models.Document
	for _, doc := range m.docs {
		if doc.ProcessedAt == nil {
			copied := *doc
			docs = append(docs, &copied)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (m *MemoryStore) SearchCandidates(_ context.Context, terms []string, limit int) ([]*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*models.Document
	for _, doc := range m.docs {
		haystack := strings.ToLower(doc.Name + " " + doc.Content + " " + strings.Join(doc.Tags, " "))
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			if strings.Contains(haystack, term) {
				copied := *doc
				docs = append(docs, &copied)
				break
			}
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (m *MemoryStore) ReplaceForDocument(_ context.Context, documentID string, chunks []*models.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]*models.DocumentChunk, len(chunks))
	for i, chunk := range chunks {
		c := *chunk
		copied[i] = &c
	}
	m.chunks[documentID] = copied
	return nil
}

func (m *MemoryStore) ListByDocument(_ context.Context, documentID string) ([]*models.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.chunks[documentID]
	chunks := make([]*models.DocumentChunk, len(stored))
	for i, chunk := range stored {
		c := *chunk
		chunks[i] = &c
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	return chunks, nil
}

func (m *MemoryStore) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.chunks, documentID)
	return nil
}

func (m *MemoryStore) CountByDocument(_ context.Context, documentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.chunks[documentID]), nil
}
