package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"merchant-docs-platform/internal/ai"
	"merchant-docs-platform/internal/config"
	"merchant-docs-platform/internal/logger"
	"merchant-docs-platform/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// PgVectorIndex stores vector records in PostgreSQL with pgvector.
// The table and extension are created lazily on first use.
type PgVectorIndex struct {
	pool      *pgxpool.Pool
	dim       int
	batchSize int

	mu    sync.Mutex
	ready bool
}

func NewPgVectorIndex(pool *pgxpool.Pool, cfg *config.Config) *PgVectorIndex {
	return &PgVectorIndex{
		pool:      pool,
		dim:       cfg.VectorDimensions,
		batchSize: cfg.UpsertBatchSize,
	}
}

var _ VectorIndex = (*PgVectorIndex)(nil)

// EnsureReady creates the extension, table and index if missing, then
// polls until the table answers queries. Bounded retries so a broken
// database surfaces as an error rather than a hang.
func (x *PgVectorIndex) EnsureReady(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.ready {
		return nil
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vector_records (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			namespace TEXT NOT NULL DEFAULT 'default',
			embedding vector(%d) NOT NULL,
			content TEXT NOT NULL,
			document_name TEXT NOT NULL DEFAULT '',
			mime_type TEXT NOT NULL DEFAULT '',
			chunk_index INT NOT NULL DEFAULT 0,
			key_terms TEXT[] NOT NULL DEFAULT '{}',
			semantic_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			quality TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, x.dim),
		`CREATE INDEX IF NOT EXISTS vector_records_document_idx ON vector_records (document_id)`,
		`CREATE INDEX IF NOT EXISTS vector_records_embedding_idx
			ON vector_records USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range statements {
		if _, err := x.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize vector index: %w", err)
		}
	}

	// Poll readiness with bounded retries
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		var one int
		err := x.pool.QueryRow(ctx, `SELECT 1`).Scan(&one)
		if err == nil {
			x.ready = true
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
	}
	return fmt.Errorf("vector index not ready: %w", lastErr)
}

func (x *PgVectorIndex) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := x.EnsureReady(ctx); err != nil {
		return err
	}

	for start := 0; start < len(records); start += x.batchSize {
		end := start + x.batchSize
		if end > len(records) {
			end = len(records)
		}

		batch := &pgx.Batch{}
		for _, record := range records[start:end] {
			namespace := record.Namespace
			if namespace == "" {
				namespace = "default"
			}
			batch.Queue(`
				INSERT INTO vector_records
					(id, document_id, namespace, embedding, content, document_name,
					 mime_type, chunk_index, key_terms, semantic_score, quality)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				ON CONFLICT (id) DO UPDATE SET
					document_id = EXCLUDED.document_id,
					namespace = EXCLUDED.namespace,
					embedding = EXCLUDED.embedding,
					content = EXCLUDED.content,
					document_name = EXCLUDED.document_name,
					mime_type = EXCLUDED.mime_type,
					chunk_index = EXCLUDED.chunk_index,
					key_terms = EXCLUDED.key_terms,
					semantic_score = EXCLUDED.semantic_score,
					quality = EXCLUDED.quality`,
				record.ID, record.DocumentID, namespace, pgvector.NewVector(record.Values),
				record.Content, record.DocumentName, record.MimeType, record.ChunkIndex,
				record.KeyTerms, record.SemanticScore, record.Quality)
		}

		results := x.pool.SendBatch(ctx, batch)
		var batchErr error
		for i := start; i < end; i++ {
			if _, err := results.Exec(); err != nil {
				// Per-record failures are logged and skipped; the rest of
				// the batch still commits
				logger.Warn("Vector upsert failed", "record_id", records[i].ID, "error", err)
				batchErr = err
			}
		}
		if err := results.Close(); err != nil && batchErr == nil {
			return fmt.Errorf("failed to close upsert batch: %w", err)
		}
	}
	return nil
}

func (x *PgVectorIndex) Query(ctx context.Context, vector []float32, topK int, namespace string) ([]VectorMatch, error) {
	if err := x.EnsureReady(ctx); err != nil {
		return nil, err
	}
	if namespace == "" {
		namespace = "default"
	}

	rows, err := x.pool.Query(ctx, `
		SELECT id, document_id, namespace, content, document_name, mime_type,
		       chunk_index, key_terms, semantic_score, quality,
		       1 - (embedding <=> $1) AS score
		FROM vector_records
		WHERE namespace = $2
		ORDER BY embedding <=> $1
		LIMIT $3`, pgvector.NewVector(vector), namespace, topK)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var m VectorMatch
		err := rows.Scan(&m.Record.ID, &m.Record.DocumentID, &m.Record.Namespace,
			&m.Record.Content, &m.Record.DocumentName, &m.Record.MimeType,
			&m.Record.ChunkIndex, &m.Record.KeyTerms, &m.Record.SemanticScore,
			&m.Record.Quality, &m.Score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vector match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (x *PgVectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := x.EnsureReady(ctx); err != nil {
		return err
	}
	_, err := x.pool.Exec(ctx, `DELETE FROM vector_records WHERE id = ANY($1)`, ids)
	return err
}

func (x *PgVectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := x.EnsureReady(ctx); err != nil {
		return err
	}
	_, err := x.pool.Exec(ctx, `DELETE FROM vector_records WHERE document_id = $1`, documentID)
	return err
}

func (x *PgVectorIndex) Stats(ctx context.Context) (*IndexStats, error) {
	if err := x.EnsureReady(ctx); err != nil {
		return nil, err
	}

	stats := &IndexStats{
		Namespaces: make(map[string]int),
		Dimension:  x.dim,
	}

	rows, err := x.pool.Query(ctx, `SELECT namespace, COUNT(*) FROM vector_records GROUP BY namespace`)
	if err != nil {
		return nil, fmt.Errorf("failed to query index stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var namespace string
		var count int
		if err := rows.Scan(&namespace, &count); err != nil {
			return nil, err
		}
		stats.Namespaces[namespace] = count
		stats.TotalVectors += count
	}
	return stats, rows.Err()
}

// VectorSearchBackend answers text queries via the embedding provider and
// the vector index, fanning out across configured namespaces.
type VectorSearchBackend struct {
	index      VectorIndex
	embedder   ai.Embedder
	namespaces []string
}

func NewVectorSearchBackend(index VectorIndex, embedder ai.Embedder, namespaces []string) *VectorSearchBackend {
	if len(namespaces) == 0 {
		namespaces = []string{"default"}
	}
	return &VectorSearchBackend{index: index, embedder: embedder, namespaces: namespaces}
}

var _ SearchBackend = (*VectorSearchBackend)(nil)

func (b *VectorSearchBackend) Name() string {
	return "pgvector"
}

func (b *VectorSearchBackend) Search(ctx context.Context, query string, limit int, threshold float64) ([]models.SearchResult, error) {
	vector, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var matches []VectorMatch
	for _, namespace := range b.namespaces {
		nsMatches, err := b.index.Query(ctx, vector, limit, namespace)
		if err != nil {
			return nil, err
		}
		matches = append(matches, nsMatches...)
	}

	results := make([]models.SearchResult, 0, len(matches))
	for _, m := range matches {
		if m.Score < threshold {
			continue
		}
		results = append(results, models.SearchResult{
			ID:         m.Record.ID,
			Score:      m.Score,
			DocumentID: m.Record.DocumentID,
			Content:    m.Record.Content,
			Metadata: models.SearchResultMetadata{
				DocumentName:   m.Record.DocumentName,
				RelevanceScore: m.Score,
				MimeType:       m.Record.MimeType,
				ChunkIndex:     m.Record.ChunkIndex,
				KeywordMatches: m.Record.KeyTerms,
				SemanticMatch:  true,
			},
		})
	}

	sortResultsByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
