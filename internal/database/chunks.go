package database

import (
	"context"
	"fmt"

	"merchant-docs-platform/models"
	"merchant-docs-platform/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresChunkStore implements ChunkStore on pgx. Chunk content is
// compressed at rest; the compression column records the algorithm so
// older rows stay readable if the default changes.
type PostgresChunkStore struct {
	pool *pgxpool.Pool
}

func NewPostgresChunkStore(pool *pgxpool.Pool) *PostgresChunkStore {
	return &PostgresChunkStore{pool: pool}
}

var _ ChunkStore = (*PostgresChunkStore)(nil)

func (s *PostgresChunkStore) ReplaceForDocument(ctx context.Context, documentID string, chunks []*models.DocumentChunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to delete existing chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		compressed, algorithm, err := utils.CompressText(chunk.Content)
		if err != nil {
			return fmt.Errorf("failed to compress chunk %s: %w", chunk.ID, err)
		}

		batch.Queue(`
			INSERT INTO document_chunks
				(id, document_id, content, compression, chunk_index, tokens, semantic_score,
				 key_terms, quality, start_char, end_char, processed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			chunk.ID, documentID, compressed, string(algorithm), chunk.ChunkIndex,
			chunk.Tokens, chunk.SemanticScore, chunk.KeyTerms, chunk.Metadata.Quality,
			chunk.Metadata.StartChar, chunk.Metadata.EndChar, chunk.Metadata.ProcessedAt)
	}

	results := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresChunkStore) ListByDocument(ctx context.Context, documentID string) ([]*models.DocumentChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.document_id, c.content, c.compression, c.chunk_index, c.tokens,
		       c.semantic_score, c.key_terms, c.quality, c.start_char, c.end_char, c.processed_at,
		       d.name, d.original_name, d.mime_type
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.document_id = $1
		ORDER BY c.chunk_index ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.DocumentChunk
	for rows.Next() {
		var (
			chunk       models.DocumentChunk
			compressed  []byte
			compression string
		)
		err := rows.Scan(&chunk.ID, &chunk.DocumentID, &compressed, &compression,
			&chunk.ChunkIndex, &chunk.Tokens, &chunk.SemanticScore, &chunk.KeyTerms,
			&chunk.Metadata.Quality, &chunk.Metadata.StartChar, &chunk.Metadata.EndChar,
			&chunk.Metadata.ProcessedAt,
			&chunk.Metadata.DocumentName, &chunk.Metadata.OriginalName, &chunk.Metadata.MimeType)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		content, err := utils.DecompressText(compressed, utils.CompressionAlgorithm(compression))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress chunk %s: %w", chunk.ID, err)
		}
		chunk.Content = content
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func (s *PostgresChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return err
}

func (s *PostgresChunkStore) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`, documentID).Scan(&count)
	return count, err
}
