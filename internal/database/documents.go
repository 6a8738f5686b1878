package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"merchant-docs-platform/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, name, original_name, mime_type, size, path, user_id, folder_id,
	content, content_hash, is_public, admin_only, manager_only, category, tags,
	description, views, created_at, updated_at, processed_at`

// PostgresDocumentStore implements DocumentStore on pgx
type PostgresDocumentStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDocumentStore(pool *pgxpool.Pool) *PostgresDocumentStore {
	return &PostgresDocumentStore{pool: pool}
}

var _ DocumentStore = (*PostgresDocumentStore)(nil)

func (s *PostgresDocumentStore) Create(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		doc.ID, doc.Name, doc.OriginalName, doc.MimeType, doc.Size, doc.Path,
		nullable(doc.UserID), nullable(doc.FolderID), doc.Content, nullable(doc.ContentHash),
		doc.IsPublic, doc.AdminOnly, doc.ManagerOnly, nullable(doc.Category), doc.Tags,
		doc.Description, doc.Views, doc.CreatedAt, doc.UpdatedAt, doc.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) GetByID(ctx context.Context, id string) (*models.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (s *PostgresDocumentStore) List(ctx context.Context, filter DocumentListFilter) ([]*models.Document, error) {
	var (
		conds []string
		args  []any
	)
	addCond := func(expr string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if filter.UserID != "" {
		addCond("user_id = $%d", filter.UserID)
	}
	if filter.Category != "" {
		addCond("category = $%d", filter.Category)
	}
	if filter.FolderID != "" {
		addCond("folder_id = $%d", filter.FolderID)
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (s *PostgresDocumentStore) Update(ctx context.Context, id string, patch *models.DocumentPatch) (*models.Document, error) {
	var (
		sets []string
		args []any
	)
	addSet := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Name != nil {
		addSet("name", *patch.Name)
	}
	if patch.Content != nil {
		addSet("content", *patch.Content)
	}
	if patch.Category != nil {
		addSet("category", *patch.Category)
	}
	if patch.Tags != nil {
		addSet("tags", *patch.Tags)
	}
	if patch.Description != nil {
		addSet("description", *patch.Description)
	}
	if patch.IsPublic != nil {
		addSet("is_public", *patch.IsPublic)
	}
	if patch.AdminOnly != nil {
		addSet("admin_only", *patch.AdminOnly)
	}
	if patch.ManagerOnly != nil {
		addSet("manager_only", *patch.ManagerOnly)
	}

	if len(sets) == 0 {
		return s.GetByID(ctx, id)
	}
	addSet("updated_at", time.Now())

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE documents SET %s WHERE id = $%d RETURNING `+documentColumns,
		strings.Join(sets, ", "), len(args))

	row := s.pool.QueryRow(ctx, query, args...)
	return scanDocument(row)
}

func (s *PostgresDocumentStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresDocumentStore) IncrementViews(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE documents SET views = views + 1 WHERE id = $1`, id)
	return err
}

func (s *PostgresDocumentStore) SetProcessed(ctx context.Context, id string, content, contentHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents SET content = $2, content_hash = $3, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, content, nullable(contentHash))
	return err
}

func (s *PostgresDocumentStore) FindByContentHash(ctx context.Context, hash string) (*models.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE content_hash = $1 LIMIT 1`, hash)
	return scanDocument(row)
}

func (s *PostgresDocumentStore) ListUnprocessed(ctx context.Context, limit int) ([]*models.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE processed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (s *PostgresDocumentStore) SearchCandidates(ctx context.Context, terms []string, limit int) ([]*models.Document, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	patterns := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		patterns = append(patterns, "%"+term+"%")
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE name ILIKE ANY($1)
		   OR content ILIKE ANY($1)
		   OR array_to_string(tags, ' ') ILIKE ANY($1)
		ORDER BY created_at DESC
		LIMIT $2`, patterns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc                             models.Document
		userID, folderID, hash, category *string
	)
	err := row.Scan(&doc.ID, &doc.Name, &doc.OriginalName, &doc.MimeType, &doc.Size, &doc.Path,
		&userID, &folderID, &doc.Content, &hash, &doc.IsPublic, &doc.AdminOnly, &doc.ManagerOnly,
		&category, &doc.Tags, &doc.Description, &doc.Views, &doc.CreatedAt, &doc.UpdatedAt, &doc.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.UserID = deref(userID)
	doc.FolderID = deref(folderID)
	doc.ContentHash = deref(hash)
	doc.Category = deref(category)
	return &doc, nil
}

func scanDocuments(rows pgx.Rows) ([]*models.Document, error) {
	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
