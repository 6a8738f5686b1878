package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"merchant-docs-platform/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		original_name TEXT NOT NULL,
		mime_type     TEXT NOT NULL,
		size          BIGINT NOT NULL DEFAULT 0,
		path          TEXT NOT NULL,
		user_id       TEXT,
		folder_id     TEXT,
		content       TEXT,
		content_hash  TEXT,
		is_public     BOOLEAN NOT NULL DEFAULT FALSE,
		admin_only    BOOLEAN NOT NULL DEFAULT FALSE,
		manager_only  BOOLEAN NOT NULL DEFAULT FALSE,
		category      TEXT,
		tags          TEXT[],
		description   TEXT,
		views         INTEGER NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_category ON documents (category)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents (content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_processed_at ON documents (processed_at)`,
	`CREATE TABLE IF NOT EXISTS document_chunks (
		id             TEXT PRIMARY KEY,
		document_id    TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		content        BYTEA NOT NULL,
		compression    TEXT NOT NULL DEFAULT 'none',
		chunk_index    INTEGER NOT NULL,
		tokens         INTEGER NOT NULL DEFAULT 0,
		semantic_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		key_terms      TEXT[],
		start_char     INTEGER NOT NULL DEFAULT 0,
		end_char       INTEGER NOT NULL DEFAULT 0,
		quality        TEXT NOT NULL DEFAULT 'low',
		processed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_document_chunks_document ON document_chunks (document_id, chunk_index)`,
}

// The vector_records table is created lazily by the search index on first
// use; this binary only prepares the relational schema.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pool.Close()

	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("Migration %d failed: %v", i+1, err)
		}
	}

	fmt.Println("Migrations applied successfully")
	os.Exit(0)
}
