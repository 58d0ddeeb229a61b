// Package postgres provides PostgreSQL-backed implementations of the boxkeeper
// record store and vector index.
//
// Both share a single [pgxpool.Pool]. The pgvector extension must be
// available in the target database; [Migrate] installs it via CREATE
// EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	db, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer db.Close()
//
//	svc := inventory.New(db, semantic.New(embedder, db.Index("inventory")))
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Record DDL: boxes and items
// ─────────────────────────────────────────────────────────────────────────────

const ddlRecords = `
CREATE TABLE IF NOT EXISTS boxes (
    id          TEXT         PRIMARY KEY,
    name        TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS items (
    id              TEXT         PRIMARY KEY,
    name            TEXT         NOT NULL,
    canonical_name  TEXT         NOT NULL,
    quantity        INTEGER      NOT NULL CHECK (quantity > 0),
    box_id          TEXT         NOT NULL REFERENCES boxes (id) ON DELETE RESTRICT,
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_items_box_id
    ON items (box_id);

CREATE INDEX IF NOT EXISTS idx_items_canonical_name
    ON items (canonical_name);
`

// ddlVectors returns the vector DDL with the embedding dimension substituted.
// The dimension is baked into the column type at schema creation time.
func ddlVectors(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS item_vectors (
    namespace       TEXT         NOT NULL,
    id              TEXT         NOT NULL,
    embedding       vector(%d)   NOT NULL,
    name            TEXT         NOT NULL DEFAULT '',
    canonical_name  TEXT         NOT NULL DEFAULT '',
    box_id          TEXT         NOT NULL DEFAULT '',
    box_name        TEXT         NOT NULL DEFAULT '',
    updated_at      TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (namespace, id)
);

CREATE INDEX IF NOT EXISTS idx_item_vectors_embedding
    ON item_vectors USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required tables and extensions exist. It is
// idempotent and safe to call on every start.
//
// embeddingDimensions must match the embedding model in use (e.g. 1536 for
// OpenAI text-embedding-3-small, 768 for nomic-embed-text). Changing it after
// the first migration requires dropping item_vectors and reindexing.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlRecords,
		ddlVectors(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
