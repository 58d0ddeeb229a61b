package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/boxkeeper/internal/semantic"
)

var (
	_ semantic.VectorIndex = (*VectorIndex)(nil)
	_ semantic.Truncater   = (*VectorIndex)(nil)
)

// VectorIndex is a namespaced item-vector table with a pgvector HNSW index
// for approximate nearest-neighbour search by cosine distance.
//
// Obtain one via [Store.Index]. All methods are safe for concurrent use.
type VectorIndex struct {
	pool      *pgxpool.Pool
	namespace string
}

// Upsert implements [semantic.VectorIndex]. An existing vector with the same
// ID is replaced.
func (v *VectorIndex) Upsert(ctx context.Context, id string, vector []float32, md semantic.Metadata) error {
	const q = `
		INSERT INTO item_vectors
		    (namespace, id, embedding, name, canonical_name, box_id, box_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (namespace, id) DO UPDATE SET
		    embedding       = EXCLUDED.embedding,
		    name            = EXCLUDED.name,
		    canonical_name  = EXCLUDED.canonical_name,
		    box_id          = EXCLUDED.box_id,
		    box_name        = EXCLUDED.box_name,
		    updated_at      = EXCLUDED.updated_at`

	_, err := v.pool.Exec(ctx, q,
		v.namespace,
		id,
		pgvector.NewVector(vector),
		md.Name,
		md.CanonicalName,
		md.BoxID,
		md.BoxName,
	)
	if err != nil {
		return fmt.Errorf("vector index: upsert %s: %w", id, err)
	}
	return nil
}

// Delete implements [semantic.VectorIndex]. Unknown IDs are ignored.
func (v *VectorIndex) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `DELETE FROM item_vectors WHERE namespace = $1 AND id = ANY($2)`
	if _, err := v.pool.Exec(ctx, q, v.namespace, ids); err != nil {
		return fmt.Errorf("vector index: delete: %w", err)
	}
	return nil
}

// Query implements [semantic.VectorIndex]. Hits are ordered by ascending
// cosine distance; Score is 1 - distance clamped to [0, 1].
func (v *VectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]semantic.Hit, error) {
	if topK <= 0 {
		return []semantic.Hit{}, nil
	}
	const q = `
		SELECT id, name, canonical_name, box_id, box_name,
		       embedding <=> $2 AS distance
		FROM   item_vectors
		WHERE  namespace = $1
		ORDER  BY distance, id
		LIMIT  $3`

	rows, err := v.pool.Query(ctx, q, v.namespace, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("vector index: query: %w", err)
	}
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (semantic.Hit, error) {
		var (
			h    semantic.Hit
			dist float64
		)
		if err := row.Scan(
			&h.ID,
			&h.Metadata.Name,
			&h.Metadata.CanonicalName,
			&h.Metadata.BoxID,
			&h.Metadata.BoxName,
			&dist,
		); err != nil {
			return semantic.Hit{}, err
		}
		h.Score = semantic.SimilarityFromDistance(dist)
		return h, nil
	})
	if err != nil {
		return nil, fmt.Errorf("vector index: scan rows: %w", err)
	}
	if hits == nil {
		hits = []semantic.Hit{}
	}
	return hits, nil
}

// Truncate implements [semantic.Truncater]. It removes every vector in the
// namespace.
func (v *VectorIndex) Truncate(ctx context.Context) error {
	if _, err := v.pool.Exec(ctx, `DELETE FROM item_vectors WHERE namespace = $1`, v.namespace); err != nil {
		return fmt.Errorf("vector index: truncate: %w", err)
	}
	return nil
}
