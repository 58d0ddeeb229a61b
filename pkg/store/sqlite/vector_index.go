package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/MrWong99/boxkeeper/internal/semantic"
)

var (
	_ semantic.VectorIndex = (*VectorIndex)(nil)
	_ semantic.Truncater   = (*VectorIndex)(nil)
)

// VectorIndex stores vectors in the item_vectors table and ranks them by
// cosine similarity in process. Obtain one via [Store.Index].
type VectorIndex struct {
	db        *sql.DB
	namespace string
}

// Upsert implements [semantic.VectorIndex].
func (v *VectorIndex) Upsert(ctx context.Context, id string, vector []float32, md semantic.Metadata) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO item_vectors (namespace, id, embedding, name, canonical_name, box_id, box_name)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, id) DO UPDATE SET
		  embedding = excluded.embedding,
		  name = excluded.name,
		  canonical_name = excluded.canonical_name,
		  box_id = excluded.box_id,
		  box_name = excluded.box_name`,
		v.namespace, id, encodeVector(vector), md.Name, md.CanonicalName, md.BoxID, md.BoxName)
	if err != nil {
		return fmt.Errorf("vector index: upsert %s: %w", id, err)
	}
	return nil
}

// Delete implements [semantic.VectorIndex].
func (v *VectorIndex) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, v.namespace)
	for _, id := range ids {
		args = append(args, id)
	}
	q := `DELETE FROM item_vectors WHERE namespace = ? AND id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
	if _, err := v.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("vector index: delete: %w", err)
	}
	return nil
}

// Query implements [semantic.VectorIndex].
func (v *VectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]semantic.Hit, error) {
	if topK <= 0 {
		return []semantic.Hit{}, nil
	}
	rows, err := v.db.QueryContext(ctx, `
		SELECT id, embedding, name, canonical_name, box_id, box_name
		FROM item_vectors WHERE namespace = ?`, v.namespace)
	if err != nil {
		return nil, fmt.Errorf("vector index: query: %w", err)
	}
	defer rows.Close()

	var hits []semantic.Hit
	for rows.Next() {
		var (
			h    semantic.Hit
			blob []byte
		)
		if err := rows.Scan(&h.ID, &blob, &h.Metadata.Name, &h.Metadata.CanonicalName,
			&h.Metadata.BoxID, &h.Metadata.BoxName); err != nil {
			return nil, fmt.Errorf("vector index: scan row: %w", err)
		}
		h.Score = semantic.Cosine(vector, decodeVector(blob))
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector index: query: %w", err)
	}
	return semantic.TopHits(hits, topK), nil
}

// Truncate implements [semantic.Truncater].
func (v *VectorIndex) Truncate(ctx context.Context) error {
	if _, err := v.db.ExecContext(ctx, `DELETE FROM item_vectors WHERE namespace = ?`, v.namespace); err != nil {
		return fmt.Errorf("vector index: truncate: %w", err)
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
