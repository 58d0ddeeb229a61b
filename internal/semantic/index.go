// Package semantic ranks stored items by embedding similarity to a spoken or
// typed item name.
//
// A [Resolver] canonicalises the query, embeds it through an
// [embeddings.Provider], and asks a [VectorIndex] for the nearest stored item
// vectors. One global similarity threshold decides whether the top result is
// an accepted match. The same threshold serves merge-on-add and
// match-on-find/remove; it is configurable but never varied per call.
//
// The vector index is derived data. It can always be rebuilt from the record
// store with [Resolver.Reindex].
package semantic

import "context"

// DefaultNamespace scopes inventory vectors within a shared index.
const DefaultNamespace = "inventory"

// Metadata is stored alongside each item vector and returned with hits so
// callers can present a match without a record-store round trip.
type Metadata struct {
	Name          string `json:"name"`
	CanonicalName string `json:"canonical_name"`
	BoxID         string `json:"box_id"`
	BoxName       string `json:"box_name"`
}

// Hit is one nearest-neighbour result. Score is cosine similarity in [0, 1].
type Hit struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// VectorIndex is the vector-search collaborator. Implementations are scoped
// to a single namespace and must be safe for concurrent use.
type VectorIndex interface {
	// Upsert stores or replaces the vector for id.
	Upsert(ctx context.Context, id string, vector []float32, md Metadata) error

	// Delete removes the vectors for ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids ...string) error

	// Query returns up to topK hits ordered by descending score.
	Query(ctx context.Context, vector []float32, topK int) ([]Hit, error)
}

// Truncater is implemented by indexes that can drop every vector in their
// namespace. [Resolver.Reindex] uses it to discard stale entries before a
// rebuild.
type Truncater interface {
	Truncate(ctx context.Context) error
}
