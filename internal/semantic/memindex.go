package semantic

import (
	"context"
	"math"
	"slices"
	"sync"
)

// Compile-time interface checks.
var (
	_ VectorIndex = (*MemIndex)(nil)
	_ Truncater   = (*MemIndex)(nil)
)

type memEntry struct {
	vector []float32
	md     Metadata
}

// MemIndex is an exact in-memory [VectorIndex] using brute-force cosine
// similarity. It suits development, tests and small inventories.
type MemIndex struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

// NewMemIndex returns an empty MemIndex.
func NewMemIndex() *MemIndex {
	return &MemIndex{entries: make(map[string]memEntry)}
}

// Upsert implements [VectorIndex].
func (m *MemIndex) Upsert(_ context.Context, id string, vector []float32, md Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memEntry{vector: slices.Clone(vector), md: md}
	return nil
}

// Delete implements [VectorIndex].
func (m *MemIndex) Delete(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

// Query implements [VectorIndex].
func (m *MemIndex) Query(ctx context.Context, vector []float32, topK int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []Hit{}, nil
	}

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.entries))
	for id, e := range m.entries {
		hits = append(hits, Hit{ID: id, Score: Cosine(vector, e.vector), Metadata: e.md})
	}
	m.mu.RUnlock()

	return TopHits(hits, topK), nil
}

// Truncate implements [Truncater].
func (m *MemIndex) Truncate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	return nil
}

// Len returns the number of stored vectors.
func (m *MemIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Cosine returns the cosine similarity of a and b clamped to [0, 1]. Vectors
// of different length or zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// SimilarityFromDistance converts a cosine distance in [0, 2] to a
// similarity in [0, 1].
func SimilarityFromDistance(d float64) float64 {
	return clamp01(1 - d)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// TopHits sorts hits best first and keeps at most topK. The result is never
// nil.
func TopHits(hits []Hit, topK int) []Hit {
	if hits == nil {
		hits = []Hit{}
	}
	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// sortHits orders hits by descending score, breaking ties by ID so results
// are deterministic.
func sortHits(hits []Hit) {
	slices.SortFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
