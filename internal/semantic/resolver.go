package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/boxkeeper/internal/canon"
	"github.com/MrWong99/boxkeeper/internal/observe"
	"github.com/MrWong99/boxkeeper/pkg/provider/embeddings"
)

const (
	// DefaultThreshold is the cosine similarity at or above which the best
	// hit is accepted as the same item.
	DefaultThreshold = 0.75

	// DefaultTopK is the number of results (accepted plus suggestions)
	// callers usually ask for.
	DefaultTopK = 3

	// defaultBatchSize bounds the number of texts per EmbedBatch call during
	// a reindex.
	defaultBatchSize = 64

	// reindexConcurrency bounds the number of in-flight EmbedBatch calls.
	reindexConcurrency = 4
)

// ErrEmptyQuery is returned when a query canonicalises to nothing.
var ErrEmptyQuery = errors.New("semantic: empty query")

// Item is the subset of an inventory item the index needs.
type Item struct {
	ID            string
	Name          string
	CanonicalName string
	BoxID         string
}

// Match is a ranked candidate for a query.
type Match struct {
	ItemID        string
	DisplayName   string
	CanonicalName string
	BoxID         string
	BoxName       string
	Score         float64
}

// BestMatch is the result of [Resolver.FindBestMatch]. Match is nil when no
// hit reached the threshold. Suggestions never include Match and are ordered
// by descending score.
type BestMatch struct {
	Match       *Match
	Suggestions []Match
}

// Score returns the accepted match score, or 0 when there is none.
func (b BestMatch) Score() float64 {
	if b.Match == nil {
		return 0
	}
	return b.Match.Score
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithThreshold sets the acceptance threshold. Values outside (0, 1] are
// ignored.
func WithThreshold(t float64) Option {
	return func(r *Resolver) {
		if t > 0 && t <= 1 {
			r.threshold = t
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithBatchSize sets the reindex batch size.
func WithBatchSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// Resolver maps free-form item names to stored items by embedding
// similarity. It is safe for concurrent use.
type Resolver struct {
	embedder  embeddings.Provider
	index     VectorIndex
	threshold float64
	batchSize int
	metrics   *observe.Metrics
}

// New creates a Resolver over the given embedder and index.
func New(embedder embeddings.Provider, index VectorIndex, opts ...Option) *Resolver {
	r := &Resolver{
		embedder:  embedder,
		index:     index,
		threshold: DefaultThreshold,
		batchSize: defaultBatchSize,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Threshold returns the acceptance threshold.
func (r *Resolver) Threshold() float64 { return r.threshold }

// EmbeddingText returns the text that is embedded for an item name or query.
// Queries and stored items go through the same normalisation so plurality and
// quantity phrasing never affect the score.
func EmbeddingText(name string) string {
	return canon.NormalizeItem(name)
}

// FindBestMatch embeds query and returns the accepted match, if any, plus up
// to topK suggestions. topK+1 neighbours are fetched so a full suggestion
// list remains after an accepted match is taken off the top.
func (r *Resolver) FindBestMatch(ctx context.Context, query string, topK int) (BestMatch, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	hits, err := r.query(ctx, query, topK+1)
	if err != nil {
		return BestMatch{}, err
	}

	var res BestMatch
	if len(hits) == 0 {
		r.metrics.RecordMatchScore(ctx, 0, false)
		return res, nil
	}
	top := hits[0]
	hit := top.Score >= r.threshold
	r.metrics.RecordMatchScore(ctx, top.Score, hit)

	rest := hits
	if hit {
		m := toMatch(top)
		res.Match = &m
		rest = hits[1:]
	}
	if len(rest) > topK {
		rest = rest[:topK]
	}
	res.Suggestions = make([]Match, 0, len(rest))
	for _, h := range rest {
		res.Suggestions = append(res.Suggestions, toMatch(h))
	}
	return res, nil
}

// FindAllAboveThreshold returns up to k hits scoring at or above the
// threshold, ordered by descending score.
func (r *Resolver) FindAllAboveThreshold(ctx context.Context, query string, k int) ([]Match, error) {
	if k <= 0 {
		k = 10
	}
	hits, err := r.query(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(hits))
	for _, h := range hits {
		if h.Score < r.threshold {
			break
		}
		out = append(out, toMatch(h))
	}
	if len(hits) > 0 {
		r.metrics.RecordMatchScore(ctx, hits[0].Score, len(out) > 0)
	}
	return out, nil
}

// IndexItem embeds the item's canonical name and upserts it with boxName as
// metadata.
func (r *Resolver) IndexItem(ctx context.Context, item Item, boxName string) error {
	text := EmbeddingText(firstNonEmpty(item.CanonicalName, item.Name))
	if text == "" {
		return fmt.Errorf("semantic: index item %s: %w", item.ID, ErrEmptyQuery)
	}
	vec, err := r.embed(ctx, text)
	if err != nil {
		return fmt.Errorf("semantic: index item %s: %w", item.ID, err)
	}
	if err := r.index.Upsert(ctx, item.ID, vec, metadataFor(item, boxName)); err != nil {
		return fmt.Errorf("semantic: index item %s: %w", item.ID, err)
	}
	return nil
}

// DeleteItem removes the item's vector.
func (r *Resolver) DeleteItem(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.index.Delete(ctx, ids...); err != nil {
		return fmt.Errorf("semantic: delete %d items: %w", len(ids), err)
	}
	return nil
}

// Reindex rebuilds the index from items. boxNames maps box IDs to display
// names for metadata. When the index implements [Truncater] it is emptied
// first so vectors for items no longer in the store disappear. Returns the
// number of items indexed.
func (r *Resolver) Reindex(ctx context.Context, items []Item, boxNames map[string]string) (int, error) {
	ctx, span := observe.StartSpan(ctx, "semantic.reindex")
	defer span.End()

	if t, ok := r.index.(Truncater); ok {
		if err := t.Truncate(ctx); err != nil {
			return 0, fmt.Errorf("semantic: reindex: truncate: %w", err)
		}
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = EmbeddingText(firstNonEmpty(it.CanonicalName, it.Name))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reindexConcurrency)
	for start := 0; start < len(items); start += r.batchSize {
		end := min(start+r.batchSize, len(items))
		g.Go(func() error {
			t0 := time.Now()
			vecs, err := r.embedder.EmbedBatch(gctx, texts[start:end])
			r.metrics.EmbeddingDuration.Record(gctx, time.Since(t0).Seconds())
			if err != nil {
				return fmt.Errorf("semantic: reindex: embed batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("semantic: reindex: embed batch %d-%d: got %d vectors", start, end, len(vecs))
			}
			for i, vec := range vecs {
				it := items[start+i]
				if err := r.index.Upsert(gctx, it.ID, vec, metadataFor(it, boxNames[it.BoxID])); err != nil {
					return fmt.Errorf("semantic: reindex: upsert %s: %w", it.ID, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	slog.Info("semantic: reindex complete", "items", len(items), "model", r.embedder.ModelID())
	return len(items), nil
}

func (r *Resolver) query(ctx context.Context, query string, topK int) ([]Hit, error) {
	text := EmbeddingText(query)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	vec, err := r.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("semantic: query %q: %w", text, err)
	}
	hits, err := r.index.Query(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("semantic: query %q: %w", text, err)
	}
	sortHits(hits)
	return hits, nil
}

func (r *Resolver) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := r.embedder.Embed(ctx, text)
	r.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds())
	return vec, err
}

func metadataFor(item Item, boxName string) Metadata {
	return Metadata{
		Name:          item.Name,
		CanonicalName: item.CanonicalName,
		BoxID:         item.BoxID,
		BoxName:       boxName,
	}
}

func toMatch(h Hit) Match {
	return Match{
		ItemID:        h.ID,
		DisplayName:   h.Metadata.Name,
		CanonicalName: h.Metadata.CanonicalName,
		BoxID:         h.Metadata.BoxID,
		BoxName:       h.Metadata.BoxName,
		Score:         h.Score,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
