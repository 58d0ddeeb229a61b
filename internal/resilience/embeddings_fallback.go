package resilience

import (
	"context"
	"fmt"

	"github.com/MrWong99/boxkeeper/internal/observe"
	"github.com/MrWong99/boxkeeper/pkg/provider/embeddings"
)

// EmbeddingsFallback is an [embeddings.Provider] that fails over across
// several backends. Every backend must produce vectors of the same
// dimension, otherwise vectors from different backends could not be
// compared in one index.
type EmbeddingsFallback struct {
	group   *Group[embeddings.Provider]
	metrics *observe.Metrics
}

var _ embeddings.Provider = (*EmbeddingsFallback)(nil)

// NewEmbeddingsFallback creates an EmbeddingsFallback preferring primary.
func NewEmbeddingsFallback(name string, primary embeddings.Provider, cfg BreakerConfig) *EmbeddingsFallback {
	return &EmbeddingsFallback{group: NewGroup(name, primary, cfg), metrics: observe.DefaultMetrics()}
}

// Add registers a fallback backend. It fails when p's dimension differs
// from the primary's.
func (f *EmbeddingsFallback) Add(name string, p embeddings.Provider) error {
	if got, want := p.Dimensions(), f.Dimensions(); got != want {
		return fmt.Errorf("resilience: embeddings fallback %s has %d dimensions, primary has %d", name, got, want)
	}
	f.group.Add(name, p)
	return nil
}

// Status reports each backend's breaker state.
func (f *EmbeddingsFallback) Status() []MemberStatus { return f.group.Status() }

// Available reports whether any backend accepts calls.
func (f *EmbeddingsFallback) Available() bool { return f.group.Available() }

// Embed implements [embeddings.Provider].
func (f *EmbeddingsFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return record(ctx, f, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch implements [embeddings.Provider].
func (f *EmbeddingsFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return record(ctx, f, func(p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions returns the primary backend's vector size.
func (f *EmbeddingsFallback) Dimensions() int {
	return f.group.Primary().Dimensions()
}

// ModelID returns the primary backend's model.
func (f *EmbeddingsFallback) ModelID() string {
	return f.group.Primary().ModelID()
}

func record[R any](ctx context.Context, f *EmbeddingsFallback, fn func(embeddings.Provider) (R, error)) (R, error) {
	res, name, err := Call(f.group, func(p embeddings.Provider) (R, error) {
		res, err := fn(p)
		if err != nil && !isCancel(err) {
			f.metrics.RecordProviderError(ctx, p.ModelID(), "embeddings")
		}
		return res, err
	})
	if err != nil {
		f.metrics.RecordProviderRequest(ctx, "fallback", "embeddings", "error")
		return res, err
	}
	f.metrics.RecordProviderRequest(ctx, name, "embeddings", "ok")
	return res, nil
}
