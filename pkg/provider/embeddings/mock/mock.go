// Package mock provides a test double for the embeddings.Provider interface.
//
// Use Provider to return pre-canned embedding vectors without a live model
// and to verify that the correct texts are submitted for embedding. Vectors
// maps individual texts to fixed vectors, which lets similarity tests control
// cosine scores precisely.
//
//	p := &mock.Provider{
//	    Vectors: map[string][]float32{
//	        "battery":  {1, 0},
//	        "charger":  {0, 1},
//	    },
//	    DimensionsValue: 2,
//	}
//	vec, _ := p.Embed(ctx, "battery")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/boxkeeper/pkg/provider/embeddings"
)

// EmbedCall records a single invocation of Embed.
type EmbedCall struct {
	Ctx  context.Context
	Text string
}

// EmbedBatchCall records a single invocation of EmbedBatch.
type EmbedBatchCall struct {
	Ctx   context.Context
	Texts []string
}

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Vectors maps an input text to the vector returned for it. Takes
	// precedence over EmbedResult.
	Vectors map[string][]float32

	// EmbedResult is returned by Embed for texts absent from Vectors.
	EmbedResult []float32

	// EmbedErr, if non-nil, is returned as the error from Embed and EmbedBatch.
	EmbedErr error

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// --- Call records ---

	EmbedCalls      []EmbedCall
	EmbedBatchCalls []EmbedBatchCall
}

// Embed records the call and returns the configured vector or EmbedErr.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	return p.lookup(text), nil
}

// EmbedBatch records the call and returns one vector per text.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]string, len(texts))
	copy(cp, texts)
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: cp})
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.lookup(t)
	}
	return out, nil
}

// Dimensions returns DimensionsValue.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DimensionsValue
}

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelIDValue
}

// EmbedCount returns the number of Embed calls recorded so far.
func (p *Provider) EmbedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.EmbedCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
}

// lookup must be called with mu held.
func (p *Provider) lookup(text string) []float32 {
	if v, ok := p.Vectors[text]; ok {
		return v
	}
	return p.EmbedResult
}

var _ embeddings.Provider = (*Provider)(nil)
