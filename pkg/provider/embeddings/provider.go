// Package embeddings defines the Provider interface for vector embedding backends.
//
// Boxkeeper embeds canonical item names so that "AA batteries" and "battery"
// land close together in the vector index. Every vector stored in one index
// must come from providers with the same model space and dimensions.
package embeddings

import "context"

// Provider maps text to dense float32 vectors. Implementations must be safe
// for concurrent use.
type Provider interface {
	// Embed returns the vector for text, of length Dimensions(). Text is sent
	// verbatim; callers canonicalise it first.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in one provider call. The i-th result belongs to
	// texts[i]. On error no partial results are returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the fixed vector length for this provider's model.
	Dimensions() int

	// ModelID names the model, e.g. "text-embedding-3-small" or
	// "nomic-embed-text".
	ModelID() string
}
