package knowledge

import "context"

// Embedder converts text into a dense vector. Implementations wrap
// failures of the backing service in ErrEmbeddingUnavailable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
