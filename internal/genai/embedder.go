package genai

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"

	"github.com/softbatch/loaf/internal/knowledge"
)

// Embed converts text to a dense vector using the configured Gemini
// embedder. Backend failures surface as knowledge.ErrEmbeddingUnavailable.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{
				Content: []*ai.Part{ai.NewTextPart(text)},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", knowledge.ErrEmbeddingUnavailable, err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", knowledge.ErrEmbeddingUnavailable)
	}

	return resp.Embeddings[0].Embedding, nil
}
