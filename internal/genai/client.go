// Package genai wires the Genkit runtime: a Gemini-backed embedder for
// the retrieval store and a generator for social posts and replies.
package genai

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/softbatch/loaf/internal/log"
)

// Config selects the generation and embedding models. The Gemini API
// key is read from the GEMINI_API_KEY environment variable by the
// plugin itself.
type Config struct {
	ModelName     string
	EmbedderModel string
}

// Client holds the initialized Genkit instance and model selection.
type Client struct {
	g         *genkit.Genkit
	modelName string
	embedder  ai.Embedder
	logger    log.Logger
}

// New initializes Genkit with the Gemini plugin and resolves the
// configured embedder.
func New(ctx context.Context, cfg Config, logger log.Logger) (*Client, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder model %q not available", cfg.EmbedderModel)
	}

	logger.Info("initialized genkit",
		"model", cfg.ModelName,
		"embedder", cfg.EmbedderModel)

	return &Client{
		g:         g,
		modelName: cfg.ModelName,
		embedder:  embedder,
		logger:    logger,
	}, nil
}
