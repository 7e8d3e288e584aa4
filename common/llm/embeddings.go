package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder produces a vector for a piece of text. Query and candidate texts
// within one resolution call must use the same model and dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type embedder struct {
	openai openai.Client
	model  string
}

func NewEmbedder(cfg Config) (Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	return &embedder{
		openai: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (e *embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.openai.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return resp.Data[0].Embedding, nil
}
