package analyzer

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"
)

// EmbedderConfig represents the configuration for the review embedder.
type EmbedderConfig struct {
	Model   string
	APIKey  string
	BaseURL string // OpenAI-compatible endpoint
}

// Embedder creates embeddings for reviews and search queries.
type Embedder struct {
	config EmbedderConfig
	llm    *openai.LLM
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []openai.Option{
		openai.WithEmbeddingModel(config.Model),
		openai.WithToken(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		config: config,
		llm:    llm,
	}, nil
}

func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return e.llm.CreateEmbedding(ctx, texts)
}

// FlattenEmbeddings concatenates per-text embeddings into one vector.
func FlattenEmbeddings(embeddings [][]float32) []float32 {
	var flattened []float32
	for _, emb := range embeddings {
		flattened = append(flattened, emb...)
	}
	return flattened
}
