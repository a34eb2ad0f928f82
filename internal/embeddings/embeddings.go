// Package embeddings generates vector embeddings from text via an
// OpenAI-compatible provider.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fyrsmithlabs/knowd/internal/config"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrProvider indicates an upstream embedding provider failure
	// (auth, quota, network). Calls are single-attempt; retry policy
	// belongs to the caller.
	ErrProvider = errors.New("embedding provider failure")
)

// Provider generates vector embeddings from text.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts, preserving
	// input order with 1:1 cardinality.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the current model.
	Dimension() int
}

// modelDimensions maps known embedding models to their output size.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIProvider implements Provider on the OpenAI embeddings API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIProvider creates a provider from config. BaseURL may point at
// any OpenAI-compatible endpoint.
func NewOpenAIProvider(cfg config.EmbeddingConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key required", ErrProvider)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	dim, ok := modelDimensions[cfg.Model]
	if !ok {
		dim = modelDimensions["text-embedding-3-small"]
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		dim:    dim,
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts in one batch
// call. The response is reordered by the provider-reported index so the
// output always lines up with the input.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrProvider, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrProvider, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vectors, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimension returns the embedding dimension for the configured model.
func (p *OpenAIProvider) Dimension() int {
	return p.dim
}

var _ Provider = (*OpenAIProvider)(nil)
