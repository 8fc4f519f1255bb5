// Package embeddings provides embedding generation via langchaingo.
//
// It wraps langchaingo's embedding functionality to turn text into
// fixed-length float32 vectors. Any OpenAI-compatible embedding API works,
// including local TEI (Text Embeddings Inference) servers.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// DefaultVectorSize is the dimension of text-embedding-3-small vectors.
// A configuration constant, not a contract detail.
const DefaultVectorSize = 1536

// Config holds configuration for the embedding service.
type Config struct {
	// BaseURL is the base URL for the embedding API.
	// For OpenAI: https://api.openai.com/v1
	// For TEI: http://localhost:8080/v1
	BaseURL string

	// Model is the embedding model to use, e.g. text-embedding-3-small.
	Model string

	// APIKey is the API key (required for OpenAI, optional for TEI).
	APIKey string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Service generates embeddings through a langchaingo embedder.
type Service struct {
	embedder *embeddings.EmbedderImpl
	config   Config
}

// NewService creates a new embedding service with the given configuration.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// langchaingo requires a token; use a placeholder for TEI.
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithEmbeddingModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &Service{embedder: embedder, config: config}, nil
}

// EmbedDocuments generates embeddings for the given texts, one vector per
// input. All vectors have the same dimensions.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query string.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vector, nil
}
