package driven

import (
	"context"
	"time"
)

// EmbeddingService generates vector embeddings from text.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (all-minilm, nomic-embed-text)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one request.
	// The result has one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536, 3072).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbeddingCache maps (text, model) to a previously computed vector.
// It is a performance optimisation only and never the source of truth.
type EmbeddingCache interface {
	// Get returns the vector stored for text under model.
	// Entries older than maxAge are reported as absent but not deleted.
	// Read failures are reported as a miss.
	Get(ctx context.Context, text, model string, maxAge time.Duration) ([]float32, bool)

	// Set stores vector for text under model with the current time.
	Set(ctx context.Context, text, model string, vector []float32) error

	// Clear deletes entries older than maxAge and returns how many were removed.
	Clear(ctx context.Context, maxAge time.Duration) (int, error)

	// Close releases resources.
	Close() error
}

// Tokenizer converts text to model-specific tokens and back.
type Tokenizer interface {
	// Encode returns the token ids of text.
	Encode(text string) []int

	// Decode returns the text of tokens.
	Decode(tokens []int) string

	// Name returns the encoding name (e.g., cl100k_base).
	Name() string
}
