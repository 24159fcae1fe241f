package domain

import (
	"errors"
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// Chunking strategy names.
const (
	StrategyCharacter = "character"
	StrategyToken     = "token"
	StrategyParagraph = "paragraph"
	StrategySentence  = "sentence"
)

// AllStrategies returns every chunking strategy name.
func AllStrategies() []string {
	return []string{StrategyCharacter, StrategyToken, StrategyParagraph, StrategySentence}
}

// ChunkingSettings selects and configures the chunking strategy.
// Options are passed to the strategy builder as a generic map so
// strategy-specific knobs need no struct changes.
type ChunkingSettings struct {
	// Strategy is the chunking strategy name.
	Strategy string

	// Options holds chunk_size, chunk_overlap and strategy-specific keys.
	// Keys left unset take the strategy's own defaults.
	Options map[string]any
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint override.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// BatchSize caps the number of texts per provider call.
	BatchSize int

	// RequestsPerSecond limits provider calls. Zero means unlimited.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// Cache backend names.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// CacheSettings configures the embedding cache.
type CacheSettings struct {
	// Backend is one of none, memory, sqlite, redis.
	Backend string

	// Path is the SQLite cache file.
	Path string

	// RedisAddr is the Redis server address.
	RedisAddr string

	// RedisPassword authenticates to Redis.
	RedisPassword string

	// RedisDB selects the Redis database.
	RedisDB int

	// MaxAge is how long an entry stays valid.
	MaxAge time.Duration

	// PruneSchedule is a cron expression for cache maintenance.
	PruneSchedule string
}

// Vector store backend names.
const (
	VectorStoreMemory   = "memory"
	VectorStoreSQLite   = "sqlite"
	VectorStoreMilvus   = "milvus"
	VectorStorePgvector = "pgvector"
)

// VectorStoreSettings selects the vector store backend.
type VectorStoreSettings struct {
	// Backend is one of memory, sqlite, milvus, pgvector.
	Backend string

	// Location is a file path, server address or DSN depending on Backend.
	Location string

	// Collection is the collection or table name.
	Collection string
}

// QueueSettings configures the processing queue.
type QueueSettings struct {
	// Workers is the worker pool size.
	Workers int

	// Capacity is the pending task buffer size.
	Capacity int

	// TaskRetention is how long finished tasks are kept. Zero keeps them forever.
	TaskRetention time.Duration
}

// ContextSettings configures context assembly.
type ContextSettings struct {
	// MaxTokens is the context budget; the character cap is MaxTokens * 4.
	MaxTokens int
}

// Settings holds all engine settings.
type Settings struct {
	Chunking    ChunkingSettings
	Embedding   EmbeddingSettings
	Cache       CacheSettings
	VectorStore VectorStoreSettings
	Queue       QueueSettings
	Context     ContextSettings

	// CatalogPath is the SQLite source catalog file. Empty keeps the catalog in memory.
	CatalogPath string

	// MetricsAddr exposes Prometheus metrics when set.
	MetricsAddr string
}

// Default values.
const (
	DefaultChunkingStrategy   = StrategyParagraph
	DefaultEmbeddingBatchSize = 32
	DefaultCacheMaxAge        = 30 * 24 * time.Hour
	DefaultPruneSchedule      = "0 3 * * *"
	DefaultCollection         = "chunks"
	DefaultQueueWorkers       = 2
	DefaultQueueCapacity      = 1024
	DefaultContextMaxTokens   = 2000
)

// DefaultSettings returns settings with sensible defaults.
// Paths are left empty; the config loader fills them relative to the data directory.
func DefaultSettings() Settings {
	return Settings{
		Chunking: ChunkingSettings{
			Strategy: DefaultChunkingStrategy,
			Options:  map[string]any{},
		},
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOllama,
			Model:     DefaultEmbeddingModels()[AIProviderOllama],
			BatchSize: DefaultEmbeddingBatchSize,
		},
		Cache: CacheSettings{
			Backend:       CacheSQLite,
			RedisAddr:     "localhost:6379",
			MaxAge:        DefaultCacheMaxAge,
			PruneSchedule: DefaultPruneSchedule,
		},
		VectorStore: VectorStoreSettings{
			Backend:    VectorStoreSQLite,
			Collection: DefaultCollection,
		},
		Queue: QueueSettings{
			Workers:  DefaultQueueWorkers,
			Capacity: DefaultQueueCapacity,
		},
		Context: ContextSettings{
			MaxTokens: DefaultContextMaxTokens,
		},
	}
}

// Validate checks the settings for configuration errors.
func (s Settings) Validate() error {
	var errs []error

	if !isOneOf(s.Chunking.Strategy, AllStrategies()...) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownStrategy, s.Chunking.Strategy))
	}
	if !s.Embedding.Provider.IsValid() {
		errs = append(errs, fmt.Errorf("%w: embedding provider %q", ErrUnknownBackend, s.Embedding.Provider))
	}
	if !isOneOf(s.Cache.Backend, CacheNone, CacheMemory, CacheSQLite, CacheRedis) {
		errs = append(errs, fmt.Errorf("%w: cache backend %q", ErrUnknownBackend, s.Cache.Backend))
	}
	if !isOneOf(s.VectorStore.Backend, VectorStoreMemory, VectorStoreSQLite, VectorStoreMilvus, VectorStorePgvector) {
		errs = append(errs, fmt.Errorf("%w: vector store backend %q", ErrUnknownBackend, s.VectorStore.Backend))
	}
	if s.Queue.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%w: queue workers must be positive", ErrInvalidInput))
	}
	if s.Context.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("%w: context max tokens must be positive", ErrInvalidInput))
	}

	return errors.Join(errs...)
}

func isOneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "all-minilm",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
