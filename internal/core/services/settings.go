package services

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkStrategy      = "chunking.strategy"
	keyEmbedProvider      = "embedding.provider"
	keyEmbedModel         = "embedding.model"
	keyEmbedBaseURL       = "embedding.base_url"
	keyEmbedAPIKey        = "embedding.api_key"
	keyEmbedBatchSize     = "embedding.batch_size"
	keyEmbedRPS           = "embedding.requests_per_second"
	keyCacheBackend       = "cache.backend"
	keyCachePath          = "cache.path"
	keyCacheRedisAddr     = "cache.redis_addr"
	keyCacheRedisPassword = "cache.redis_password"
	keyCacheRedisDB       = "cache.redis_db"
	keyCacheMaxAgeDays    = "cache.max_age_days"
	keyCacheSchedule      = "cache.prune_schedule"
	keyVectorBackend      = "vectorstore.backend"
	keyVectorLocation     = "vectorstore.location"
	keyVectorCollection   = "vectorstore.collection"
	keyQueueWorkers       = "queue.workers"
	keyQueueCapacity      = "queue.capacity"
	keyQueueRetention     = "queue.task_retention_hours"
	keyContextMaxTokens   = "context.max_tokens"
	keyCatalogPath        = "catalog.path"
	keyMetricsAddr        = "metrics.addr"
)

// chunkingOptionKeys are copied from chunking.* into the strategy options.
var chunkingOptionKeys = []string{
	"chunk_size", "chunk_overlap", "overlap",
	"min_paragraph_length", "max_paragraphs_per_chunk", "model",
}

// SettingsService reads and writes engine settings in a ConfigStore.
type SettingsService struct {
	configStore driven.ConfigStore
	dataDir     string
}

// NewSettingsService creates a settings service. Unset file paths
// default to files inside dataDir.
func NewSettingsService(configStore driven.ConfigStore, dataDir string) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		dataDir:     dataDir,
	}
}

// Get returns the stored settings merged over the defaults, validated.
func (s *SettingsService) Get() (domain.Settings, error) {
	settings := domain.DefaultSettings()

	settings.Chunking.Strategy = s.getString(keyChunkStrategy, settings.Chunking.Strategy)
	for _, key := range chunkingOptionKeys {
		if val, exists := s.configStore.Get("chunking." + key); exists {
			settings.Chunking.Options[key] = val
		}
	}

	settings.Embedding.Provider = domain.AIProvider(s.getString(keyEmbedProvider, string(settings.Embedding.Provider)))
	defaultModel := domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	settings.Embedding.Model = s.getString(keyEmbedModel, defaultModel)
	settings.Embedding.BaseURL = s.configStore.GetString(keyEmbedBaseURL)
	settings.Embedding.APIKey = s.configStore.GetString(keyEmbedAPIKey)
	settings.Embedding.BatchSize = s.getInt(keyEmbedBatchSize, settings.Embedding.BatchSize)
	settings.Embedding.RequestsPerSecond = s.getFloat(keyEmbedRPS, 0)

	settings.Cache.Backend = s.getString(keyCacheBackend, settings.Cache.Backend)
	settings.Cache.Path = s.getString(keyCachePath, s.dataPath("cache.db"))
	settings.Cache.RedisAddr = s.getString(keyCacheRedisAddr, settings.Cache.RedisAddr)
	settings.Cache.RedisPassword = s.configStore.GetString(keyCacheRedisPassword)
	settings.Cache.RedisDB = s.configStore.GetInt(keyCacheRedisDB)
	if days := s.configStore.GetInt(keyCacheMaxAgeDays); days > 0 {
		settings.Cache.MaxAge = time.Duration(days) * 24 * time.Hour
	}
	settings.Cache.PruneSchedule = s.getString(keyCacheSchedule, settings.Cache.PruneSchedule)

	settings.VectorStore.Backend = s.getString(keyVectorBackend, settings.VectorStore.Backend)
	settings.VectorStore.Location = s.getString(keyVectorLocation, s.defaultVectorLocation(settings.VectorStore.Backend))
	settings.VectorStore.Collection = s.getString(keyVectorCollection, settings.VectorStore.Collection)

	settings.Queue.Workers = s.getInt(keyQueueWorkers, settings.Queue.Workers)
	settings.Queue.Capacity = s.getInt(keyQueueCapacity, settings.Queue.Capacity)
	if hours := s.configStore.GetInt(keyQueueRetention); hours > 0 {
		settings.Queue.TaskRetention = time.Duration(hours) * time.Hour
	}

	settings.Context.MaxTokens = s.getInt(keyContextMaxTokens, settings.Context.MaxTokens)
	settings.CatalogPath = s.getString(keyCatalogPath, s.dataPath("catalog.db"))
	settings.MetricsAddr = s.configStore.GetString(keyMetricsAddr)

	if err := settings.Validate(); err != nil {
		return settings, fmt.Errorf("invalid settings in %s: %w", s.configStore.Path(), err)
	}
	return settings, nil
}

// SetEmbeddingProvider stores the embedding provider, model and API key.
// An empty model selects the provider default.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: embedding provider %q", domain.ErrUnknownBackend, provider)
	}
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}
	if err := s.configStore.Set(keyEmbedProvider, provider.String()); err != nil {
		return err
	}
	if err := s.configStore.Set(keyEmbedModel, model); err != nil {
		return err
	}
	if apiKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, apiKey); err != nil {
			return err
		}
	}
	return s.configStore.Save()
}

// SetChunkingStrategy stores the chunking strategy name.
func (s *SettingsService) SetChunkingStrategy(strategy string) error {
	valid := false
	for _, name := range domain.AllStrategies() {
		if name == strategy {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, strategy)
	}
	if err := s.configStore.Set(keyChunkStrategy, strategy); err != nil {
		return err
	}
	return s.configStore.Save()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return defaultVal
		}
		return f
	default:
		return defaultVal
	}
}

func (s *SettingsService) dataPath(name string) string {
	if s.dataDir == "" {
		return ""
	}
	return filepath.Join(s.dataDir, name)
}

// defaultVectorLocation returns the location used when none is configured.
func (s *SettingsService) defaultVectorLocation(backend string) string {
	switch backend {
	case domain.VectorStoreSQLite:
		return s.dataPath("vectors.db")
	case domain.VectorStoreMilvus:
		return "localhost:19530"
	default:
		return ""
	}
}
