package driving

import "github.com/custodia-labs/ragengine/internal/core/domain"

// SettingsService reads and updates the engine settings.
type SettingsService interface {
	// Get returns the stored settings merged over the defaults.
	Get() (domain.Settings, error)

	// SetEmbeddingProvider stores the provider, model and API key.
	// An empty model selects the provider default; an empty key is left unchanged.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetChunkingStrategy stores the chunking strategy name.
	SetChunkingStrategy(strategy string) error
}
