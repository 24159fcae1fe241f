package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name      string
		settings  *domain.EmbeddingSettings
		wantModel string
		wantDims  int
		wantErr   error
	}{
		{
			name:    "nil settings",
			wantErr: domain.ErrEmbeddingUnavailable,
		},
		{
			name: "ollama provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				Model:    "nomic-embed-text",
			},
			wantModel: "nomic-embed-text",
			wantDims:  768,
		},
		{
			name: "ollama unknown model uses default dimensions",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				Model:    "custom-model",
			},
			wantModel: "custom-model",
			wantDims:  384,
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-large",
			},
			wantModel: "text-embedding-3-large",
			wantDims:  3072,
		},
		{
			name: "openai without key fails",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
			},
			wantErr: nil,
		},
		{
			name:     "unknown provider",
			settings: &domain.EmbeddingSettings{Provider: "anthropic"},
			wantErr:  domain.ErrUnknownBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantModel == "" {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, svc.ModelName())
			assert.Equal(t, tt.wantDims, svc.Dimensions())
		})
	}
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc, err := CreateAndValidateEmbeddingService(context.Background(), &domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  srv.URL,
		Model:    "all-minilm",
	})
	require.NoError(t, err)
	assert.Equal(t, "all-minilm", svc.ModelName())
}

func TestCreateAndValidateEmbeddingService_Unreachable(t *testing.T) {
	_, err := CreateAndValidateEmbeddingService(context.Background(), &domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  "http://127.0.0.1:1",
	})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestCreateAndValidateEmbeddingService_NotConfigured(t *testing.T) {
	_, err := CreateAndValidateEmbeddingService(context.Background(), &domain.EmbeddingSettings{
		Provider: domain.AIProviderOpenAI,
	})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestLoader(t *testing.T) {
	var pings int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pings++
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	load := Loader(domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL})
	assert.Equal(t, 0, pings)

	svc, err := load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, svc)
	assert.Equal(t, 1, pings)
}
