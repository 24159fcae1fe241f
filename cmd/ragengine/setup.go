package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/custodia-labs/ragengine/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragengine/internal/adapters/driven/cache"
	"github.com/custodia-labs/ragengine/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragengine/internal/adapters/driven/metrics/prometheus"
	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragengine/internal/adapters/driven/tokenizer/tiktoken"
	"github.com/custodia-labs/ragengine/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/ragengine/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragengine/internal/chunking"
	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/core/ports/driving"
	"github.com/custodia-labs/ragengine/internal/core/services"
	"github.com/custodia-labs/ragengine/internal/extractors"
	"github.com/custodia-labs/ragengine/internal/logger"
)

var setupLog = logger.For("setup")

// catalogStore is a source catalog that also keeps chunk records.
type catalogStore interface {
	driven.SourceCatalog
	driven.ChunkRecordStore
}

// setup builds the engine from the config file at configPath, or the
// default config location when configPath is empty.
func setup(ctx context.Context, configPath string) (svc *cli.Services, err error) {
	settingsSvc, err := openSettings(configPath)
	if err != nil {
		return nil, err
	}
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, err
	}

	// closers are released on failure; once the retrieval service exists
	// it owns the cache and vector store.
	var closers []io.Closer
	defer func() {
		if err != nil {
			closeAll(closers)
		}
	}()

	catalog, err := openCatalog(settings.CatalogPath)
	if err != nil {
		return nil, err
	}
	catalogCloser, _ := catalog.(io.Closer)
	if catalogCloser != nil {
		closers = append(closers, catalogCloser)
	}

	embeddingCache, err := cache.Open(ctx, settings.Cache)
	if err != nil {
		return nil, err
	}
	if embeddingCache != nil {
		closers = append(closers, embeddingCache)
	}

	vectors, err := vectorstore.Open(ctx, settings.VectorStore)
	if err != nil {
		return nil, err
	}
	closers = append(closers, vectors)

	chunker, err := chunking.New(settings.Chunking, tiktoken.NewLoader().ForModel)
	if err != nil {
		return nil, err
	}

	metrics := prometheus.New()

	embedderOpts := []services.EmbedderOption{
		services.WithBatchSize(settings.Embedding.BatchSize),
		services.WithEmbedderMetrics(metrics),
	}
	if embeddingCache != nil {
		embedderOpts = append(embedderOpts, services.WithEmbeddingCache(embeddingCache, settings.Cache.MaxAge))
	}
	embedder := services.NewEmbedder(settings.Embedding.Model, ai.Loader(settings.Embedding), embedderOpts...)

	retrieval := services.NewRetrievalService(
		chunker,
		embedder,
		vectors,
		services.NewContextBuilder(settings.Context.MaxTokens),
		services.WithCatalog(catalog),
		services.WithChunkRecords(catalog),
		services.WithQueueSettings(settings.Queue),
		services.WithRetrievalMetrics(metrics),
	)

	maintenance, err := services.NewMaintenance(services.MaintenanceConfig{
		Schedule:      settings.Cache.PruneSchedule,
		CacheMaxAge:   settings.Cache.MaxAge,
		TaskRetention: settings.Queue.TaskRetention,
	}, embeddingCache, retrieval.Queue())
	if err != nil {
		_ = retrieval.Close(ctx)
		if catalogCloser != nil {
			_ = catalogCloser.Close()
		}
		closers = nil
		return nil, err
	}

	setupLog.Debug("engine ready: chunker=%s model=%s vectors=%s cache=%s",
		settings.Chunking.Strategy, settings.Embedding.Model, settings.VectorStore.Backend, settings.Cache.Backend)

	return &cli.Services{
		Retrieval:   retrieval,
		Catalog:     catalog,
		Cache:       embeddingCache,
		Maintenance: maintenance,
		Metrics:     metrics,
		Settings:    settings,
		Close: func(ctx context.Context) error {
			errs := []error{maintenance.Stop(), retrieval.Close(ctx)}
			if catalogCloser != nil {
				errs = append(errs, catalogCloser.Close())
			}
			return errors.Join(errs...)
		},
	}, nil
}

// openSettings opens the config file at path, or the default config file
// when path is empty. Unset data paths default to its directory. With
// noConfig the settings live in memory and nothing is saved.
func openSettings(path string) (driving.SettingsService, error) {
	if path == noConfig {
		return services.NewSettingsService(memory.NewConfigStoreFrom(ephemeralConfig()), ""), nil
	}

	var (
		store *file.ConfigStore
		err   error
	)
	if path != "" {
		store, err = file.OpenConfigStore(path)
	} else {
		store, err = file.NewConfigStore("")
	}
	if err != nil {
		return nil, err
	}
	return services.NewSettingsService(store, filepath.Dir(store.Path())), nil
}

// noConfig as the config path runs the engine without a config file,
// keeping every store in memory.
const noConfig = "none"

func ephemeralConfig() map[string]any {
	return map[string]any{
		"cache":       map[string]any{"backend": domain.CacheMemory},
		"vectorstore": map[string]any{"backend": domain.VectorStoreMemory},
	}
}

// openCatalog opens the SQLite catalog at path, or an in-memory catalog
// when path is empty.
func openCatalog(path string) (catalogStore, error) {
	reader := extractors.Default()
	if path == "" {
		return memory.NewCatalog(reader), nil
	}
	catalog, err := sqlite.OpenCatalog(path, reader)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	return catalog, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			setupLog.Warn("closing: %v", err)
		}
	}
}
