// Package cache opens the configured embedding cache backend.
package cache

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// Open returns the cache selected by settings.Backend.
// The "none" backend returns a nil cache and no error.
func Open(ctx context.Context, settings domain.CacheSettings) (driven.EmbeddingCache, error) {
	switch settings.Backend {
	case domain.CacheNone, "":
		return nil, nil //nolint:nilnil // no cache is a valid configuration
	case domain.CacheMemory:
		return memory.NewEmbeddingCache(), nil
	case domain.CacheSQLite:
		c, err := sqlite.OpenEmbeddingCache(settings.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite cache: %w", err)
		}
		return c, nil
	case domain.CacheRedis:
		c, err := redis.NewEmbeddingCache(ctx, redis.Options{
			Addr:     settings.RedisAddr,
			Password: settings.RedisPassword,
			DB:       settings.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("opening redis cache: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: cache %q", domain.ErrUnknownBackend, settings.Backend)
	}
}
