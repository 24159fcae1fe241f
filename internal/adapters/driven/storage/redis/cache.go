// Package redis provides an embedding cache shared across processes
// through a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/logger"
)

// Ensure EmbeddingCache implements the interface.
var _ driven.EmbeddingCache = (*EmbeddingCache)(nil)

var log = logger.For("redis-cache")

// DefaultPrefix namespaces cache keys.
const DefaultPrefix = "ragengine:embedding:"

const (
	fieldVector  = "v"
	fieldCreated = "t"
	fieldModel   = "m"
	scanBatch    = 500
)

// Options configures the cache connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// EmbeddingCache stores each entry as a hash holding the little-endian
// vector, the model and the creation time in unix nanoseconds.
type EmbeddingCache struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewEmbeddingCache connects to Redis and verifies the connection.
func NewEmbeddingCache(ctx context.Context, opts Options) (*EmbeddingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return newWithClient(client, opts.Prefix), nil
}

func newWithClient(client *redis.Client, prefix string) *EmbeddingCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &EmbeddingCache{client: client, prefix: prefix, now: time.Now}
}

func (c *EmbeddingCache) key(text, model string) string {
	return c.prefix + domain.EmbeddingCacheKey(text, model)
}

// Get returns the cached vector unless it is older than maxAge.
func (c *EmbeddingCache) Get(ctx context.Context, text, model string, maxAge time.Duration) ([]float32, bool) {
	fields, err := c.client.HMGet(ctx, c.key(text, model), fieldVector, fieldCreated).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn("cache read failed: %v", err)
		}
		return nil, false
	}
	raw, ok := fields[0].(string)
	if !ok {
		return nil, false
	}

	if maxAge > 0 {
		created, err := parseCreated(fields[1])
		if err != nil || c.now().Sub(created) > maxAge {
			return nil, false
		}
	}

	vec, err := vecmath.Decode([]byte(raw))
	if err != nil {
		log.Warn("corrupt cache entry: %v", err)
		return nil, false
	}
	return vec, true
}

// Set stores vector for (text, model), replacing any previous entry.
func (c *EmbeddingCache) Set(ctx context.Context, text, model string, vector []float32) error {
	err := c.client.HSet(ctx, c.key(text, model),
		fieldVector, vecmath.Encode(vector),
		fieldModel, model,
		fieldCreated, c.now().UnixNano(),
	).Err()
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Clear deletes entries older than maxAge by scanning the key prefix.
func (c *EmbeddingCache) Clear(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := c.now().Add(-maxAge)
	removed := 0

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("scanning cache keys: %w", err)
		}

		for _, key := range keys {
			raw, err := c.client.HGet(ctx, key, fieldCreated).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return removed, fmt.Errorf("reading %s: %w", key, err)
			}
			created, err := parseCreated(raw)
			if err == nil && !created.Before(cutoff) {
				continue
			}
			n, err := c.client.Del(ctx, key).Result()
			if err != nil {
				return removed, fmt.Errorf("deleting %s: %w", key, err)
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}

// Close closes the client connection.
func (c *EmbeddingCache) Close() error {
	return c.client.Close()
}

func parseCreated(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	ns, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return time.Unix(0, ns), nil
}
