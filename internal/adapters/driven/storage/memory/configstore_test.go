package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("cache.backend", "redis"))
	require.NoError(t, store.Set("cache.backend", "sqlite"))

	val, ok := store.Get("cache.backend")
	assert.True(t, ok)
	assert.Equal(t, "sqlite", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("s", "text")
	_ = store.Set("i", 3)
	_ = store.Set("i64", int64(4))
	_ = store.Set("f", float64(5))
	_ = store.Set("b", true)
	_ = store.Set("strs", []any{"a", 1, "b"})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", store.GetString("s"), "text"},
		{"string wrong type", store.GetString("i"), ""},
		{"int", store.GetInt("i"), 3},
		{"int from int64", store.GetInt("i64"), 4},
		{"int from float64", store.GetInt("f"), 5},
		{"int wrong type", store.GetInt("s"), 0},
		{"bool", store.GetBool("b"), true},
		{"bool missing", store.GetBool("missing"), false},
		{"string slice", store.GetStringSlice("strs"), []string{"a", "b"}},
		{"string slice missing", store.GetStringSlice("missing"), []string(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestNewConfigStoreFrom_FlattensTables(t *testing.T) {
	store := NewConfigStoreFrom(map[string]any{
		"chunking": map[string]any{"strategy": "token", "chunk_size": 300},
		"cache":    map[string]any{"redis": map[string]any{"db": 2}},
		"verbose":  true,
	})

	assert.Equal(t, "token", store.GetString("chunking.strategy"))
	assert.Equal(t, 300, store.GetInt("chunking.chunk_size"))
	assert.Equal(t, 2, store.GetInt("cache.redis.db"))
	assert.True(t, store.GetBool("verbose"))
}

func TestConfigStore_PersistenceIsNoOp(t *testing.T) {
	var store driven.ConfigStore = NewConfigStore()

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set("key", i)
		}()
		go func() {
			defer wg.Done()
			_ = store.GetInt("key")
		}()
	}
	wg.Wait()

	_, ok := store.Get("key")
	assert.True(t, ok)
}
