// Package vectorstore opens vector store backends by name and shares one
// instance per (backend, location, collection) within the process.
package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragengine/internal/adapters/driven/vectorstore/milvus"
	"github.com/custodia-labs/ragengine/internal/adapters/driven/vectorstore/pgvector"
	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/logger"
)

var log = logger.For("vectorstore")

// DefaultCollection is used when settings name no collection.
const DefaultCollection = "chunks"

// Opener creates a backend instance.
type Opener func(ctx context.Context, location, collection string) (driven.VectorStore, error)

type key struct {
	backend    string
	location   string
	collection string
}

type entry struct {
	store driven.VectorStore
	refs  int
}

// Registry hands out shared, reference-counted vector stores.
type Registry struct {
	mu      sync.Mutex
	openers map[string]Opener
	entries map[key]*entry
}

// NewRegistry creates a registry knowing the built-in backends.
func NewRegistry() *Registry {
	r := &Registry{
		openers: make(map[string]Opener),
		entries: make(map[key]*entry),
	}
	r.Register(domain.VectorStoreMemory, func(context.Context, string, string) (driven.VectorStore, error) {
		return memory.NewVectorStore(), nil
	})
	r.Register(domain.VectorStoreSQLite, func(_ context.Context, location, collection string) (driven.VectorStore, error) {
		return sqlite.OpenVectorStore(location, collection)
	})
	r.Register(domain.VectorStoreMilvus, func(ctx context.Context, location, collection string) (driven.VectorStore, error) {
		return milvus.New(ctx, location, collection)
	})
	r.Register(domain.VectorStorePgvector, func(ctx context.Context, location, collection string) (driven.VectorStore, error) {
		return pgvector.New(ctx, location, collection)
	})
	return r
}

// Register adds or replaces the opener for a backend name.
func (r *Registry) Register(backend string, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[backend] = open
}

// Open returns the shared store for settings, opening it on first use.
// Each returned handle must be closed; the backend closes with the last one.
func (r *Registry) Open(ctx context.Context, settings domain.VectorStoreSettings) (driven.VectorStore, error) {
	collection := settings.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	k := key{backend: settings.Backend, location: settings.Location, collection: collection}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[k]; ok {
		e.refs++
		return &handle{VectorStore: e.store, registry: r, key: k}, nil
	}

	open, ok := r.openers[settings.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: vector store %q", domain.ErrUnknownBackend, settings.Backend)
	}
	store, err := open(ctx, settings.Location, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %s at %s: %w", domain.ErrVectorStoreUnavailable, settings.Backend, settings.Location, err)
	}
	log.Debug("opened %s vector store %s/%s", settings.Backend, settings.Location, collection)

	r.entries[k] = &entry{store: store, refs: 1}
	return &handle{VectorStore: store, registry: r, key: k}, nil
}

// Len returns the number of open backends.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) release(k key) error {
	r.mu.Lock()
	e, ok := r.entries[k]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return nil
	}
	delete(r.entries, k)
	r.mu.Unlock()

	log.Debug("closing %s vector store %s/%s", k.backend, k.location, k.collection)
	return e.store.Close()
}

// handle is one reference to a shared store.
type handle struct {
	driven.VectorStore
	registry *Registry
	key      key
	once     sync.Once
}

// Close releases this reference.
func (h *handle) Close() error {
	var err error
	h.once.Do(func() { err = h.registry.release(h.key) })
	return err
}

var defaultRegistry = NewRegistry()

// Open opens a store through the process-wide registry.
func Open(ctx context.Context, settings domain.VectorStoreSettings) (driven.VectorStore, error) {
	return defaultRegistry.Open(ctx, settings)
}
