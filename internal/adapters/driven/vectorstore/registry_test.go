package vectorstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

type closeCounter struct {
	driven.VectorStore
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestRegistry_SharesInstancePerKey(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	settings := domain.VectorStoreSettings{Backend: domain.VectorStoreMemory, Collection: "a"}

	first, err := r.Open(ctx, settings)
	require.NoError(t, err)
	second, err := r.Open(ctx, settings)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	ref := domain.SourceRef{Type: domain.SourceTypeNote, ID: "1"}
	require.NoError(t, first.AddChunks(ctx, []domain.ChunkEmbedding{{
		Chunk:  domain.Chunk{Text: "x", SourceID: ref.ID, SourceType: ref.Type},
		Vector: []float32{1},
	}}))

	n, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	other, err := r.Open(ctx, domain.VectorStoreSettings{Backend: domain.VectorStoreMemory, Collection: "b"})
	require.NoError(t, err)
	defer other.Close()
	assert.Equal(t, 2, r.Len())

	n, err = other.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, first.Close())
	require.NoError(t, second.Close())
}

func TestRegistry_ClosesWithLastHandle(t *testing.T) {
	r := NewRegistry()
	backend := &closeCounter{VectorStore: memory.NewVectorStore()}
	r.Register("fake", func(context.Context, string, string) (driven.VectorStore, error) {
		return backend, nil
	})
	ctx := context.Background()
	settings := domain.VectorStoreSettings{Backend: "fake"}

	a, err := r.Open(ctx, settings)
	require.NoError(t, err)
	b, err := r.Open(ctx, settings)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 0, backend.closed)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, b.Close())
	assert.Equal(t, 1, backend.closed)
	assert.Equal(t, 0, r.Len())

	// A fresh open after the last close reopens the backend.
	c, err := r.Open(ctx, settings)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
	require.NoError(t, c.Close())
}

func TestRegistry_UnknownBackend(t *testing.T) {
	_, err := NewRegistry().Open(context.Background(), domain.VectorStoreSettings{Backend: "faiss"})
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)
}

func TestRegistry_OpenError(t *testing.T) {
	r := NewRegistry()
	r.Register("broken", func(context.Context, string, string) (driven.VectorStore, error) {
		return nil, errors.New("boom")
	})

	_, err := r.Open(context.Background(), domain.VectorStoreSettings{Backend: "broken"})
	assert.ErrorIs(t, err, domain.ErrVectorStoreUnavailable)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DefaultCollection(t *testing.T) {
	r := NewRegistry()
	var got string
	r.Register("fake", func(_ context.Context, _ string, collection string) (driven.VectorStore, error) {
		got = collection
		return memory.NewVectorStore(), nil
	})

	s, err := r.Open(context.Background(), domain.VectorStoreSettings{Backend: "fake"})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, DefaultCollection, got)
}

func TestRegistry_SQLite(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	settings := domain.VectorStoreSettings{
		Backend:  domain.VectorStoreSQLite,
		Location: filepath.Join(t.TempDir(), "vectors.db"),
	}

	s, err := r.Open(ctx, settings)
	require.NoError(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, s.Close())
}
