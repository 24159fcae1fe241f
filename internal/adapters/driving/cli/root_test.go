package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

func TestRootCmd_Commands(t *testing.T) {
	want := []string{
		"cache", "config", "context", "corpus", "document", "note", "process",
		"search", "serve", "sources", "stats", "version", "watch",
	}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestServices_BuildsOnceWithConfigPath(t *testing.T) {
	oldEngine, oldSetup, oldPath := engine, setup, configPath
	defer func() { engine, setup, configPath = oldEngine, oldSetup, oldPath }()

	retrieval := &mockRetrievalService{queue: newMockQueue(), stats: domain.Statistics{ChunkCount: 1}}
	var calls int
	var gotPath string
	closed := false

	engine = nil
	setup = func(_ context.Context, path string) (*Services, error) {
		calls++
		gotPath = path
		return &Services{
			Retrieval: retrieval,
			Close: func(context.Context) error {
				closed = true
				return nil
			},
		}, nil
	}

	_, err := runCommand(t, "stats", "--config", "/tmp/ragengine.toml")
	require.NoError(t, err)
	_, err = runCommand(t, "stats")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "/tmp/ragengine.toml", gotPath)

	closeServices(context.Background())
	assert.True(t, closed)
	assert.Nil(t, engine)
}

func TestServices_SetupError(t *testing.T) {
	oldEngine, oldSetup := engine, setup
	defer func() { engine, setup = oldEngine, oldSetup }()

	engine = nil
	setup = func(context.Context, string) (*Services, error) {
		return nil, errors.New("bad config")
	}

	_, err := runCommand(t, "stats")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting engine: bad config")
}

func TestServices_NilRetrieval(t *testing.T) {
	oldEngine, oldSetup := engine, setup
	defer func() { engine, setup = oldEngine, oldSetup }()

	engine = nil
	setup = func(context.Context, string) (*Services, error) {
		return &Services{}, nil
	}

	_, err := runCommand(t, "stats")

	assert.ErrorIs(t, err, errNotConfigured)
}

func TestSetVersion(t *testing.T) {
	old := version
	defer func() { version = old }()

	SetVersion("")
	assert.Equal(t, old, version)
	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
}
