package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

func TestSourcesCmd(t *testing.T) {
	retrieval, _, cleanup := setupTestServices()
	defer cleanup()
	retrieval.available = &domain.AvailableSources{
		Corpora: []domain.Corpus{{ID: "1", Name: "Papers", DocumentCount: 3}},
		Notes:   []domain.Note{{ID: "5", Title: "Ideas"}},
	}

	out, err := runCommand(t, "sources")

	require.NoError(t, err)
	assert.Contains(t, out, "1  Papers (3 documents)")
	assert.Contains(t, out, "5  Ideas")
}

func TestSourcesCmd_Empty(t *testing.T) {
	_, _, cleanup := setupTestServices()
	defer cleanup()

	out, err := runCommand(t, "sources")

	require.NoError(t, err)
	assert.Contains(t, out, "No sources.")
}

func TestSourcesCmd_JSON(t *testing.T) {
	retrieval, _, cleanup := setupTestServices()
	defer cleanup()
	retrieval.available = &domain.AvailableSources{Corpora: []domain.Corpus{{ID: "1", Name: "Papers"}}}

	out, err := runCommand(t, "sources", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"rag_corpus"`)
	assert.Contains(t, out, `"Papers"`)
}

func TestSourcesCmd_Error(t *testing.T) {
	retrieval, _, cleanup := setupTestServices()
	defer cleanup()
	retrieval.err = errors.New("catalog offline")

	_, err := runCommand(t, "sources")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog offline")
}
