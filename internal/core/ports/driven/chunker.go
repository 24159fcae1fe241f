package driven

import "github.com/custodia-labs/ragengine/internal/core/domain"

// Chunker splits text into ordered chunks tagged with their source.
// Every strategy normalises text first; empty input yields no chunks.
type Chunker interface {
	// Strategy returns the strategy name (character, token, paragraph, sentence).
	Strategy() string

	// ChunkText splits text into chunks indexed contiguously from 0.
	// Metadata is attached to every chunk.
	ChunkText(text string, ref domain.SourceRef, metadata map[string]any) ([]domain.Chunk, error)
}
