package domain

import (
	"fmt"
	"strings"
)

// SourceType identifies the kind of source a chunk was cut from.
type SourceType string

// Known source types.
const (
	// SourceTypeDocument is an uploaded document belonging to a corpus.
	SourceTypeDocument SourceType = "document"

	// SourceTypeNote is a personal note.
	SourceTypeNote SourceType = "note"
)

// IsValid returns true if the source type is recognised.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeDocument, SourceTypeNote:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t SourceType) String() string {
	return string(t)
}

// ParseSourceType converts a user-supplied string into a SourceType.
func ParseSourceType(s string) (SourceType, error) {
	t := SourceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: source type %q", ErrInvalidInput, s)
	}
	return t, nil
}

// SourceRef identifies one source. Integer ids are carried in base 10.
type SourceRef struct {
	// Type is the source type.
	Type SourceType

	// ID is the source identifier within its type.
	ID string
}

// NewSourceRef builds a SourceRef and validates it.
func NewSourceRef(sourceType SourceType, id string) (SourceRef, error) {
	ref := SourceRef{Type: sourceType, ID: strings.TrimSpace(id)}
	if err := ref.Validate(); err != nil {
		return SourceRef{}, err
	}
	return ref, nil
}

// Validate checks that the type is known and the id is non-empty.
func (r SourceRef) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: source type %q", ErrInvalidInput, r.Type)
	}
	if r.ID == "" {
		return fmt.Errorf("%w: empty source id", ErrInvalidInput)
	}
	return nil
}

// String returns "type/id".
func (r SourceRef) String() string {
	return string(r.Type) + "/" + r.ID
}

// Chunk is a unit of retrievable text.
// Within one source, Index values are contiguous from 0 in emission order.
type Chunk struct {
	// Text is the chunk content.
	Text string

	// Index is the position within the source's chunk sequence.
	Index int

	// SourceID identifies the source the chunk was cut from.
	SourceID string

	// SourceType is the kind of source.
	SourceType SourceType

	// Metadata carries source attributes such as filename or title.
	Metadata map[string]any
}

// Source returns the chunk's source reference.
func (c Chunk) Source() SourceRef {
	return SourceRef{Type: c.SourceType, ID: c.SourceID}
}

// CompositeID returns the stable key "{source_type}_{source_id}_{index}".
// Re-adding a chunk with the same composite id overwrites the previous one.
func (c Chunk) CompositeID() string {
	return fmt.Sprintf("%s_%s_%d", c.SourceType, c.SourceID, c.Index)
}

// ChunkEmbedding pairs a chunk with its vector.
type ChunkEmbedding struct {
	Chunk  Chunk
	Vector []float32
}

// HasVector reports whether the embedding produced a usable vector.
func (ce ChunkEmbedding) HasVector() bool {
	return len(ce.Vector) > 0
}

// ChunkRecord is the persistence view of a processed chunk handed to the
// chunk record store.
type ChunkRecord struct {
	// ID is the record identifier.
	ID string

	// SourceID identifies the owning source.
	SourceID string

	// SourceType is the kind of owning source.
	SourceType SourceType

	// ChunkText is the chunk content.
	ChunkText string

	// ChunkIndex is the chunk position within the source.
	ChunkIndex int

	// HasEmbedding is true when Embedding holds a vector.
	HasEmbedding bool

	// Embedding is the chunk vector.
	Embedding []float32
}
