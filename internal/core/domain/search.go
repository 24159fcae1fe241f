package domain

import (
	"fmt"
	"slices"
)

// SearchFilter restricts a vector search by metadata.
// An empty filter matches every chunk.
type SearchFilter struct {
	// SourceType limits results to one source type. Empty means any.
	SourceType SourceType

	// SourceIDs limits results to the given source ids.
	// One id is an equality constraint, several are a membership constraint.
	SourceIDs []string
}

// ForSource returns a filter matching exactly one source.
func ForSource(ref SourceRef) SearchFilter {
	return SearchFilter{SourceType: ref.Type, SourceIDs: []string{ref.ID}}
}

// IsEmpty returns true when the filter places no constraint.
func (f SearchFilter) IsEmpty() bool {
	return f.SourceType == "" && len(f.SourceIDs) == 0
}

// Validate rejects unknown source types and blank ids.
func (f SearchFilter) Validate() error {
	if f.SourceType != "" && !f.SourceType.IsValid() {
		return fmt.Errorf("%w: filter source type %q", ErrInvalidInput, f.SourceType)
	}
	for _, id := range f.SourceIDs {
		if id == "" {
			return fmt.Errorf("%w: filter contains an empty source id", ErrInvalidInput)
		}
	}
	return nil
}

// Matches reports whether a chunk satisfies the filter.
func (f SearchFilter) Matches(c Chunk) bool {
	if f.SourceType != "" && c.SourceType != f.SourceType {
		return false
	}
	if len(f.SourceIDs) > 0 && !slices.Contains(f.SourceIDs, c.SourceID) {
		return false
	}
	return true
}

// SearchResult is a chunk plus similarity evidence.
// Score is higher for closer matches and only orders results of one query.
type SearchResult struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Score is the similarity, computed as 1 - distance for distance backends.
	Score float64

	// Metadata holds backend-specific data such as the internal id.
	Metadata map[string]any
}

// SearchOutcome is the typed result of a read path.
// Degraded distinguishes a backend failure from a search with zero matches;
// callers that only want results can ignore it and read Results.
type SearchOutcome struct {
	// Results is never nil.
	Results []SearchResult

	// Degraded is true when a backend error was swallowed.
	Degraded bool

	// Err is the swallowed error when Degraded is true.
	Err error
}

// DegradedOutcome builds an empty outcome recording err.
func DegradedOutcome(err error) SearchOutcome {
	return SearchOutcome{Results: []SearchResult{}, Degraded: true, Err: err}
}

// ActiveSources restricts retrieval to enabled corpora and notes.
type ActiveSources struct {
	// CorpusIDs are the enabled document corpora.
	CorpusIDs []string

	// NoteIDs are the enabled notes.
	NoteIDs []string
}

// IsEmpty returns true when no source is active.
func (a *ActiveSources) IsEmpty() bool {
	return a == nil || (len(a.CorpusIDs) == 0 && len(a.NoteIDs) == 0)
}

// ContextSource attributes one block of an assembled context.
type ContextSource struct {
	SourceType SourceType `json:"source_type"`
	SourceID   string     `json:"source_id"`
	ChunkIndex int        `json:"chunk_index"`
	Score      float64    `json:"score"`
}
