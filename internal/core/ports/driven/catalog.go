package driven

import (
	"context"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

// SourceCatalog is the persistence collaborator that owns notes, documents
// and corpora. The engine reads source text from it and resolves corpora
// into their documents.
type SourceCatalog interface {
	// LoadSource returns the text and metadata of a stored source.
	// Returns domain.ErrNotFound if the source does not exist.
	LoadSource(ctx context.Context, ref domain.SourceRef) (*domain.Source, error)

	// CorpusDocumentIDs returns the ids of the documents in a corpus.
	CorpusDocumentIDs(ctx context.Context, corpusID string) ([]string, error)

	// AvailableSources lists every corpus and note.
	AvailableSources(ctx context.Context) (*domain.AvailableSources, error)

	// Counts summarises the catalog.
	Counts(ctx context.Context) (domain.CatalogCounts, error)

	// CreateCorpus registers a new corpus.
	CreateCorpus(ctx context.Context, corpus domain.Corpus) (*domain.Corpus, error)

	// AddDocument registers a document file in a corpus.
	AddDocument(ctx context.Context, doc domain.DocumentRecord) (*domain.DocumentRecord, error)

	// SaveNote creates or replaces a note. A blank ID creates a new note.
	SaveNote(ctx context.Context, note domain.Note) (*domain.Note, error)

	// DeleteNote removes a note and its chunk records.
	// Returns domain.ErrNotFound if the note does not exist.
	DeleteNote(ctx context.Context, id string) error
}

// ChunkRecordStore persists the chunk records of processed sources.
type ChunkRecordStore interface {
	// ReplaceChunkRecords atomically replaces every record of the source.
	ReplaceChunkRecords(ctx context.Context, ref domain.SourceRef, records []domain.ChunkRecord) error

	// ChunkRecords returns the records of a source ordered by chunk index.
	ChunkRecords(ctx context.Context, ref domain.SourceRef) ([]domain.ChunkRecord, error)
}

// TextExtractor turns a raw file into plain text.
type TextExtractor interface {
	// SupportedExtensions returns the lowercase file extensions handled, with dot.
	SupportedExtensions() []string

	// Extract returns the plain text of the file.
	Extract(ctx context.Context, raw *domain.RawFile) (*domain.ExtractedText, error)
}

// DocumentReader reads a document file from disk as plain text.
type DocumentReader interface {
	// ReadDocument extracts the text of the file at path.
	// Returns domain.ErrUnsupportedType if no extractor handles the format.
	ReadDocument(ctx context.Context, path string) (*domain.ExtractedText, error)
}
