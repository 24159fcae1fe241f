package domain

import "time"

// Source is the text and attributes of a stored note or document,
// as loaded from the source catalog.
type Source struct {
	// Ref identifies the source.
	Ref SourceRef

	// Title is a display title.
	Title string

	// Text is the full plain text to chunk.
	Text string

	// Metadata is copied onto every chunk of the source.
	Metadata map[string]any
}

// Corpus is a named collection of documents.
type Corpus struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// DocumentRecord is a document registered in a corpus.
type DocumentRecord struct {
	ID        string    `json:"id"`
	CorpusID  string    `json:"corpus_id"`
	Filename  string    `json:"filename"`
	FileType  string    `json:"file_type"`
	FilePath  string    `json:"file_path"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a personal note.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AvailableSources lists every source a caller could activate.
type AvailableSources struct {
	Corpora []Corpus `json:"rag_corpus"`
	Notes   []Note   `json:"notes"`
}

// CatalogCounts summarises the source catalog.
type CatalogCounts struct {
	Corpora   int `json:"rag_corpus_count"`
	Documents int `json:"document_count"`
	Notes     int `json:"note_count"`
}

// ExtractedText is the output of a text extractor.
type ExtractedText struct {
	// Title is taken from the content or the file name.
	Title string

	// Text is the whole-document plain text.
	Text string

	// Pages holds page-level text when the format has pages.
	Pages []string

	// Metadata holds format details such as mime_type.
	Metadata map[string]any
}
