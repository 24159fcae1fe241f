package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// Ensure Catalog implements the interfaces.
var (
	_ driven.SourceCatalog    = (*Catalog)(nil)
	_ driven.ChunkRecordStore = (*Catalog)(nil)
)

// Catalog is an in-memory source catalog and chunk record store.
// Ids are assigned sequentially per entity, starting at 1.
type Catalog struct {
	mu        sync.RWMutex
	reader    driven.DocumentReader
	corpora   map[string]domain.Corpus
	documents map[string]domain.DocumentRecord
	notes     map[string]domain.Note
	records   map[domain.SourceRef][]domain.ChunkRecord
	nextID    map[string]int
}

// NewCatalog creates an empty catalog. reader extracts document text and
// may be nil when only notes are used.
func NewCatalog(reader driven.DocumentReader) *Catalog {
	return &Catalog{
		reader:    reader,
		corpora:   make(map[string]domain.Corpus),
		documents: make(map[string]domain.DocumentRecord),
		notes:     make(map[string]domain.Note),
		records:   make(map[domain.SourceRef][]domain.ChunkRecord),
		nextID:    make(map[string]int),
	}
}

func (c *Catalog) newID(kind string) string {
	c.nextID[kind]++
	return strconv.Itoa(c.nextID[kind])
}

// LoadSource returns the text of a note or a document.
func (c *Catalog) LoadSource(ctx context.Context, ref domain.SourceRef) (*domain.Source, error) {
	c.mu.RLock()
	note, noteOK := c.notes[ref.ID]
	doc, docOK := c.documents[ref.ID]
	c.mu.RUnlock()

	switch ref.Type {
	case domain.SourceTypeNote:
		if !noteOK {
			return nil, fmt.Errorf("note %s: %w", ref.ID, domain.ErrNotFound)
		}
		return &domain.Source{
			Ref:      ref,
			Title:    note.Title,
			Text:     note.Content,
			Metadata: map[string]any{"title": note.Title},
		}, nil

	case domain.SourceTypeDocument:
		if !docOK {
			return nil, fmt.Errorf("document %s: %w", ref.ID, domain.ErrNotFound)
		}
		if c.reader == nil {
			return nil, fmt.Errorf("%w: no document reader", domain.ErrUnsupportedType)
		}
		extracted, err := c.reader.ReadDocument(ctx, doc.FilePath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", doc.FilePath, err)
		}
		return &domain.Source{
			Ref:   ref,
			Title: doc.Filename,
			Text:  extracted.Text,
			Metadata: map[string]any{
				"filename":  doc.Filename,
				"file_type": doc.FileType,
				"corpus_id": doc.CorpusID,
			},
		}, nil

	default:
		return nil, fmt.Errorf("%w: source type %q", domain.ErrInvalidInput, ref.Type)
	}
}

// CorpusDocumentIDs returns the ids of a corpus's documents in id order.
func (c *Catalog) CorpusDocumentIDs(_ context.Context, corpusID string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.corpora[corpusID]; !ok {
		return nil, fmt.Errorf("corpus %s: %w", corpusID, domain.ErrNotFound)
	}
	var ids []string
	for id, doc := range c.documents {
		if doc.CorpusID == corpusID {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids, nil
}

// AvailableSources lists every corpus with its document count and every note.
func (c *Catalog) AvailableSources(_ context.Context) (*domain.AvailableSources, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := &domain.AvailableSources{
		Corpora: make([]domain.Corpus, 0, len(c.corpora)),
		Notes:   make([]domain.Note, 0, len(c.notes)),
	}
	counts := make(map[string]int)
	for _, doc := range c.documents {
		counts[doc.CorpusID]++
	}
	for _, corpus := range c.corpora {
		corpus.DocumentCount = counts[corpus.ID]
		out.Corpora = append(out.Corpora, corpus)
	}
	for _, note := range c.notes {
		note.Content = ""
		out.Notes = append(out.Notes, note)
	}

	sort.Slice(out.Corpora, func(i, j int) bool { return idLess(out.Corpora[i].ID, out.Corpora[j].ID) })
	sort.Slice(out.Notes, func(i, j int) bool { return idLess(out.Notes[i].ID, out.Notes[j].ID) })
	return out, nil
}

// Counts summarises the catalog.
func (c *Catalog) Counts(_ context.Context) (domain.CatalogCounts, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.CatalogCounts{
		Corpora:   len(c.corpora),
		Documents: len(c.documents),
		Notes:     len(c.notes),
	}, nil
}

// CreateCorpus registers a corpus with a new id.
func (c *Catalog) CreateCorpus(_ context.Context, corpus domain.Corpus) (*domain.Corpus, error) {
	if strings.TrimSpace(corpus.Name) == "" {
		return nil, fmt.Errorf("%w: corpus name is required", domain.ErrInvalidInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	corpus.ID = c.newID("corpus")
	corpus.DocumentCount = 0
	if corpus.CreatedAt.IsZero() {
		corpus.CreatedAt = time.Now()
	}
	c.corpora[corpus.ID] = corpus
	return &corpus, nil
}

// AddDocument registers a document in an existing corpus.
func (c *Catalog) AddDocument(_ context.Context, doc domain.DocumentRecord) (*domain.DocumentRecord, error) {
	if doc.FilePath == "" {
		return nil, fmt.Errorf("%w: document path is required", domain.ErrInvalidInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.corpora[doc.CorpusID]; !ok {
		return nil, fmt.Errorf("corpus %s: %w", doc.CorpusID, domain.ErrNotFound)
	}
	doc.ID = c.newID("document")
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	c.documents[doc.ID] = doc
	return &doc, nil
}

// SaveNote creates a note when ID is blank and replaces it otherwise.
func (c *Catalog) SaveNote(_ context.Context, note domain.Note) (*domain.Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if note.ID == "" {
		note.ID = c.newID("note")
	} else if _, ok := c.notes[note.ID]; !ok {
		return nil, fmt.Errorf("note %s: %w", note.ID, domain.ErrNotFound)
	}
	note.UpdatedAt = time.Now()
	c.notes[note.ID] = note
	return &note, nil
}

// DeleteNote removes a note and its chunk records.
func (c *Catalog) DeleteNote(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.notes[id]; !ok {
		return fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	delete(c.notes, id)
	delete(c.records, domain.SourceRef{Type: domain.SourceTypeNote, ID: id})
	return nil
}

// ReplaceChunkRecords replaces every record of the source.
func (c *Catalog) ReplaceChunkRecords(_ context.Context, ref domain.SourceRef, records []domain.ChunkRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[ref] = append([]domain.ChunkRecord(nil), records...)
	return nil
}

// ChunkRecords returns the records of a source by chunk index.
func (c *Catalog) ChunkRecords(_ context.Context, ref domain.SourceRef) ([]domain.ChunkRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := append([]domain.ChunkRecord(nil), c.records[ref]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

// idLess orders numeric ids numerically and anything else lexically.
func idLess(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}

func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return idLess(ids[i], ids[j]) })
}
