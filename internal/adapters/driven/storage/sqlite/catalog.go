package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// Ensure Catalog implements the interfaces.
var (
	_ driven.SourceCatalog    = (*Catalog)(nil)
	_ driven.ChunkRecordStore = (*Catalog)(nil)
)

// Catalog keeps corpora, documents, notes and chunk records in SQLite.
// Integer row ids are exposed as base-10 strings.
type Catalog struct {
	store  *Store
	reader driven.DocumentReader
	owned  bool
}

// Catalog returns the source catalog of this database. reader extracts
// document text and may be nil when only notes are used.
func (s *Store) Catalog(reader driven.DocumentReader) *Catalog {
	return &Catalog{store: s, reader: reader}
}

// OpenCatalog opens the database at path and returns its catalog.
// Closing the catalog closes the database.
func OpenCatalog(path string, reader driven.DocumentReader) (*Catalog, error) {
	s, err := NewStore(path)
	if err != nil {
		return nil, err
	}
	c := s.Catalog(reader)
	c.owned = true
	return c, nil
}

// Close closes the database if the catalog opened it.
func (c *Catalog) Close() error {
	if c.owned {
		return c.store.Close()
	}
	return nil
}

func parseRowID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q is not an integer", domain.ErrInvalidInput, id)
	}
	return n, nil
}

func formatRowID(n int64) string {
	return strconv.FormatInt(n, 10)
}

// LoadSource returns the text of a note or a document.
func (c *Catalog) LoadSource(ctx context.Context, ref domain.SourceRef) (*domain.Source, error) {
	id, err := parseRowID(ref.ID)
	if err != nil {
		return nil, err
	}

	switch ref.Type {
	case domain.SourceTypeNote:
		var title, content string
		err := c.store.db.QueryRowContext(ctx, "SELECT title, content FROM notes WHERE id = ?", id).
			Scan(&title, &content)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("note %s: %w", ref.ID, domain.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("loading note %s: %w", ref.ID, err)
		}
		return &domain.Source{
			Ref:      ref,
			Title:    title,
			Text:     content,
			Metadata: map[string]any{"title": title},
		}, nil

	case domain.SourceTypeDocument:
		var (
			corpusID                     int64
			filename, fileType, filePath string
		)
		err := c.store.db.QueryRowContext(ctx,
			"SELECT rag_corpus_id, filename, file_type, file_path FROM documents WHERE id = ?", id).
			Scan(&corpusID, &filename, &fileType, &filePath)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", ref.ID, domain.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("loading document %s: %w", ref.ID, err)
		}
		if c.reader == nil {
			return nil, fmt.Errorf("%w: no document reader", domain.ErrUnsupportedType)
		}
		extracted, err := c.reader.ReadDocument(ctx, filePath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filePath, err)
		}
		return &domain.Source{
			Ref:   ref,
			Title: filename,
			Text:  extracted.Text,
			Metadata: map[string]any{
				"filename":  filename,
				"file_type": fileType,
				"corpus_id": formatRowID(corpusID),
			},
		}, nil

	default:
		return nil, fmt.Errorf("%w: source type %q", domain.ErrInvalidInput, ref.Type)
	}
}

// CorpusDocumentIDs returns the ids of a corpus's documents in id order.
func (c *Catalog) CorpusDocumentIDs(ctx context.Context, corpusID string) ([]string, error) {
	id, err := parseRowID(corpusID)
	if err != nil {
		return nil, err
	}
	if ok, err := c.exists(ctx, "rag_corpus", id); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("corpus %s: %w", corpusID, domain.ErrNotFound)
	}

	rows, err := c.store.db.QueryContext(ctx,
		"SELECT id FROM documents WHERE rag_corpus_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var docID int64
		if err := rows.Scan(&docID); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, formatRowID(docID))
	}
	return ids, rows.Err()
}

// AvailableSources lists every corpus with its document count and every note.
func (c *Catalog) AvailableSources(ctx context.Context) (*domain.AvailableSources, error) {
	out := &domain.AvailableSources{Corpora: []domain.Corpus{}, Notes: []domain.Note{}}

	rows, err := c.store.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, c.created_at, COUNT(d.id)
		FROM rag_corpus c LEFT JOIN documents d ON d.rag_corpus_id = c.id
		GROUP BY c.id ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing corpora: %w", err)
	}
	for rows.Next() {
		var (
			corpus   domain.Corpus
			id, when int64
		)
		if err := rows.Scan(&id, &corpus.Name, &corpus.Description, &when, &corpus.DocumentCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning corpus: %w", err)
		}
		corpus.ID = formatRowID(id)
		corpus.CreatedAt = time.Unix(when, 0)
		out.Corpora = append(out.Corpora, corpus)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpora: %w", err)
	}

	rows, err = c.store.db.QueryContext(ctx, "SELECT id, title, updated_at FROM notes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			note     domain.Note
			id, when int64
		)
		if err := rows.Scan(&id, &note.Title, &when); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		note.ID = formatRowID(id)
		note.UpdatedAt = time.Unix(when, 0)
		out.Notes = append(out.Notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}
	return out, nil
}

// Counts summarises the catalog.
func (c *Catalog) Counts(ctx context.Context) (domain.CatalogCounts, error) {
	var counts domain.CatalogCounts
	err := c.store.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM rag_corpus),
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM notes)
	`).Scan(&counts.Corpora, &counts.Documents, &counts.Notes)
	if err != nil {
		return domain.CatalogCounts{}, fmt.Errorf("counting catalog: %w", err)
	}
	return counts, nil
}

// CreateCorpus registers a corpus with a new id.
func (c *Catalog) CreateCorpus(ctx context.Context, corpus domain.Corpus) (*domain.Corpus, error) {
	if strings.TrimSpace(corpus.Name) == "" {
		return nil, fmt.Errorf("%w: corpus name is required", domain.ErrInvalidInput)
	}
	if corpus.CreatedAt.IsZero() {
		corpus.CreatedAt = time.Now()
	}
	res, err := c.store.db.ExecContext(ctx,
		"INSERT INTO rag_corpus (name, description, created_at) VALUES (?, ?, ?)",
		corpus.Name, corpus.Description, corpus.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("creating corpus: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading corpus id: %w", err)
	}
	corpus.ID = formatRowID(id)
	corpus.DocumentCount = 0
	return &corpus, nil
}

// AddDocument registers a document in an existing corpus.
func (c *Catalog) AddDocument(ctx context.Context, doc domain.DocumentRecord) (*domain.DocumentRecord, error) {
	if doc.FilePath == "" {
		return nil, fmt.Errorf("%w: document path is required", domain.ErrInvalidInput)
	}
	corpusID, err := parseRowID(doc.CorpusID)
	if err != nil {
		return nil, err
	}
	if ok, err := c.exists(ctx, "rag_corpus", corpusID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("corpus %s: %w", doc.CorpusID, domain.ErrNotFound)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	res, err := c.store.db.ExecContext(ctx, `
		INSERT INTO documents (rag_corpus_id, filename, file_type, file_path, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, corpusID, doc.Filename, doc.FileType, doc.FilePath, doc.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("adding document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading document id: %w", err)
	}
	doc.ID = formatRowID(id)
	return &doc, nil
}

// SaveNote creates a note when ID is blank and replaces it otherwise.
func (c *Catalog) SaveNote(ctx context.Context, note domain.Note) (*domain.Note, error) {
	note.UpdatedAt = time.Now()

	if note.ID == "" {
		res, err := c.store.db.ExecContext(ctx,
			"INSERT INTO notes (title, content, updated_at) VALUES (?, ?, ?)",
			note.Title, note.Content, note.UpdatedAt.Unix())
		if err != nil {
			return nil, fmt.Errorf("creating note: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading note id: %w", err)
		}
		note.ID = formatRowID(id)
		return &note, nil
	}

	id, err := parseRowID(note.ID)
	if err != nil {
		return nil, err
	}
	res, err := c.store.db.ExecContext(ctx,
		"UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?",
		note.Title, note.Content, note.UpdatedAt.Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("updating note %s: %w", note.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("note %s: %w", note.ID, domain.ErrNotFound)
	}
	return &note, nil
}

// DeleteNote removes a note and its chunk records in one transaction.
func (c *Catalog) DeleteNote(ctx context.Context, id string) error {
	rowID, err := parseRowID(id)
	if err != nil {
		return err
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", rowID)
	if err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunk_records WHERE source_type = ? AND source_id = ?",
		string(domain.SourceTypeNote), id); err != nil {
		return fmt.Errorf("deleting chunk records of note %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing note deletion: %w", err)
	}
	return nil
}

// ReplaceChunkRecords replaces every record of the source in one transaction.
func (c *Catalog) ReplaceChunkRecords(ctx context.Context, ref domain.SourceRef, records []domain.ChunkRecord) error {
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunk_records WHERE source_type = ? AND source_id = ?",
		string(ref.Type), ref.ID); err != nil {
		return fmt.Errorf("deleting chunk records of %s: %w", ref, err)
	}

	for _, r := range records {
		var blob []byte
		if r.HasEmbedding {
			blob = vecmath.Encode(r.Embedding)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunk_records (id, source_type, source_id, chunk_text, chunk_index, has_embedding, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, string(ref.Type), ref.ID, r.ChunkText, r.ChunkIndex, r.HasEmbedding, blob); err != nil {
			return fmt.Errorf("inserting chunk record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunk records: %w", err)
	}
	return nil
}

// ChunkRecords returns the records of a source by chunk index.
func (c *Catalog) ChunkRecords(ctx context.Context, ref domain.SourceRef) ([]domain.ChunkRecord, error) {
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT id, chunk_text, chunk_index, has_embedding, embedding
		FROM chunk_records WHERE source_type = ? AND source_id = ?
		ORDER BY chunk_index
	`, string(ref.Type), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("listing chunk records: %w", err)
	}
	defer rows.Close()

	var out []domain.ChunkRecord
	for rows.Next() {
		r := domain.ChunkRecord{SourceID: ref.ID, SourceType: ref.Type}
		var blob []byte
		if err := rows.Scan(&r.ID, &r.ChunkText, &r.ChunkIndex, &r.HasEmbedding, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk record: %w", err)
		}
		if r.HasEmbedding {
			if r.Embedding, err = vecmath.Decode(blob); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *Catalog) exists(ctx context.Context, table string, id int64) (bool, error) {
	var n int
	//nolint:gosec // G201: table is one of our own constants
	err := c.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking %s %d: %w", table, id, err)
	}
	return n > 0, nil
}
