// Package milvus provides a VectorStore backed by a Milvus server.
//
// One collection holds every chunk. It is created on the first write
// with an HNSW index using cosine similarity, so scores are similarities
// in [-1, 1] and higher is closer.
package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

var log = logger.For("milvus")

// Field names of the chunk collection.
const (
	FieldID         = "id"
	FieldSourceType = "source_type"
	FieldSourceID   = "source_id"
	FieldIndex      = "chunk_index"
	FieldText       = "text"
	FieldMetadata   = "metadata"
	FieldVector     = "vector"
)

const (
	maxIDLength      = "255"
	maxVarCharLength = "65535"
	hnswM            = 16
	hnswEfConstruct  = 200
)

var outputFields = []string{FieldID, FieldSourceType, FieldSourceID, FieldIndex, FieldText, FieldMetadata}

// Store is a Milvus-backed vector store over one collection.
type Store struct {
	client     *milvusclient.Client
	collection string

	mu        sync.Mutex
	dimension int
	ready     bool
}

// New connects to the Milvus server at addr. An existing collection is
// loaded for search; a missing one is created on the first AddChunks.
func New(ctx context.Context, addr, collection string) (*Store, error) {
	client, err := milvusclient.New(ctx, &milvusclient.ClientConfig{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to milvus at %s: %v", domain.ErrVectorStoreUnavailable, addr, err)
	}

	s := &Store{client: client, collection: collection}
	if err := s.attach(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	return s, nil
}

// attach loads an existing collection and records its dimension.
func (s *Store) attach(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.collection, err)
	}
	if !exists {
		return nil
	}

	coll, err := s.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("describing collection %s: %w", s.collection, err)
	}
	for _, f := range coll.Schema.Fields {
		if f.Name == FieldVector {
			s.dimension, _ = strconv.Atoi(f.TypeParams["dim"])
		}
	}

	if err := s.load(ctx); err != nil {
		return err
	}
	s.ready = true
	return nil
}

func (s *Store) load(ctx context.Context) error {
	task, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("loading collection %s: %w", s.collection, err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("waiting for collection %s: %w", s.collection, err)
	}
	return nil
}

// ensureCollection creates the collection for vectors of size dim.
func (s *Store) ensureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		if dim != s.dimension {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, dim, s.dimension)
		}
		return nil
	}

	err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.collection, schema(s.collection, dim)))
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.collection, err)
	}

	idx := index.NewHNSWIndex(entity.COSINE, hnswM, hnswEfConstruct)
	task, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, FieldVector, idx))
	if err != nil {
		return fmt.Errorf("creating index on %s: %w", s.collection, err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("waiting for index on %s: %w", s.collection, err)
	}

	if err := s.load(ctx); err != nil {
		return err
	}
	log.Info("created collection %s (dim %d)", s.collection, dim)
	s.dimension = dim
	s.ready = true
	return nil
}

func schema(collection string, dim int) *entity.Schema {
	varchar := func(name, maxLen string) *entity.Field {
		return &entity.Field{
			Name:       name,
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": maxLen},
		}
	}
	id := varchar(FieldID, maxIDLength)
	id.PrimaryKey = true

	return &entity.Schema{
		CollectionName: collection,
		Description:    "Retrieval chunks",
		Fields: []*entity.Field{
			id,
			varchar(FieldSourceType, "32"),
			varchar(FieldSourceID, maxIDLength),
			{Name: FieldIndex, DataType: entity.FieldTypeInt64},
			varchar(FieldText, maxVarCharLength),
			varchar(FieldMetadata, maxVarCharLength),
			{
				Name:       FieldVector,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dim)},
			},
		},
	}
}

// AddChunks upserts chunks keyed by composite id.
func (s *Store) AddChunks(ctx context.Context, items []domain.ChunkEmbedding) error {
	if len(items) == 0 {
		return nil
	}
	dim := len(items[0].Vector)
	for _, it := range items {
		if len(it.Vector) == 0 {
			return fmt.Errorf("%w: chunk %s has no vector", domain.ErrInvalidInput, it.Chunk.CompositeID())
		}
		if len(it.Vector) != dim {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(it.Vector), dim)
		}
	}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return err
	}

	var (
		ids, types, sourceIDs, texts, metas []string
		indexes                             []int64
		vectors                             [][]float32
	)
	for _, it := range items {
		meta, err := json.Marshal(it.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		ids = append(ids, it.Chunk.CompositeID())
		types = append(types, string(it.Chunk.SourceType))
		sourceIDs = append(sourceIDs, it.Chunk.SourceID)
		indexes = append(indexes, int64(it.Chunk.Index))
		texts = append(texts, it.Chunk.Text)
		metas = append(metas, string(meta))
		vectors = append(vectors, it.Vector)
	}

	opt := milvusclient.NewColumnBasedInsertOption(s.collection).
		WithVarcharColumn(FieldID, ids).
		WithVarcharColumn(FieldSourceType, types).
		WithVarcharColumn(FieldSourceID, sourceIDs).
		WithInt64Column(FieldIndex, indexes).
		WithVarcharColumn(FieldText, texts).
		WithVarcharColumn(FieldMetadata, metas).
		WithFloatVectorColumn(FieldVector, dim, vectors)

	if _, err := s.client.Upsert(ctx, opt); err != nil {
		return fmt.Errorf("upserting %d chunks: %w", len(items), err)
	}
	return nil
}

// Search returns up to limit chunks matching filter, most similar first.
func (s *Store) Search(
	ctx context.Context, query []float32, limit int, filter domain.SearchFilter,
) ([]domain.SearchResult, error) {
	results := []domain.SearchResult{}
	if limit <= 0 {
		return results, nil
	}

	s.mu.Lock()
	ready, dim := s.ready, s.dimension
	s.mu.Unlock()
	if !ready {
		return results, nil
	}
	if len(query) != dim {
		return results, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(query), dim)
	}

	opt := milvusclient.NewSearchOption(s.collection, limit, []entity.Vector{entity.FloatVector(query)}).
		WithANNSField(FieldVector).
		WithOutputFields(outputFields...)
	if expr := FilterExpr(filter); expr != "" {
		opt = opt.WithFilter(expr)
	}

	sets, err := s.client.Search(ctx, opt)
	if err != nil {
		return results, fmt.Errorf("searching %s: %w", s.collection, err)
	}
	if len(sets) == 0 {
		return results, nil
	}
	return convertResultSet(sets[0])
}

// convertResultSet turns one query's hits into search results.
func convertResultSet(rs milvusclient.ResultSet) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		id, err := stringAt(rs, FieldID, i)
		if err != nil {
			return []domain.SearchResult{}, err
		}
		sourceType, err := stringAt(rs, FieldSourceType, i)
		if err != nil {
			return []domain.SearchResult{}, err
		}
		sourceID, err := stringAt(rs, FieldSourceID, i)
		if err != nil {
			return []domain.SearchResult{}, err
		}
		text, err := stringAt(rs, FieldText, i)
		if err != nil {
			return []domain.SearchResult{}, err
		}
		meta, err := stringAt(rs, FieldMetadata, i)
		if err != nil {
			return []domain.SearchResult{}, err
		}

		var chunkIndex int64
		if col := rs.GetColumn(FieldIndex); col != nil {
			if chunkIndex, err = col.GetAsInt64(i); err != nil {
				return []domain.SearchResult{}, fmt.Errorf("reading %s: %w", FieldIndex, err)
			}
		}

		chunk := domain.Chunk{
			Text:       text,
			Index:      int(chunkIndex),
			SourceID:   sourceID,
			SourceType: domain.SourceType(sourceType),
		}
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &chunk.Metadata); err != nil {
				return []domain.SearchResult{}, fmt.Errorf("unmarshalling metadata of %s: %w", id, err)
			}
		}

		var score float64
		if i < len(rs.Scores) {
			score = float64(rs.Scores[i])
		}
		results = append(results, domain.SearchResult{
			Chunk:    chunk,
			Score:    score,
			Metadata: map[string]any{"id": id},
		})
	}
	return results, nil
}

func stringAt(rs milvusclient.ResultSet, field string, i int) (string, error) {
	col := rs.GetColumn(field)
	if col == nil {
		return "", fmt.Errorf("milvus result has no %s column", field)
	}
	v, err := col.GetAsString(i)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", field, err)
	}
	return v, nil
}

// FilterExpr renders a search filter as a Milvus boolean expression.
// An empty filter renders as "".
func FilterExpr(filter domain.SearchFilter) string {
	var clauses []string
	if filter.SourceType != "" {
		clauses = append(clauses, FieldSourceType+" == "+strconv.Quote(string(filter.SourceType)))
	}
	switch len(filter.SourceIDs) {
	case 0:
	case 1:
		clauses = append(clauses, FieldSourceID+" == "+strconv.Quote(filter.SourceIDs[0]))
	default:
		quoted := make([]string, len(filter.SourceIDs))
		for i, id := range filter.SourceIDs {
			quoted[i] = strconv.Quote(id)
		}
		clauses = append(clauses, FieldSourceID+" in ["+strings.Join(quoted, ", ")+"]")
	}
	return strings.Join(clauses, " && ")
}

// DeleteBySource removes every chunk of the source.
func (s *Store) DeleteBySource(ctx context.Context, ref domain.SourceRef) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if !ready {
		return nil
	}

	expr := FilterExpr(domain.ForSource(ref))
	if _, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(s.collection).WithExpr(expr)); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", ref, err)
	}
	return nil
}

// Count returns the number of chunks in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if !ready {
		return 0, nil
	}

	rs, err := s.client.Query(ctx, milvusclient.NewQueryOption(s.collection).WithOutputFields("count(*)"))
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", s.collection, err)
	}
	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	n, err := col.GetAsInt64(0)
	if err != nil {
		return 0, fmt.Errorf("reading count: %w", err)
	}
	return int(n), nil
}

// Close closes the client connection.
func (s *Store) Close() error {
	return s.client.Close(context.Background())
}
