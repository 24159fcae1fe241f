package domain

// Statistics describes the state of the retrieval engine.
type Statistics struct {
	ChunkCount            int            `json:"chunk_count"`
	ChunkerStrategy       string         `json:"chunker_strategy"`
	EmbeddingModel        string         `json:"embedding_model"`
	EmbeddingDimension    int            `json:"embedding_dimension"`
	ProcessingQueueLength int            `json:"processing_queue_length"`
	Catalog               *CatalogCounts `json:"catalog,omitempty"`
}
