package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownStrategy indicates a chunking strategy name is not registered.
	ErrUnknownStrategy = errors.New("unknown chunking strategy")

	// ErrUnknownBackend indicates a storage or provider backend name is not known.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrUnsupportedType indicates a file format no extractor handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured
	// or could not be loaded.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorStoreUnavailable indicates the vector store could not be opened.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCatalogUnavailable indicates no source catalog is attached.
	ErrCatalogUnavailable = errors.New("source catalog unavailable")

	// Queue Errors.

	// ErrQueueFull indicates the processing queue cannot accept more tasks.
	ErrQueueFull = errors.New("processing queue full")

	// ErrQueueClosed indicates the processing queue has been shut down.
	ErrQueueClosed = errors.New("processing queue closed")
)
