// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the engine to function:
//
//   - Chunker: Splits text into ordered chunks (one per strategy)
//   - EmbeddingService: Produces vectors for text
//   - VectorStore: Indexes chunk vectors and searches them under metadata filters
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - EmbeddingCache: Without it every text is sent to the embedding service.
//   - SourceCatalog: Without it only raw-text processing and unfiltered search work.
//   - ChunkRecordStore: Without it processed chunks are only held by the VectorStore.
//   - EngineMetrics: Without it nothing is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or chunker package
package driven
