// Package sqlite provides SQLite-based implementations of the engine's
// driven ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database file can hold:
//
//   - VectorStore: chunk vectors per collection, searched by exact cosine scan
//   - EmbeddingCache: vectors keyed by a hash of (text, model)
//   - Catalog: corpora, documents, notes and chunk records
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory and applied in order on open.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
