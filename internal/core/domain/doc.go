// Package domain defines the core value types of the retrieval engine.
//
// This package is the innermost layer of the hexagonal architecture.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A bounded slice of source text tagged with its source and position
//   - SearchResult: A chunk plus similarity evidence
//   - ProcessingTask: One background ingestion job
//   - Settings: Engine configuration with defaults
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
