// Package extractors selects a text extractor for a file by its extension
// and reads documents from disk through it.
//
// Extractors are registered with the Registry at startup.
package extractors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/extractors/html"
	"github.com/custodia-labs/ragengine/internal/extractors/markdown"
	"github.com/custodia-labs/ragengine/internal/extractors/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.DocumentReader = (*Registry)(nil)

// Registry maps lowercase file extensions to extractors.
type Registry struct {
	byExt map[string]driven.TextExtractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]driven.TextExtractor)}
}

// Default returns a registry with the plaintext, markdown and html extractors.
func Default() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	return r
}

// Register adds an extractor for each extension it supports.
// A later registration replaces an earlier one for the same extension.
func (r *Registry) Register(e driven.TextExtractor) {
	for _, ext := range e.SupportedExtensions() {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// For returns the extractor for the file at path.
func (r *Registry) For(path string) (driven.TextExtractor, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		if ext == "" {
			ext = "(none)"
		}
		return nil, fmt.Errorf("%w: file extension %s", domain.ErrUnsupportedType, ext)
	}
	return e, nil
}

// Supports reports whether a file at path can be extracted.
func (r *Registry) Supports(path string) bool {
	_, err := r.For(path)
	return err == nil
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract runs the extractor selected by the raw file's path.
func (r *Registry) Extract(ctx context.Context, raw *domain.RawFile) (*domain.ExtractedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	e, err := r.For(raw.Path)
	if err != nil {
		return nil, err
	}
	return e.Extract(ctx, raw)
}

// ReadDocument reads the file at path and extracts its text.
func (r *Registry) ReadDocument(ctx context.Context, path string) (*domain.ExtractedText, error) {
	if _, err := r.For(path); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the catalog
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: document file %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}

	return r.Extract(ctx, &domain.RawFile{Path: path, Content: content})
}
