// Package plaintext extracts text from plain text files.
package plaintext

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles plain text files.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedExtensions returns the file extensions this extractor handles.
func (e *Extractor) SupportedExtensions() []string {
	return []string{".txt", ".text", ".log", ".csv", ".json"}
}

// Extract returns the file content unchanged.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawFile) (*domain.ExtractedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	mimeType := raw.MIMEType
	if mimeType == "" {
		mimeType = "text/plain"
	}

	return &domain.ExtractedText{
		Title:    titleFromMetadataOrPath(raw),
		Text:     string(raw.Content),
		Metadata: map[string]any{"mime_type": mimeType},
	}, nil
}

// titleFromMetadataOrPath checks metadata for title first, then falls back to the path.
func titleFromMetadataOrPath(raw *domain.RawFile) string {
	if title, ok := raw.Metadata["title"].(string); ok && title != "" {
		return title
	}
	return TitleFromPath(raw.Path)
}

// TitleFromPath derives a human-readable title from a file name.
func TitleFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}
