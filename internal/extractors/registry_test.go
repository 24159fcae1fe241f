package extractors

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

type stubExtractor struct {
	exts []string
	text string
}

func (s *stubExtractor) SupportedExtensions() []string { return s.exts }

func (s *stubExtractor) Extract(_ context.Context, raw *domain.RawFile) (*domain.ExtractedText, error) {
	return &domain.ExtractedText{Title: raw.Path, Text: s.text}, nil
}

func TestDefault_Extensions(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{
		".csv", ".htm", ".html", ".json", ".log", ".markdown", ".md", ".text", ".txt",
	}, r.Extensions())
}

func TestRegistry_For(t *testing.T) {
	r := Default()

	tests := []struct {
		path    string
		wantErr bool
	}{
		{"notes.txt", false},
		{"README.MD", false},
		{"page.HTM", false},
		{"report.pdf", true},
		{"Makefile", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := r.For(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnsupportedType)
				assert.False(t, r.Supports(tt.path))
				return
			}
			assert.NoError(t, err)
			assert.True(t, r.Supports(tt.path))
		})
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := Default()
	r.Register(&stubExtractor{exts: []string{".TXT"}, text: "stub"})

	out, err := r.Extract(context.Background(), &domain.RawFile{Path: "a.txt", Content: []byte("real")})
	require.NoError(t, err)
	assert.Equal(t, "stub", out.Text)
}

func TestRegistry_ReadDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.md")
	require.NoError(t, os.WriteFile(path, []byte("# Guide\n\nUse **care**."), 0o600))

	out, err := Default().ReadDocument(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Guide", out.Title)
	assert.Equal(t, "Guide\n\nUse care.", out.Text)
}

func TestRegistry_ReadDocument_Errors(t *testing.T) {
	dir := t.TempDir()
	r := Default()

	_, err := r.ReadDocument(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	pdf := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.7"), 0o600))
	_, err = r.ReadDocument(context.Background(), pdf)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestRegistry_ExtractNil(t *testing.T) {
	_, err := Default().Extract(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
