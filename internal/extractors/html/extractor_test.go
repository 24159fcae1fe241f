package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

const page = `<!DOCTYPE html>
<html>
<head>
  <title>Release Notes</title>
  <style>body { color: red; }</style>
</head>
<body>
  <script>alert("x")</script>
  <h1>Version 2</h1>
  <p>Faster indexing &amp; smaller caches.</p>
  <!-- hidden -->
  <ul><li>First</li><li>Second</li></ul>
  <p>Line one<br/>Line two</p>
</body>
</html>`

func TestExtractor_Extract(t *testing.T) {
	out, err := New().Extract(context.Background(), &domain.RawFile{
		Path:    "/docs/notes.html",
		Content: []byte(page),
	})
	require.NoError(t, err)

	assert.Equal(t, "Release Notes", out.Title)
	assert.Equal(t, "html", out.Metadata["format"])
	assert.Contains(t, out.Text, "Faster indexing & smaller caches.")
	assert.Contains(t, out.Text, "Line one\nLine two")
	assert.NotContains(t, out.Text, "alert")
	assert.NotContains(t, out.Text, "color: red")
	assert.NotContains(t, out.Text, "hidden")
	assert.NotContains(t, out.Text, "<")
}

func TestExtractor_MetadataTitleWins(t *testing.T) {
	out, err := New().Extract(context.Background(), &domain.RawFile{
		Path:     "a.html",
		Content:  []byte(page),
		Metadata: map[string]any{"title": "Given"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Given", out.Title)
}

func TestTitleElement(t *testing.T) {
	assert.Equal(t, "A & B", titleElement("<title> A &amp; B </title>"))
	assert.Equal(t, "", titleElement("<p>no title</p>"))
}

func TestExtractor_TitleFromPath(t *testing.T) {
	out, err := New().Extract(context.Background(), &domain.RawFile{
		Path:    "/d/install_guide.htm",
		Content: []byte("plain words"),
	})
	require.NoError(t, err)
	assert.Equal(t, "install guide", out.Title)
	assert.Equal(t, "plain words", out.Text)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"paragraphs separated", "<p>one</p><p>two</p>", "one\n\ntwo"},
		{"inline tags removed", "<p>a <b>bold</b> <a href=\"#\">link</a></p>", "a bold link"},
		{"entities decoded", "<div>&lt;tag&gt;</div>", "<tag>"},
		{"whitespace collapsed", "<p>a    \t b</p>", "a b"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripHTML(tt.input))
		})
	}
}

func TestExtractor_NilInput(t *testing.T) {
	_, err := New().Extract(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
