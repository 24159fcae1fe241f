// Package html extracts readable text from HTML files.
package html

import (
	"bytes"
	"context"
	"html"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/extractors/plaintext"
	"github.com/custodia-labs/ragengine/internal/logger"
)

var log = logger.For("html-extractor")

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles HTML files.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedExtensions returns the file extensions this extractor handles.
func (e *Extractor) SupportedExtensions() []string {
	return []string{".html", ".htm"}
}

// Extract strips markup from the page. Readability supplies byline and
// site name, and the title when the page has no <title>.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawFile) (*domain.ExtractedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := string(raw.Content)
	meta := map[string]any{
		"mime_type": "text/html",
		"format":    "html",
	}

	title, _ := raw.Metadata["title"].(string)
	if title == "" {
		title = titleElement(content)
	}

	pageURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(raw.Path)}
	article, err := readability.FromReader(bytes.NewReader(raw.Content), pageURL)
	if err != nil {
		log.Debug("readability failed for %s: %v", raw.Path, err)
	} else {
		if title == "" {
			title = strings.TrimSpace(article.Title)
		}
		if byline := strings.TrimSpace(article.Byline); byline != "" {
			meta["byline"] = byline
		}
		if site := strings.TrimSpace(article.SiteName); site != "" {
			meta["site_name"] = site
		}
	}

	if title == "" {
		title = plaintext.TitleFromPath(raw.Path)
	}

	return &domain.ExtractedText{
		Title:    title,
		Text:     stripHTML(content),
		Metadata: meta,
	}, nil
}

var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	droppedElements   = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg)[^>]*>.*?</(script|style|noscript|head|svg)>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	closeBlockElement = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElement  = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)(\s[^>]*)?>`)
	breakTags         = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
)

// titleElement returns the decoded <title> text, or "" when absent.
func titleElement(content string) string {
	if m := titleTag.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimSpace(html.UnescapeString(m[1]))
	}
	return ""
}

// stripHTML removes markup and returns one line per block, with a blank
// line between paragraphs.
func stripHTML(content string) string {
	content = droppedElements.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	content = openBlockElement.ReplaceAllString(content, "\n\n")
	content = closeBlockElement.ReplaceAllString(content, "\n\n")
	content = breakTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	var (
		out   []string
		blank bool
	)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
