// Package chunker provides the text chunking strategies: character, token,
// paragraph and sentence.
package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)
	spaceAroundLF   = regexp.MustCompile(` ?\n ?`)
	blankLineRuns   = regexp.MustCompile(`\n{3,}`)
	paragraphBreak  = regexp.MustCompile(`\n\s*\n`)
)

// Normalise collapses runs of spaces and blank lines and trims the text.
// A single blank line is kept so paragraph boundaries survive.
func Normalise(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = spaceAroundLF.ReplaceAllString(text, "\n")
	text = blankLineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// SplitParagraphs splits normalised text on blank lines and drops empty parts.
func SplitParagraphs(text string) []string {
	parts := paragraphBreak.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// SplitSentences splits text after runs of '.', '!' or '?' that are followed
// by whitespace or the end of the text. Closing quotes and brackets stay with
// their sentence. Paragraph breaks also end a sentence.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	emit := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '.' || r == '!' || r == '?':
			j := i + 1
			for j < len(runes) && isTerminal(runes[j]) {
				j++
			}
			if j == len(runes) || unicode.IsSpace(runes[j]) {
				emit(j)
				i = j - 1
			}
		case r == '\n' && i+1 < len(runes) && runes[i+1] == '\n':
			emit(i)
		}
	}
	emit(len(runes))

	return sentences
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

// span is a half-open window [start, end) over runes or tokens.
type span struct {
	start, end int
}

// minProgress is the smallest step a window may advance.
func minProgress(size int) int {
	return max(1, size/10)
}

// slidingWindows covers n units with windows of size units overlapping by
// overlap units. cut may pull a window end back; it receives the window and
// returns the new end. Successive starts advance by at least minProgress(size)
// and the last window ends at n.
func slidingWindows(n, size, overlap int, cut func(start, end int) int) []span {
	if n == 0 {
		return nil
	}
	if n <= size {
		return []span{{0, n}}
	}

	step := minProgress(size)
	spans := make([]span, 0, n/max(1, size-overlap)+1)

	for start := 0; start < n; {
		end := min(start+size, n)
		if end < n && cut != nil {
			end = cut(start, end)
		}
		spans = append(spans, span{start, end})
		if end >= n {
			break
		}

		next := end - overlap
		if next < start+step {
			next = start + step
		}
		start = min(next, n)
	}

	return spans
}

// newChunks tags texts with their source and contiguous indices, skipping blanks.
func newChunks(texts []string, ref domain.SourceRef, metadata map[string]any) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Text:       t,
			Index:      len(chunks),
			SourceID:   ref.ID,
			SourceType: ref.Type,
			Metadata:   copyMetadata(metadata),
		})
	}
	return chunks
}

// copyMetadata creates a shallow copy of metadata.
func copyMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
