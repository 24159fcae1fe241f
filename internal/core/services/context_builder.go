package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

// charsPerToken approximates the context budget in characters.
const charsPerToken = 4

// ContextBuilder assembles ranked results into a labelled context string.
type ContextBuilder struct {
	maxChars int
}

// NewContextBuilder creates a builder capped at maxTokens * 4 characters.
func NewContextBuilder(maxTokens int) *ContextBuilder {
	if maxTokens <= 0 {
		maxTokens = domain.DefaultContextMaxTokens
	}
	return &ContextBuilder{maxChars: maxTokens * charsPerToken}
}

// MaxChars returns the character budget.
func (b *ContextBuilder) MaxChars() int {
	return b.maxChars
}

// Build emits one block per result in rank order and a source record for
// each. Text over the budget is cut and suffixed with "...".
func (b *ContextBuilder) Build(results []domain.SearchResult, _ string) (string, []domain.ContextSource) {
	if len(results) == 0 {
		return "", []domain.ContextSource{}
	}

	blocks := make([]string, 0, len(results))
	sources := make([]domain.ContextSource, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("[Content from %s %s, relevance: %.2f]\n%s",
			r.Chunk.SourceType, r.Chunk.SourceID, r.Score, r.Chunk.Text))
		sources = append(sources, domain.ContextSource{
			SourceType: r.Chunk.SourceType,
			SourceID:   r.Chunk.SourceID,
			ChunkIndex: r.Chunk.Index,
			Score:      r.Score,
		})
	}

	text := strings.Join(blocks, "\n\n")
	if runes := []rune(text); len(runes) > b.maxChars {
		text = string(runes[:b.maxChars]) + "..."
	}
	return text, sources
}
