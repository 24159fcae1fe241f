package chunker

import (
	"strings"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// Paragraph defaults.
const (
	DefaultParagraphChunkSize    = 1000
	DefaultParagraphOverlap      = 0
	DefaultMinParagraphLength    = 50
	DefaultMaxParagraphsPerChunk = 5
	paragraphSeparator           = "\n\n"
)

var _ driven.Chunker = (*Paragraph)(nil)

// Paragraph groups blank-line separated paragraphs into chunks of at most
// chunkSize characters and maxParagraphsPerChunk paragraphs.
// A paragraph of at least minParagraphLength characters starts a new chunk.
type Paragraph struct {
	cfg       config
	character *Character
}

// NewParagraph creates a paragraph chunker with the given options.
func NewParagraph(opts ...Option) *Paragraph {
	cfg := newConfig(config{
		chunkSize:             DefaultParagraphChunkSize,
		overlap:               DefaultParagraphOverlap,
		minParagraphLength:    DefaultMinParagraphLength,
		maxParagraphsPerChunk: DefaultMaxParagraphsPerChunk,
	}, opts)

	return &Paragraph{
		cfg:       cfg,
		character: NewCharacter(WithChunkSize(cfg.chunkSize), WithOverlap(cfg.overlap)),
	}
}

// Strategy returns the strategy name.
func (p *Paragraph) Strategy() string {
	return domain.StrategyParagraph
}

// ChunkText splits text into paragraph groups.
// Text with a single paragraph is split by the character strategy.
func (p *Paragraph) ChunkText(text string, ref domain.SourceRef, metadata map[string]any) ([]domain.Chunk, error) {
	text = Normalise(text)
	if text == "" {
		return nil, nil
	}
	if runeLen(text) <= p.cfg.chunkSize {
		return newChunks([]string{text}, ref, metadata), nil
	}

	paragraphs := SplitParagraphs(text)
	if len(paragraphs) <= 1 {
		return newChunks(p.character.split(text), ref, metadata), nil
	}

	var (
		texts   []string
		current []string
		length  int
	)

	flush := func() {
		if len(current) > 0 {
			texts = append(texts, strings.Join(current, paragraphSeparator))
			current = nil
			length = 0
		}
	}

	for _, para := range paragraphs {
		n := runeLen(para)

		// Oversized paragraphs are windowed on their own.
		if n > p.cfg.chunkSize {
			flush()
			texts = append(texts, p.character.split(para)...)
			continue
		}

		if length+n > p.cfg.chunkSize ||
			len(current) >= p.cfg.maxParagraphsPerChunk ||
			(n >= p.cfg.minParagraphLength && length > 0) {
			flush()
		}

		current = append(current, para)
		length += n

		if length >= p.cfg.chunkSize || len(current) >= p.cfg.maxParagraphsPerChunk {
			flush()
		}
	}
	flush()

	return newChunks(texts, ref, metadata), nil
}
