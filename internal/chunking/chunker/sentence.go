package chunker

import (
	"strings"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// Sentence defaults, counted in sentences.
const (
	DefaultSentenceChunkSize = 5
	DefaultSentenceOverlap   = 1
)

var _ driven.Chunker = (*Sentence)(nil)

// Sentence groups chunkSize consecutive sentences per chunk, repeating
// overlap sentences between neighbours.
type Sentence struct {
	cfg config
}

// NewSentence creates a sentence chunker with the given options.
func NewSentence(opts ...Option) *Sentence {
	return &Sentence{cfg: newConfig(config{
		chunkSize: DefaultSentenceChunkSize,
		overlap:   DefaultSentenceOverlap,
	}, opts)}
}

// Strategy returns the strategy name.
func (s *Sentence) Strategy() string {
	return domain.StrategySentence
}

// ChunkText splits text into overlapping sentence groups.
func (s *Sentence) ChunkText(text string, ref domain.SourceRef, metadata map[string]any) ([]domain.Chunk, error) {
	text = Normalise(text)
	if text == "" {
		return nil, nil
	}

	sentences := SplitSentences(text)
	if len(sentences) <= s.cfg.chunkSize {
		return newChunks([]string{text}, ref, metadata), nil
	}

	step := max(1, s.cfg.chunkSize-s.cfg.overlap)
	var texts []string
	for i := 0; i < len(sentences); i += step {
		end := min(i+s.cfg.chunkSize, len(sentences))
		texts = append(texts, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
	}

	return newChunks(texts, ref, metadata), nil
}
