package chunker

import (
	"errors"
	"unicode/utf8"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// Token defaults.
const (
	DefaultTokenChunkSize = 500
	DefaultTokenOverlap   = 50
)

var _ driven.Chunker = (*Token)(nil)

// Token slides a window measured in model tokens and slices the original
// text at the character offsets of the window's tokens.
type Token struct {
	cfg       config
	tokenizer driven.Tokenizer
}

// NewToken creates a token chunker using tokenizer.
func NewToken(tokenizer driven.Tokenizer, opts ...Option) (*Token, error) {
	if tokenizer == nil {
		return nil, errors.New("token chunker requires a tokenizer")
	}
	return &Token{
		cfg: newConfig(config{
			chunkSize: DefaultTokenChunkSize,
			overlap:   DefaultTokenOverlap,
		}, opts),
		tokenizer: tokenizer,
	}, nil
}

// Strategy returns the strategy name.
func (t *Token) Strategy() string {
	return domain.StrategyToken
}

// ChunkText splits text into token windows.
func (t *Token) ChunkText(text string, ref domain.SourceRef, metadata map[string]any) ([]domain.Chunk, error) {
	text = Normalise(text)
	if text == "" {
		return nil, nil
	}

	tokens := t.tokenizer.Encode(text)
	if len(tokens) <= t.cfg.chunkSize {
		return newChunks([]string{text}, ref, metadata), nil
	}

	offsets, exact := t.byteOffsets(text, tokens)
	spans := slidingWindows(len(tokens), t.cfg.chunkSize, t.cfg.overlap, nil)

	texts := make([]string, len(spans))
	for i, s := range spans {
		if !exact {
			texts[i] = t.tokenizer.Decode(tokens[s.start:s.end])
			continue
		}
		start := runeFloor(text, offsets[s.start])
		end := runeCeil(text, offsets[s.end])
		texts[i] = text[start:end]
	}

	return newChunks(texts, ref, metadata), nil
}

// byteOffsets maps token positions to byte offsets in text.
// offsets[i] is where token i starts; offsets[len(tokens)] is len(text).
// exact is false when the decoded tokens do not reproduce text.
func (t *Token) byteOffsets(text string, tokens []int) ([]int, bool) {
	offsets := make([]int, len(tokens)+1)
	for i, tok := range tokens {
		offsets[i+1] = offsets[i] + len(t.tokenizer.Decode([]int{tok}))
	}
	return offsets, offsets[len(tokens)] == len(text)
}

// runeFloor moves a byte offset back to the start of the rune containing it.
func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil moves a byte offset forward to the next rune boundary.
func runeCeil(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
