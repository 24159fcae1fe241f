package chunker

import (
	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// Character defaults.
const (
	DefaultCharacterChunkSize = 1000
	DefaultCharacterOverlap   = 200
)

var _ driven.Chunker = (*Character)(nil)

// Character slides a window of chunkSize characters over the text,
// pulling each cut back to a natural boundary in the second half of the window.
type Character struct {
	cfg config
}

// NewCharacter creates a character chunker with the given options.
func NewCharacter(opts ...Option) *Character {
	return &Character{cfg: newConfig(config{
		chunkSize: DefaultCharacterChunkSize,
		overlap:   DefaultCharacterOverlap,
	}, opts)}
}

// Strategy returns the strategy name.
func (c *Character) Strategy() string {
	return domain.StrategyCharacter
}

// ChunkSize returns the window size in characters.
func (c *Character) ChunkSize() int { return c.cfg.chunkSize }

// Overlap returns the overlap in characters.
func (c *Character) Overlap() int { return c.cfg.overlap }

// ChunkText splits text into character windows.
func (c *Character) ChunkText(text string, ref domain.SourceRef, metadata map[string]any) ([]domain.Chunk, error) {
	text = Normalise(text)
	if text == "" {
		return nil, nil
	}
	return newChunks(c.split(text), ref, metadata), nil
}

// split cuts already-normalised text.
func (c *Character) split(text string) []string {
	runes := []rune(text)
	half := c.cfg.chunkSize / 2

	cut := func(start, end int) int {
		floor := start + half
		if p := lastIndex(runes, start, end, "\n\n"); p > floor {
			return p + 2
		}
		if p := lastIndex(runes, start, end, "\n"); p > floor {
			return p + 1
		}
		best := -1
		for _, punct := range []string{". ", "? ", "! "} {
			best = max(best, lastIndex(runes, start, end, punct))
		}
		if best > floor {
			return best + 2
		}
		if p := lastIndex(runes, start, end, " "); p > floor {
			return p + 1
		}
		return end
	}

	spans := slidingWindows(len(runes), c.cfg.chunkSize, c.cfg.overlap, cut)
	texts := make([]string, len(spans))
	for i, s := range spans {
		texts[i] = string(runes[s.start:s.end])
	}
	return texts
}

// lastIndex returns the start of the last occurrence of pattern wholly
// inside runes[start:end], or -1.
func lastIndex(runes []rune, start, end int, pattern string) int {
	p := []rune(pattern)
	for i := end - len(p); i >= start; i-- {
		match := true
		for j := range p {
			if runes[i+j] != p[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
