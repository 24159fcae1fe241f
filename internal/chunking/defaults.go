package chunking

import (
	"fmt"

	"github.com/custodia-labs/ragengine/internal/chunking/chunker"
	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// DefaultTokenModel selects the token strategy's encoding when none is configured.
const DefaultTokenModel = "gpt-3.5-turbo"

// TokenizerLoader returns the tokenizer for a model name.
type TokenizerLoader func(model string) (driven.Tokenizer, error)

// RegisterDefaults registers the four built-in strategies with the registry.
// The token strategy is only usable when loadTokenizer is non-nil.
func RegisterDefaults(r *Registry, loadTokenizer TokenizerLoader) {
	r.Register(domain.StrategyCharacter, buildCharacter)
	r.Register(domain.StrategyParagraph, buildParagraph)
	r.Register(domain.StrategySentence, buildSentence)
	r.Register(domain.StrategyToken, func(cfg map[string]any) (driven.Chunker, error) {
		return buildToken(cfg, loadTokenizer)
	})
}

// New builds the chunker described by settings using the default strategies.
func New(settings domain.ChunkingSettings, loadTokenizer TokenizerLoader) (driven.Chunker, error) {
	r := NewRegistry()
	RegisterDefaults(r, loadTokenizer)
	return r.Build(settings.Strategy, settings.Options)
}

// buildCharacter creates a character chunker from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 1000)
//   - chunk_overlap (int): Overlapping characters between chunks (default: 200)
func buildCharacter(cfg map[string]any) (driven.Chunker, error) {
	return chunker.NewCharacter(windowOptions(cfg)...), nil
}

// buildParagraph creates a paragraph chunker from generic config.
// Supported config keys:
//   - chunk_size (int): Maximum characters per chunk (default: 1000)
//   - chunk_overlap (int): Overlap used when falling back to character windows (default: 0)
//   - min_paragraph_length (int): Length at which a paragraph starts a new chunk (default: 50)
//   - max_paragraphs_per_chunk (int): Paragraph cap per chunk (default: 5)
func buildParagraph(cfg map[string]any) (driven.Chunker, error) {
	opts := windowOptions(cfg)
	if v, ok := getIntFromConfig(cfg, "min_paragraph_length"); ok {
		opts = append(opts, chunker.WithMinParagraphLength(v))
	}
	if v, ok := getIntFromConfig(cfg, "max_paragraphs_per_chunk"); ok {
		opts = append(opts, chunker.WithMaxParagraphsPerChunk(v))
	}
	return chunker.NewParagraph(opts...), nil
}

// buildSentence creates a sentence chunker from generic config.
// Supported config keys:
//   - chunk_size (int): Sentences per chunk (default: 5)
//   - chunk_overlap (int): Sentences repeated between chunks (default: 1)
func buildSentence(cfg map[string]any) (driven.Chunker, error) {
	return chunker.NewSentence(windowOptions(cfg)...), nil
}

// buildToken creates a token chunker from generic config.
// Supported config keys:
//   - chunk_size (int): Tokens per chunk (default: 500)
//   - chunk_overlap (int): Overlapping tokens between chunks (default: 50)
//   - model (string): Model whose encoding is used (default: gpt-3.5-turbo)
func buildToken(cfg map[string]any, loadTokenizer TokenizerLoader) (driven.Chunker, error) {
	if loadTokenizer == nil {
		return nil, fmt.Errorf("%w: token strategy has no tokenizer", domain.ErrInvalidInput)
	}

	model := DefaultTokenModel
	if m, ok := cfg["model"].(string); ok && m != "" {
		model = m
	}

	tok, err := loadTokenizer(model)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer for %s: %w", model, err)
	}

	return chunker.NewToken(tok, windowOptions(cfg)...)
}

// windowOptions reads chunk_size and chunk_overlap. "overlap" is accepted
// as an alias of chunk_overlap.
func windowOptions(cfg map[string]any) []chunker.Option {
	var opts []chunker.Option
	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok && size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "chunk_overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	} else if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}
	return opts
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON/YAML parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
