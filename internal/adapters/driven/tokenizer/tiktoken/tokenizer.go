// Package tiktoken adapts pkoukk/tiktoken-go to the Tokenizer port.
package tiktoken

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/logger"
)

// FallbackEncoding is used when a model has no registered encoding.
const FallbackEncoding = "cl100k_base"

// Ensure Tokenizer implements the interface.
var _ driven.Tokenizer = (*Tokenizer)(nil)

// Tokenizer encodes text with a BPE encoding.
type Tokenizer struct {
	enc  *tiktoken.Tiktoken
	name string
}

// Loader loads and caches tokenizers by model name.
type Loader struct {
	mu    sync.Mutex
	cache map[string]*Tokenizer
}

// NewLoader creates an empty tokenizer loader.
func NewLoader() *Loader {
	return &Loader{cache: make(map[string]*Tokenizer)}
}

// ForModel returns the tokenizer of a model, falling back to cl100k_base
// for unknown models. Each encoding is loaded once per Loader.
func (l *Loader) ForModel(model string) (driven.Tokenizer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.cache[model]; ok {
		return t, nil
	}

	name := model
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		logger.Warn("no encoding for model %s, using %s", model, FallbackEncoding)
		name = FallbackEncoding
		enc, err = tiktoken.GetEncoding(FallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("loading %s encoding: %w", FallbackEncoding, err)
		}
	}

	t := &Tokenizer{enc: enc, name: name}
	l.cache[model] = t
	return t, nil
}

// Encode returns the token ids of text. Special tokens are encoded as text.
func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode returns the text of tokens.
func (t *Tokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Name returns the model or encoding name.
func (t *Tokenizer) Name() string {
	return t.name
}
