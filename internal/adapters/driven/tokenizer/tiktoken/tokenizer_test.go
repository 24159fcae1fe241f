package tiktoken

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadOrSkip skips when the BPE ranks cannot be fetched, as in offline CI.
func loadOrSkip(t *testing.T, l *Loader, model string) *Tokenizer {
	t.Helper()
	tok, err := l.ForModel(model)
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}
	return tok.(*Tokenizer)
}

func TestLoader_RoundTrip(t *testing.T) {
	tok := loadOrSkip(t, NewLoader(), "gpt-3.5-turbo")

	text := "Chunking splits text into pieces."
	tokens := tok.Encode(text)
	require.NotEmpty(t, tokens)
	assert.Less(t, len(tokens), len(text))
	assert.Equal(t, text, tok.Decode(tokens))
	assert.Equal(t, "gpt-3.5-turbo", tok.Name())
}

func TestLoader_CachesByModel(t *testing.T) {
	l := NewLoader()
	first := loadOrSkip(t, l, "gpt-4")
	second := loadOrSkip(t, l, "gpt-4")
	assert.Same(t, first, second)
}

func TestLoader_UnknownModelFallsBack(t *testing.T) {
	tok := loadOrSkip(t, NewLoader(), "not-a-model")
	assert.Equal(t, FallbackEncoding, tok.Name())
}
