package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// EmbeddingCacheKey derives the cache key of text embedded by model.
// The text and model digests are hashed together so identical text under
// different models never shares a key.
func EmbeddingCacheKey(text, model string) string {
	textSum := sha256.Sum256([]byte(text))
	modelSum := sha256.Sum256([]byte(model))

	h := sha256.New()
	h.Write(textSum[:])
	h.Write(modelSum[:])
	return hex.EncodeToString(h.Sum(nil))
}
