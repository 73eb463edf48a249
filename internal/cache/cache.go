package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores computed embedding vectors so repeated pipeline runs do
// not re-embed unchanged text.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from the embedded text and the model that
// produced the vector. Vectors from different models are never
// interchangeable.
func Key(embeddingModel, text string) string {
	hash := sha256.Sum256([]byte(embeddingModel + "\x00" + text))
	return "feedforward:v1:" + hex.EncodeToString(hash[:])
}
