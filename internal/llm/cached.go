package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulyokota/feedforward/internal/cache"
	"github.com/paulyokota/feedforward/internal/worker"
)

const embedCacheTTL = 30 * 24 * time.Hour

// CachedEmbedder wraps an Embedder with a vector cache and a provider
// rate limit. Only cache misses reach the underlying API, and the batch
// sent upstream contains only the missing texts.
type CachedEmbedder struct {
	inner   Embedder
	cache   cache.Cache
	limiter *worker.Limiter
	model   string
}

// NewCachedEmbedder wraps inner. Either cache or limiter may be nil to
// disable that layer.
func NewCachedEmbedder(inner Embedder, c cache.Cache, limiter *worker.Limiter, embeddingModel string) *CachedEmbedder {
	return &CachedEmbedder{
		inner:   inner,
		cache:   c,
		limiter: limiter,
		model:   embeddingModel,
	}
}

// Name returns the underlying provider name.
func (e *CachedEmbedder) Name() string {
	return e.inner.Name()
}

// Embed returns one vector per text, serving cached vectors where
// possible.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float64, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if vec, ok := e.lookup(text); ok {
			vectors[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, e.inner.Name()); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	fetched, err := e.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(fetched))
	}

	for j, vec := range fetched {
		vectors[missingIdx[j]] = vec
		e.store(missing[j], vec)
	}
	return vectors, nil
}

func (e *CachedEmbedder) lookup(text string) ([]float64, bool) {
	if e.cache == nil {
		return nil, false
	}
	data, ok := e.cache.Get(cache.Key(e.model, text))
	if !ok {
		return nil, false
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (e *CachedEmbedder) store(text string, vec []float64) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	// Cache write failures are not fatal; the vector was computed.
	_ = e.cache.Set(cache.Key(e.model, text), data, embedCacheTTL)
}
