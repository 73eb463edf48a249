package llm

import (
	"context"
	"testing"
	"time"

	"github.com/paulyokota/feedforward/internal/cache"
)

type countingEmbedder struct {
	calls int
	texts []string
}

func (c *countingEmbedder) Name() string { return "fake" }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	c.calls++
	c.texts = append(c.texts, texts...)
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = []float64{float64(len(text)), 1.0}
	}
	return vectors, nil
}

func TestCachedEmbedderServesRepeatsFromCache(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, cache.NewMemoryCache(time.Hour, time.Hour), nil, "text-embedding-3-small")

	first, err := cached.Embed(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("first embed: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls after first batch = %d, want 1", inner.calls)
	}

	second, err := cached.Embed(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("second embed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls after cached batch = %d, want 1", inner.calls)
	}
	for i := range first {
		if len(second[i]) != len(first[i]) || second[i][0] != first[i][0] {
			t.Errorf("vector %d changed between runs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestCachedEmbedderOnlyFetchesMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, cache.NewMemoryCache(time.Hour, time.Hour), nil, "text-embedding-3-small")

	if _, err := cached.Embed(context.Background(), []string{"alpha"}); err != nil {
		t.Fatalf("warm embed: %v", err)
	}

	inner.texts = nil
	vectors, err := cached.Embed(context.Background(), []string{"alpha", "gamma"})
	if err != nil {
		t.Fatalf("mixed embed: %v", err)
	}
	if len(vectors) != 2 || vectors[0] == nil || vectors[1] == nil {
		t.Fatalf("vectors = %v, want 2 non-nil entries", vectors)
	}
	if len(inner.texts) != 1 || inner.texts[0] != "gamma" {
		t.Errorf("upstream batch = %v, want only the miss", inner.texts)
	}
}

func TestCachedEmbedderDistinguishesModels(t *testing.T) {
	store := cache.NewMemoryCache(time.Hour, time.Hour)
	small := NewCachedEmbedder(&countingEmbedder{}, store, nil, "text-embedding-3-small")
	large := &countingEmbedder{}
	largeCached := NewCachedEmbedder(large, store, nil, "text-embedding-3-large")

	if _, err := small.Embed(context.Background(), []string{"alpha"}); err != nil {
		t.Fatalf("small embed: %v", err)
	}
	if _, err := largeCached.Embed(context.Background(), []string{"alpha"}); err != nil {
		t.Fatalf("large embed: %v", err)
	}
	if large.calls != 1 {
		t.Errorf("large model served from small model's cache entry")
	}
}
