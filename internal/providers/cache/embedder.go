// Package cache memoizes query embeddings so repeated questions skip the backend.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mwiater/manara/internal/providers"
)

// Embedder wraps another Embedder with a bounded LRU keyed by input text.
type Embedder struct {
	next  providers.Embedder
	cache *lru.Cache[string, []float32]
}

// NewEmbedder wraps next. A non-positive size returns next unchanged.
func NewEmbedder(next providers.Embedder, size int) (providers.Embedder, error) {
	if size <= 0 {
		return next, nil
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &Embedder{next: next, cache: c}, nil
}

// Model reports the wrapped embedder's model.
func (e *Embedder) Model() string { return e.next.Model() }

// Wrapped returns the underlying embedder.
func (e *Embedder) Wrapped() providers.Embedder { return e.next }

// Embed serves cached vectors and forwards only the misses, preserving input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := e.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vectors, err := e.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embedding cache: backend returned %d vectors for %d inputs", len(vectors), len(missing))
	}
	for j, vec := range vectors {
		out[missingIdx[j]] = vec
		e.cache.Add(missing[j], vec)
	}
	return out, nil
}

// Len reports how many entries are cached.
func (e *Embedder) Len() int { return e.cache.Len() }
