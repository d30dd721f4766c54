// internal/metrics/provider.go
package metrics

import (
	"context"
	"time"

	"github.com/mwiater/manara/internal/providers"
	"github.com/mwiater/manara/internal/rag"
)

// Embedder is a decorator that times calls to a wrapped Embedder.
type Embedder struct {
	wrapped    providers.Embedder
	aggregator *Aggregator
}

// NewEmbedder wraps e so every call is recorded under the embed stage.
func NewEmbedder(e providers.Embedder, a *Aggregator) *Embedder {
	return &Embedder{wrapped: e, aggregator: a}
}

// Model passes through to the wrapped embedder.
func (e *Embedder) Model() string { return e.wrapped.Model() }

// Embed intercepts the call to record its latency and outcome.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	out, err := e.wrapped.Embed(ctx, texts)
	e.aggregator.observe(rag.StageEmbed, start, err)
	return out, err
}

// Reranker is a decorator that times calls to a wrapped Reranker.
type Reranker struct {
	wrapped    providers.Reranker
	aggregator *Aggregator
}

// NewReranker wraps r so every call is recorded under the rerank stage.
func NewReranker(r providers.Reranker, a *Aggregator) *Reranker {
	return &Reranker{wrapped: r, aggregator: a}
}

// Name passes through to the wrapped reranker.
func (r *Reranker) Name() string { return r.wrapped.Name() }

// Rerank intercepts the call to record its latency and outcome.
func (r *Reranker) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	start := time.Now()
	out, err := r.wrapped.Rerank(ctx, query, passages)
	r.aggregator.observe(rag.StageRerank, start, err)
	return out, err
}

// Generator is a decorator that times calls to a wrapped Generator.
type Generator struct {
	wrapped    providers.Generator
	aggregator *Aggregator
}

// NewGenerator wraps g so every call is recorded under the generate stage.
func NewGenerator(g providers.Generator, a *Aggregator) *Generator {
	return &Generator{wrapped: g, aggregator: a}
}

// Name passes through to the wrapped generator.
func (g *Generator) Name() string { return g.wrapped.Name() }

// Generate intercepts the call to record its latency and outcome.
func (g *Generator) Generate(ctx context.Context, req providers.GenerateRequest) (string, error) {
	start := time.Now()
	out, err := g.wrapped.Generate(ctx, req)
	g.aggregator.observe(rag.StageGenerate, start, err)
	return out, err
}
