package rag

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/mwiater/manara/internal/providers"
)

// bagEmbedder hashes lowercase word tokens into a fixed number of buckets.
type bagEmbedder struct {
	mu      sync.Mutex
	dim     int
	model   string
	err     error
	batches []int
}

func newBagEmbedder() *bagEmbedder { return &bagEmbedder{dim: 512, model: "bag-512"} }

func (b *bagEmbedder) Model() string { return b.model }

func (b *bagEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	b.mu.Lock()
	b.batches = append(b.batches, len(texts))
	b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, b.dim)
		for _, tok := range tokens(text) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(tok))
			v[h.Sum32()%uint32(b.dim)] += 1
		}
		out[i] = v
	}
	return out, nil
}

func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// scriptedReranker returns fixed scores keyed by passage text.
type scriptedReranker struct {
	scores map[string]float64
	err    error
	calls  int
}

func (s *scriptedReranker) Name() string { return "scripted" }

func (s *scriptedReranker) Rerank(_ context.Context, _ string, passages []string) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(passages))
	for i, p := range passages {
		out[i] = s.scores[p]
	}
	return out, nil
}

// scriptedGenerator records requests and replies with a fixed text.
type scriptedGenerator struct {
	mu       sync.Mutex
	reply    string
	err      error
	block    bool
	requests []providers.GenerateRequest
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Generate(ctx context.Context, req providers.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// buildTestIndex embeds chunks with e and assembles an in-memory index.
func buildTestIndex(e providers.Embedder, chunks ...Chunk) *Index {
	texts := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		sources[i] = c.Source
	}
	vectors, err := e.Embed(context.Background(), texts)
	if err != nil {
		panic(err)
	}
	for i := range vectors {
		vectors[i] = Normalize(vectors[i])
	}
	idx, err := NewIndex(e.Model(), vectors, texts, sources)
	if err != nil {
		panic(err)
	}
	return idx
}
