package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"

	charmlog "github.com/charmbracelet/log"
	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/providers"
)

// Retriever runs vector search over an Index and reranks the candidates.
type Retriever struct {
	index    *Index
	embedder providers.Embedder
	reranker providers.Reranker
	log      *charmlog.Logger
}

// NewRetriever returns a Retriever. A nil reranker keeps similarity order.
func NewRetriever(index *Index, embedder providers.Embedder, reranker providers.Reranker, logger *charmlog.Logger) *Retriever {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Retriever{index: index, embedder: embedder, reranker: reranker, log: logger}
}

// Candidates embeds the query and returns up to k passages by similarity,
// without the padding rows the index search returns for small indexes.
func (r *Retriever) Candidates(ctx context.Context, query string, k int) ([]Passage, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, stageErr(StageEmbed, err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, stageErr(StageEmbed, errors.New("no vector returned for query"))
	}
	hits, err := r.index.Search(Normalize(vectors[0]), k)
	if err != nil {
		return nil, stageErr(StageSearch, err)
	}

	passages := make([]Passage, 0, len(hits))
	for _, h := range hits {
		if h.ID < 0 || h.ID >= r.index.Len() {
			continue
		}
		c := r.index.Chunk(h.ID)
		passages = append(passages, Passage{Text: c.Text, Source: c.Source, Score: h.Score, Similarity: h.Score})
	}
	return passages, nil
}

// Retrieve returns at most topN passages for query, ordered by descending
// rerank score. An empty result with a nil error means nothing matched.
func (r *Retriever) Retrieve(ctx context.Context, query string, k, topN int) ([]Passage, error) {
	passages, err := r.Candidates(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, nil
	}
	candidates := len(passages)
	passages, err = r.Rerank(ctx, query, passages, topN)
	if err != nil {
		return nil, err
	}
	r.log.Debug("retrieved passages", "candidates", candidates, "returned", len(passages))
	return passages, nil
}

// Rerank replaces each passage's Score with the reranker's score, sorts by it
// (stable, so equal scores keep similarity order) and keeps the first topN.
// passages is reordered in place.
func (r *Retriever) Rerank(ctx context.Context, query string, passages []Passage, topN int) ([]Passage, error) {
	if r.reranker != nil && len(passages) > 0 {
		texts := make([]string, len(passages))
		for i, p := range passages {
			texts[i] = p.Text
		}
		scores, err := r.reranker.Rerank(ctx, query, texts)
		if err != nil {
			return nil, stageErr(StageRerank, err)
		}
		if len(scores) != len(passages) {
			return nil, stageErr(StageRerank, fmt.Errorf("got %d scores for %d passages", len(scores), len(passages)))
		}
		for i := range passages {
			passages[i].Score = scores[i]
		}
		sort.SliceStable(passages, func(a, b int) bool { return passages[a].Score > passages[b].Score })
	}
	if topN > 0 && len(passages) > topN {
		passages = passages[:topN]
	}
	return passages, nil
}
