package rag

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// PreviewResult describes one retrieval for diagnostics.
type PreviewResult struct {
	Query      string
	Candidates int
	Passages   []Passage
	Context    string
	Duration   time.Duration
}

// Preview runs retrieval for query without generating an answer.
func (s *Service) Preview(ctx context.Context, query string) (PreviewResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return PreviewResult{}, fmt.Errorf("query is required")
	}
	start := time.Now()
	r, err := s.retriever()
	if err != nil {
		return PreviewResult{}, err
	}
	candidates, err := r.Candidates(ctx, query, s.opts.K)
	if err != nil {
		return PreviewResult{}, err
	}
	passages, err := r.Rerank(ctx, query, append([]Passage(nil), candidates...), s.opts.TopN)
	if err != nil {
		return PreviewResult{}, err
	}
	return PreviewResult{
		Query:      query,
		Candidates: len(candidates),
		Passages:   passages,
		Context:    FormatContext(passages, s.opts.MaxPassageWords),
		Duration:   time.Since(start),
	}, nil
}

// WritePreview prints a PreviewResult for a terminal.
func WritePreview(w io.Writer, res PreviewResult) {
	label := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)

	label.Fprintf(w, "[RAG] query: ")
	fmt.Fprintln(w, res.Query)
	label.Fprintf(w, "[RAG] candidates: ")
	fmt.Fprintf(w, "%d, returned: %d, retrieval: %s\n", res.Candidates, len(res.Passages), res.Duration.Truncate(time.Millisecond))
	for i, p := range res.Passages {
		label.Fprintf(w, "[RAG] passage %d ", i+1)
		fmt.Fprintf(w, "score=%.4f similarity=%.4f source=%s\n", p.Score, p.Similarity, p.Source)
		dim.Fprintln(w, p.Text)
	}
	if res.Context != "" {
		label.Fprintln(w, "[RAG] context:")
		fmt.Fprintln(w, res.Context)
	}
}
