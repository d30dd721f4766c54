// Package rerank provides cross-encoder relevance scoring for retrieval candidates.
package rerank

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/providers"
)

// TEI scores (query, passage) pairs with a cross-encoder served over the
// text-embeddings-inference /rerank protocol.
type TEI struct {
	client  *resty.Client
	url     string
	model   string
	retries uint64
}

// TEIOptions configures a TEI reranker.
type TEIOptions struct {
	URL     string
	Model   string
	APIKey  string
	Timeout time.Duration
	Retries uint64
}

type teiRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	Truncate  bool     `json:"truncate"`
	RawScores bool     `json:"raw_scores"`
	Model     string   `json:"model,omitempty"`
}

type teiScore struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// NewTEI constructs a TEI reranker.
func NewTEI(opts TEIOptions) *TEI {
	url := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	client := resty.New().
		SetBaseURL(url).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if key := strings.TrimSpace(opts.APIKey); key != "" {
		client.SetAuthToken(key)
	}
	return &TEI{client: client, url: url, model: opts.Model, retries: opts.Retries}
}

// Name identifies the backend in logs and metrics.
func (r *TEI) Name() string { return "tei" }

// Rerank returns one score per passage in input order.
func (r *TEI) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	payload := teiRequest{Query: query, Texts: passages, Truncate: true, Model: r.model}
	logging.LogRequest("MANARA->RERANK", r.url, r.model, "", map[string]any{"query": query, "passages": len(passages)})

	var ranked []teiScore
	err := providers.WithRetry(ctx, r.retries, func(ctx context.Context) error {
		ranked = nil
		resp, err := r.client.R().
			SetContext(ctx).
			SetBody(payload).
			SetResult(&ranked).
			Post("/rerank")
		if err != nil {
			return err
		}
		if resp.IsError() {
			err := fmt.Errorf("rerank: /rerank returned %s: %s", resp.Status(), strings.TrimSpace(resp.String()))
			if providers.TransientStatus(resp.StatusCode()) {
				return providers.Transient(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.LogRequest("RERANK->MANARA", r.url, r.model, "", ranked)

	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, s := range ranked {
		if s.Index < 0 || s.Index >= len(passages) {
			return nil, fmt.Errorf("rerank: score index %d out of range for %d passages", s.Index, len(passages))
		}
		scores[s.Index] = s.Score
		seen[s.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank: no score returned for passage %d", i)
		}
	}
	return scores, nil
}
