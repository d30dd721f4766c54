// internal/providers/provider.go

// Package providers defines the narrow interfaces the retrieval pipeline uses
// to reach its model backends: text to vector, (query, passage) to relevance,
// and messages to generated text. Concrete backends live in sub-packages.
package providers

import (
	"context"
	"errors"
)

// Chat roles understood by every Generator.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a backend answers without content.
var ErrEmptyResponse = errors.New("backend returned an empty response")

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest carries everything a Generator needs for one completion.
type GenerateRequest struct {
	System      string
	Messages    []ChatMessage
	Model       string
	Temperature float64
	MaxTokens   int
}

// Embedder converts text into embedding vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the embedding space. Vectors from different models are not comparable.
	Model() string
}

// Reranker scores each passage against the query. The returned slice has one
// score per passage in input order; higher means more relevant.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
	Name() string
}

// Generator produces a single complete answer for a request.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Name() string
}
