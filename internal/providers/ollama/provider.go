// internal/providers/ollama/provider.go
// Package ollama provides an Embedder and Generator backed by Ollama-compatible HTTP endpoints.
package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/providers"
)

// Provider implements providers.Embedder and providers.Generator using the Ollama HTTP API.
type Provider struct {
	client     *resty.Client
	host       string
	embedModel string
	retries    uint64
}

// Options configures a Provider.
type Options struct {
	Host           string
	EmbeddingModel string
	Timeout        time.Duration
	Retries        uint64
}

// New constructs a Provider for one Ollama host.
func New(opts Options) *Provider {
	host := strings.TrimRight(strings.TrimSpace(opts.Host), "/")
	if host == "" {
		host = "http://localhost:11434"
	}
	client := resty.New().
		SetBaseURL(host).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	return &Provider{client: client, host: host, embedModel: opts.EmbeddingModel, retries: opts.Retries}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type chatRequest struct {
	Model    string                  `json:"model"`
	Messages []providers.ChatMessage `json:"messages"`
	Stream   bool                    `json:"stream"`
	Options  map[string]any          `json:"options,omitempty"`
}

type chatResponse struct {
	Model   string                `json:"model"`
	Message providers.ChatMessage `json:"message"`
	Done    bool                  `json:"done"`
	Error   string                `json:"error,omitempty"`
}

// Name identifies the backend in logs and metrics.
func (p *Provider) Name() string { return "ollama" }

// Model returns the embedding model id.
func (p *Provider) Model() string { return p.embedModel }

// Embed calls /api/embed with the whole batch.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	payload := embedRequest{Model: p.embedModel, Input: texts}
	var out embedResponse
	if err := p.post(ctx, "/api/embed", p.embedModel, payload, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: /api/embed returned %d vectors for %d inputs", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

// Generate calls /api/chat without streaming.
func (p *Provider) Generate(ctx context.Context, req providers.GenerateRequest) (string, error) {
	messages := make([]providers.ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, providers.ChatMessage{Role: providers.RoleSystem, Content: req.System})
	}
	messages = append(messages, req.Messages...)

	payload := chatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   false,
		Options:  buildOptions(req),
	}
	var out chatResponse
	if err := p.post(ctx, "/api/chat", req.Model, payload, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Message.Content) == "" {
		return "", providers.ErrEmptyResponse
	}
	return out.Message.Content, nil
}

func buildOptions(req providers.GenerateRequest) map[string]any {
	opts := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	return opts
}

func (p *Provider) post(ctx context.Context, path, model string, payload, result any) error {
	logging.LogRequest("MANARA->LLM", p.host, model, "", payload)
	return providers.WithRetry(ctx, p.retries, func(ctx context.Context) error {
		resp, err := p.client.R().
			SetContext(ctx).
			SetBody(payload).
			SetResult(result).
			Post(path)
		if err != nil {
			return err
		}
		logging.LogRequest("LLM->MANARA", p.host, model, "", resp.Body())
		if resp.IsError() {
			err := fmt.Errorf("ollama: %s returned %s: %s", path, resp.Status(), strings.TrimSpace(resp.String()))
			if providers.TransientStatus(resp.StatusCode()) {
				return providers.Transient(err)
			}
			return err
		}
		return nil
	})
}
