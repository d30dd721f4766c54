// Package openai implements the Embedder and Generator interfaces on top of the
// OpenAI API (or any server speaking the same protocol via BaseURL).
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/providers"
	goopenai "github.com/sashabaranov/go-openai"
)

// ErrMissingAPIKey is returned by New when no credential was resolved.
var ErrMissingAPIKey = errors.New("openai: API key is not configured (set OPENAI_API_KEY, MANARA_OPENAI_API_KEY or openaiApiKey)")

// Options configures a Client.
type Options struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	Retries        uint64
	// Timeout bounds each embedding request. Generation deadlines come from the caller's context.
	Timeout time.Duration
}

// Client talks to the OpenAI embeddings and chat completions endpoints.
type Client struct {
	client     *goopenai.Client
	embedModel string
	retries    uint64
	timeout    time.Duration
	host       string
}

// New constructs a Client. A blank API key is a configuration error.
func New(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := goopenai.DefaultConfig(key)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	model := opts.EmbeddingModel
	if model == "" {
		model = string(goopenai.SmallEmbedding3)
	}
	return &Client{
		client:     goopenai.NewClientWithConfig(cfg),
		embedModel: model,
		retries:    opts.Retries,
		timeout:    opts.Timeout,
		host:       cfg.BaseURL,
	}, nil
}

// Name identifies the backend in logs and metrics.
func (c *Client) Name() string { return "openai" }

// Model returns the embedding model id.
func (c *Client) Model() string { return c.embedModel }

// Embed returns one vector per text, ordered like texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp goopenai.EmbeddingResponse
	err := providers.WithRetry(ctx, c.retries, func(ctx context.Context) error {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		var callErr error
		resp, callErr = c.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
			Input: texts,
			Model: goopenai.EmbeddingModel(c.embedModel),
		})
		return classify(callErr)
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Generate runs one chat completion and returns the first choice's content.
func (c *Client) Generate(ctx context.Context, req providers.GenerateRequest) (string, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	request := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	logging.LogRequest("MANARA->LLM", c.host, req.Model, "", request)

	var resp goopenai.ChatCompletionResponse
	err := providers.WithRetry(ctx, c.retries, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, request)
		return classify(callErr)
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	logging.LogRequest("LLM->MANARA", c.host, req.Model, "", resp.Choices)
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", providers.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && providers.TransientStatus(apiErr.HTTPStatusCode) {
		return providers.Transient(err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && providers.TransientStatus(reqErr.HTTPStatusCode) {
		return providers.Transient(err)
	}
	return err
}
