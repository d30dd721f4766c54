// Package gemini provides an Embedder and Generator backed by the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/providers"
	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned by New when no credential was resolved.
var ErrMissingAPIKey = errors.New("gemini: API key is not configured (set GEMINI_API_KEY or geminiApiKey)")

// Options configures a Provider.
type Options struct {
	APIKey         string
	EmbeddingModel string
	Timeout        time.Duration
	Retries        uint64
}

// Provider wraps a genai client.
type Provider struct {
	client     *genai.Client
	embedModel string
	timeout    time.Duration
	retries    uint64
}

// New constructs a Provider using the Gemini API backend.
func New(ctx context.Context, opts Options) (*Provider, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	model := opts.EmbeddingModel
	if model == "" {
		model = "text-embedding-004"
	}
	return &Provider{client: client, embedModel: model, timeout: opts.Timeout, retries: opts.Retries}, nil
}

// Name identifies the backend in logs and metrics.
func (p *Provider) Name() string { return "gemini" }

// Model returns the embedding model id.
func (p *Provider) Model() string { return p.embedModel }

// Embed embeds every text in one request.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	var resp *genai.EmbedContentResponse
	err := providers.WithRetry(ctx, p.retries, func(ctx context.Context) error {
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		var callErr error
		resp, callErr = p.client.Models.EmbedContent(ctx, p.embedModel, contents, nil)
		return classify(callErr)
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: unexpected embedding count for %d inputs", len(texts))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// Generate maps the conversation onto Gemini contents, with the system policy
// passed as a system instruction.
func (p *Provider) Generate(ctx context.Context, req providers.GenerateRequest) (string, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == providers.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	logging.LogRequest("MANARA->LLM", "gemini", req.Model, "", req.Messages)

	var text string
	err := providers.WithRetry(ctx, p.retries, func(ctx context.Context) error {
		resp, callErr := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
		if callErr != nil {
			return classify(callErr)
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	logging.LogRequest("LLM->MANARA", "gemini", req.Model, "", text)
	if strings.TrimSpace(text) == "" {
		return "", providers.ErrEmptyResponse
	}
	return text, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && providers.TransientStatus(apiErr.Code) {
		return providers.Transient(err)
	}
	return err
}
