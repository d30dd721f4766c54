// internal/providerfactory/factory.go

// Package providerfactory builds the model backends named in the
// configuration and assembles them into the components a rag.Service uses.
package providerfactory

import (
	"context"
	"fmt"

	"github.com/mwiater/manara/internal/appconfig"
	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/metrics"
	"github.com/mwiater/manara/internal/providers"
	"github.com/mwiater/manara/internal/providers/cache"
	"github.com/mwiater/manara/internal/providers/gemini"
	"github.com/mwiater/manara/internal/providers/multiplex"
	"github.com/mwiater/manara/internal/providers/ollama"
	"github.com/mwiater/manara/internal/providers/openai"
	"github.com/mwiater/manara/internal/providers/rerank"
	"github.com/mwiater/manara/internal/rag"
)

// defaultGenerationModels is used for fallback entries that name no model.
var defaultGenerationModels = map[string]string{
	appconfig.ProviderOpenAI: "gpt-4o-mini",
	appconfig.ProviderOllama: "llama3.2",
	appconfig.ProviderGemini: "gemini-2.0-flash",
}

// NewEmbedder builds the configured embedding backend, instrumented when
// metrics are enabled.
func NewEmbedder(ctx context.Context, cfg appconfig.Config) (providers.Embedder, error) {
	var embedder providers.Embedder
	switch name, _ := appconfig.SplitProvider(cfg.Embedding.Provider); name {
	case appconfig.ProviderOpenAI:
		client, err := openai.New(openai.Options{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			EmbeddingModel: cfg.Embedding.Model,
			Retries:        cfg.Retries(),
			Timeout:        cfg.BackendTimeout(),
		})
		if err != nil {
			return nil, err
		}
		embedder = client
	case appconfig.ProviderOllama:
		embedder = ollama.New(ollama.Options{
			Host:           cfg.Embedding.Host,
			EmbeddingModel: cfg.Embedding.Model,
			Timeout:        cfg.BackendTimeout(),
			Retries:        cfg.Retries(),
		})
	case appconfig.ProviderGemini:
		p, err := gemini.New(ctx, gemini.Options{
			APIKey:         cfg.GeminiAPIKey,
			EmbeddingModel: cfg.Embedding.Model,
			Timeout:        cfg.BackendTimeout(),
			Retries:        cfg.Retries(),
		})
		if err != nil {
			return nil, err
		}
		embedder = p
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	if cfg.Metrics {
		embedder = metrics.NewEmbedder(embedder, metrics.GetInstance())
	}
	return embedder, nil
}

// NewQueryEmbedder is NewEmbedder behind the query-embedding cache.
func NewQueryEmbedder(ctx context.Context, cfg appconfig.Config) (providers.Embedder, error) {
	embedder, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return cache.NewEmbedder(embedder, cfg.Embedding.CacheSize)
}

// NewReranker builds the configured reranker. It returns nil for "none".
func NewReranker(cfg appconfig.Config) (providers.Reranker, error) {
	var reranker providers.Reranker
	switch name, _ := appconfig.SplitProvider(cfg.Rerank.Provider); name {
	case appconfig.ProviderTEI:
		reranker = rerank.NewTEI(rerank.TEIOptions{
			URL:     cfg.Rerank.URL,
			Model:   cfg.Rerank.Model,
			APIKey:  cfg.Rerank.APIKey,
			Timeout: cfg.BackendTimeout(),
			Retries: cfg.Retries(),
		})
	case appconfig.ProviderLexical:
		reranker = rerank.NewLexical()
	case appconfig.ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown rerank provider %q", cfg.Rerank.Provider)
	}

	if cfg.Metrics {
		reranker = metrics.NewReranker(reranker, metrics.GetInstance())
	}
	return reranker, nil
}

// NewGenerator builds the primary generator and, when fallbacks are
// configured, routes through them in order.
func NewGenerator(ctx context.Context, cfg appconfig.Config) (providers.Generator, error) {
	primaryName, primaryModel := appconfig.SplitProvider(cfg.Generation.Provider)
	primary, err := newGenerator(ctx, cfg, primaryName)
	if err != nil {
		return nil, err
	}

	var generator providers.Generator = primary
	if len(cfg.Generation.Fallback) > 0 {
		routes := []multiplex.Route{{Generator: primary, Model: primaryModel}}
		for _, spec := range cfg.Generation.Fallback {
			name, model := appconfig.SplitProvider(spec)
			g, err := newGenerator(ctx, cfg, name)
			if err != nil {
				logging.Logger().Warn("fallback generator unavailable", "provider", name, "err", err)
				continue
			}
			if model == "" {
				model = defaultGenerationModels[name]
			}
			routes = append(routes, multiplex.Route{Generator: g, Model: model})
		}
		if generator, err = multiplex.New(routes...); err != nil {
			return nil, err
		}
	}

	if cfg.Metrics {
		generator = metrics.NewGenerator(generator, metrics.GetInstance())
	}
	return generator, nil
}

func newGenerator(ctx context.Context, cfg appconfig.Config, name string) (providers.Generator, error) {
	switch name {
	case appconfig.ProviderOpenAI:
		return openai.New(openai.Options{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Retries: cfg.Retries(),
		})
	case appconfig.ProviderOllama:
		return ollama.New(ollama.Options{
			Host:    cfg.Generation.Host,
			Timeout: cfg.GenerationTimeout(),
			Retries: cfg.Retries(),
		}), nil
	case appconfig.ProviderGemini:
		return gemini.New(ctx, gemini.Options{
			APIKey:  cfg.GeminiAPIKey,
			Retries: cfg.Retries(),
		})
	}
	return nil, fmt.Errorf("unknown generation provider %q", name)
}

// ComponentLoader returns a loader that builds the query-time backends and
// loads the index built with the same embedding model.
func ComponentLoader(cfg appconfig.Config) rag.Loader {
	return func() (*rag.Components, error) {
		ctx := context.Background()
		embedder, err := NewQueryEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		reranker, err := NewReranker(cfg)
		if err != nil {
			return nil, err
		}
		generator, err := NewGenerator(ctx, cfg)
		if err != nil {
			return nil, err
		}
		index, err := rag.LoadIndex(cfg.IndexDir, embedder.Model())
		if err != nil {
			return nil, err
		}
		logging.LogEvent("Loaded index from %s: %d chunks, dimension %d", cfg.IndexDir, index.Len(), index.Dim)
		return &rag.Components{Embedder: embedder, Reranker: reranker, Generator: generator, Index: index}, nil
	}
}

// ServiceOptions maps the configuration onto rag.Options.
func ServiceOptions(cfg appconfig.Config) rag.Options {
	_, model := appconfig.SplitProvider(cfg.Generation.Provider)
	if model == "" {
		model = cfg.Generation.Model
	}
	opts := rag.Options{
		K:               cfg.Retrieval.K,
		TopN:            cfg.Retrieval.TopN,
		MaxPassageWords: cfg.Retrieval.MaxPassageWords,
		HistoryMessages: cfg.Generation.HistoryMessages,
		Model:           model,
		Temperature:     cfg.Generation.Temperature,
		MaxTokens:       cfg.Generation.MaxTokens,
		Timeout:         cfg.GenerationTimeout(),
		Logger:          logging.Logger(),
	}
	if cfg.Metrics {
		opts.OnReply = metrics.GetInstance().RecordReply
	}
	return opts
}

// NewService wires a rag.Service from the configuration. Backends are
// built lazily on the first query.
func NewService(cfg appconfig.Config) *rag.Service {
	return rag.NewService(ComponentLoader(cfg), ServiceOptions(cfg))
}

// BuildOptions maps the configuration onto rag.BuildOptions.
func BuildOptions(cfg appconfig.Config) rag.BuildOptions {
	return rag.BuildOptions{
		DataDir:      cfg.DataDir,
		IndexDir:     cfg.IndexDir,
		Recursive:    cfg.Recursive,
		Exclude:      cfg.Exclude,
		MaxFileBytes: cfg.MaxFileBytes,
		MaxWords:     cfg.Chunk.MaxWords,
		Overlap:      cfg.Chunk.Overlap,
		BatchSize:    cfg.Embedding.BatchSize,
		Logger:       logging.Logger(),
	}
}
