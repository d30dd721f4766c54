// internal/providerfactory/factory_test.go
package providerfactory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mwiater/manara/internal/appconfig"
	"github.com/mwiater/manara/internal/metrics"
	"github.com/mwiater/manara/internal/providers/cache"
	"github.com/mwiater/manara/internal/providers/multiplex"
	"github.com/mwiater/manara/internal/providers/ollama"
	"github.com/mwiater/manara/internal/providers/openai"
	"github.com/mwiater/manara/internal/providers/rerank"
	"github.com/mwiater/manara/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig(t *testing.T) appconfig.Config {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MANARA_OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	cfg, err := appconfig.Load("")
	require.NoError(t, err)
	cfg.IndexDir = filepath.Join(t.TempDir(), "kb_index")
	return cfg
}

func TestNewEmbedderMissingKeyIsLazyConfigError(t *testing.T) {
	cfg := baseConfig(t)
	_, err := NewEmbedder(context.Background(), cfg)
	assert.ErrorIs(t, err, openai.ErrMissingAPIKey)
}

func TestNewEmbedderOllama(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.Model = "nomic-embed-text"

	e, err := NewEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &ollama.Provider{}, e)
	assert.Equal(t, "nomic-embed-text", e.Model())

	cfg.Metrics = true
	e, err = NewEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &metrics.Embedder{}, e)

	q, err := NewQueryEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.Embedder{}, q)
	assert.Equal(t, "nomic-embed-text", q.Model())
}

func TestNewReranker(t *testing.T) {
	cfg := baseConfig(t)

	r, err := NewReranker(cfg)
	require.NoError(t, err)
	assert.IsType(t, &rerank.TEI{}, r)

	cfg.Rerank.Provider = "lexical"
	r, err = NewReranker(cfg)
	require.NoError(t, err)
	assert.IsType(t, &rerank.Lexical{}, r)

	cfg.Rerank.Provider = "none"
	r, err = NewReranker(cfg)
	require.NoError(t, err)
	assert.Nil(t, r)

	cfg.Rerank.Provider = "colbert"
	_, err = NewReranker(cfg)
	assert.Error(t, err)
}

func TestNewGeneratorWithFallback(t *testing.T) {
	cfg := baseConfig(t)
	cfg.OpenAIAPIKey = "sk-test"
	cfg.Generation.Fallback = []string{"ollama:llama3.2", "gemini"}

	g, err := NewGenerator(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &multiplex.Generator{}, g)
	assert.Equal(t, "openai>ollama", g.Name(), "gemini is dropped without a key")
}

func TestNewGeneratorMissingKey(t *testing.T) {
	cfg := baseConfig(t)
	_, err := NewGenerator(context.Background(), cfg)
	assert.ErrorIs(t, err, openai.ErrMissingAPIKey)
}

func TestComponentLoader(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.Model = "nomic-embed-text"
	cfg.Generation.Provider = "ollama:llama3.2"
	cfg.Rerank.Provider = "lexical"

	_, err := ComponentLoader(cfg)()
	assert.ErrorIs(t, err, rag.ErrIndexMissing)

	idx, err := rag.NewIndex("nomic-embed-text", [][]float32{{1, 0}}, []string{"Tuition is 45,000 AED."}, []string{"fees.txt"})
	require.NoError(t, err)
	require.NoError(t, rag.WriteIndex(cfg.IndexDir, idx))

	c, err := ComponentLoader(cfg)()
	require.NoError(t, err)
	assert.Equal(t, 1, c.Index.Len())
	assert.Equal(t, "ollama", c.Generator.Name())
	assert.Equal(t, "lexical", c.Reranker.Name())

	cfg.Embedding.Model = "all-minilm"
	_, err = ComponentLoader(cfg)()
	assert.ErrorIs(t, err, rag.ErrModelMismatch)
}

func TestServiceSurfacesMissingCredentialAsApology(t *testing.T) {
	cfg := baseConfig(t)
	svc := NewService(cfg)

	reply := svc.Ask(context.Background(), "What are the admission requirements?", nil)
	assert.Equal(t, rag.KindError, reply.Kind)
	assert.ErrorIs(t, reply.Err, openai.ErrMissingAPIKey)
	assert.Contains(t, reply.Text, "I encountered an error while processing your request.")
}

func TestServiceOptions(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Generation.Provider = "ollama:qwen2.5"

	opts := ServiceOptions(cfg)
	assert.Equal(t, 30, opts.K)
	assert.Equal(t, 5, opts.TopN)
	assert.Equal(t, 200, opts.MaxPassageWords)
	assert.Equal(t, "qwen2.5", opts.Model)
	assert.Equal(t, 300, opts.MaxTokens)
	assert.Nil(t, opts.OnReply)

	cfg.Metrics = true
	assert.NotNil(t, ServiceOptions(cfg).OnReply)

	b := BuildOptions(cfg)
	assert.Equal(t, cfg.IndexDir, b.IndexDir)
	assert.Equal(t, 500, b.MaxWords)
	assert.Equal(t, 50, b.Overlap)
	assert.Equal(t, 32, b.BatchSize)
}
