// internal/appconfig/appconfig_test.go
package appconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// TestLoadDefaults verifies that a missing config file still yields the
// documented defaults for every section.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "./kb_index", cfg.IndexDir)
	assert.Equal(t, 500, cfg.Chunk.MaxWords)
	assert.Equal(t, 50, cfg.Chunk.Overlap)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
	assert.Equal(t, "gpt-4o-mini", cfg.Generation.Model)
	assert.InDelta(t, 0.7, cfg.Generation.Temperature, 1e-9)
	assert.Equal(t, 300, cfg.Generation.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.GenerationTimeout())
	assert.Equal(t, 30, cfg.Retrieval.K)
	assert.Equal(t, 5, cfg.Retrieval.TopN)
	assert.Equal(t, 200, cfg.Retrieval.MaxPassageWords)
	assert.Empty(t, cfg.ConfigPath)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"indexDir": "/srv/index",
		"chunk": {"maxWords": 120, "overlap": 20},
		"generation": {"timeout": "15s"},
		"exclude": ["**/drafts/**"]
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/index", cfg.IndexDir)
	assert.Equal(t, 120, cfg.Chunk.MaxWords)
	assert.Equal(t, 20, cfg.Chunk.Overlap)
	assert.Equal(t, 15*time.Second, cfg.GenerationTimeout())
	assert.Equal(t, []string{"**/drafts/**"}, cfg.Exclude)
	assert.Equal(t, "gpt-4o-mini", cfg.Generation.Model, "untouched keys keep defaults")
	assert.Equal(t, path, cfg.ConfigPath)
}

func TestLoadEnvironmentBeatsFile(t *testing.T) {
	path := writeConfig(t, `{"indexDir": "/file/index", "retrieval": {"topN": 4}}`)
	t.Setenv("MANARA_INDEXDIR", "/env/index")
	t.Setenv("MANARA_RETRIEVAL_TOPN", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/index", cfg.IndexDir)
	assert.Equal(t, 3, cfg.Retrieval.TopN)
}

func TestCredentialPrecedence(t *testing.T) {
	path := writeConfig(t, `{"openaiApiKey": "from-file"}`)

	t.Setenv("MANARA_OPENAI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.OpenAIAPIKey, "empty variables fall through to the file")

	t.Setenv("OPENAI_API_KEY", "from-sdk-var")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-sdk-var", cfg.OpenAIAPIKey)

	t.Setenv("MANARA_OPENAI_API_KEY", "from-prefixed-var")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-prefixed-var", cfg.OpenAIAPIKey)
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	const setKey = "MANARA_TEST_DOTENV_SET"
	const newKey = "MANARA_TEST_DOTENV_NEW"
	t.Setenv(setKey, "real")
	t.Cleanup(func() { _ = os.Unsetenv(newKey) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(setKey+"=dotenv\n"+newKey+"=dotenv\n"), 0o644))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "real", os.Getenv(setKey))
	assert.Equal(t, "dotenv", os.Getenv(newKey))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestLoadInvalidFile(t *testing.T) {
	path := writeConfig(t, `{ "indexDir": `)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Chunk.Overlap = bad.Chunk.MaxWords
	assert.ErrorContains(t, bad.Validate(), "chunk.overlap")

	bad = cfg
	bad.Retrieval.TopN = bad.Retrieval.K + 1
	assert.ErrorContains(t, bad.Validate(), "topN cannot exceed")

	bad = cfg
	bad.Rerank.Provider = "colbert"
	assert.ErrorContains(t, bad.Validate(), `unknown rerank.provider "colbert"`)

	bad = cfg
	bad.Generation.Fallback = []string{"gemini", "llamacpp"}
	assert.ErrorContains(t, bad.Validate(), `unknown generation provider "llamacpp"`)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(unset)", MaskSecret(" "))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "********wxyz", MaskSecret("sk-abcdefwxyz"))
}

func TestShowConfigMasksCredentials(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.OpenAIAPIKey = "sk-live-secret-1234"

	var out bytes.Buffer
	ShowConfig(&out, "", cfg)

	assert.Contains(t, out.String(), "No config file loaded")
	assert.Contains(t, out.String(), "********1234")
	assert.NotContains(t, out.String(), "sk-live-secret")
}

func TestSplitProvider(t *testing.T) {
	name, model := SplitProvider(" Ollama:llama3.2 ")
	assert.Equal(t, "ollama", name)
	assert.Equal(t, "llama3.2", model)

	name, model = SplitProvider("gemini")
	assert.Equal(t, "gemini", name)
	assert.Empty(t, model)
}
