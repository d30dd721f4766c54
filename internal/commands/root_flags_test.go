package manara

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwiater/manara/internal/rag"
	"github.com/mwiater/manara/internal/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigPrecedence(t *testing.T) {
	clearEnv(t)
	configPath := writeTempConfig(t, `{"indexDir": "from-file", "dataDir": "data-from-file"}`)

	out, _, err := execute(t, nil, "--config", configPath, "show", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "Config file: "+configPath)
	assert.Contains(t, out, "from-file")

	t.Setenv("MANARA_INDEXDIR", "from-env")
	out, _, err = execute(t, nil, "--config", configPath, "show", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "from-env")
	assert.NotContains(t, out, "Index Dir:         from-file")

	out, _, err = execute(t, nil, "--config", configPath, "--indexDir", "from-flag", "show", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "from-flag")
	assert.NotContains(t, out, "from-env")
}

func TestDotEnvSitsBetweenEnvironmentAndFile(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv("MANARA_DATADIR"))
	t.Cleanup(func() { _ = os.Unsetenv("MANARA_DATADIR") })

	configPath := writeTempConfig(t, `{"dataDir": "data-from-file"}`)
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("MANARA_DATADIR=data-from-dotenv\n"), 0o644))

	out, _, err := execute(t, nil, "--config", configPath, "--envFile", envPath, "show", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "data-from-dotenv")
	assert.NotContains(t, out, "data-from-file")
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	out, _, err := execute(t, nil, "--config", filepath.Join(t.TempDir(), "absent.json"), "show", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "No config file loaded")
	assert.Contains(t, out, "./kb_index")
	require.NotNil(t, GetConfig())
	assert.Equal(t, 30, GetConfig().Retrieval.K)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	clearEnv(t)
	configPath := writeTempConfig(t, `{"chunk": {"maxWords": 10, "overlap": 10}}`)
	_, _, err := execute(t, nil, "--config", configPath, "show", "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk.overlap")
}

func TestShowConfigDebugMasksCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test-secret-9876")

	out, _, err := execute(t, nil, "--config", writeTempConfig(t, "{}"), "--debug", "show", "config")
	require.NoError(t, err)
	assert.True(t, DebugEnabled())
	assert.Contains(t, out, "********9876")
	assert.Contains(t, out, "IndexDir")
	assert.NotContains(t, out, "sk-test-secret")
}

func TestAskRequiresQuestion(t *testing.T) {
	clearEnv(t)
	_, _, err := execute(t, nil, "--config", writeTempConfig(t, "{}"), "ask")
	require.Error(t, err)
}

func TestAskGreetingNeedsNoBackend(t *testing.T) {
	clearEnv(t)
	out, _, err := execute(t, nil, "--config", writeTempConfig(t, "{}"), "ask", "hello")
	require.NoError(t, err)
	assert.Equal(t, rag.GreetingReply+"\n", out)
}

func TestAskReportsMissingIndex(t *testing.T) {
	clearEnv(t)
	configPath := writeTempConfig(t, `{
		"indexDir": "`+filepath.ToSlash(filepath.Join(t.TempDir(), "none"))+`",
		"embedding": {"provider": "ollama", "host": "http://127.0.0.1:1", "model": "bag"},
		"generation": {"provider": "ollama", "host": "http://127.0.0.1:1"},
		"rerank": {"provider": "none"}
	}`)
	out, _, err := execute(t, nil, "--config", configPath, "ask", "What are the fees?")
	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrIndexMissing)
	assert.Contains(t, out, "I encountered an error while processing your request.")
}

func TestChatCommandUsesRunner(t *testing.T) {
	clearEnv(t)
	orig := runChat
	t.Cleanup(func() { runChat = orig })

	var got tui.Options
	var asker tui.Asker
	runChat = func(_ context.Context, a tui.Asker, opts tui.Options) error {
		asker, got = a, opts
		return nil
	}

	_, _, err := execute(t, nil, "--config", writeTempConfig(t, `{"generation": {"historyMessages": 6}}`), "chat")
	require.NoError(t, err)
	assert.NotNil(t, asker)
	assert.Equal(t, 6, got.HistoryLimit)
	assert.False(t, got.Debug)
}

func TestServeStopsWhenContextIsCancelled(t *testing.T) {
	clearEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		_, _, err := execute(t, ctx, "--config", writeTempConfig(t, "{}"), "serve", "--addr", "127.0.0.1:0")
		done <- err
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}
	require.NotNil(t, GetConfig())
	assert.Equal(t, "127.0.0.1:0", GetConfig().Server.Addr)
}
