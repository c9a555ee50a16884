package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_BASE_URL", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "GROQ_API_KEY",
		"OLLAMA_MODEL", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "DEFAULT_MODEL",
		"AGENTHUB_THREADS_DB", "CHINOOK_PATH", "AGENTHUB_KNOWLEDGE_DIR", "AGENTHUB_STEP_BUDGET",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("OPENAI_API_KEY", "test-key")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--log-level", "error", "--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestModelsCommand(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "", "models")
	require.NoError(t, err)
	assert.Contains(t, out, "* gpt-4o-mini")
	assert.Contains(t, out, "gpt-4o")
}

func TestAgentsCommand(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "", "agents")
	require.NoError(t, err)
	for _, key := range []string{"chatbot", "research-assistant", "rag-assistant", "wiki", "arxiv", "supervisor"} {
		assert.Contains(t, out, key)
	}
	assert.Contains(t, out, "* chatbot")
	assert.Contains(t, out, "requires tools.sqlite_path")
}

func TestChatCommand_REPLControl(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "\n/thread\n/exit\n", "chat", "--thread", "thread-42")
	require.NoError(t, err)
	assert.Contains(t, out, "thread thread-42")
	assert.Equal(t, 2, strings.Count(out, "thread-42"))
}

func TestReplayCommand_RequiresThread(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "", "replay")
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "", "--log-level", "loud", "models")
	assert.Error(t, err)
}
