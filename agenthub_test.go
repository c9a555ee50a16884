package agenthub

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthub/agent"
	"github.com/hupe1980/agenthub/config"
	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/model"
	"github.com/hupe1980/agenthub/providers"
	"github.com/hupe1980/agenthub/runner"
	"github.com/hupe1980/agenthub/transcript"
)

func TestNew_NoProviders(t *testing.T) {
	_, err := New(config.DefaultConfig())
	assert.ErrorIs(t, err, providers.ErrNoProviders)
}

func TestHub_ChatAndReplay(t *testing.T) {
	dir := t.TempDir()
	knowledge := filepath.Join(dir, "handbook")
	require.NoError(t, os.MkdirAll(knowledge, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(knowledge, "leave.md"),
		[]byte("Employees receive 30 days of paid vacation per year."), 0o600))

	cfg := config.DefaultConfig()
	cfg.Storage.ThreadsDB = filepath.Join(dir, "threads.db")
	cfg.Tools.KnowledgeDir = knowledge
	cfg.Safety.Enabled = false

	m := model.NewScriptedModel("test",
		model.CallTools(core.ToolCall{ID: "c1", Name: "Database_Search", Args: map[string]any{"query": "vacation days"}}),
		model.Reply("You get 30 days of paid vacation."),
	)

	hub, err := New(cfg, func(o *Options) { o.Models = model.Single(m) })
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Close() })

	var seen []transcript.Instruction
	runID, live, err := hub.Chat(context.Background(), runner.TurnRequest{
		ThreadID: "t1",
		AgentID:  agent.RAGAssistant,
		Message:  "How many vacation days do I get?",
	}, func(inst transcript.Instruction) { seen = append(seen, inst) })
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Equal(t, runID, live.LastRunID())

	require.Len(t, live.Containers, 2)
	ai := live.Containers[1]
	require.Len(t, ai.Blocks, 2)
	search := ai.Blocks[0].(*transcript.ToolBlock)
	assert.Contains(t, search.Output, "30 days of paid vacation")
	assert.Equal(t, &transcript.TextBlock{Text: "You get 30 days of paid vacation."}, ai.Blocks[1])

	replay, err := hub.Replay(context.Background(), "t1", nil)
	require.NoError(t, err)
	if diff := cmp.Diff(replay.Containers, live.Containers); diff != "" {
		t.Errorf("replay differs from live rendering (-replay +live):\n%s", diff)
	}
}

func TestHub_ThreadsSurviveRestart(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.ThreadsDB = filepath.Join(t.TempDir(), "threads.db")
	cfg.Safety.Enabled = false

	first, err := New(cfg, func(o *Options) { o.Models = model.Single(model.NewScriptedModel("test", model.Reply("hello"))) })
	require.NoError(t, err)
	_, err = first.Invoke(context.Background(), runner.TurnRequest{ThreadID: "t1", Message: "hi"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(cfg, func(o *Options) { o.Models = model.Single(model.NewScriptedModel("test")) })
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	history, err := second.History("t1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[1].Text())
}

func TestHub_GuardUnavailableFailsTurn(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.ThreadsDB = filepath.Join(t.TempDir(), "threads.db")

	// Safety stays enabled but the registry has no guard model.
	hub, err := New(cfg, func(o *Options) { o.Models = model.Single(model.NewScriptedModel("test", model.Reply("hello"))) })
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Close() })

	_, err = hub.Invoke(context.Background(), runner.TurnRequest{ThreadID: "t1", Message: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrClassificationUnavailable), "unexpected error: %v", err)

	history, err := hub.History("t1")
	require.NoError(t, err)
	assert.Empty(t, history)
}
