package model

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthub/core"
)

func TestScriptedModel_StreamsThenFinal(t *testing.T) {
	m := NewScriptedModel("test", Reply("two plus two is four"))

	var parts []string
	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewHumanMessage("2+2")},
		Stream:   true,
	})
	final, err := Drain(context.Background(), respCh, errCh, func(s string) { parts = append(parts, s) })
	require.NoError(t, err)

	assert.Equal(t, "two plus two is four", strings.Join(parts, ""))
	assert.Equal(t, "two plus two is four", final.Message.Content)
	assert.Equal(t, core.FinishStop, final.Message.Metadata.FinishReason)
	assert.Equal(t, "test", final.Message.Metadata.Model)
	assert.Equal(t, 1, m.Calls())
}

func TestScriptedModel_Exhausted(t *testing.T) {
	m := NewScriptedModel("test")

	respCh, errCh := m.Generate(context.Background(), Request{})
	_, err := Drain(context.Background(), respCh, errCh, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script exhausted")
}

func TestScriptedModel_ToolCalls(t *testing.T) {
	m := NewScriptedModel("test", CallTools(core.ToolCall{ID: "c1", Name: "Calculator", Args: map[string]any{"expression": "2+2"}}))

	respCh, errCh := m.Generate(context.Background(), Request{})
	final, err := Drain(context.Background(), respCh, errCh, nil)
	require.NoError(t, err)
	require.True(t, final.Message.HasToolCalls())
	assert.Equal(t, core.FinishToolCalls, final.FinishReason)
}

func TestDrain_ErrorWins(t *testing.T) {
	boom := errors.New("rate limited")
	m := NewScriptedModel("test", Fail(boom))

	respCh, errCh := m.Generate(context.Background(), Request{})
	_, err := Drain(context.Background(), respCh, errCh, nil)
	assert.ErrorIs(t, err, boom)
}

func TestDrain_EmptyStream(t *testing.T) {
	respCh := make(chan Response)
	errCh := make(chan error)
	close(respCh)
	close(errCh)

	_, err := Drain(context.Background(), respCh, errCh, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestDrain_Cancelled(t *testing.T) {
	m := NewScriptedModel("test", Step{Message: core.NewAIMessage("late"), Delay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	respCh, errCh := m.Generate(ctx, Request{})
	cancel()

	_, err := Drain(ctx, respCh, errCh, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSend(t *testing.T) {
	out := make(chan Response, 1)
	require.NoError(t, Send(context.Background(), out, Response{Partial: true, Text: "a"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// the buffer is full and nobody reads
	err := Send(ctx, out, Response{Partial: true, Text: "b"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "a", (<-out).Text)
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := map[string]string{
		"":               "",
		"stop":           core.FinishStop,
		"end_turn":       core.FinishStop,
		"tool_use":       core.FinishToolCalls,
		"tool_calls":     core.FinishToolCalls,
		"max_tokens":     core.FinishLength,
		"SAFETY":         core.FinishContentFilter,
		"content_filter": core.FinishContentFilter,
		"something_new":  core.FinishStop,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeFinishReason(in), in)
	}
}

func TestParseArguments(t *testing.T) {
	assert.Empty(t, ParseArguments(""))
	assert.Equal(t, map[string]any{"q": "go"}, ParseArguments(`{"q":"go"}`))

	bad := ParseArguments(`not json`)
	assert.Equal(t, "not json", bad[RawArgumentsKey])
	assert.Equal(t, "not json", EncodeArguments(bad))
	assert.JSONEq(t, `{"q":"go"}`, EncodeArguments(map[string]any{"q": "go"}))
}

func TestRegistry_LazyOnce(t *testing.T) {
	var built atomic.Int32
	reg, err := NewRegistry([]Entry{
		{ID: "a", Factory: func() (Model, error) {
			built.Add(1)
			return NewScriptedModel("a"), nil
		}},
		{ID: "b", Factory: func() (Model, error) { return nil, errors.New("missing key") }},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), built.Load())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := reg.Get("")
			assert.NoError(t, err)
			assert.Equal(t, "a", m.Info().Name)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), built.Load())

	_, err = reg.Get("b")
	assert.EqualError(t, err, "missing key")

	_, err = reg.Get("zzz")
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.Equal(t, []string{"a", "b"}, reg.IDs())
}

func TestRegistry_RejectsDuplicatesAndBadDefault(t *testing.T) {
	f := func() (Model, error) { return NewScriptedModel("x"), nil }

	_, err := NewRegistry([]Entry{{ID: "x", Factory: f}, {ID: "x", Factory: f}})
	assert.Error(t, err)

	_, err = NewRegistry([]Entry{{ID: "x", Factory: f}}, func(o *RegistryOptions) { o.DefaultID = "y" })
	assert.ErrorIs(t, err, ErrUnknownModel)
}
