package flow

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/tool"
)

type teMockTool struct {
	name     string
	delay    time.Duration
	result   any
	err      error
	panicMsg any
	running  *atomic.Int32
	peak     *atomic.Int32
}

func (mt *teMockTool) Name() string               { return mt.name }
func (mt *teMockTool) Description() string        { return "mock tool" }
func (mt *teMockTool) Parameters() map[string]any { return map[string]any{} }
func (mt *teMockTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	if mt.running != nil {
		n := mt.running.Add(1)
		defer mt.running.Add(-1)
		for {
			p := mt.peak.Load()
			if n <= p || mt.peak.CompareAndSwap(p, n) {
				break
			}
		}
	}
	if mt.delay > 0 {
		select {
		case <-time.After(mt.delay):
		case <-tc.Context().Done():
			return nil, tc.Context().Err()
		}
	}
	if mt.panicMsg != nil {
		panic(mt.panicMsg)
	}
	return mt.result, mt.err
}

func toolSet(t *testing.T, tools ...tool.Tool) *tool.Set {
	t.Helper()
	s, err := tool.NewSet(tools...)
	require.NoError(t, err)
	return s
}

func TestToolExecutor_EmptyBatch(t *testing.T) {
	ex := NewToolExecutor(ExecutorConfig{}, nil)
	msgs, err := ex.Execute(context.Background(), "agent", "run", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestToolExecutor_RespectsMaxParallel(t *testing.T) {
	var running, peak atomic.Int32
	mk := func(name string) tool.Tool {
		return &teMockTool{name: name, delay: 20 * time.Millisecond, result: name, running: &running, peak: &peak}
	}
	set := toolSet(t, mk("a"), mk("b"), mk("c"), mk("d"))

	ex := NewToolExecutor(ExecutorConfig{MaxParallel: 2, LogStartEvents: true}, logging.NoOpLogger{})
	calls := []core.ToolCall{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}, {ID: "3", Name: "c"}, {ID: "4", Name: "d"}}

	msgs, err := ex.Execute(context.Background(), "agent", "run", set, calls)
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	for i, m := range msgs {
		assert.Equal(t, calls[i].ID, m.ToolCallID)
		assert.Equal(t, calls[i].Name, m.Content)
		assert.Equal(t, "run", m.RunID)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestToolExecutor_StructuredResult(t *testing.T) {
	set := toolSet(t, &teMockTool{name: "weather", result: map[string]any{"temp": 21}})
	ex := NewToolExecutor(ExecutorConfig{}, nil)

	msgs, err := ex.Execute(context.Background(), "agent", "run", set, []core.ToolCall{{ID: "1", Name: "weather"}})
	require.NoError(t, err)
	assert.Equal(t, `{"temp":21}`, msgs[0].Content)
	assert.Equal(t, core.ToolSuccess, msgs[0].Status)
}

func TestToolExecutor_PanicRecovered(t *testing.T) {
	set := toolSet(t, &teMockTool{name: "p", panicMsg: "boom"}, &teMockTool{name: "ok", result: "fine"})
	ex := NewToolExecutor(ExecutorConfig{}, nil)

	msgs, err := ex.Execute(context.Background(), "agent", "run", set, []core.ToolCall{{ID: "1", Name: "p"}, {ID: "2", Name: "ok"}})
	require.NoError(t, err)
	assert.Equal(t, core.ToolError, msgs[0].Status)
	assert.Contains(t, msgs[0].Content, "tool panicked: boom")
	assert.Equal(t, "fine", msgs[1].Content)
}

func TestToolExecutor_CancelledBeforeStart(t *testing.T) {
	set := toolSet(t, &teMockTool{name: "a", result: "x"})
	ex := NewToolExecutor(ExecutorConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msgs, err := ex.Execute(ctx, "agent", "run", set, []core.ToolCall{{ID: "1", Name: "a"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, msgs)
}

func TestToolExecutor_DeadlineDiscardsResults(t *testing.T) {
	set := toolSet(t, &teMockTool{name: "slow", delay: time.Second, result: "late"})
	ex := NewToolExecutor(ExecutorConfig{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	msgs, err := ex.Execute(ctx, "agent", "run", set, []core.ToolCall{{ID: "1", Name: "slow"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, msgs)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
