package flow

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/tool"
)

// ExecutorConfig configures the ToolExecutor.
type ExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(calls))
	LogStartEvents bool // log a start line per call
}

// ToolExecutor runs the leaf tool calls of one step. It guarantees:
//   - exactly one ToolMessage per call, returned in call order
//   - tool errors, unknown tools and panics become error content
//   - on cancellation no result is returned; late results are dropped
type ToolExecutor struct {
	cfg    ExecutorConfig
	logger logging.Logger
}

// NewToolExecutor constructs an executor.
func NewToolExecutor(cfg ExecutorConfig, logger logging.Logger) *ToolExecutor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolExecutor{cfg: cfg, logger: logger}
}

// Execute runs calls concurrently against tools on behalf of agent.
func (e *ToolExecutor) Execute(ctx context.Context, agent, runID string, tools *tool.Set, calls []core.ToolCall) ([]*core.ToolMessage, error) {
	n := len(calls)
	if n == 0 {
		return nil, nil
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	results := make([]*core.ToolMessage, n)
	batchStart := time.Now()

	var g errgroup.Group
	g.SetLimit(maxPar)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range calls {
			if ctx.Err() != nil {
				break
			}
			idx, call := i, calls[i]
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				results[idx] = e.executeOne(ctx, agent, runID, tools, call)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-ctx.Done():
		e.logger.Warn("flow.tools.cancelled", "agent", agent, "count", n)
		return nil, ctx.Err()
	case <-done:
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Debug(
		"flow.tools.batch.complete",
		"agent", agent,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results, nil
}

func (e *ToolExecutor) executeOne(ctx context.Context, agent, runID string, tools *tool.Set, call core.ToolCall) *core.ToolMessage {
	toolCtx := core.NewToolContext(ctx, agent, runID, call.ID, e.logger)
	if e.cfg.LogStartEvents {
		e.logger.Info("flow.tool.start", "agent", agent, "tool", call.Name, "tool_call_id", call.ID)
	}

	start := time.Now()
	var (
		result any
		err    error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				e.logger.Error("flow.tool.panic", "agent", agent, "tool", call.Name, "recover", r)
			}
		}()
		result, err = invokeTool(tools, toolCtx, call)
	}()

	e.logger.Info(
		"flow.tool.executed",
		"agent", agent,
		"tool", call.Name,
		"tool_call_id", call.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	msg := core.NewToolMessage(call.ID, call.Name, tool.FormatResult(result), core.ToolSuccess)
	if err != nil {
		msg.Content = tool.FormatError(err)
		msg.Status = core.ToolError
	}
	msg.RunID = runID

	return msg
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("tool panicked: %v", p.val) }

// invokeTool centralizes tool lookup & execution.
func invokeTool(tools *tool.Set, toolCtx *core.ToolContext, call core.ToolCall) (any, error) {
	impl, ok := tools.Get(call.Name)
	if !ok {
		names := make([]string, 0, tools.Len())
		for _, t := range tools.Tools() {
			names = append(names, t.Name())
		}
		return nil, fmt.Errorf("%s is not a valid tool, try one of [%s].", call.Name, strings.Join(names, ", "))
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}

	return impl.Call(toolCtx, args)
}
