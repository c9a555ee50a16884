package core

import (
	"context"

	"github.com/hupe1980/agenthub/logging"
)

// ToolContext provides the constrained surface handed to tool
// implementations: cancellation, call correlation and logging. Tools never see
// the ConversationState directly.
type ToolContext struct {
	ctx        context.Context
	toolCallID string
	agentName  string
	runID      string
	logger     logging.Logger
}

// NewToolContext constructs a tool context for one tool call.
// A nil logger discards output.
func NewToolContext(ctx context.Context, agentName, runID, toolCallID string, logger logging.Logger) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		ctx:        ctx,
		toolCallID: toolCallID,
		agentName:  agentName,
		runID:      runID,
		logger:     logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// ToolCallID returns the id of the call being executed.
func (tc *ToolContext) ToolCallID() string { return tc.toolCallID }

// AgentName returns the agent that requested the call.
func (tc *ToolContext) AgentName() string { return tc.agentName }

// RunID returns the run the call belongs to.
func (tc *ToolContext) RunID() string { return tc.runID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }
