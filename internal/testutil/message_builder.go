package testutil

import (
	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/tool"
)

// AIBuilder provides a fluent helper for constructing AI messages in tests.
// Example:
//
//	msg := testutil.NewAI().ID("m1").Call("c1", "Calculator", map[string]any{"expression": "2+2"}).Build()
//
// The finish reason defaults to tool_calls when calls were added and to
// stop otherwise.
type AIBuilder struct {
	msg    core.AIMessage
	finish *string
}

// NewAI creates a builder with an empty AI message.
func NewAI() *AIBuilder { return &AIBuilder{} }

// ID overrides the message id (chainable).
func (b *AIBuilder) ID(id string) *AIBuilder { b.msg.ID = id; return b }

// Text sets the content (chainable).
func (b *AIBuilder) Text(t string) *AIBuilder { b.msg.Content = t; return b }

// Run sets the run id (chainable).
func (b *AIBuilder) Run(id string) *AIBuilder { b.msg.RunID = id; return b }

// Call appends a leaf tool call (chainable).
func (b *AIBuilder) Call(id, name string, args map[string]any) *AIBuilder {
	if args == nil {
		args = map[string]any{}
	}
	b.msg.ToolCalls = append(b.msg.ToolCalls, core.ToolCall{ID: id, Name: name, Args: args})
	return b
}

// Delegate appends a delegation to agent (chainable).
func (b *AIBuilder) Delegate(id, agent string) *AIBuilder {
	b.msg.ToolCalls = append(b.msg.ToolCalls, core.ToolCall{
		ID:   id,
		Name: tool.DelegateToolName(agent),
		Args: map[string]any{},
		Kind: core.CallDelegate,
	})
	return b
}

// Finish overrides the finish reason; "" removes it (chainable).
func (b *AIBuilder) Finish(reason string) *AIBuilder { b.finish = &reason; return b }

// Build returns the message.
func (b *AIBuilder) Build() *core.AIMessage {
	m := core.CloneMessage(&b.msg).(*core.AIMessage)
	if m.ID == "" {
		m.ID = core.NewID()
	}
	switch {
	case b.finish != nil:
		m.Metadata.FinishReason = *b.finish
	case m.HasToolCalls():
		m.Metadata.FinishReason = core.FinishToolCalls
	default:
		m.Metadata.FinishReason = core.FinishStop
	}
	return m
}

// Human returns a human message.
func Human(text string) *core.HumanMessage { return core.NewHumanMessage(text) }

// AI returns a final AI text message.
func AI(text string) *core.AIMessage { return NewAI().Text(text).Build() }

// ToolResult returns a successful tool message for callID.
func ToolResult(callID, name, content string) *core.ToolMessage {
	return core.NewToolMessage(callID, name, content, core.ToolSuccess)
}

// ToolFailure returns an error tool message for callID.
func ToolFailure(callID, name, content string) *core.ToolMessage {
	return core.NewToolMessage(callID, name, content, core.ToolError)
}

// Handoff returns the tool message recording a transfer to agent.
func Handoff(callID, agent string) *core.ToolMessage {
	return ToolResult(callID, tool.DelegateToolName(agent), tool.HandoffMessage(agent))
}
