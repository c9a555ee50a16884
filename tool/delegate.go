package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agenthub/core"
)

// DelegatePrefix starts the name of every delegate tool.
const DelegatePrefix = "transfer_to_"

// delegateTool hands the conversation to a named sub-agent. Its Call result is
// the hand-off notice recorded as the call's tool message.
type delegateTool struct {
	agent       string
	description string
}

// NewDelegateTool constructs the delegate tool for agent. The tool name is
// "transfer_to_<agent>" with characters outside [a-zA-Z0-9_-] replaced.
func NewDelegateTool(agent, description string) Delegator {
	if description == "" {
		description = fmt.Sprintf("Transfer the conversation to the %s agent.", agent)
	}
	return &delegateTool{agent: agent, description: description}
}

// DelegateToolName returns the tool name used to delegate to agent.
func DelegateToolName(agent string) string {
	var b strings.Builder
	b.WriteString(DelegatePrefix)
	for _, r := range agent {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// HandoffMessage is the tool message content recorded when a transfer starts.
func HandoffMessage(agent string) string {
	return "Successfully transferred to " + agent
}

func (t *delegateTool) Name() string        { return DelegateToolName(t.agent) }
func (t *delegateTool) Description() string { return t.description }
func (t *delegateTool) Target() string      { return t.agent }

func (t *delegateTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *delegateTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	tc.Logger().Info("tool.delegate", "from", tc.AgentName(), "to", t.agent, "tool_call_id", tc.ToolCallID())
	return HandoffMessage(t.agent), nil
}
