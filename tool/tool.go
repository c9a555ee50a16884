// Package tool implements the tool calling subsystem: leaf tools that turn a
// name plus arguments into result text, and delegate tools that hand the
// conversation to another agent.
package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/internal/util"
	"github.com/hupe1980/agenthub/model"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Report failures as errors; they become tool message content
//   - Be safe for concurrent use (sibling calls run in parallel)
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the model to help it decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]interface{}

	// Call executes the tool. The result is rendered to text with FormatResult.
	Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error)
}

// Delegator is implemented by tools that transfer the conversation to another
// agent instead of producing a result themselves.
type Delegator interface {
	Tool
	// Target returns the name of the agent receiving the conversation.
	Target() string
}

// KindOf reports whether calls to t are leaf invocations or delegations.
func KindOf(t Tool) core.CallKind {
	if _, ok := t.(Delegator); ok {
		return core.CallDelegate
	}
	return core.CallInvoke
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes used by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// FormatResult renders a tool result as message content. Strings pass
// through, fmt.Stringers use String, everything else is JSON encoded.
func FormatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case []byte:
		return string(r)
	case fmt.Stringer:
		return r.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// FormatError renders a failed call as tool message content the model can
// react to.
func FormatError(err error) string {
	return fmt.Sprintf("Error: %s\n Please fix your mistakes.", err)
}

// Definition converts t into the model facing tool declaration.
func Definition(t Tool) model.ToolDefinition {
	params := t.Parameters()
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		},
	}
}
