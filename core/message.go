package core

import (
	"fmt"
	"maps"
)

// MessageType discriminates the message union.
type MessageType string

const (
	// TypeHuman marks a message authored by the user.
	TypeHuman MessageType = "human"
	// TypeAI marks a message produced by a model (or synthesized on its behalf).
	TypeAI MessageType = "ai"
	// TypeTool marks the result of a single tool call.
	TypeTool MessageType = "tool"
	// TypeCustom marks an opaque out-of-band signal.
	TypeCustom MessageType = "custom"
)

// Finish reasons attached to AI message metadata. Provider specific values are
// normalized to this set by the model adapters.
const (
	FinishStop          = "stop"
	FinishToolCalls     = "tool_calls"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
)

// Message is a closed union over HumanMessage, AIMessage, ToolMessage and
// CustomMessage. The unexported marker method prevents other packages from
// adding variants; use SwitchMessage for exhaustive dispatch.
type Message interface {
	Type() MessageType
	// Text returns the textual content (empty for custom messages).
	Text() string
	// GetRunID returns the correlation id of the run that produced the message.
	GetRunID() string

	isMessage()
}

// HumanMessage is a user-authored turn input.
type HumanMessage struct {
	ID      string
	Content string
	RunID   string
}

// Type implements Message.
func (*HumanMessage) Type() MessageType { return TypeHuman }

// Text implements Message.
func (m *HumanMessage) Text() string { return m.Content }

// GetRunID implements Message.
func (m *HumanMessage) GetRunID() string { return m.RunID }

func (*HumanMessage) isMessage() {}

// TokenUsage captures token accounting reported by a provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResponseMetadata is free-form provider metadata attached to AI messages.
type ResponseMetadata struct {
	FinishReason string      `json:"finish_reason,omitempty"`
	Model        string      `json:"model,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// AIMessage is a model response, possibly requesting tool invocations.
type AIMessage struct {
	ID        string
	Content   string
	RunID     string
	ToolCalls []ToolCall
	Metadata  ResponseMetadata
}

// Type implements Message.
func (*AIMessage) Type() MessageType { return TypeAI }

// Text implements Message.
func (m *AIMessage) Text() string { return m.Content }

// GetRunID implements Message.
func (m *AIMessage) GetRunID() string { return m.RunID }

func (*AIMessage) isMessage() {}

// HasToolCalls reports whether the message requests at least one tool call.
func (m *AIMessage) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// IsFinal reports whether the message terminates a (sub-)agent transcript: a
// finish reason is present and the model is not waiting for tool results.
func (m *AIMessage) IsFinal() bool {
	return m.Metadata.FinishReason != "" && m.Metadata.FinishReason != FinishToolCalls
}

// ToolStatus reports how a tool call ended.
type ToolStatus string

const (
	// ToolSuccess marks a tool call that returned a result.
	ToolSuccess ToolStatus = "success"
	// ToolError marks a tool call whose content carries an error description.
	ToolError ToolStatus = "error"
)

// ToolMessage carries the result of exactly one ToolCall.
type ToolMessage struct {
	ID         string
	Content    string
	RunID      string
	ToolCallID string
	Name       string
	Status     ToolStatus
}

// Type implements Message.
func (*ToolMessage) Type() MessageType { return TypeTool }

// Text implements Message.
func (m *ToolMessage) Text() string { return m.Content }

// GetRunID implements Message.
func (m *ToolMessage) GetRunID() string { return m.RunID }

func (*ToolMessage) isMessage() {}

// CustomMessage carries opaque structured data used for out-of-band signaling.
type CustomMessage struct {
	ID    string
	RunID string
	Data  map[string]any
}

// Type implements Message.
func (*CustomMessage) Type() MessageType { return TypeCustom }

// Text implements Message.
func (*CustomMessage) Text() string { return "" }

// GetRunID implements Message.
func (m *CustomMessage) GetRunID() string { return m.RunID }

func (*CustomMessage) isMessage() {}

// CallKind tags a ToolCall as a leaf invocation or a delegation to a sub-agent.
type CallKind int

const (
	// CallInvoke executes a leaf tool and is answered by one ToolMessage.
	CallInvoke CallKind = iota
	// CallDelegate hands the conversation to a sub-agent and is answered by a
	// nested sub-transcript.
	CallDelegate
)

// String returns the wire name of the kind.
func (k CallKind) String() string {
	switch k {
	case CallInvoke:
		return "invoke"
	case CallDelegate:
		return "delegate"
	default:
		return fmt.Sprintf("CallKind(%d)", int(k))
	}
}

// ToolCall is a request, emitted by a model, to execute a named function.
// ID is unique within the owning AIMessage.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
	Kind CallKind
}

// IsDelegation reports whether the call targets another agent.
func (c ToolCall) IsDelegation() bool { return c.Kind == CallDelegate }

// NewHumanMessage creates a human message with a fresh id.
func NewHumanMessage(content string) *HumanMessage {
	return &HumanMessage{ID: NewID(), Content: content}
}

// NewAIMessage creates a text-only AI message with finish reason "stop".
func NewAIMessage(content string) *AIMessage {
	return &AIMessage{ID: NewID(), Content: content, Metadata: ResponseMetadata{FinishReason: FinishStop}}
}

// NewToolMessage creates a tool result correlated to callID.
func NewToolMessage(callID, name, content string, status ToolStatus) *ToolMessage {
	return &ToolMessage{ID: NewID(), ToolCallID: callID, Name: name, Content: content, Status: status}
}

// NewCustomMessage creates a custom signal message.
func NewCustomMessage(data map[string]any) *CustomMessage {
	return &CustomMessage{ID: NewID(), Data: maps.Clone(data)}
}

// MessageSwitch holds one handler per message variant. SwitchMessage calls the
// matching handler; a nil handler for the dispatched variant is a programming
// error reported as ErrTypeMismatch.
type MessageSwitch struct {
	Human  func(*HumanMessage) error
	AI     func(*AIMessage) error
	Tool   func(*ToolMessage) error
	Custom func(*CustomMessage) error
}

// SwitchMessage dispatches m to the handler registered for its variant.
func SwitchMessage(m Message, s MessageSwitch) error {
	switch v := m.(type) {
	case *HumanMessage:
		if s.Human != nil {
			return s.Human(v)
		}
	case *AIMessage:
		if s.AI != nil {
			return s.AI(v)
		}
	case *ToolMessage:
		if s.Tool != nil {
			return s.Tool(v)
		}
	case *CustomMessage:
		if s.Custom != nil {
			return s.Custom(v)
		}
	}

	return &TypeMismatchError{Want: "handled message variant", Got: m}
}

// AsAI returns m as *AIMessage or a TypeMismatchError.
func AsAI(m Message) (*AIMessage, error) {
	ai, ok := m.(*AIMessage)
	if !ok {
		return nil, &TypeMismatchError{Want: string(TypeAI), Got: m}
	}

	return ai, nil
}

// CloneMessage returns a deep copy of m so the copy can be stamped (run id)
// without affecting the original.
func CloneMessage(m Message) Message {
	switch v := m.(type) {
	case *HumanMessage:
		c := *v
		return &c
	case *AIMessage:
		c := *v
		if v.ToolCalls != nil {
			c.ToolCalls = make([]ToolCall, len(v.ToolCalls))
			for i, tc := range v.ToolCalls {
				tc.Args = maps.Clone(tc.Args)
				c.ToolCalls[i] = tc
			}
		}
		if v.Metadata.Usage != nil {
			u := *v.Metadata.Usage
			c.Metadata.Usage = &u
		}
		return &c
	case *ToolMessage:
		c := *v
		return &c
	case *CustomMessage:
		c := *v
		c.Data = maps.Clone(v.Data)
		return &c
	default:
		return m
	}
}

// WithRunID returns a copy of m stamped with runID.
func WithRunID(m Message, runID string) Message {
	c := CloneMessage(m)
	switch v := c.(type) {
	case *HumanMessage:
		v.RunID = runID
	case *AIMessage:
		v.RunID = runID
	case *ToolMessage:
		v.RunID = runID
	case *CustomMessage:
		v.RunID = runID
	}

	return c
}
