package core

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// wireToolCall is the JSON shape of a ToolCall.
type wireToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	Kind string         `json:"kind,omitempty"`
}

// wireMessage is the JSON envelope shared by all variants; Type selects which
// fields are meaningful.
type wireMessage struct {
	Type             MessageType       `json:"type"`
	ID               string            `json:"id,omitempty"`
	Content          string            `json:"content"`
	RunID            string            `json:"run_id,omitempty"`
	ToolCalls        []wireToolCall    `json:"tool_calls,omitempty"`
	ResponseMetadata *ResponseMetadata `json:"response_metadata,omitempty"`
	ToolCallID       string            `json:"tool_call_id,omitempty"`
	Name             string            `json:"name,omitempty"`
	Status           ToolStatus        `json:"status,omitempty"`
	CustomData       map[string]any    `json:"custom_data,omitempty"`
}

// MarshalMessage encodes m with a "type" discriminator.
func MarshalMessage(m Message) ([]byte, error) {
	var w wireMessage

	err := SwitchMessage(m, MessageSwitch{
		Human: func(v *HumanMessage) error {
			w = wireMessage{Type: TypeHuman, ID: v.ID, Content: v.Content, RunID: v.RunID}
			return nil
		},
		AI: func(v *AIMessage) error {
			w = wireMessage{Type: TypeAI, ID: v.ID, Content: v.Content, RunID: v.RunID}
			for _, tc := range v.ToolCalls {
				w.ToolCalls = append(w.ToolCalls, wireToolCall{ID: tc.ID, Name: tc.Name, Args: tc.Args, Kind: tc.Kind.String()})
			}
			if v.Metadata != (ResponseMetadata{}) {
				md := v.Metadata
				w.ResponseMetadata = &md
			}
			return nil
		},
		Tool: func(v *ToolMessage) error {
			w = wireMessage{Type: TypeTool, ID: v.ID, Content: v.Content, RunID: v.RunID, ToolCallID: v.ToolCallID, Name: v.Name, Status: v.Status}
			return nil
		},
		Custom: func(v *CustomMessage) error {
			w = wireMessage{Type: TypeCustom, ID: v.ID, RunID: v.RunID, CustomData: v.Data}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return json.Marshal(w)
}

// UnmarshalMessage decodes a message envelope. Unknown or missing
// discriminators fail with ErrTypeMismatch.
func UnmarshalMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch w.Type {
	case TypeHuman:
		return &HumanMessage{ID: w.ID, Content: w.Content, RunID: w.RunID}, nil
	case TypeAI:
		m := &AIMessage{ID: w.ID, Content: w.Content, RunID: w.RunID}
		if w.ResponseMetadata != nil {
			m.Metadata = *w.ResponseMetadata
		}
		for _, tc := range w.ToolCalls {
			kind, err := parseCallKind(tc.Kind)
			if err != nil {
				return nil, err
			}
			m.ToolCalls = append(m.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Name, Args: tc.Args, Kind: kind})
		}
		return m, nil
	case TypeTool:
		status := w.Status
		if status == "" {
			status = ToolSuccess
		}
		return &ToolMessage{ID: w.ID, Content: w.Content, RunID: w.RunID, ToolCallID: w.ToolCallID, Name: w.Name, Status: status}, nil
	case TypeCustom:
		return &CustomMessage{ID: w.ID, RunID: w.RunID, Data: w.CustomData}, nil
	default:
		return nil, &TypeMismatchError{Want: "message type human|ai|tool|custom", Got: string(w.Type)}
	}
}

func parseCallKind(s string) (CallKind, error) {
	switch s {
	case "", "invoke":
		return CallInvoke, nil
	case "delegate":
		return CallDelegate, nil
	default:
		return 0, &TypeMismatchError{Want: "tool call kind invoke|delegate", Got: s}
	}
}

// EncodeMessages writes msgs as JSON lines.
func EncodeMessages(w io.Writer, msgs []Message) error {
	for _, m := range msgs {
		b, err := MarshalMessage(m)
		if err != nil {
			return err
		}
		b = append(b, '\n')
		if _, err := w.Write(b); err != nil {
			return err
		}
	}

	return nil
}

// DecodeMessages reads JSON lines produced by EncodeMessages. Blank lines are
// skipped; the first malformed line aborts decoding.
func DecodeMessages(r io.Reader) ([]Message, error) {
	var msgs []Message

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		m, err := UnmarshalMessage(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		msgs = append(msgs, m)
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	return msgs, nil
}
