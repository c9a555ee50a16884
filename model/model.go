package model

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/hupe1980/agenthub/core"
)

// ErrEmptyResponse is returned by Drain when the model closed its stream
// without a final response.
var ErrEmptyResponse = errors.New("model returned no final response")

// RawArgumentsKey holds the unparsed argument string of a tool call whose
// arguments were not a JSON object.
const RawArgumentsKey = "__raw_arguments"

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the tool-calling loop.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"-"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// Response is a (partial or final) chunk emitted by a model. Partial chunks
// carry a text delta in Text; the final chunk carries the complete Message.
type Response struct {
	Partial      bool             `json:"partial"`
	Text         string           `json:"text,omitempty"`
	Message      *core.AIMessage  `json:"-"`
	FinishReason string           `json:"finish_reason"` // normalized: stop, length, tool_calls, content_filter
	Usage        *core.TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "gemini", "groq", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Drain consumes a Generate channel pair. Partial text deltas are passed to
// onPartial (may be nil); the final response is returned. The message of the
// final response always has its finish reason, usage and model name filled in.
func Drain(ctx context.Context, respCh <-chan Response, errCh <-chan error, onPartial func(string)) (Response, error) {
	var (
		final Response
		done  bool
	)

	for respCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				if onPartial != nil && r.Text != "" {
					onPartial(r.Text)
				}
				continue
			}
			final, done = r, true
		}
	}

	if errCh != nil {
		select {
		case err, ok := <-errCh:
			if ok && err != nil {
				return Response{}, err
			}
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}

	if !done || final.Message == nil {
		return Response{}, ErrEmptyResponse
	}

	if final.Message.Metadata.FinishReason == "" {
		final.Message.Metadata.FinishReason = final.FinishReason
	}
	if final.Message.Metadata.Usage == nil {
		final.Message.Metadata.Usage = final.Usage
	}

	return final, nil
}

// Send delivers r on out unless ctx is done first, in which case the
// context error is returned. Generate implementations use it for every
// send so a consumer that stops reading never strands the producer.
func Send(ctx context.Context, out chan<- Response, r Response) error {
	select {
	case out <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NormalizeFinishReason maps provider specific finish reasons onto the
// core.Finish* set. Unknown non-empty values map to stop.
func NormalizeFinishReason(reason string) string {
	switch strings.ToLower(reason) {
	case "":
		return ""
	case "stop", "end_turn", "stop_sequence", "finish_reason_stop":
		return core.FinishStop
	case "tool_calls", "tool_use", "function_call":
		return core.FinishToolCalls
	case "length", "max_tokens", "finish_reason_max_tokens":
		return core.FinishLength
	case "content_filter", "safety", "refusal", "blocklist", "prohibited_content", "spii", "recitation":
		return core.FinishContentFilter
	default:
		return core.FinishStop
	}
}

// ParseArguments decodes the JSON argument string of a tool call. Arguments
// that are not a JSON object are kept verbatim under RawArgumentsKey so the
// tool reports a validation error instead of the loop failing.
func ParseArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{RawArgumentsKey: raw}
	}
	return args
}

// EncodeArguments renders tool call arguments as a JSON object string.
func EncodeArguments(args map[string]any) string {
	if raw, ok := args[RawArgumentsKey].(string); ok && len(args) == 1 {
		return raw
	}
	if args == nil {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}
