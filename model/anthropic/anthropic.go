// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.5,
		MaxTokens:   4096,
	}
}

// NewModel creates a new Anthropic model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
// It adapts the Anthropic Messages API (with tool use) into model.Response events.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		messages, err := buildMessages(req.Messages)
		if err != nil {
			errCh <- err
			return
		}

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    messages,
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}
		if req.Instructions != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
		}
		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- m.upstream(fmt.Errorf("anthropic api error: %w", err))
			return
		}
		m.emitFinal(ctx, resp, out, errCh)
	}()

	return out, errCh
}

func (m *Model) handleStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	acc := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			errCh <- m.upstream(fmt.Errorf("anthropic stream accumulate: %w", err))
			return
		}

		ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
			if err := model.Send(ctx, out, model.Response{Partial: true, Text: delta.Text}); err != nil {
				errCh <- err
				return
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- m.upstream(fmt.Errorf("anthropic streaming error: %w", err))
		return
	}
	if acc.ID == "" && len(acc.Content) == 0 {
		errCh <- m.upstream(errors.New("empty stream"))
		return
	}

	m.emitFinal(ctx, &acc, out, errCh)
}

func (m *Model) emitFinal(ctx context.Context, resp *anthropic.Message, out chan<- model.Response, errCh chan<- error) {
	msg := &core.AIMessage{ID: resp.ID}
	if msg.ID == "" {
		msg.ID = core.NewID()
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			msg.Content += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			args := ""
			if tu.Input != nil {
				if b, err := json.Marshal(tu.Input); err == nil {
					args = string(b)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{ID: tu.ID, Name: tu.Name, Args: model.ParseArguments(args)})
		}
	}

	usage := &core.TokenUsage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}
	msg.Metadata = core.ResponseMetadata{
		FinishReason: model.NormalizeFinishReason(string(resp.StopReason)),
		Model:        string(m.opts.Model),
		Usage:        usage,
	}
	if msg.Metadata.FinishReason == "" {
		msg.Metadata.FinishReason = core.FinishStop
	}

	if err := model.Send(ctx, out, model.Response{Message: msg, FinishReason: msg.Metadata.FinishReason, Usage: usage}); err != nil {
		errCh <- err
	}
}

func (m *Model) upstream(err error) error {
	return &core.UpstreamError{Provider: "anthropic", Model: string(m.opts.Model), Err: err}
}

// buildMessages converts the conversation into Anthropic messages. Consecutive
// messages of the same role are merged because tool results travel as user
// content blocks.
func buildMessages(msgs []core.Message) ([]anthropic.MessageParam, error) {
	var (
		out     []anthropic.MessageParam
		role    anthropic.MessageParamRole
		pending []anthropic.ContentBlockParamUnion
	)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: pending})
		pending = nil
	}
	add := func(r anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if r != role {
			flush()
			role = r
		}
		pending = append(pending, blocks...)
	}

	for _, msg := range msgs {
		err := core.SwitchMessage(msg, core.MessageSwitch{
			Human: func(h *core.HumanMessage) error {
				if h.Content != "" {
					add(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(h.Content))
				}
				return nil
			},
			AI: func(a *core.AIMessage) error {
				var blocks []anthropic.ContentBlockParamUnion
				if a.Content != "" {
					blocks = append(blocks, anthropic.NewTextBlock(a.Content))
				}
				for _, tc := range a.ToolCalls {
					blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, toolInput(tc.Args), tc.Name))
				}
				add(anthropic.MessageParamRoleAssistant, blocks...)
				return nil
			},
			Tool: func(t *core.ToolMessage) error {
				add(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(t.ToolCallID, t.Content, t.Status == core.ToolError))
				return nil
			},
			Custom: func(*core.CustomMessage) error { return nil },
		})
		if err != nil {
			return nil, err
		}
	}
	flush()

	return out, nil
}

func toolInput(args map[string]any) any {
	if raw, ok := args[model.RawArgumentsKey].(string); ok && len(args) == 1 {
		return raw
	}
	if args == nil {
		return map[string]any{}
	}
	return args
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			switch req := params["required"].(type) {
			case []string:
				inputSchema.Required = req
			case []interface{}:
				for _, r := range req {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}

		u := anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
		if u.OfTool != nil && tool.Function.Description != "" {
			u.OfTool.Description = anthropic.String(tool.Function.Description)
		}
		anthropicTools[i] = u
	}

	return anthropicTools
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
