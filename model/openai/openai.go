// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API (including streaming + function/tool calling). The same
// adapter serves OpenAI compatible endpoints (Groq, Ollama) via a base URL and
// Azure OpenAI via the azure request options.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// allowing reconstruction of complete tool calls when the stream ends.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64

	// Provider is reported by Info and used in upstream errors.
	Provider string

	APIKey  string
	BaseURL string

	// AzureEndpoint switches the client to Azure OpenAI; Model is then the
	// deployment name.
	AzureEndpoint   string
	AzureAPIVersion string
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.5,
		MaxCompletionTokens: 4096,
		Provider:            "openai",
		AzureAPIVersion:     "2024-10-21",
	}
}

// NewModel creates a new OpenAI model using the official client. Without an
// explicit APIKey the client falls back to OPENAI_API_KEY.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	switch {
	case opts.AzureEndpoint != "":
		clientOpts = append(clientOpts, azure.WithEndpoint(opts.AzureEndpoint, opts.AzureAPIVersion))
		if opts.APIKey != "" {
			clientOpts = append(clientOpts, azure.WithAPIKey(opts.APIKey))
		}
	default:
		if opts.APIKey != "" {
			clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
		}
		if opts.BaseURL != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
		}
	}

	client := openai.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		messages, err := buildMessages(req)
		if err != nil {
			errCh <- err
			return
		}
		params := m.buildParams(req, messages)
		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}
		m.handleNonStreaming(ctx, params, out, errCh)
	}()

	return out, errCh
}

// buildMessages converts the conversation into OpenAI chat messages. Custom
// messages are out-of-band signals and never reach the provider.
func buildMessages(req model.Request) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}

	for _, msg := range req.Messages {
		err := core.SwitchMessage(msg, core.MessageSwitch{
			Human: func(h *core.HumanMessage) error {
				messages = append(messages, openai.UserMessage(h.Content))
				return nil
			},
			AI: func(a *core.AIMessage) error {
				messages = append(messages, assistantMessage(a))
				return nil
			},
			Tool: func(t *core.ToolMessage) error {
				messages = append(messages, openai.ToolMessage(t.Content, t.ToolCallID))
				return nil
			},
			Custom: func(*core.CustomMessage) error { return nil },
		})
		if err != nil {
			return nil, err
		}
	}

	return messages, nil
}

func assistantMessage(a *core.AIMessage) openai.ChatCompletionMessageParamUnion {
	if !a.HasToolCalls() {
		return openai.AssistantMessage(a.Content)
	}

	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(a.ToolCalls))
	for i, tc := range a.ToolCalls {
		toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: model.EncodeArguments(tc.Args),
			},
		}
	}

	p := &openai.ChatCompletionAssistantMessageParam{Role: "assistant", ToolCalls: toolCalls}
	if a.Content != "" {
		p.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(a.Content)}
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: p}
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (m *Model) buildParams(
	req model.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  tdef.Function.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

func (m *Model) upstream(err error) error {
	return &core.UpstreamError{Provider: m.opts.Provider, Model: m.opts.Model, Err: err}
}

// handleStreaming forwards text deltas as partial responses and emits one
// final response once the stream is exhausted.
func (m *Model) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var (
		text         strings.Builder
		id           string
		finishReason string
		usage        *core.TokenUsage
	)
	toolAgg := map[int64]*aggCall{}

	for stream.Next() {
		ck := stream.Current()
		if id == "" {
			id = ck.ID
		}
		if ck.Usage.TotalTokens > 0 {
			usage = &core.TokenUsage{
				PromptTokens:     int(ck.Usage.PromptTokens),
				CompletionTokens: int(ck.Usage.CompletionTokens),
				TotalTokens:      int(ck.Usage.TotalTokens),
			}
		}
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				text.WriteString(ch.Delta.Content)
				if err := model.Send(ctx, out, model.Response{Partial: true, Text: ch.Delta.Content}); err != nil {
					errCh <- err
					return
				}
			}
			aggregateToolCalls(ch, toolAgg)
			if ch.FinishReason != "" {
				finishReason = ch.FinishReason
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- m.upstream(fmt.Errorf("openai streaming error: %w", err))
		return
	}
	if finishReason == "" && text.Len() == 0 && len(toolAgg) == 0 {
		errCh <- m.upstream(errors.New("empty stream"))
		return
	}

	msg := &core.AIMessage{
		ID:        messageID(id),
		Content:   text.String(),
		ToolCalls: sortedToolCalls(toolAgg),
		Metadata: core.ResponseMetadata{
			FinishReason: model.NormalizeFinishReason(finishReason),
			Model:        m.opts.Model,
			Usage:        usage,
		},
	}
	if err := model.Send(ctx, out, model.Response{Message: msg, FinishReason: msg.Metadata.FinishReason, Usage: usage}); err != nil {
		errCh <- err
	}
}

func aggregateToolCalls(ch openai.ChatCompletionChunkChoice, agg map[int64]*aggCall) {
	for _, tc := range ch.Delta.ToolCalls {
		ac, ok := agg[tc.Index]
		if !ok {
			ac = &aggCall{}
			agg[tc.Index] = ac
		}
		if tc.ID != "" {
			ac.id = tc.ID
		}
		if tc.Function.Name != "" {
			ac.name = tc.Function.Name
		}
		ac.args += tc.Function.Arguments
	}
}

// sortedToolCalls returns the aggregated calls in stream index order.
func sortedToolCalls(agg map[int64]*aggCall) []core.ToolCall {
	if len(agg) == 0 {
		return nil
	}
	idx := make([]int64, 0, len(agg))
	for i := range agg {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })

	calls := make([]core.ToolCall, 0, len(idx))
	for _, i := range idx {
		ac := agg[i]
		calls = append(calls, core.ToolCall{ID: ac.id, Name: ac.name, Args: model.ParseArguments(ac.args)})
	}
	return calls
}

// handleNonStreaming processes a normal (non-streaming) completion.
func (m *Model) handleNonStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- m.upstream(fmt.Errorf("openai api error: %w", err))
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- m.upstream(errors.New("no choices returned"))
		return
	}

	ch0 := resp.Choices[0]
	calls := make([]core.ToolCall, 0, len(ch0.Message.ToolCalls))
	for _, tc := range ch0.Message.ToolCalls {
		calls = append(calls, core.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: model.ParseArguments(tc.Function.Arguments)})
	}

	usage := &core.TokenUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	msg := &core.AIMessage{
		ID:      messageID(resp.ID),
		Content: ch0.Message.Content,
		Metadata: core.ResponseMetadata{
			FinishReason: model.NormalizeFinishReason(ch0.FinishReason),
			Model:        m.opts.Model,
			Usage:        usage,
		},
	}
	if len(calls) > 0 {
		msg.ToolCalls = calls
	}

	if err := model.Send(ctx, out, model.Response{Message: msg, FinishReason: msg.Metadata.FinishReason, Usage: usage}); err != nil {
		errCh <- err
	}
}

func messageID(id string) string {
	if id == "" {
		return core.NewID()
	}
	return id
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      m.opts.Provider,
		SupportsTools: true,
	}
}
