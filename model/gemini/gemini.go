// Package gemini provides a model.Model backed by the Google Gemini API
// through the google.golang.org/genai SDK. Generation is non-streaming; when a
// streaming request is made the complete text is forwarded as a single delta.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/model"
)

// Options configure the Gemini adapter.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	APIKey          string
	BaseURL         string
}

// Model wraps genai.Client behind the model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model. Without an APIKey the SDK reads
// GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:           "gemini-2.0-flash",
		Temperature:     0.5,
		MaxOutputTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := &genai.ClientConfig{APIKey: opts.APIKey, Backend: genai.BackendGeminiAPI}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 2)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents, err := buildContents(req.Messages)
		if err != nil {
			errCh <- err
			return
		}

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, m.buildConfig(req))
		if err != nil {
			errCh <- m.upstream(fmt.Errorf("gemini generate failed: %w", err))
			return
		}

		msg, err := m.convertResponse(resp)
		if err != nil {
			errCh <- m.upstream(err)
			return
		}

		if req.Stream && msg.Content != "" {
			if err := model.Send(ctx, out, model.Response{Partial: true, Text: msg.Content}); err != nil {
				errCh <- err
				return
			}
		}
		if err := model.Send(ctx, out, model.Response{Message: msg, FinishReason: msg.Metadata.FinishReason, Usage: msg.Metadata.Usage}); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(m.opts.Temperature),
		MaxOutputTokens: m.opts.MaxOutputTokens,
	}
	if req.Instructions != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: t.Function.Parameters,
			}
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

func (m *Model) convertResponse(resp *genai.GenerateContentResponse) (*core.AIMessage, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no candidates returned")
	}

	cand := resp.Candidates[0]
	msg := &core.AIMessage{ID: resp.ResponseID}
	if msg.ID == "" {
		msg.ID = core.NewID()
	}

	for _, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			id := p.FunctionCall.ID
			if id == "" {
				id = core.NewID()
			}
			args := p.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{ID: id, Name: p.FunctionCall.Name, Args: args})
		case p.Text != "" && !p.Thought:
			msg.Content += p.Text
		}
	}

	msg.Metadata = core.ResponseMetadata{
		FinishReason: model.NormalizeFinishReason(string(cand.FinishReason)),
		Model:        m.opts.Model,
	}
	if msg.HasToolCalls() {
		msg.Metadata.FinishReason = core.FinishToolCalls
	}
	if u := resp.UsageMetadata; u != nil {
		msg.Metadata.Usage = &core.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	return msg, nil
}

func (m *Model) upstream(err error) error {
	return &core.UpstreamError{Provider: "gemini", Model: m.opts.Model, Err: err}
}

// buildContents converts the conversation into genai contents, merging
// consecutive parts of the same role. Tool results are sent as function
// responses keyed by the originating call.
func buildContents(msgs []core.Message) ([]*genai.Content, error) {
	var out []*genai.Content

	add := func(role string, parts ...*genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			return
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}

	for _, msg := range msgs {
		err := core.SwitchMessage(msg, core.MessageSwitch{
			Human: func(h *core.HumanMessage) error {
				if h.Content != "" {
					add(genai.RoleUser, genai.NewPartFromText(h.Content))
				}
				return nil
			},
			AI: func(a *core.AIMessage) error {
				var parts []*genai.Part
				if a.Content != "" {
					parts = append(parts, genai.NewPartFromText(a.Content))
				}
				for _, tc := range a.ToolCalls {
					p := genai.NewPartFromFunctionCall(tc.Name, tc.Args)
					p.FunctionCall.ID = tc.ID
					parts = append(parts, p)
				}
				add(genai.RoleModel, parts...)
				return nil
			},
			Tool: func(t *core.ToolMessage) error {
				key := "output"
				if t.Status == core.ToolError {
					key = "error"
				}
				p := genai.NewPartFromFunctionResponse(t.Name, map[string]any{key: t.Content})
				p.FunctionResponse.ID = t.ToolCallID
				add(genai.RoleUser, p)
				return nil
			},
			Custom: func(*core.CustomMessage) error { return nil },
		})
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini", SupportsTools: true}
}
