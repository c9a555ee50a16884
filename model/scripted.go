package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agenthub/core"
)

// Step is one scripted model reply: either a message or an error.
type Step struct {
	Message *core.AIMessage
	Err     error
	// Delay postpones the reply; cancellation of the request context during
	// the delay ends generation with ctx.Err().
	Delay time.Duration
}

// Reply scripts a plain text answer.
func Reply(text string) Step { return Step{Message: core.NewAIMessage(text)} }

// CallTools scripts a message requesting the given tool calls.
func CallTools(calls ...core.ToolCall) Step {
	return Step{Message: &core.AIMessage{
		ID:        core.NewID(),
		ToolCalls: calls,
		Metadata:  core.ResponseMetadata{FinishReason: core.FinishToolCalls},
	}}
}

// Fail scripts an upstream failure.
func Fail(err error) Step { return Step{Err: err} }

// ScriptedModel is a deterministic in-memory Model useful for tests and
// examples. Each Generate call consumes the next scripted step; the requests
// it received can be inspected afterwards.
type ScriptedModel struct {
	info Info

	mu       sync.Mutex
	steps    []Step
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel with tool support enabled.
func NewScriptedModel(name string, steps ...Step) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: name, Provider: "scripted", SupportsTools: true},
		steps: steps,
	}
}

// Push appends further steps to the script.
func (m *ScriptedModel) Push(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate invocations.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *ScriptedModel) next(req Request) (Step, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.Messages = append([]core.Message(nil), req.Messages...)
	m.requests = append(m.requests, req)
	if len(m.steps) == 0 {
		return Step{}, false
	}
	s := m.steps[0]
	m.steps = m.steps[1:]
	return s, true
}

// Generate implements Model; when streaming, the content is emitted word by
// word before the final response.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	step, ok := m.next(req)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if !ok {
			errCh <- fmt.Errorf("scripted model %q: script exhausted", m.info.Name)
			return
		}
		if step.Delay > 0 {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-time.After(step.Delay):
			}
		}
		if step.Err != nil {
			errCh <- step.Err
			return
		}

		msg := core.CloneMessage(step.Message).(*core.AIMessage)
		if msg.ID == "" {
			msg.ID = core.NewID()
		}
		msg.Metadata.Model = m.info.Name

		if req.Stream && msg.Content != "" {
			for _, w := range strings.SplitAfter(msg.Content, " ") {
				if err := Send(ctx, respCh, Response{Partial: true, Text: w}); err != nil {
					errCh <- err
					return
				}
			}
		}

		if err := Send(ctx, respCh, Response{Message: msg, FinishReason: msg.Metadata.FinishReason}); err != nil {
			errCh <- err
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }
