package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"maps"
	"sync/atomic"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/logging"
)

// errStop unwinds the reconstruction when the consumer stops iterating.
var errStop = errors.New("iteration stopped")

// Options configure a Reconstructor.
type Options struct {
	// Live marks handles as running while their result is pending.
	Live   bool
	Logger logging.Logger
}

// Reconstructor turns the event stream of one turn into render
// instructions. It is single-use.
//
// Tool calls are resolved in the order the AI message lists them. A leaf
// call is closed by the tool message carrying its id; a delegation is closed
// by the sub-agent's final AI message (finish reason present and not
// tool_calls). Delegations nest to arbitrary depth.
type Reconstructor struct {
	src  Source
	opts Options
	used atomic.Bool

	yield     func(Instruction, error) bool
	lastType  core.MessageType
	streaming bool
	open      map[string]*pending
}

type pending struct {
	call   core.ToolCall
	closed bool
}

// New creates a reconstructor reading from src.
func New(src Source, optFns ...func(o *Options)) *Reconstructor {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Reconstructor{src: src, opts: opts, open: map[string]*pending{}}
}

// Instructions returns the lazy instruction sequence. Iteration stops after
// the first error; instructions yielded before it remain valid. Iterating a
// second time yields core.ErrReconstructorConsumed.
func (r *Reconstructor) Instructions(ctx context.Context) iter.Seq2[Instruction, error] {
	return func(yield func(Instruction, error) bool) {
		if !r.used.CompareAndSwap(false, true) {
			yield(nil, core.ErrReconstructorConsumed)
			return
		}

		r.yield = yield
		err := r.run(ctx)
		r.yield = nil

		if err != nil && !errors.Is(err, errStop) {
			if errors.Is(err, core.ErrProtocolViolation) {
				r.opts.Logger.Warn("transcript.protocol_violation", "error", err.Error())
			}
			yield(nil, err)
		}
	}
}

// Collect drains the reconstructor into a slice.
func (r *Reconstructor) Collect(ctx context.Context) ([]Instruction, error) {
	var out []Instruction
	for inst, err := range r.Instructions(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func (r *Reconstructor) emit(inst Instruction) error {
	if !r.yield(inst, nil) {
		return errStop
	}
	return nil
}

func (r *Reconstructor) next(ctx context.Context) (core.StreamEvent, error) {
	ev, err := r.src.Next(ctx)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, &core.ProtocolError{Reason: "nil event"}
	}
	return ev, nil
}

func (r *Reconstructor) run(ctx context.Context) error {
	for {
		ev, err := r.next(ctx)
		if errors.Is(err, io.EOF) {
			if len(r.open) > 0 {
				return &core.ProtocolError{Reason: fmt.Sprintf("stream ended with %d open tool calls", len(r.open))}
			}
			return nil
		}
		if err != nil {
			return err
		}

		switch e := ev.(type) {
		case core.TokenEvent:
			if err := r.ensureContainer(core.TypeAI); err != nil {
				return err
			}
			r.streaming = true
			if err := r.emit(StreamText{Text: e.Text}); err != nil {
				return err
			}
		case core.MessageEvent:
			if err := r.topLevel(ctx, e.Message); err != nil {
				return err
			}
		default:
			return &core.TypeMismatchError{Want: "stream event", Got: ev}
		}
	}
}

// ensureContainer opens a container unless the previous top-level output
// already had role (consecutive AI output coalesces).
func (r *Reconstructor) ensureContainer(role core.MessageType) error {
	if r.lastType == role {
		return nil
	}
	r.lastType = role
	r.streaming = false
	return r.emit(OpenContainer{Role: role})
}

func (r *Reconstructor) topLevel(ctx context.Context, msg core.Message) error {
	return core.SwitchMessage(msg, core.MessageSwitch{
		Human: func(m *core.HumanMessage) error {
			r.lastType = core.TypeHuman
			r.streaming = false
			if err := r.emit(OpenContainer{Role: core.TypeHuman}); err != nil {
				return err
			}
			return r.emit(WriteText{Text: m.Content, RunID: m.RunID})
		},
		AI: func(m *core.AIMessage) error {
			if err := r.ensureContainer(core.TypeAI); err != nil {
				return err
			}
			if m.Content != "" || r.streaming {
				r.streaming = false
				if err := r.emit(WriteText{Text: m.Content, RunID: m.RunID}); err != nil {
					return err
				}
			}
			if m.HasToolCalls() {
				return r.resolveCalls(ctx, m, "")
			}
			return nil
		},
		Tool: func(m *core.ToolMessage) error {
			// an orphan result renders as a completed standalone handle
			if err := r.ensureContainer(core.TypeAI); err != nil {
				return err
			}
			if err := r.emit(OpenHandle{CallID: m.ToolCallID, Name: m.Name}); err != nil {
				return err
			}
			if err := r.emit(WriteHandle{CallID: m.ToolCallID, Output: m.Content}); err != nil {
				return err
			}
			return r.emit(CloseHandle{CallID: m.ToolCallID, Status: m.Status})
		},
		Custom: func(m *core.CustomMessage) error {
			return r.emit(Signal{Data: maps.Clone(m.Data)})
		},
	})
}

// resolveCalls opens one handle per call in order and then resolves each
// still open handle in the same order.
func (r *Reconstructor) resolveCalls(ctx context.Context, m *core.AIMessage, parent string) error {
	handles := make([]*pending, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		if _, dup := r.open[tc.ID]; dup || tc.ID == "" {
			return &core.ProtocolError{Reason: "duplicate or empty tool_call_id", CallID: tc.ID}
		}
		h := &pending{call: tc}
		r.open[tc.ID] = h
		handles = append(handles, h)

		if err := r.emit(OpenHandle{
			CallID:   tc.ID,
			Parent:   parent,
			Name:     tc.Name,
			Args:     maps.Clone(tc.Args),
			Delegate: tc.IsDelegation(),
			Running:  r.opts.Live,
		}); err != nil {
			return err
		}
	}

	for _, h := range handles {
		if h.closed {
			continue
		}
		var err error
		if h.call.IsDelegation() {
			err = r.nested(ctx, h)
		} else {
			err = r.awaitResult(ctx, h)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// awaitResult pulls tool messages until h is closed. Results of sibling
// calls may arrive first and are applied to their own handles.
func (r *Reconstructor) awaitResult(ctx context.Context, h *pending) error {
	for !h.closed {
		ev, err := r.next(ctx)
		if errors.Is(err, io.EOF) {
			return &core.ProtocolError{Reason: "stream ended before tool result", CallID: h.call.ID}
		}
		if err != nil {
			return err
		}

		me, ok := ev.(core.MessageEvent)
		if !ok {
			return &core.ProtocolError{Reason: "token fragment where a tool result is required", CallID: h.call.ID}
		}
		tm, ok := me.Message.(*core.ToolMessage)
		if !ok {
			return &core.ProtocolError{Reason: fmt.Sprintf("%s message where a tool result is required", me.Message.Type()), CallID: h.call.ID}
		}
		if err := r.applyResult(tm); err != nil {
			return err
		}
	}
	return nil
}

// applyResult matches tm to its open handle. A successful result for a
// delegation is the hand-off notice: it is recorded and the handle stays
// open for the sub-transcript.
func (r *Reconstructor) applyResult(tm *core.ToolMessage) error {
	h, ok := r.open[tm.ToolCallID]
	if !ok {
		return &core.ProtocolError{Reason: "unknown tool_call_id", CallID: tm.ToolCallID}
	}

	if err := r.emit(WriteHandle{CallID: tm.ToolCallID, Output: tm.Content}); err != nil {
		return err
	}
	if h.call.IsDelegation() && tm.Status != core.ToolError {
		return nil
	}

	return r.close(h, tm.Status)
}

func (r *Reconstructor) close(h *pending, status core.ToolStatus) error {
	h.closed = true
	delete(r.open, h.call.ID)
	return r.emit(CloseHandle{CallID: h.call.ID, Status: status})
}

// nested attributes events to the delegation handle h until the sub-agent
// emits its final AI message.
func (r *Reconstructor) nested(ctx context.Context, h *pending) error {
	id := h.call.ID
	streaming := false

	for !h.closed {
		ev, err := r.next(ctx)
		if errors.Is(err, io.EOF) {
			return &core.ProtocolError{Reason: "stream ended inside delegation", CallID: id}
		}
		if err != nil {
			return err
		}

		switch e := ev.(type) {
		case core.TokenEvent:
			streaming = true
			if err := r.emit(StreamText{Handle: id, Text: e.Text}); err != nil {
				return err
			}
		case core.MessageEvent:
			err := core.SwitchMessage(e.Message, core.MessageSwitch{
				Human: func(*core.HumanMessage) error {
					return &core.ProtocolError{Reason: "human message inside delegation", CallID: id}
				},
				AI: func(m *core.AIMessage) error {
					if m.Content != "" || streaming {
						streaming = false
						if err := r.emit(WriteText{Handle: id, Text: m.Content, RunID: m.RunID}); err != nil {
							return err
						}
					}
					if m.HasToolCalls() {
						if err := r.resolveCalls(ctx, m, id); err != nil {
							return err
						}
					}
					if m.IsFinal() {
						return r.close(h, core.ToolSuccess)
					}
					return nil
				},
				Tool: r.applyResult,
				Custom: func(m *core.CustomMessage) error {
					return r.emit(Signal{Data: maps.Clone(m.Data)})
				},
			})
			if err != nil {
				return err
			}
		default:
			return &core.TypeMismatchError{Want: "stream event", Got: ev}
		}
	}

	return nil
}
