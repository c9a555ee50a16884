package transcript

import (
	"context"
	"io"

	"github.com/hupe1980/agenthub/core"
)

// Source yields the events of one turn in order. Next returns io.EOF once
// the stream is exhausted.
type Source interface {
	Next(ctx context.Context) (core.StreamEvent, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (core.StreamEvent, error)

// Next implements Source.
func (f SourceFunc) Next(ctx context.Context) (core.StreamEvent, error) { return f(ctx) }

type sliceSource struct {
	events []core.StreamEvent
	pos    int
}

func (s *sliceSource) Next(ctx context.Context) (core.StreamEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

// FromSlice replays a persisted message list without token fragments.
func FromSlice(msgs []core.Message) Source {
	return &sliceSource{events: core.EventsFromMessages(msgs)}
}

// FromEvents replays a recorded event stream.
func FromEvents(events []core.StreamEvent) Source {
	return &sliceSource{events: append([]core.StreamEvent(nil), events...)}
}

type chanSource struct {
	evCh  <-chan core.StreamEvent
	errCh <-chan error
}

// FromChannel consumes a live stream. The stream ends when evCh is closed;
// an error delivered on errCh (which may be nil) is then returned instead of
// io.EOF.
func FromChannel(evCh <-chan core.StreamEvent, errCh <-chan error) Source {
	return &chanSource{evCh: evCh, errCh: errCh}
}

func (s *chanSource) Next(ctx context.Context) (core.StreamEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-s.evCh:
		if ok {
			return ev, nil
		}
	}

	if s.errCh != nil {
		select {
		case err, ok := <-s.errCh:
			if ok && err != nil {
				return nil, err
			}
			s.errCh = nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, io.EOF
}
