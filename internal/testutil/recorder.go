package testutil

import (
	"strings"
	"sync"

	"github.com/hupe1980/agenthub/core"
)

// Recorder collects stream events. Its Emit method can be used as a
// core.Emitter.
type Recorder struct {
	mu     sync.Mutex
	events []core.StreamEvent
}

// Emit records ev.
func (r *Recorder) Emit(ev core.StreamEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns the recorded events in order.
func (r *Recorder) Events() []core.StreamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.StreamEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Messages returns the messages of all MessageEvents in order.
func (r *Recorder) Messages() []core.Message {
	var out []core.Message
	for _, ev := range r.Events() {
		if me, ok := ev.(core.MessageEvent); ok {
			out = append(out, me.Message)
		}
	}
	return out
}

// Tokens returns the concatenated text of all TokenEvents.
func (r *Recorder) Tokens() string {
	var b strings.Builder
	for _, ev := range r.Events() {
		if te, ok := ev.(core.TokenEvent); ok {
			b.WriteString(te.Text)
		}
	}
	return b.String()
}
