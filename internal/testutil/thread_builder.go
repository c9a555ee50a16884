package testutil

import (
	"github.com/hupe1980/agenthub/core"
)

// ThreadBuilder helps construct threads with fluent chaining for tests.
// Example:
//
//	th := NewThreadBuilder("t-1").Metadata("agent", "chatbot").Messages(m1, m2).Build()
type ThreadBuilder struct {
	id       string
	metadata map[string]string
	messages []core.Message
}

// NewThreadBuilder creates a new builder for a thread with the given id.
func NewThreadBuilder(id string) *ThreadBuilder {
	return &ThreadBuilder{id: id, metadata: map[string]string{}}
}

// Metadata sets or overwrites a metadata key/value pair (chainable).
func (b *ThreadBuilder) Metadata(key, val string) *ThreadBuilder {
	b.metadata[key] = val
	return b
}

// Messages appends messages to the thread history (chainable).
func (b *ThreadBuilder) Messages(msgs ...core.Message) *ThreadBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

// Build returns a *core.Thread with pre-populated metadata and messages.
func (b *ThreadBuilder) Build() *core.Thread {
	t := core.NewThread(b.id)
	for k, v := range b.metadata {
		t.Metadata[k] = v
	}
	t.Append(b.messages...)
	return t
}
