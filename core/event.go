package core

import "github.com/google/uuid"

// StreamEvent is one element of a turn's ordered event stream: either a raw
// token fragment or a complete message. The set is closed.
type StreamEvent interface{ isStreamEvent() }

// TokenEvent is a streamed text delta of the AI message currently being generated.
type TokenEvent struct {
	Text string
}

func (TokenEvent) isStreamEvent() {}

// MessageEvent carries a complete message that was appended to the conversation.
type MessageEvent struct {
	Message Message
}

func (MessageEvent) isStreamEvent() {}

// Emitter receives stream events in order. A nil Emitter discards events.
type Emitter func(StreamEvent)

// Emit forwards ev when the emitter is set.
func (e Emitter) Emit(ev StreamEvent) {
	if e != nil {
		e(ev)
	}
}

// Token emits a token fragment.
func (e Emitter) Token(text string) { e.Emit(TokenEvent{Text: text}) }

// Message emits a complete message.
func (e Emitter) Message(m Message) { e.Emit(MessageEvent{Message: m}) }

// EventsFromMessages converts a completed message list into a stream without
// token fragments (replay).
func EventsFromMessages(msgs []Message) []StreamEvent {
	events := make([]StreamEvent, len(msgs))
	for i, m := range msgs {
		events[i] = MessageEvent{Message: m}
	}

	return events
}

// NewID generates a new unique identifier for messages, runs and threads.
func NewID() string { return uuid.NewString() }
