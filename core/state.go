package core

import "slices"

// DefaultStepBudget is the step budget applied when the caller supplies none.
const DefaultStepBudget = 10

// Assessment is the outcome of a safety classification.
type Assessment string

const (
	// Safe means no policy category was violated.
	Safe Assessment = "safe"
	// Unsafe means at least one policy category was violated.
	Unsafe Assessment = "unsafe"
)

// SafetyVerdict is produced fresh for every safety check and never mutated.
type SafetyVerdict struct {
	assessment Assessment
	categories []string
}

// NewSafeVerdict returns a verdict with assessment Safe.
func NewSafeVerdict() SafetyVerdict { return SafetyVerdict{assessment: Safe} }

// NewUnsafeVerdict returns an Unsafe verdict naming the violated categories.
func NewUnsafeVerdict(categories ...string) SafetyVerdict {
	return SafetyVerdict{assessment: Unsafe, categories: slices.Clone(categories)}
}

// Assessment returns safe or unsafe.
func (v SafetyVerdict) Assessment() Assessment { return v.assessment }

// IsUnsafe reports whether the verdict blocks the turn.
func (v SafetyVerdict) IsUnsafe() bool { return v.assessment == Unsafe }

// UnsafeCategories returns a copy of the violated category names.
func (v SafetyVerdict) UnsafeCategories() []string { return slices.Clone(v.categories) }

// ConversationState is the working memory of one turn. It is owned by a
// single turn execution and never shared across concurrent turns. Messages
// are append-only; Safety is replaced, never merged. RemainingSteps is
// decremented by the execution host; nodes only read it.
type ConversationState struct {
	Messages       []Message
	Safety         *SafetyVerdict
	RemainingSteps int
}

// NewConversationState builds the state for a new turn from persisted history
// plus the new human message.
func NewConversationState(history []Message, input Message, budget int) *ConversationState {
	if budget <= 0 {
		budget = DefaultStepBudget
	}

	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, input)

	return &ConversationState{Messages: msgs, RemainingSteps: budget}
}

// Append adds messages to the end of the history.
func (s *ConversationState) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// SetSafety replaces the latest verdict.
func (s *ConversationState) SetSafety(v SafetyVerdict) { s.Safety = &v }

// Last returns the most recent message or nil.
func (s *ConversationState) Last() Message {
	if len(s.Messages) == 0 {
		return nil
	}

	return s.Messages[len(s.Messages)-1]
}

// Snapshot returns a copy of the message slice safe to hand to collaborators.
func (s *ConversationState) Snapshot() []Message { return slices.Clone(s.Messages) }
