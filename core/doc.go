// Package core provides the shared vocabulary of agenthub: the closed message
// union (human, ai, tool, custom), tool-call records, safety verdicts, the
// per-turn ConversationState, stream events and the error taxonomy used by
// every other package.
//
//   - Message / HumanMessage / AIMessage / ToolMessage / CustomMessage
//   - ToolCall with an explicit CallKind (invoke or delegate)
//   - SafetyVerdict (immutable after construction)
//   - ConversationState (append-only messages, replaceable safety verdict)
//   - StreamEvent (token fragments interleaved with complete messages)
//   - Thread / ThreadStore (persisted history collaborators)
//
// The package keeps implementation concerns (model providers, tool execution,
// orchestration) out of scope and exposes small value types and interfaces.
package core
