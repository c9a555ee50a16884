// Package model defines the provider-agnostic abstractions for interacting
// with language models inside agenthub.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool call representation (ToolDefinition, core.ToolCall) and
//     finish reasons (stop, tool_calls, length, content_filter)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate deterministic testing (ScriptedModel)
//
// Providers (OpenAI, Anthropic, Gemini) implement the Model interface in
// sub-packages; the Registry caches one client per model id for the process
// lifetime.
package model
