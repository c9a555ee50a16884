// Package agent defines the agents served by the hub.
//
// Every agent is a flow.Config: instructions rendered per model call, the
// tools it may call and the agents it may hand the conversation to. A
// Registry holds the configurations keyed by agent id and describes them to
// clients. The default agent is chatbot.
package agent
