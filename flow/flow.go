// Package flow implements the per-turn tool-calling loop shared by every
// agent.
//
// A Machine is built once from a Config (instructions, tools and sub-agents)
// and then drives any number of independent turns:
//
//	guard_input -> model -> tools -> model ... -> done
//	                  \         \
//	                   blocked   delegate -> (sub-agent machine) -> model
//
// The input and the model output are both checked by a safety.Classifier.
// The caller supplies the step budget on the ConversationState; the driver
// decrements it after every node and a model node that would need another
// tool round with fewer than two steps left ends the turn with a fixed
// advisory message instead.
package flow

import (
	"errors"
	"time"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/safety"
	"github.com/hupe1980/agenthub/tool"
)

// NeedMoreStepsMessage replaces a tool requesting response when the step
// budget is nearly exhausted.
const NeedMoreStepsMessage = "Sorry, need more steps to process this request."

// ErrInvalidConfig is returned by New for malformed agent configurations.
var ErrInvalidConfig = errors.New("invalid agent config")

// Config defines one agent: what it is told, which tools it may call and
// which agents it may hand the conversation to.
type Config struct {
	Name        string
	Description string
	// Instructions is a text/template rendered per model call with
	// current_date and agent_name.
	Instructions string
	Tools        []tool.Tool
	SubAgents    []*Config
}

// State names a node of the turn state machine.
type State string

const (
	StateGuardInput State = "guard_input"
	StateModel      State = "model"
	StateTools      State = "tools"
	// StateDelegate runs a sub-agent machine over the shared conversation.
	StateDelegate State = "delegate"
	StateDone     State = "done"
	StateBlocked  State = "blocked"
)

// Terminal reports whether s ends the turn.
func (s State) Terminal() bool { return s == StateDone || s == StateBlocked }

// Result is the outcome of a turn that reached a terminal state.
type Result struct {
	State    State
	Messages []core.Message
	Safety   *core.SafetyVerdict
}

// Final returns the last message of the turn.
func (r *Result) Final() core.Message {
	if len(r.Messages) == 0 {
		return nil
	}
	return r.Messages[len(r.Messages)-1]
}

// Options configure a Machine. They are inherited by sub-agent machines.
type Options struct {
	// Classifier gates the input and every model response. Required.
	Classifier safety.Classifier
	Logger     logging.Logger
	// ModelTimeout bounds a single model call. Zero disables it.
	ModelTimeout time.Duration
	// MaxParallel bounds concurrent leaf tool calls within one step.
	MaxParallel int
	// Now is used for the current_date template variable.
	Now func() time.Time
}

// Turn carries the per-turn settings passed to Run.
type Turn struct {
	// RunID is stamped on every message the turn appends.
	RunID string
	// Emit receives token and message events in order. May be nil.
	Emit core.Emitter
	// Stream requests token streaming from the model.
	Stream bool
}
