package transcript

import "github.com/hupe1980/agenthub/core"

// Instruction is one render step produced by a Reconstructor. The set is
// closed; consumers switch on the concrete type.
type Instruction interface{ isInstruction() }

// OpenContainer starts a new top-level chat container for role (human or
// ai). Subsequent top-level text and handles belong to it.
type OpenContainer struct {
	Role core.MessageType
}

// StreamText appends a token fragment to the streaming block of the target.
// An empty Handle targets the current top-level container.
type StreamText struct {
	Handle string
	Text   string
}

// WriteText writes complete message text to the target, replacing the
// target's streaming block when one is open.
type WriteText struct {
	Handle string
	Text   string
	RunID  string
}

// OpenHandle opens the pending-result display for one tool call. Parent is
// the id of the enclosing delegation handle, empty at the top level.
type OpenHandle struct {
	CallID   string
	Parent   string
	Name     string
	Args     map[string]any
	Delegate bool
	// Running is set for live streams so a UI can show progress.
	Running bool
}

// WriteHandle records tool output on a handle.
type WriteHandle struct {
	CallID string
	Output string
}

// CloseHandle completes a handle.
type CloseHandle struct {
	CallID string
	Status core.ToolStatus
}

// Signal forwards the data of a custom message.
type Signal struct {
	Data map[string]any
}

func (OpenContainer) isInstruction() {}
func (StreamText) isInstruction()    {}
func (WriteText) isInstruction()     {}
func (OpenHandle) isInstruction()    {}
func (WriteHandle) isInstruction()   {}
func (CloseHandle) isInstruction()   {}
func (Signal) isInstruction()        {}
