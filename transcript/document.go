package transcript

import (
	"context"
	"fmt"
	"maps"

	"github.com/hupe1980/agenthub/core"
)

// Block is a node of a rendered document: *TextBlock, *ToolBlock or
// *SignalBlock.
type Block interface{ isBlock() }

// TextBlock is message text.
type TextBlock struct {
	Text string
}

// ToolBlock is a tool call with its result. Delegations hold the
// sub-agent's transcript in Blocks.
type ToolBlock struct {
	CallID   string
	Name     string
	Args     map[string]any
	Delegate bool
	Output   string
	Status   core.ToolStatus
	Closed   bool
	Blocks   []Block
}

// SignalBlock carries custom message data.
type SignalBlock struct {
	Data map[string]any
}

func (*TextBlock) isBlock()   {}
func (*ToolBlock) isBlock()   {}
func (*SignalBlock) isBlock() {}

// Container is one top-level chat bubble.
type Container struct {
	Role   core.MessageType
	Blocks []Block
}

// Document folds render instructions into a tree. Live and replayed runs of
// the same turn produce equal Containers: streamed fragments are replaced by
// the complete text and the running flag of handles is not recorded.
type Document struct {
	Containers []*Container

	tools     map[string]*ToolBlock
	streams   map[any]*TextBlock
	lastRunID string
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{tools: map[string]*ToolBlock{}, streams: map[any]*TextBlock{}}
}

// Build drains r into a new document. On error the document holds
// everything rendered before the failure.
func Build(ctx context.Context, r *Reconstructor) (*Document, error) {
	d := NewDocument()
	for inst, err := range r.Instructions(ctx) {
		if err != nil {
			return d, err
		}
		if err := d.Apply(inst); err != nil {
			return d, err
		}
	}
	return d, nil
}

// LastRunID returns the run id of the last top-level AI text, the hook
// used to attach feedback to a turn.
func (d *Document) LastRunID() string { return d.lastRunID }

// Apply folds one instruction into the document.
func (d *Document) Apply(inst Instruction) error {
	switch in := inst.(type) {
	case OpenContainer:
		d.Containers = append(d.Containers, &Container{Role: in.Role})
	case StreamText:
		key, blocks, err := d.target(in.Handle)
		if err != nil {
			return err
		}
		tb := d.streams[key]
		if tb == nil {
			tb = &TextBlock{}
			*blocks = append(*blocks, tb)
			d.streams[key] = tb
		}
		tb.Text += in.Text
	case WriteText:
		key, blocks, err := d.target(in.Handle)
		if err != nil {
			return err
		}
		if tb := d.streams[key]; tb != nil {
			delete(d.streams, key)
			if in.Text == "" {
				*blocks = removeBlock(*blocks, tb)
			} else {
				tb.Text = in.Text
			}
		} else if in.Text != "" {
			*blocks = append(*blocks, &TextBlock{Text: in.Text})
		}
		if in.Handle == "" && in.RunID != "" {
			if c := d.current(); c != nil && c.Role == core.TypeAI {
				d.lastRunID = in.RunID
			}
		}
	case OpenHandle:
		if _, dup := d.tools[in.CallID]; dup {
			return fmt.Errorf("document: handle %s already open", in.CallID)
		}
		_, blocks, err := d.target(in.Parent)
		if err != nil {
			return err
		}
		tb := &ToolBlock{CallID: in.CallID, Name: in.Name, Args: maps.Clone(in.Args), Delegate: in.Delegate}
		*blocks = append(*blocks, tb)
		d.tools[in.CallID] = tb
	case WriteHandle:
		tb, ok := d.tools[in.CallID]
		if !ok {
			return fmt.Errorf("document: unknown handle %s", in.CallID)
		}
		if tb.Output != "" {
			tb.Output += "\n"
		}
		tb.Output += in.Output
	case CloseHandle:
		tb, ok := d.tools[in.CallID]
		if !ok {
			return fmt.Errorf("document: unknown handle %s", in.CallID)
		}
		tb.Status = in.Status
		tb.Closed = true
		delete(d.tools, in.CallID)
		delete(d.streams, tb)
	case Signal:
		c := d.current()
		if c == nil {
			c = &Container{Role: core.TypeCustom}
			d.Containers = append(d.Containers, c)
		}
		c.Blocks = append(c.Blocks, &SignalBlock{Data: maps.Clone(in.Data)})
	default:
		return &core.TypeMismatchError{Want: "instruction", Got: inst}
	}
	return nil
}

func (d *Document) current() *Container {
	if len(d.Containers) == 0 {
		return nil
	}
	return d.Containers[len(d.Containers)-1]
}

// target resolves a handle id ("" for the current container) to its block
// list and stream key.
func (d *Document) target(handle string) (any, *[]Block, error) {
	if handle == "" {
		c := d.current()
		if c == nil {
			return nil, nil, fmt.Errorf("document: no open container")
		}
		return c, &c.Blocks, nil
	}
	tb, ok := d.tools[handle]
	if !ok {
		return nil, nil, fmt.Errorf("document: unknown handle %s", handle)
	}
	return tb, &tb.Blocks, nil
}

func removeBlock(blocks []Block, b Block) []Block {
	for i, x := range blocks {
		if x == b {
			return append(blocks[:i], blocks[i+1:]...)
		}
	}
	return blocks
}
