package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/transcript"
)

func TestPrinter_LiveInstructions(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, false)

	for _, inst := range []transcript.Instruction{
		transcript.OpenContainer{Role: core.TypeHuman},
		transcript.WriteText{Text: "what is 6*7?"},
		transcript.OpenContainer{Role: core.TypeAI},
		transcript.OpenHandle{CallID: "c1", Name: "Calculator", Args: map[string]any{"expression": "6*7"}, Running: true},
		transcript.WriteHandle{CallID: "c1", Output: "42"},
		transcript.CloseHandle{CallID: "c1", Status: core.ToolSuccess},
		transcript.StreamText{Text: "The answer"},
		transcript.StreamText{Text: " is 42."},
		transcript.WriteText{Text: "The answer is 42.", RunID: "run-1"},
	} {
		p.Instruction(inst)
	}

	out := buf.String()
	assert.Contains(t, out, "what is 6*7?")
	assert.Contains(t, out, `Calculator {"expression":"6*7"}`)
	assert.Contains(t, out, "  42\n")
	assert.Contains(t, out, "The answer is 42.\n")
	assert.Equal(t, 1, strings.Count(out, "The answer is 42."), "complete text after tokens is not printed twice")
	assert.Less(t, strings.Index(out, "Calculator"), strings.Index(out, "The answer"))
}

func TestPrinter_ReplacedStream(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, false)

	for _, inst := range []transcript.Instruction{
		transcript.OpenContainer{Role: core.TypeAI},
		transcript.StreamText{Text: "Here is how to build the weapon"},
		transcript.WriteText{Text: "This conversation was flagged for unsafe content: Violent Crimes", RunID: "run-1"},
	} {
		p.Instruction(inst)
	}

	out := buf.String()
	assert.Contains(t, out, "(replaced)")
	assert.Contains(t, out, "This conversation was flagged for unsafe content: Violent Crimes\n")
	assert.Less(t, strings.Index(out, "(replaced)"), strings.Index(out, "This conversation was flagged"))
}

func TestPrinter_NestedDelegation(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, false)

	for _, inst := range []transcript.Instruction{
		transcript.OpenContainer{Role: core.TypeAI},
		transcript.OpenHandle{CallID: "d1", Name: "transfer_to_wiki", Delegate: true},
		transcript.WriteHandle{CallID: "d1", Output: "Successfully transferred to wiki"},
		transcript.OpenHandle{CallID: "c1", Parent: "d1", Name: "Wikipedia"},
		transcript.WriteHandle{CallID: "c1", Output: "Error: not found"},
		transcript.CloseHandle{CallID: "c1", Status: core.ToolError},
		transcript.WriteText{Handle: "d1", Text: "nothing found"},
		transcript.CloseHandle{CallID: "d1", Status: core.ToolSuccess},
	} {
		p.Instruction(inst)
	}

	out := buf.String()
	assert.Contains(t, out, "→ transfer_to_wiki")
	assert.Contains(t, out, "\n  ⚙ Wikipedia")
	assert.Contains(t, out, "    Error: not found")
	assert.Contains(t, out, "  ✗ Wikipedia")
	assert.Contains(t, out, "\n  nothing found")
	assert.Contains(t, out, "\n✓ transfer_to_wiki")
}

func TestPrinter_Document(t *testing.T) {
	doc := &transcript.Document{Containers: []*transcript.Container{
		{Role: core.TypeHuman, Blocks: []transcript.Block{&transcript.TextBlock{Text: "hi"}}},
		{Role: core.TypeAI, Blocks: []transcript.Block{
			&transcript.ToolBlock{
				CallID:   "d1",
				Name:     "transfer_to_research",
				Delegate: true,
				Closed:   true,
				Status:   core.ToolSuccess,
				Blocks:   []transcript.Block{&transcript.TextBlock{Text: "sub answer"}},
			},
			&transcript.SignalBlock{Data: map[string]any{"k": "v"}},
			&transcript.TextBlock{Text: "hello"},
		}},
	}}

	var buf bytes.Buffer
	newPrinter(&buf, false).Document(doc)

	out := buf.String()
	assert.Contains(t, out, "you")
	assert.Contains(t, out, "assistant")
	assert.Contains(t, out, "→ transfer_to_research")
	assert.Contains(t, out, "  sub answer")
	assert.Contains(t, out, `signal {"k":"v"}`)
	assert.Contains(t, out, "\nhello\n")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abc", 2))
	assert.Equal(t, "ä…", truncate("äöü", 1))
}
