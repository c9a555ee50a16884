package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/transcript"
)

const maxOutputLen = 300

var (
	humanStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	aiStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	labelStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
)

// printer writes render instructions and documents to a terminal.
type printer struct {
	w  io.Writer
	md *glamour.TermRenderer

	names map[string]string
	depth map[string]int
	role  core.MessageType

	// token fragments printed for the open stream
	streaming    bool
	streamHandle string
	streamed     strings.Builder
}

func newPrinter(w io.Writer, markdown bool) *printer {
	p := &printer{w: w}
	if markdown {
		// plain text is still printed when no renderer is available
		p.md, _ = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	}
	p.reset()
	return p
}

func (p *printer) reset() {
	p.names = map[string]string{}
	p.depth = map[string]int{}
	p.streaming = false
	p.streamHandle = ""
	p.streamed.Reset()
	p.role = ""
}

// Instruction prints one live instruction. Token fragments are written raw.
// The complete text that follows them only ends the line when it matches
// what was streamed; otherwise the streamed text is marked as replaced and
// the complete text is printed.
func (p *printer) Instruction(inst transcript.Instruction) {
	switch in := inst.(type) {
	case transcript.OpenContainer:
		p.endStream()
		p.role = in.Role
		p.header(in.Role)
	case transcript.StreamText:
		if p.streaming && p.streamHandle != in.Handle {
			p.endStream()
		}
		if !p.streaming {
			fmt.Fprint(p.w, indent(p.level(in.Handle)))
			p.streaming = true
			p.streamHandle = in.Handle
		}
		p.streamed.WriteString(in.Text)
		fmt.Fprint(p.w, in.Text)
	case transcript.WriteText:
		lvl := p.level(in.Handle)
		if p.streaming && p.streamHandle == in.Handle {
			streamed := p.streamed.String()
			p.endStream()
			if strings.TrimSpace(streamed) == strings.TrimSpace(in.Text) {
				return
			}
			fmt.Fprintln(p.w, indent(lvl)+mutedStyle.Render("(replaced)"))
		} else {
			p.endStream()
		}
		if in.Text != "" {
			p.text(in.Text, lvl, p.role == core.TypeAI)
		}
	case transcript.OpenHandle:
		p.endStream()
		lvl := p.level(in.Parent)
		p.names[in.CallID] = in.Name
		p.depth[in.CallID] = lvl + 1
		p.openHandle(in.Name, in.Args, in.Delegate, lvl)
	case transcript.WriteHandle:
		p.endStream()
		p.output(in.Output, p.depth[in.CallID])
	case transcript.CloseHandle:
		p.endStream()
		p.closeHandle(p.names[in.CallID], in.Status, p.depth[in.CallID]-1)
	case transcript.Signal:
		p.endStream()
		p.signal(in.Data, 0)
	}
}

// Document prints a complete document.
func (p *printer) Document(doc *transcript.Document) {
	for _, c := range doc.Containers {
		p.header(c.Role)
		p.blocks(c.Blocks, 0, c.Role == core.TypeAI)
	}
}

func (p *printer) blocks(blocks []transcript.Block, lvl int, markdown bool) {
	for _, b := range blocks {
		switch b := b.(type) {
		case *transcript.TextBlock:
			p.text(b.Text, lvl, markdown)
		case *transcript.ToolBlock:
			p.openHandle(b.Name, b.Args, b.Delegate, lvl)
			if b.Output != "" {
				p.output(b.Output, lvl+1)
			}
			p.blocks(b.Blocks, lvl+1, markdown)
			if b.Closed {
				p.closeHandle(b.Name, b.Status, lvl)
			}
		case *transcript.SignalBlock:
			p.signal(b.Data, lvl)
		}
	}
}

func (p *printer) level(handle string) int {
	if handle == "" {
		return 0
	}
	return p.depth[handle]
}

func (p *printer) endStream() {
	if p.streaming {
		fmt.Fprintln(p.w)
		p.streaming = false
	}
	p.streamHandle = ""
	p.streamed.Reset()
}

func (p *printer) header(role core.MessageType) {
	switch role {
	case core.TypeHuman:
		fmt.Fprintln(p.w, humanStyle.Render("you"))
	case core.TypeAI:
		fmt.Fprintln(p.w, aiStyle.Render("assistant"))
	default:
		fmt.Fprintln(p.w, labelStyle.Render(string(role)))
	}
}

func (p *printer) text(s string, lvl int, markdown bool) {
	if markdown && p.md != nil && lvl == 0 {
		if out, err := p.md.Render(s); err == nil {
			fmt.Fprint(p.w, out)
			return
		}
	}
	writeIndented(p.w, s, lvl)
}

func (p *printer) openHandle(name string, args map[string]any, delegate bool, lvl int) {
	if delegate {
		fmt.Fprintln(p.w, indent(lvl)+toolStyle.Render("→ "+name))
		return
	}
	fmt.Fprintln(p.w, indent(lvl)+toolStyle.Render("⚙ "+name)+" "+mutedStyle.Render(formatArgs(args)))
}

func (p *printer) output(s string, lvl int) {
	writeIndented(p.w, mutedStyle.Render(truncate(s, maxOutputLen)), lvl)
}

func (p *printer) closeHandle(name string, status core.ToolStatus, lvl int) {
	if status == core.ToolError {
		fmt.Fprintln(p.w, indent(lvl)+errorStyle.Render("✗ "+name))
		return
	}
	fmt.Fprintln(p.w, indent(lvl)+toolStyle.Render("✓ "+name))
}

func (p *printer) signal(data map[string]any, lvl int) {
	b, err := json.Marshal(data)
	if err != nil {
		b = []byte(fmt.Sprint(data))
	}
	fmt.Fprintln(p.w, indent(lvl)+mutedStyle.Render("signal "+string(b)))
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args)
	}
	return truncate(string(b), 120)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func indent(lvl int) string { return strings.Repeat("  ", lvl) }

func writeIndented(w io.Writer, s string, lvl int) {
	prefix := indent(lvl)
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		fmt.Fprintln(w, prefix+line)
	}
}
