package tool

import (
	"fmt"

	"github.com/hupe1980/agenthub/model"
)

// Set is an immutable, ordered collection of uniquely named tools.
type Set struct {
	tools  []Tool
	byName map[string]Tool
}

// NewSet builds a Set. Duplicate or empty names are rejected.
func NewSet(tools ...Tool) (*Set, error) {
	s := &Set{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil || t.Name() == "" {
			return nil, fmt.Errorf("tool set: tool without a name")
		}
		if _, dup := s.byName[t.Name()]; dup {
			return nil, fmt.Errorf("tool set: duplicate tool %q", t.Name())
		}
		s.byName[t.Name()] = t
		s.tools = append(s.tools, t)
	}
	return s, nil
}

// Get returns the tool registered under name.
func (s *Set) Get(name string) (Tool, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.byName[name]
	return t, ok
}

// Len returns the number of tools.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tools)
}

// Tools returns the tools in registration order.
func (s *Set) Tools() []Tool {
	if s == nil {
		return nil
	}
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Definitions returns the model facing declarations in registration order.
func (s *Set) Definitions() []model.ToolDefinition {
	if s.Len() == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, len(s.tools))
	for i, t := range s.tools {
		defs[i] = Definition(t)
	}
	return defs
}
