package flow

import (
	"fmt"
	"time"

	"github.com/hupe1980/agenthub/core"
	internalutil "github.com/hupe1980/agenthub/internal/util"
	"github.com/hupe1980/agenthub/model"
)

// DateLayout formats the current_date template variable.
const DateLayout = "January 02, 2006"

// resolveInstructions renders the agent instructions for a model call.
func (m *Machine) resolveInstructions(now time.Time) (string, error) {
	instructions, err := internalutil.RenderTemplate(m.cfg.Instructions, map[string]any{
		"current_date": now.Format(DateLayout),
		"agent_name":   m.cfg.Name,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render instructions of agent %s: %w", m.cfg.Name, err)
	}

	m.opts.Logger.Debug("flow.instructions.resolved", "agent", m.cfg.Name, "length", len(instructions))

	return instructions, nil
}

// buildRequest assembles the model request from the fixed instructions, the
// current history and the tool declarations (delegate tools included).
func (m *Machine) buildRequest(st *core.ConversationState, stream bool) (model.Request, error) {
	instructions, err := m.resolveInstructions(m.opts.Now())
	if err != nil {
		return model.Request{}, err
	}

	return model.Request{
		Instructions: instructions,
		Messages:     st.Snapshot(),
		Tools:        m.tools.Definitions(),
		Stream:       stream,
	}, nil
}
