package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/model"
)

func TestBuildMessages_MergesToolResults(t *testing.T) {
	msgs, err := buildMessages([]core.Message{
		core.NewHumanMessage("look up two things"),
		&core.AIMessage{ToolCalls: []core.ToolCall{
			{ID: "a", Name: "Wikipedia", Args: map[string]any{"query": "Go"}},
			{ID: "b", Name: "Arxiv", Args: map[string]any{"query": "LLM"}},
		}},
		core.NewToolMessage("a", "Wikipedia", "Go is a language", core.ToolSuccess),
		core.NewToolMessage("b", "Arxiv", "Error: timeout", core.ToolError),
		core.NewCustomMessage(map[string]any{"x": 1}),
		core.NewAIMessage("done"),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	assert.Len(t, msgs[2].Content, 2, "both tool results travel in one user message")
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[3].Role)
}

func TestBuildTools_RequiredAndDescription(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{Function: model.FunctionDefinition{
		Name:        "Calculator",
		Description: "evaluates math",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"expression": map[string]any{"type": "string"}},
			"required":   []any{"expression"},
		},
	}}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "Calculator", tools[0].OfTool.Name)
	assert.Equal(t, []string{"expression"}, tools[0].OfTool.InputSchema.Required)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "k" })
	assert.Equal(t, "anthropic", m.Info().Provider)
}
