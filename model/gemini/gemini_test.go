package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/hupe1980/agenthub/core"
)

func TestBuildContents(t *testing.T) {
	contents, err := buildContents([]core.Message{
		core.NewHumanMessage("what is 2+2"),
		&core.AIMessage{ToolCalls: []core.ToolCall{{ID: "c1", Name: "Calculator", Args: map[string]any{"expression": "2+2"}}}},
		core.NewToolMessage("c1", "Calculator", "4", core.ToolSuccess),
		core.NewHumanMessage("thanks"),
	})
	require.NoError(t, err)
	require.Len(t, contents, 3)

	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, "c1", contents[1].Parts[0].FunctionCall.ID)

	require.Len(t, contents[2].Parts, 2, "tool result and the following human text share the user turn")
	assert.Equal(t, "4", contents[2].Parts[0].FunctionResponse.Response["output"])
	assert.Equal(t, "thanks", contents[2].Parts[1].Text)
}

func TestConvertResponse(t *testing.T) {
	m := &Model{opts: Options{Model: "gemini-2.0-flash"}}

	msg, err := m.convertResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "let me compute"},
				{FunctionCall: &genai.FunctionCall{Name: "Calculator", Args: map[string]any{"expression": "pi"}}},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 12},
	})
	require.NoError(t, err)

	assert.Equal(t, "let me compute", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.NotEmpty(t, msg.ToolCalls[0].ID)
	assert.Equal(t, core.FinishToolCalls, msg.Metadata.FinishReason)
	assert.Equal(t, 12, msg.Metadata.Usage.TotalTokens)

	_, err = m.convertResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}
