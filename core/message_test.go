package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIMessage_IsFinal(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		want   bool
	}{
		{"absent", "", false},
		{"tool calls", FinishToolCalls, false},
		{"stop", FinishStop, true},
		{"length", FinishLength, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &AIMessage{Metadata: ResponseMetadata{FinishReason: tt.reason}}
			assert.Equal(t, tt.want, m.IsFinal())
		})
	}
}

func TestAsAI_Mismatch(t *testing.T) {
	_, err := AsAI(NewToolMessage("c1", "calc", "4", ToolSuccess))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	var tm *TypeMismatchError
	require.True(t, errors.As(err, &tm))
	assert.Equal(t, "ai", tm.Want)
}

func TestSwitchMessage_MissingHandler(t *testing.T) {
	err := SwitchMessage(NewHumanMessage("hi"), MessageSwitch{
		AI: func(*AIMessage) error { return nil },
	})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestUnmarshalMessage_UnknownType(t *testing.T) {
	_, err := UnmarshalMessage([]byte(`{"type":"system","content":"x"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestUnmarshalMessage_UnknownCallKind(t *testing.T) {
	_, err := UnmarshalMessage([]byte(`{"type":"ai","tool_calls":[{"id":"1","name":"x","args":{},"kind":"spawn"}]}`))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestMessageCodec_PreservesDelegationAndMetadata(t *testing.T) {
	in := &AIMessage{
		ID:      "m1",
		Content: "handing off",
		RunID:   "run-1",
		ToolCalls: []ToolCall{
			{ID: "c1", Name: "transfer_to_wiki", Args: map[string]any{"task": "rag"}, Kind: CallDelegate},
			{ID: "c2", Name: "Calculator", Args: map[string]any{"expression": "2+2"}},
		},
		Metadata: ResponseMetadata{FinishReason: FinishToolCalls, Model: "gpt-4o-mini"},
	}

	b, err := MarshalMessage(in)
	require.NoError(t, err)

	out, err := UnmarshalMessage(b)
	require.NoError(t, err)

	ai, err := AsAI(out)
	require.NoError(t, err)
	require.Len(t, ai.ToolCalls, 2)
	assert.True(t, ai.ToolCalls[0].IsDelegation())
	assert.False(t, ai.ToolCalls[1].IsDelegation())
	assert.Equal(t, FinishToolCalls, ai.Metadata.FinishReason)
	assert.Equal(t, "run-1", ai.RunID)
}

func TestDecodeMessages_JSONLines(t *testing.T) {
	msgs := []Message{
		NewHumanMessage("2+2"),
		NewAIMessage("4"),
		NewCustomMessage(map[string]any{"handoff": "wiki"}),
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeMessages(&buf, msgs))

	decoded, err := DecodeMessages(strings.NewReader(buf.String() + "\n\n"))
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	assert.Equal(t, TypeHuman, decoded[0].Type())
	assert.Equal(t, "4", decoded[1].Text())
	assert.Equal(t, "wiki", decoded[2].(*CustomMessage).Data["handoff"])
}

func TestDecodeMessages_ReportsLine(t *testing.T) {
	_, err := DecodeMessages(strings.NewReader("{\"type\":\"human\",\"content\":\"a\"}\n{\"type\":\"bogus\"}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWithRunID_DoesNotMutateOriginal(t *testing.T) {
	orig := &AIMessage{ID: "a", ToolCalls: []ToolCall{{ID: "c", Name: "n", Args: map[string]any{"k": 1}}}}
	stamped := WithRunID(orig, "run-9").(*AIMessage)

	stamped.ToolCalls[0].Args["k"] = 2

	assert.Equal(t, "run-9", stamped.RunID)
	assert.Empty(t, orig.RunID)
	assert.Equal(t, 1, orig.ToolCalls[0].Args["k"])
}

func TestConversationState(t *testing.T) {
	st := NewConversationState([]Message{NewHumanMessage("earlier")}, NewHumanMessage("now"), 0)
	assert.Equal(t, DefaultStepBudget, st.RemainingSteps)
	assert.Nil(t, st.Safety)
	assert.Equal(t, "now", st.Last().Text())

	st.SetSafety(NewUnsafeVerdict("Hate"))
	first := st.Safety
	st.SetSafety(NewSafeVerdict())
	assert.True(t, first.IsUnsafe(), "replacing the verdict must not mutate the previous one")
	assert.False(t, st.Safety.IsUnsafe())
}

func TestSafetyVerdict_CategoriesAreCopied(t *testing.T) {
	cats := []string{"Violent Crimes"}
	v := NewUnsafeVerdict(cats...)
	cats[0] = "changed"

	got := v.UnsafeCategories()
	got = append(got, "extra")

	assert.Equal(t, []string{"Violent Crimes"}, v.UnsafeCategories())
	assert.Len(t, got, 2)
}
