package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthub/internal/testutil"
)

func TestThread_CloneIsIndependent(t *testing.T) {
	th := testutil.NewThreadBuilder("t-1").
		Metadata("agent", "chatbot").
		Messages(testutil.Human("hi"), testutil.AI("hello")).
		Build()

	clone := th.Clone()
	clone.Append(testutil.Human("again"))
	clone.Metadata["agent"] = "wiki"

	require.Equal(t, 2, th.Len())
	assert.Equal(t, 3, clone.Len())
	assert.Equal(t, "chatbot", th.Metadata["agent"])
	assert.False(t, th.Updated.After(clone.Updated))
}

func TestThread_GetMessagesReturnsCopy(t *testing.T) {
	th := testutil.NewThreadBuilder("t-1").Messages(testutil.Human("hi")).Build()

	msgs := th.GetMessages()
	msgs[0] = testutil.AI("replaced")

	assert.Equal(t, "hi", th.GetMessages()[0].Text())
}
