package session

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/internal/testutil"
)

func stores(t *testing.T) map[string]core.ThreadStore {
	t.Helper()
	sq, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "threads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]core.ThreadStore{
		"memory": NewInMemoryStore(),
		"sqlite": sq,
	}
}

func TestThreadStore_GetCreatesLazily(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			th, err := s.Get("t1")
			require.NoError(t, err)
			assert.Equal(t, "t1", th.ID)
			assert.Empty(t, th.GetMessages())

			ids, err := s.List()
			require.NoError(t, err)
			assert.Equal(t, []string{"t1"}, ids)
		})
	}
}

func TestThreadStore_AppendPreservesOrder(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			call := testutil.NewAI().Call("c1", "Calculator", map[string]any{"expression": "2+2"}).Run("r1").Build()
			require.NoError(t, s.Append("t1", testutil.Human("2+2"), call))
			require.NoError(t, s.Append("t1", testutil.ToolResult("c1", "Calculator", "4"), testutil.AI("4")))

			th, err := s.Get("t1")
			require.NoError(t, err)

			msgs := th.GetMessages()
			require.Len(t, msgs, 4)
			assert.Equal(t, []string{"2+2", "", "4", "4"}, []string{msgs[0].Text(), msgs[1].Text(), msgs[2].Text(), msgs[3].Text()})

			ai := msgs[1].(*core.AIMessage)
			assert.Equal(t, "r1", ai.RunID)
			require.Len(t, ai.ToolCalls, 1)
			assert.Equal(t, "c1", ai.ToolCalls[0].ID)
			assert.False(t, th.Updated.Before(th.Created))
		})
	}
}

func TestThreadStore_GetReturnsCopy(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Append("t1", testutil.Human("hi")))

			th, err := s.Get("t1")
			require.NoError(t, err)
			th.Append(testutil.AI("local only"))

			again, err := s.Get("t1")
			require.NoError(t, err)
			assert.Equal(t, 1, again.Len())
		})
	}
}

func TestInMemoryStore_ConcurrentAppend(t *testing.T) {
	s := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i%2)
			for j := 0; j < 25; j++ {
				_ = s.Append(id, testutil.Human("x"))
			}
		}(i)
	}
	wg.Wait()

	for _, id := range []string{"t0", "t1"} {
		th, err := s.Get(id)
		require.NoError(t, err)
		assert.Equal(t, 100, th.Len())
	}
}
