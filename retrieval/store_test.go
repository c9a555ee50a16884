package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_Search(t *testing.T) {
	s := NewInMemoryStore()
	s.Add(
		Document{Content: "Employees receive 25 days of paid vacation per year."},
		Document{Content: "The office is closed on public holidays."},
		Document{Content: "Vacation requests need manager approval. Vacation carries over."},
	)

	docs, err := s.Search(context.Background(), "How many vacation days?", 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc_0", docs[0].ID, "matches both 'vacation' and 'days'")
	assert.Equal(t, "doc_2", docs[1].ID)
	assert.Greater(t, docs[0].Score, docs[1].Score)

	docs, err = s.Search(context.Background(), "vacation", 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = s.Search(context.Background(), "?", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestInMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewInMemoryStore().Search(ctx, "x", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChunk(t *testing.T) {
	text := "para one\n\npara two\n\n" + strings.Repeat("word ", 10)
	chunks := Chunk(text, 20)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 20)
	}
	assert.Equal(t, "para one\n\npara two", chunks[0])
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.md"), []byte("# Leave\n\nSick leave is unlimited."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89}, 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "faq.txt"), []byte("Parking is free."), 0o600))

	s := NewInMemoryStore()
	n, err := LoadDir(s, dir, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	docs, err := s.Search(context.Background(), "sick leave", 3)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, "policy.md", docs[0].Source)
}
