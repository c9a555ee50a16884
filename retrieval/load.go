package retrieval

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultChunkSize is the maximum chunk length in bytes used by LoadDir.
const DefaultChunkSize = 2000

// LoadDir reads every .txt and .md file below dir, splits it into paragraph
// aligned chunks of at most chunkSize bytes and adds them to the store. It
// returns the number of chunks added.
func LoadDir(s *InMemoryStore, dir string, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
		default:
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, _ := filepath.Rel(dir, path)
		for i, chunk := range Chunk(string(raw), chunkSize) {
			docs = append(docs, Document{
				ID:       fmt.Sprintf("%s#%d", rel, i),
				Content:  chunk,
				Source:   rel,
				Metadata: map[string]any{"chunk": i},
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Add(docs...)
	return len(docs), nil
}

// Chunk splits text on blank lines and packs paragraphs into chunks of at
// most size bytes. Paragraphs longer than size are split on word boundaries.
func Chunk(text string, size int) []string {
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(para)+2 > size {
			flush()
		}
		if len(para) <= size {
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(para)
			continue
		}
		for _, w := range strings.Fields(para) {
			if cur.Len() > 0 && cur.Len()+len(w)+1 > size {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(w)
		}
	}
	flush()

	return chunks
}
