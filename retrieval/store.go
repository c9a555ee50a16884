package retrieval

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Document is a retrievable chunk of text.
type Document struct {
	ID       string
	Content  string
	Source   string
	Score    float64
	Metadata map[string]any
}

// Retriever returns the k documents most relevant to query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}

// InMemoryStore is a process-local Retriever.
//
// Concurrency: protected by RWMutex.
// Search: linear scan scoring each document by the fraction of distinct query
// terms it contains, weighted by term frequency. Ties keep insertion order.
type InMemoryStore struct {
	mu    sync.RWMutex
	docs  []Document
	terms []map[string]int
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Add appends documents, assigning ids to those without one.
func (s *InMemoryStore) Add(docs ...Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		if d.ID == "" {
			d.ID = fmt.Sprintf("doc_%d", len(s.docs))
		}
		d.Metadata = maps.Clone(d.Metadata)
		s.docs = append(s.docs, d)
		s.terms = append(s.terms, termFrequencies(d.Content))
	}
}

// Len returns the number of stored documents.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Search implements Retriever. Documents sharing no term with the query are
// never returned.
func (s *InMemoryStore) Search(ctx context.Context, query string, k int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	qterms := termFrequencies(query)
	if len(qterms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		idx   int
		score float64
	}
	var hits []hit
	for i, tf := range s.terms {
		matched, freq := 0, 0
		for term := range qterms {
			if n := tf[term]; n > 0 {
				matched++
				freq += n
			}
		}
		if matched == 0 {
			continue
		}
		score := float64(matched)/float64(len(qterms)) + float64(freq)/float64(freq+10)
		hits = append(hits, hit{idx: i, score: score})
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]Document, len(hits))
	for i, h := range hits {
		d := s.docs[h.idx]
		d.Score = h.score
		d.Metadata = maps.Clone(d.Metadata)
		out[i] = d
	}
	return out, nil
}

// termFrequencies lowercases text and counts alphanumeric terms of at least
// two runes.
func termFrequencies(text string) map[string]int {
	tf := map[string]int{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) < 2 {
			continue
		}
		tf[w]++
	}
	return tf
}
