package session

import (
	"slices"
	"sync"

	"github.com/hupe1980/agenthub/core"
)

// InMemoryStore is a volatile ThreadStore keeping threads in a process local
// map. It is safe for concurrent access and suited for tests and the CLI.
// Returned threads are clones so callers cannot mutate stored history.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*core.Thread
}

var _ core.ThreadStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory thread store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*core.Thread)}
}

// Get returns a clone of the thread, creating it lazily.
func (s *InMemoryStore) Get(threadID string) (*core.Thread, error) {
	s.mu.RLock()
	t, ok := s.threads[threadID]
	s.mu.RUnlock()
	if ok {
		return t.Clone(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(threadID).Clone(), nil
}

// Append commits msgs to the end of the thread.
func (s *InMemoryStore) Append(threadID string, msgs ...core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(threadID).Append(msgs...)
	return nil
}

// List returns the known thread ids in sorted order.
func (s *InMemoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// getOrCreateLocked requires the write lock.
func (s *InMemoryStore) getOrCreateLocked(threadID string) *core.Thread {
	t, ok := s.threads[threadID]
	if !ok {
		t = core.NewThread(threadID)
		s.threads[threadID] = t
	}
	return t
}
