package core

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Thread is the persisted history of one conversation thread. It is safe for
// concurrent access.
//
// Contract:
//   - Append updates the Updated timestamp
//   - GetMessages returns a copy
//   - Clone performs deep copies of slices and maps for safe divergence
type Thread struct {
	ID       string            `json:"id"`
	Messages []Message         `json:"-"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewThread creates an empty thread with the given ID.
func NewThread(id string) *Thread {
	now := time.Now()
	return &Thread{ID: id, Messages: []Message{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// Append adds messages to the history updating the Updated timestamp.
func (t *Thread) Append(msgs ...Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = append(t.Messages, msgs...)
	t.Updated = time.Now()
}

// GetMessages returns a copy of the message history.
func (t *Thread) GetMessages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.Messages)
}

// Len returns the number of persisted messages.
func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.Messages)
}

// Clone returns a copy of the thread safe for independent mutation.
func (t *Thread) Clone() *Thread {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Thread{
		ID:       t.ID,
		Messages: slices.Clone(t.Messages),
		Created:  t.Created,
		Updated:  t.Updated,
		Metadata: maps.Clone(t.Metadata),
	}
}

// ThreadStore persists threads and their message history.
type ThreadStore interface {
	// Get returns the thread (clone) creating it lazily.
	Get(threadID string) (*Thread, error)
	// Append commits messages to the end of a thread.
	Append(threadID string, msgs ...Message) error
	// List returns the known thread ids.
	List() ([]string, error)
}
