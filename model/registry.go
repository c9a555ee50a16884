package model

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownModel is returned for model ids that were never registered.
var ErrUnknownModel = errors.New("unknown model")

// Factory constructs a model client. It is invoked at most once per id.
type Factory func() (Model, error)

// Entry registers a factory under a model id.
type Entry struct {
	ID          string
	Description string
	Factory     Factory
}

type registryEntry struct {
	Entry

	once  sync.Once
	model Model
	err   error
}

// Registry is a process-wide, lazily initialized and immutable set of model
// clients keyed by id. Clients are stateless dispatchers and are shared
// across concurrent turns; they are never torn down.
type Registry struct {
	entries   map[string]*registryEntry
	order     []string
	defaultID string
}

// RegistryOptions configure a Registry.
type RegistryOptions struct {
	// DefaultID is used when Get is called with an empty id. Defaults to the
	// first registered entry.
	DefaultID string
}

// NewRegistry builds an immutable registry. Duplicate ids are rejected.
func NewRegistry(entries []Entry, optFns ...func(o *RegistryOptions)) (*Registry, error) {
	opts := RegistryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Registry{entries: make(map[string]*registryEntry, len(entries))}
	for _, e := range entries {
		if e.ID == "" || e.Factory == nil {
			return nil, fmt.Errorf("model registry: entry %q needs an id and a factory", e.ID)
		}
		if _, dup := r.entries[e.ID]; dup {
			return nil, fmt.Errorf("model registry: duplicate id %q", e.ID)
		}
		r.entries[e.ID] = &registryEntry{Entry: e}
		r.order = append(r.order, e.ID)
	}

	r.defaultID = opts.DefaultID
	if r.defaultID == "" && len(r.order) > 0 {
		r.defaultID = r.order[0]
	}
	if r.defaultID != "" {
		if _, ok := r.entries[r.defaultID]; !ok {
			return nil, fmt.Errorf("%w: default %q", ErrUnknownModel, r.defaultID)
		}
	}

	return r, nil
}

// Get returns the client for id, constructing it on first use. An empty id
// selects the default model. A failed construction is cached as well.
func (r *Registry) Get(id string) (Model, error) {
	if id == "" {
		id = r.defaultID
	}
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}

	e.once.Do(func() {
		e.model, e.err = e.Factory()
		if e.err == nil && e.model == nil {
			e.err = fmt.Errorf("model registry: factory for %q returned nil", id)
		}
	})

	return e.model, e.err
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.entries[id]
	return ok
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string { return slices.Clone(r.order) }

// Default returns the default model id.
func (r *Registry) Default() string { return r.defaultID }

// Describe returns the description registered for id.
func (r *Registry) Describe(id string) string {
	if e, ok := r.entries[id]; ok {
		return e.Description
	}
	return ""
}

// Single returns a registry holding exactly m under its own name.
func Single(m Model) *Registry {
	id := m.Info().Name
	if id == "" {
		id = "default"
	}
	r, _ := NewRegistry([]Entry{{ID: id, Factory: func() (Model, error) { return m, nil }}})
	return r
}
