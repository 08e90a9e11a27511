// Package algorithm provides the registry shape shared by every pluggable
// algorithm family: sleep/wake classifiers, nonwear detectors and sleep
// period detectors.
package algorithm

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownAlgorithm is returned by Create for an unregistered identifier.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// Factory builds a configured instance from parameters.
type Factory[T any] func(p Params) (T, error)

type entry[T any] struct {
	factory     Factory[T]
	displayName string
}

// Registry maps stable string identifiers to constructors.
type Registry[T any] struct {
	entries   map[string]entry[T]
	family    string
	defaultID string
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry for one algorithm family.
func NewRegistry[T any](family, defaultID string) *Registry[T] {
	return &Registry[T]{
		entries:   make(map[string]entry[T]),
		family:    family,
		defaultID: defaultID,
	}
}

// Register adds a constructor. Registering the same id twice panics, since
// registration happens from package init and a duplicate is a programming error.
func (r *Registry[T]) Register(id, displayName string, f Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[id]; dup {
		panic(fmt.Sprintf("%s: algorithm %q registered twice", r.family, id))
	}
	r.entries[id] = entry[T]{factory: f, displayName: displayName}
}

// Available returns every registered id mapped to its display name.
func (r *Registry[T]) Available() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.entries))
	for id, e := range r.entries {
		out[id] = e.displayName
	}
	return out
}

// IDs returns the registered ids in sorted order.
func (r *Registry[T]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has reports whether id is registered.
func (r *Registry[T]) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Create builds the algorithm registered under id. An empty id selects the default.
func (r *Registry[T]) Create(id string, p Params) (T, error) {
	if id == "" {
		id = r.defaultID
	}
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s %q", ErrUnknownAlgorithm, r.family, id)
	}
	inst, err := e.factory(p)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("creating %s %q: %w", r.family, id, err)
	}
	return inst, nil
}

// DefaultID returns the identifier used when none is configured.
func (r *Registry[T]) DefaultID() string {
	return r.defaultID
}

// Family returns the name of the algorithm family.
func (r *Registry[T]) Family() string {
	return r.family
}
