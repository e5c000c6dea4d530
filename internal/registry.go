package internal

import (
	"errors"
	"slices"
	"strings"
	"sync"
)

var (
	ErrNilRegistry = errors.New("registry is nil")
	ErrEmptyName   = errors.New("name cannot be empty")
	ErrNilValue    = errors.New("value cannot be nil")
)

// Registry maps names to values for lookup by the string keys that retry
// options and policy files carry. Names are trimmed; the zero value is usable.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// Set stores v under name and reports whether an earlier value was replaced.
func (r *Registry[T]) Set(name string, v T) (replaced bool, err error) {
	if r == nil {
		return false, ErrNilRegistry
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return false, ErrEmptyName
	}
	if IsTypedNil(v) {
		return false, ErrNilValue
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]T)
	}
	_, replaced = r.entries[name]
	r.entries[name] = v
	return replaced, nil
}

// Lookup returns the value stored under name.
func (r *Registry[T]) Lookup(name string) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return zero, false
	}
	r.mu.RLock()
	v, ok := r.entries[name]
	r.mu.RUnlock()
	return v, ok
}

// Names returns the registered names, sorted.
func (r *Registry[T]) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}
