package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps backend names to factories of type F. Registering the same
// name twice is a programming error and panics.
type Registry[F any] struct {
	kind      string
	factories map[string]F
	mu        sync.RWMutex
}

func NewRegistry[F any](kind string) *Registry[F] {
	return &Registry[F]{
		kind:      kind,
		factories: make(map[string]F),
	}
}

func (r *Registry[F]) Register(name string, factory F) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("%s %s already registered", r.kind, name))
	}

	r.factories[name] = factory
}

func (r *Registry[F]) Get(name string) (F, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	return factory, exists
}

// List returns the registered names in sorted order.
func (r *Registry[F]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
