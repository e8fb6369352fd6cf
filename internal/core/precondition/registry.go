package precondition

import (
	"fmt"
	"sort"
	"sync"

	"github.com/colonyops/kash/internal/core/item"
)

// Registry holds named preconditions for lookup and suggestions.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Precondition
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Precondition)}
}

// Register adds p. Names must be unique.
func (r *Registry) Register(p Precondition) error {
	if p.Name() == "" {
		return fmt.Errorf("precondition has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[p.Name()]; ok {
		return fmt.Errorf("precondition %q already registered", p.Name())
	}
	r.items[p.Name()] = p
	return nil
}

// Lookup returns the precondition registered under name.
func (r *Registry) Lookup(name string) (Precondition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[name]
	return p, ok
}

// All returns every registered precondition sorted by name.
func (r *Registry) All() []Precondition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Precondition, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Satisfied returns the preconditions that hold for every item.
func (r *Registry) Satisfied(items []*item.Item) []Precondition {
	var out []Precondition
	for _, p := range r.All() {
		if AllHold(p, items) {
			out = append(out, p)
		}
	}
	return out
}

// AllHold reports whether p applies to each item. An empty list never
// satisfies a precondition.
func AllHold(p Precondition, items []*item.Item) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if !p.Apply(it) {
			return false
		}
	}
	return true
}
