package action

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/precondition"
)

var (
	ErrNotFound  = errors.New("action not found")
	ErrDuplicate = errors.New("action already registered")
)

// NotFoundError carries close matches for an unknown action name.
type NotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("action %q not found", e.Name)
	}
	return fmt.Sprintf("action %q not found; did you mean %s?", e.Name, strings.Join(e.Suggestions, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Loader populates a registry. Loaders run once, on EnsureLoaded.
type Loader func(*Registry) error

// Handle is returned by Register and can remove the registration.
type Handle struct {
	name string
	reg  *Registry
}

func (h Handle) Name() string { return h.name }

// Unregister removes the action. It is safe to call more than once.
func (h Handle) Unregister() {
	if h.reg == nil {
		return
	}
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	delete(h.reg.actions, h.name)
}

// Registry is an explicit set of actions. It is built at startup and passed
// to the engine; there is no process-wide instance.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action

	loadMu  sync.Mutex
	loaders []Loader
	ran     int
	loadErr error
}

func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds a. Names are unique within a registry.
func (r *Registry) Register(a Action) (Handle, error) {
	spec := a.Spec()
	if err := spec.Validate(); err != nil {
		return Handle{}, fmt.Errorf("register %s: %w", spec.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[spec.Name]; ok {
		return Handle{}, fmt.Errorf("register %s: %w", spec.Name, ErrDuplicate)
	}
	r.actions[spec.Name] = a
	return Handle{name: spec.Name, reg: r}, nil
}

// AddLoader defers population until EnsureLoaded.
func (r *Registry) AddLoader(l Loader) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	r.loaders = append(r.loaders, l)
}

// EnsureLoaded runs pending loaders in order. A loader error is returned now
// and on every later call.
func (r *Registry) EnsureLoaded() error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	if r.loadErr != nil {
		return r.loadErr
	}
	for r.ran < len(r.loaders) {
		l := r.loaders[r.ran]
		r.ran++
		if err := l(r); err != nil {
			r.loadErr = fmt.Errorf("load actions: %w", err)
			return r.loadErr
		}
	}
	return nil
}

// Lookup returns the named action.
func (r *Registry) Lookup(name string) (Action, error) {
	r.mu.RLock()
	a, ok := r.actions[name]
	r.mu.RUnlock()
	if ok {
		return a, nil
	}
	return nil, &NotFoundError{Name: name, Suggestions: r.suggest(name)}
}

func (r *Registry) suggest(name string) []string {
	names := r.Names()
	matches := fuzzy.Find(name, names)
	out := make([]string, 0, 3)
	for i := 0; i < len(matches) && i < 3; i++ {
		out = append(out, matches[i].Str)
	}
	return out
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for n := range r.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns the registered actions sorted by name.
func (r *Registry) All() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Action, 0, len(r.actions))
	for _, a := range r.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Spec().Name < out[j].Spec().Name })
	return out
}

// Applicable returns the actions whose argument count and precondition accept
// items.
func (r *Registry) Applicable(items []*item.Item) []Action {
	var out []Action
	for _, a := range r.All() {
		spec := a.Spec()
		if spec.Args.Check(len(items)) != nil {
			continue
		}
		if len(items) > 0 && !precondition.AllHold(spec.Precondition, items) {
			continue
		}
		out = append(out, a)
	}
	return out
}
