package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/kash/internal/core/errs"
)

// ParamValidator checks and coerces a workspace param value before it is
// stored.
type ParamValidator func(name string, v any) (any, error)

// ParamState holds workspace parameter defaults in .kash/params.yml.
type ParamState struct {
	path      string
	mu        sync.RWMutex
	validator ParamValidator
}

func newParamState(path string) *ParamState {
	return &ParamState{path: path}
}

// SetValidator installs fn for subsequent Set calls.
func (p *ParamState) SetValidator(fn ParamValidator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validator = fn
}

func (p *ParamState) Path() string { return p.path }

// All returns every stored default. A missing file is empty.
func (p *ParamState) All() (map[string]any, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.read()
}

func (p *ParamState) Get(name string) (any, bool, error) {
	all, err := p.All()
	if err != nil {
		return nil, false, err
	}
	v, ok := all[name]
	return v, ok, nil
}

func (p *ParamState) Set(name string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.validator != nil {
		coerced, err := p.validator(name, v)
		if err != nil {
			return err
		}
		v = coerced
	}

	all, err := p.read()
	if err != nil {
		return err
	}
	all[name] = v
	return p.write(all)
}

// Unset removes name. Removing an absent name is not an error.
func (p *ParamState) Unset(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	all, err := p.read()
	if err != nil {
		return err
	}
	if _, ok := all[name]; !ok {
		return nil
	}
	delete(all, name)
	return p.write(all)
}

func (p *ParamState) read() (map[string]any, error) {
	raw, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, errs.Storage("read", p.path, err)
	}

	var out map[string]any
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, &errs.ParseError{Path: p.path, Err: err}
	}
	if out == nil {
		out = map[string]any{}
	}
	return maps.Clone(out), nil
}

func (p *ParamState) write(all map[string]any) error {
	raw, err := yaml.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := writeFileAtomic(p.path, raw); err != nil {
		return errs.Storage("write", p.path, err)
	}
	return nil
}

// writeFileAtomic writes to a sibling .tmp file and renames it into place.
func writeFileAtomic(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
