package param

import (
	"fmt"
	"maps"
	"slices"

	"github.com/colonyops/kash/internal/core/errs"
)

// Values holds resolved parameter values keyed by name.
type Values map[string]any

// Resolve picks the effective value of each declared param. Precedence is
// call-site, then workspace defaults, then global defaults, then the declared
// default. Workspace and global maps may carry values for params other
// actions declare; only call-site names must be declared here.
func Resolve(declared []Param, callSite, workspace, global map[string]any) (Values, error) {
	byName := make(map[string]Param, len(declared))
	for _, p := range declared {
		byName[p.Name] = p
	}

	for _, name := range slices.Sorted(maps.Keys(callSite)) {
		if _, ok := byName[name]; !ok {
			return nil, &errs.InvalidParameterError{
				Param: name,
				Value: callSite[name],
				Err:   fmt.Errorf("unknown parameter; accepted: %v", names(declared)),
			}
		}
	}

	out := make(Values, len(declared))
	for _, p := range declared {
		raw, ok := first(p.Name, callSite, workspace, global)
		if !ok {
			if p.Default == nil {
				if p.Required {
					return nil, &errs.InvalidParameterError{Param: p.Name, Err: fmt.Errorf("a value is required")}
				}
				continue
			}
			raw = p.Default
		}

		v, err := p.check(raw)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}
	return out, nil
}

func first(name string, layers ...map[string]any) (any, bool) {
	for _, layer := range layers {
		if v, ok := layer[name]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func names(params []Param) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}

// Map returns a copy of the values, or nil when empty.
func (v Values) Map() map[string]any {
	if len(v) == 0 {
		return nil
	}
	return maps.Clone(v)
}

func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

func (v Values) Int(name string) int {
	n, _ := v[name].(int)
	return n
}

func (v Values) Float(name string) float64 {
	f, _ := v[name].(float64)
	return f
}

func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}
