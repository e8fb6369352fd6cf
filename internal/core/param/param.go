// Package param declares typed action parameters and resolves their effective
// values across call-site, workspace, global and declared defaults.
package param

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/kash/internal/core/errs"
)

// Kind is the value type of a parameter.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "integer"
	KindFloat  Kind = "number"
	KindBool   Kind = "boolean"
)

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Param is a named, typed, documented configuration value.
type Param struct {
	Name        string
	Kind        Kind
	Default     any
	Description string
	// ValidValues restricts string params to a set unless OpenEnded is set,
	// in which case they are suggestions only.
	ValidValues []string
	OpenEnded   bool
	Required    bool
	Validator   func(any) error
}

// Option customises a Param.
type Option func(*Param)

// WithValues sets the allowed (or suggested, with OpenEnded) values.
func WithValues(values ...string) Option {
	return func(p *Param) { p.ValidValues = values }
}

// OpenEnded marks ValidValues as suggestions.
func OpenEnded() Option {
	return func(p *Param) { p.OpenEnded = true }
}

// Required marks a param that must resolve to a value.
func Required() Option {
	return func(p *Param) { p.Required = true }
}

// WithValidator adds a custom check run after coercion.
func WithValidator(fn func(any) error) Option {
	return func(p *Param) { p.Validator = fn }
}

func newParam(name string, kind Kind, def any, desc string, opts []Option) Param {
	p := Param{Name: name, Kind: kind, Default: def, Description: desc}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// String declares a string param. An empty default means no default.
func String(name, def, desc string, opts ...Option) Param {
	var d any
	if def != "" {
		d = def
	}
	return newParam(name, KindString, d, desc, opts)
}

func Int(name string, def int, desc string, opts ...Option) Param {
	return newParam(name, KindInt, def, desc, opts)
}

func Float(name string, def float64, desc string, opts ...Option) Param {
	return newParam(name, KindFloat, def, desc, opts)
}

func Bool(name string, def bool, desc string, opts ...Option) Param {
	return newParam(name, KindBool, def, desc, opts)
}

// WithDefault returns a copy of p with a different default.
func (p Param) WithDefault(v any) Param {
	c := p
	c.ValidValues = slices.Clone(p.ValidValues)
	c.Default = v
	return c
}

// IsClosed reports whether the param only accepts ValidValues.
func (p Param) IsClosed() bool {
	return len(p.ValidValues) > 0 && !p.OpenEnded
}

// Validate checks the declaration itself.
func (p Param) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("name", p.Name, validName),
		criterio.Run("kind", p.Kind, validKind),
		p.validateDefault(),
	)
}

func validName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("name is empty")
	case strings.Contains(name, "-"):
		return fmt.Errorf("name %q contains a hyphen; use underscores", name)
	case !nameRe.MatchString(name):
		return fmt.Errorf("name %q must be lower snake case", name)
	}
	return nil
}

func validKind(k Kind) error {
	switch k {
	case KindString, KindInt, KindFloat, KindBool:
		return nil
	}
	return fmt.Errorf("unknown kind %q", k)
}

func (p Param) validateDefault() error {
	if p.Default == nil || validKind(p.Kind) != nil {
		return nil
	}
	v, err := p.Coerce(p.Default)
	if err != nil {
		return criterio.NewFieldErrors("default", err)
	}
	if v != p.Default {
		return criterio.NewFieldErrors("default", fmt.Errorf("default %v (%T) is not a %s", p.Default, p.Default, p.Kind))
	}
	return nil
}

// Coerce converts v to the param's kind. Strings are parsed, ints are
// accepted for floats and closed string sets are enforced. It never clamps.
func (p Param) Coerce(v any) (any, error) {
	switch p.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", v)
		}
		if p.IsClosed() && !slices.Contains(p.ValidValues, s) {
			return nil, fmt.Errorf("must be one of %s", strings.Join(p.ValidValues, ", "))
		}
		return s, nil

	case KindInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if math.IsNaN(n) || math.IsInf(n, 0) || n != float64(int(n)) {
				return nil, fmt.Errorf("expected an integer, got %v", n)
			}
			return int(n), nil
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(n))
			if err != nil {
				return nil, fmt.Errorf("expected an integer, got %q", n)
			}
			return i, nil
		}
		return nil, fmt.Errorf("expected an integer, got %T", v)

	case KindFloat:
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case int:
			f = float64(n)
		case int64:
			f = float64(n)
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil, fmt.Errorf("expected a number, got %q", n)
			}
			f = parsed
		default:
			return nil, fmt.Errorf("expected a number, got %T", v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("expected a finite number, got %v", f)
		}
		return f, nil

	case KindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return nil, fmt.Errorf("expected a boolean, got %q", b)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("expected a boolean, got %T", v)
	}

	return nil, fmt.Errorf("unknown kind %q", p.Kind)
}

// check coerces and validates a candidate value.
func (p Param) check(v any) (any, error) {
	coerced, err := p.Coerce(v)
	if err != nil {
		return nil, &errs.InvalidParameterError{Param: p.Name, Value: v, Err: err}
	}
	if p.Validator != nil {
		if err := p.Validator(coerced); err != nil {
			return nil, &errs.InvalidParameterError{Param: p.Name, Value: v, Err: err}
		}
	}
	return coerced, nil
}

// ValidateAll checks a declaration set, including duplicate names.
func ValidateAll(params []Param) error {
	var b criterio.FieldErrorsBuilder
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		field := fmt.Sprintf("params[%d]", i)
		if err := p.Validate(); err != nil {
			b = b.Append(field, err)
			continue
		}
		if seen[p.Name] {
			b = b.Append(field+".name", fmt.Errorf("duplicate param %q", p.Name))
			continue
		}
		seen[p.Name] = true
	}
	return b.ToError()
}
