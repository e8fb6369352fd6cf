// Package precondition implements composable predicates over items. They
// decide which actions apply to which inputs and must stay pure: no I/O beyond
// reading the item's own fields.
package precondition

import (
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
)

type op int

const (
	opLeaf op = iota
	opAnd
	opOr
	opNot
)

// Precondition is an immutable named predicate. Composition returns new
// values and never mutates the operands.
type Precondition struct {
	name        string
	description string
	fn          func(*item.Item) bool
	op          op
	children    []Precondition
}

// New creates a leaf precondition.
func New(name, description string, fn func(*item.Item) bool) Precondition {
	return Precondition{name: name, description: description, fn: fn}
}

var (
	// Always holds for every item.
	Always = New("always", "Always applicable.", func(*item.Item) bool { return true })
	// Never holds for no item.
	Never = New("never", "Never applicable.", func(*item.Item) bool { return false })
)

func (p Precondition) Name() string { return p.name }

func (p Precondition) Description() string { return p.description }

// IsZero reports whether p was never initialised.
func (p Precondition) IsZero() bool { return p.name == "" && p.fn == nil && p.op == opLeaf }

// Apply evaluates p. A nil item, a zero precondition or a predicate that
// panics on a missing field all evaluate to false.
func (p Precondition) Apply(it *item.Item) (ok bool) {
	if it == nil || p.IsZero() {
		return false
	}

	switch p.op {
	case opAnd:
		for _, c := range p.children {
			if !c.Apply(it) {
				return false
			}
		}
		return true
	case opOr:
		for _, c := range p.children {
			if c.Apply(it) {
				return true
			}
		}
		return false
	case opNot:
		return !p.children[0].Apply(it)
	}

	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return p.fn(it)
}

// And returns p & q.
func (p Precondition) And(q Precondition) Precondition {
	return Precondition{
		name:        wrap(p, opAnd) + " & " + wrap(q, opAnd),
		description: p.description + " and " + q.description,
		op:          opAnd,
		children:    []Precondition{p, q},
	}
}

// Or returns p | q.
func (p Precondition) Or(q Precondition) Precondition {
	return Precondition{
		name:        wrap(p, opOr) + " | " + wrap(q, opOr),
		description: p.description + " or " + q.description,
		op:          opOr,
		children:    []Precondition{p, q},
	}
}

// Not returns ~p.
func (p Precondition) Not() Precondition {
	return Precondition{
		name:        "~" + wrap(p, opNot),
		description: "Not: " + p.description,
		op:          opNot,
		children:    []Precondition{p},
	}
}

// AndAll folds ps with And. An empty list is Always.
func AndAll(ps ...Precondition) Precondition {
	if len(ps) == 0 {
		return Always
	}
	out := ps[0]
	for _, p := range ps[1:] {
		out = out.And(p)
	}
	return out
}

// OrAll folds ps with Or. An empty list is Never.
func OrAll(ps ...Precondition) Precondition {
	if len(ps) == 0 {
		return Never
	}
	out := ps[0]
	for _, p := range ps[1:] {
		out = out.Or(p)
	}
	return out
}

// wrap parenthesises composite operands where precedence would otherwise be
// ambiguous.
func wrap(p Precondition, parent op) string {
	switch {
	case p.op == opLeaf || p.op == opNot:
		return p.name
	case p.op == parent:
		return p.name
	default:
		return "(" + p.name + ")"
	}
}

// Explain returns the name of the specific predicate that fails for it. For a
// conjunction this is the first failing conjunct, recursively; disjunctions
// and negations are reported whole.
func (p Precondition) Explain(it *item.Item) (string, bool) {
	if p.Apply(it) {
		return "", true
	}
	if p.op == opAnd {
		for _, c := range p.children {
			if name, ok := c.Explain(it); !ok {
				return name, false
			}
		}
	}
	return p.name, false
}

// Check returns a PreconditionError naming the failing predicate, or nil.
func (p Precondition) Check(action string, it *item.Item) error {
	name, ok := p.Explain(it)
	if ok {
		return nil
	}
	e := &errs.PreconditionError{Action: action, Precondition: name, Hint: hintFor(name, it)}
	if it != nil {
		e.Item = it.String()
	}
	return e
}

// hintFor suggests a remedy for common failures.
func hintFor(name string, it *item.Item) string {
	if it == nil {
		return ""
	}
	switch name {
	case "is_markdown":
		if it.Format == item.FormatHTML {
			return "the item is HTML; try markdownify_html first"
		}
	case "has_body", "has_text_body":
		if it.Format == item.FormatURL {
			return "the item is a URL with no content; try fetch_page first"
		}
	}
	if it.Format != "" {
		return "the item is " + string(it.Type) + "/" + string(it.Format)
	}
	return ""
}
