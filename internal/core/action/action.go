// Package action defines actions: named, versioned, cacheable operations that
// turn input items into output items, plus the registry they are looked up in.
package action

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"

	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/fetch"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/llm"
	"github.com/colonyops/kash/internal/core/param"
	"github.com/colonyops/kash/internal/core/precondition"
	"github.com/colonyops/kash/pkg/tmpl"
)

// DefaultVersion is used for actions that do not declare one.
const DefaultVersion = "v1.0.0"

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Args bounds the number of input items. Max < 0 means unbounded.
type Args struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

var (
	ArgsNone      = Args{Min: 0, Max: 0}
	ArgsOne       = Args{Min: 1, Max: 1}
	ArgsOneOrMore = Args{Min: 1, Max: -1}
	ArgsAny       = Args{Min: 0, Max: -1}
)

// Check validates an input count.
func (a Args) Check(n int) error {
	if n < a.Min || (a.Max >= 0 && n > a.Max) {
		return errs.Validation("arguments", "expected %s, got %d", a, n)
	}
	return nil
}

func (a Args) String() string {
	switch {
	case a.Max < 0:
		return fmt.Sprintf("at least %d item(s)", a.Min)
	case a.Min == a.Max:
		return fmt.Sprintf("exactly %d item(s)", a.Min)
	default:
		return fmt.Sprintf("%d to %d items", a.Min, a.Max)
	}
}

// Spec declares everything the engine needs to know about an action.
type Spec struct {
	Name         string
	Description  string
	Version      string
	Precondition precondition.Precondition
	Args         Args
	Params       []param.Param
	OutputType   item.ItemType
	OutputFormat item.Format

	// Cacheable actions are skipped when an output for the same operation
	// fingerprint already exists.
	Cacheable bool
	// PerItem actions run once per input and produce one output per input.
	PerItem bool
	// Query actions leave the selection unchanged.
	Query bool
	// ReplacesInput actions supersede their inputs: after a fresh run every
	// input that is not also an output is archived.
	ReplacesInput bool
	// TitleTemplate renders output titles that the action left empty. It
	// receives .Title, .Titles, .Action and .Input (the first input item).
	TitleTemplate string
}

// Validate checks the declaration.
func (s Spec) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("name", s.Name, validName),
		criterio.Run("version", s.Version, validVersion),
		criterio.Run("args", s.Args, validArgs),
		criterio.Run("output_type", s.OutputType, validOutputType),
		criterio.Run("output_format", s.OutputFormat, validOutputFormat),
		criterio.Run("title_template", s.TitleTemplate, validTemplate),
		param.ValidateAll(s.Params),
	)
}

func validName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%q must be lower snake case", name)
	}
	return nil
}

func validVersion(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("%q is not a semantic version (e.g. v1.2.0)", v)
	}
	return nil
}

func validArgs(a Args) error {
	if a.Min < 0 {
		return fmt.Errorf("min must not be negative")
	}
	if a.Max >= 0 && a.Max < a.Min {
		return fmt.Errorf("max %d is less than min %d", a.Max, a.Min)
	}
	return nil
}

func validOutputType(t item.ItemType) error {
	if t != "" && !t.IsValid() {
		return fmt.Errorf("unknown item type %q", t)
	}
	return nil
}

func validOutputFormat(f item.Format) error {
	if f != "" && !f.IsValid() {
		return fmt.Errorf("unknown format %q", f)
	}
	return nil
}

func validTemplate(s string) error {
	if s == "" {
		return nil
	}
	return tmpl.Validate(s)
}

// ExecContext is passed to actions alongside their inputs. Items never carry
// it.
type ExecContext struct {
	InvocationID string
	Action       string
	WorkspaceDir string
	Rerun        bool
	LLM          llm.Completer
	Fetcher      fetch.Fetcher
	Logger       zerolog.Logger
}

// Input is what an action's run receives.
type Input struct {
	Items  []*item.Item
	Params param.Values
	Exec   ExecContext
}

// First returns the first input item or nil.
func (in Input) First() *item.Item {
	if len(in.Items) == 0 {
		return nil
	}
	return in.Items[0]
}

// Output is what an action's run returns. Items are not persisted by the
// action; the engine does that once the run completes.
type Output struct {
	Items []*item.Item
	// PathOps, when set, replace the default of selecting every output.
	PathOps []PathOp
}

// PathOpKind is what the engine does with a path named in PathOps.
type PathOpKind string

const (
	PathSelect  PathOpKind = "select"
	PathArchive PathOpKind = "archive"
)

// PathOp asks the engine to select or archive a store path once outputs are
// saved.
type PathOp struct {
	Path string
	Op   PathOpKind
}

// SelectPaths builds select ops for paths.
func SelectPaths(paths ...string) []PathOp {
	out := make([]PathOp, len(paths))
	for i, p := range paths {
		out[i] = PathOp{Path: p, Op: PathSelect}
	}
	return out
}

// Action is a runnable, declared operation.
type Action interface {
	Spec() Spec
	Run(ctx context.Context, in Input) (Output, error)
}

// RunFunc is the body of an action.
type RunFunc func(ctx context.Context, in Input) (Output, error)

// ItemFunc is the body of a per-item action.
type ItemFunc func(ctx context.Context, it *item.Item, in Input) (*item.Item, error)

type funcAction struct {
	spec Spec
	run  RunFunc
}

func (a *funcAction) Spec() Spec { return a.spec }

func (a *funcAction) Run(ctx context.Context, in Input) (Output, error) {
	return a.run(ctx, in)
}

// New wraps fn as an Action. The spec is validated here, at registration
// time, rather than on first call.
func New(spec Spec, fn RunFunc) (Action, error) {
	if fn == nil {
		return nil, errs.Validation("run", "action %s has no run function", spec.Name)
	}
	if spec.Version == "" {
		spec.Version = DefaultVersion
	}
	if spec.Precondition.IsZero() {
		spec.Precondition = precondition.Always
	}
	if err := spec.Validate(); err != nil {
		return nil, &errs.ValidationError{Field: "action " + spec.Name, Err: err}
	}
	return &funcAction{spec: spec, run: fn}, nil
}

// NewPerItem wraps fn as an action that maps each input to one output. The
// engine runs per-item actions one input at a time.
func NewPerItem(spec Spec, fn ItemFunc) (Action, error) {
	if fn == nil {
		return nil, errs.Validation("run", "action %s has no run function", spec.Name)
	}
	spec.PerItem = true
	if spec.Args == (Args{}) {
		spec.Args = ArgsOneOrMore
	}

	return New(spec, func(ctx context.Context, in Input) (Output, error) {
		out := Output{Items: make([]*item.Item, 0, len(in.Items))}
		for _, it := range in.Items {
			if err := ctx.Err(); err != nil {
				return Output{}, err
			}
			res, err := fn(ctx, it, in)
			if err != nil {
				return Output{}, err
			}
			if res == nil {
				return Output{}, errs.Content(spec.Name, "no output for %s", it)
			}
			out.Items = append(out.Items, res)
		}
		return out, nil
	})
}

// Must panics if err is non-nil. For built-in actions declared at init.
func Must(a Action, err error) Action {
	if err != nil {
		panic(err)
	}
	return a
}

// SkipError signals that the action inspected its input and found nothing
// to do. It is a distinct outcome, not a failure.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// Skip returns a SkipError.
func Skip(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// IsSkip reports whether err signals a skip and returns its reason.
func IsSkip(err error) (string, bool) {
	var se *SkipError
	if errors.As(err, &se) {
		return se.Reason, true
	}
	return "", false
}
