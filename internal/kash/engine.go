// Package kash wires the workspace, the action registry and the selection
// history together and runs actions against them.
package kash

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/colonyops/kash/internal/core/action"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/fetch"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/llm"
	"github.com/colonyops/kash/internal/core/logging"
	"github.com/colonyops/kash/internal/core/param"
	"github.com/colonyops/kash/internal/core/selection"
	"github.com/colonyops/kash/internal/store/filestore"
	"github.com/colonyops/kash/pkg/tmpl"
)

const defaultMaxParallel = 4

// Engine runs actions: it resolves inputs, checks preconditions, consults
// the operation cache, runs the action and persists what it produced.
type Engine struct {
	reg         *action.Registry
	store       *filestore.Store
	sel         *Selections
	llm         llm.Completer
	fetcher     fetch.Fetcher
	global      map[string]any
	titles      map[string]string
	maxParallel int
	log         zerolog.Logger
	newID       func() string
}

// EngineConfig carries the engine's collaborators and settings.
type EngineConfig struct {
	Registry   *action.Registry
	Store      *filestore.Store
	Selections *Selections
	LLM        llm.Completer
	Fetcher    fetch.Fetcher
	// GlobalParams sit below workspace params in precedence.
	GlobalParams map[string]any
	// Titles overrides action title templates by action name.
	Titles      map[string]string
	MaxParallel int
	Logger      zerolog.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		reg:         cfg.Registry,
		store:       cfg.Store,
		sel:         cfg.Selections,
		llm:         cfg.LLM,
		fetcher:     cfg.Fetcher,
		global:      cfg.GlobalParams,
		titles:      cfg.Titles,
		maxParallel: cfg.MaxParallel,
		log:         cfg.Logger,
		newID:       uuid.NewString,
	}
	if e.llm == nil {
		e.llm = llm.Unavailable{}
	}
	if e.maxParallel <= 0 {
		e.maxParallel = defaultMaxParallel
	}
	return e
}

// InvokeOption customises one invocation.
type InvokeOption func(*invokeOptions)

type invokeOptions struct {
	rerun    bool
	noSelect bool
}

// WithRerun bypasses the operation cache.
func WithRerun() InvokeOption {
	return func(o *invokeOptions) { o.rerun = true }
}

// WithoutSelection leaves the selection unchanged even for non-query actions.
func WithoutSelection() InvokeOption {
	return func(o *invokeOptions) { o.noSelect = true }
}

// unit is one operation: all inputs for a regular action, a single input for
// a per-item action.
type unit struct {
	inputs  []*item.Item
	op      item.Operation
	fp      string
	outputs []*item.Item
	pathOps []action.PathOp
	hit     bool
	skip    string
}

// invocation carries the state of one Invoke call.
type invocation struct {
	id      string
	spec    action.Spec
	tracker *action.Tracker
	res     *action.Result
	start   time.Time
}

// Invoke runs the named action on the items the locators resolve to, or on
// the current selection when there are none. params are call-site overrides.
//
// The returned Result is always non-nil. On failure its Status is failed and
// the same error is returned.
func (e *Engine) Invoke(ctx context.Context, name string, locators []string, params map[string]any, opts ...InvokeOption) (*action.Result, error) {
	var o invokeOptions
	for _, opt := range opts {
		opt(&o)
	}

	inv := &invocation{
		id:      e.newID(),
		tracker: action.NewTracker(),
		start:   time.Now(),
	}
	inv.res = &action.Result{InvocationID: inv.id, Action: name, Status: action.StatusPending}
	ctx = logging.WithInvocation(ctx, inv.id, name)

	if err := e.reg.EnsureLoaded(); err != nil {
		return e.fail(ctx, inv, err)
	}
	a, err := e.reg.Lookup(name)
	if err != nil {
		return e.fail(ctx, inv, &errs.ValidationError{Field: "action", Err: err})
	}
	inv.spec = a.Spec()
	spec := inv.spec

	inputs, err := e.resolveInputs(ctx, locators, spec.Args.Min > 0)
	if err != nil {
		return e.fail(ctx, inv, err)
	}
	inv.res.Inputs = storePaths(inputs)

	if err := spec.Args.Check(len(inputs)); err != nil {
		return e.fail(ctx, inv, err)
	}
	for _, it := range inputs {
		if err := spec.Precondition.Check(spec.Name, it); err != nil {
			return e.fail(ctx, inv, err)
		}
	}
	e.advance(ctx, inv, action.StatusPreconditionChecked)

	wsParams, err := e.store.Params().All()
	if err != nil {
		return e.fail(ctx, inv, err)
	}
	values, err := param.Resolve(spec.Params, params, wsParams, e.global)
	if err != nil {
		return e.fail(ctx, inv, err)
	}

	units, err := e.plan(spec, inputs, values)
	if err != nil {
		return e.fail(ctx, inv, err)
	}
	for _, u := range units {
		inv.res.Operations = append(inv.res.Operations, u.fp)
	}

	if spec.Cacheable && !o.rerun {
		if err := e.lookup(ctx, units); err != nil {
			return e.fail(ctx, inv, err)
		}
	}

	if allHit(units) {
		e.advance(ctx, inv, action.StatusCacheHit)
		e.log.Info().Ctx(ctx).Int("outputs", countOutputs(units)).Msg("cache hit")
		return e.finish(ctx, inv, units, locators, o, false)
	}

	e.advance(ctx, inv, action.StatusCacheMiss)
	e.advance(ctx, inv, action.StatusRunning)

	exec := action.ExecContext{
		InvocationID: inv.id,
		Action:       spec.Name,
		WorkspaceDir: e.store.Root(),
		Rerun:        o.rerun,
		LLM:          e.llm,
		Fetcher:      e.fetcher,
		Logger:       e.log.With().Str("action", spec.Name).Str("invocation_id", inv.id).Logger(),
	}
	if err := e.run(ctx, a, units, values, exec); err != nil {
		return e.fail(ctx, inv, err)
	}
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, inv, err)
	}

	if reasons := skipReasons(units); len(reasons) == len(units) {
		e.advance(ctx, inv, action.StatusSkipped)
		inv.res.SkipReason = strings.Join(reasons, "; ")
		inv.res.Items = inputs
		inv.res.Paths = storePaths(inputs)
		e.advance(ctx, inv, action.StatusDone)
		return e.result(ctx, inv), nil
	}

	if err := e.tag(inv, units); err != nil {
		return e.fail(ctx, inv, err)
	}
	if err := e.save(ctx, units); err != nil {
		return e.fail(ctx, inv, err)
	}

	e.advance(ctx, inv, action.StatusSucceeded)
	return e.finish(ctx, inv, units, locators, o, true)
}

// resolveInputs loads the items named by locators. With no locators the
// current selection is used; required reports whether an empty selection is
// an error.
func (e *Engine) resolveInputs(ctx context.Context, locators []string, required bool) ([]*item.Item, error) {
	if len(locators) == 0 {
		items, err := e.Current(ctx)
		if errors.Is(err, selection.ErrNoCurrent) {
			if required {
				return nil, errs.Validation("arguments", "no items given and no current selection")
			}
			return nil, nil
		}
		return items, err
	}
	return e.Resolve(ctx, locators)
}

// Resolve loads the items locators refer to, expanding globs against the
// index. Duplicates are dropped, keeping the first occurrence.
func (e *Engine) Resolve(ctx context.Context, locators []string) ([]*item.Item, error) {
	var (
		out  []*item.Item
		seen = map[string]bool{}
	)
	add := func(it *item.Item) {
		key := it.StorePath
		if key == "" {
			key = it.Fingerprint()
		}
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, it)
	}

	for _, loc := range locators {
		if filestore.IsGlob(loc) && !item.IsURL(loc) {
			paths, err := e.store.Glob(loc)
			if err != nil {
				return nil, err
			}
			if len(paths) == 0 {
				return nil, errs.Validation("locator", "no items match %q", loc)
			}
			for _, p := range paths {
				it, err := e.store.LoadPath(ctx, p)
				if err != nil {
					return nil, err
				}
				add(it)
			}
			continue
		}

		it, err := e.store.Load(ctx, loc)
		if err != nil {
			return nil, err
		}
		add(it)
	}
	return out, nil
}

// plan builds the operations for an invocation.
func (e *Engine) plan(spec action.Spec, inputs []*item.Item, values param.Values) ([]*unit, error) {
	newUnit := func(items []*item.Item) (*unit, error) {
		op := item.Operation{
			ActionName:    spec.Name,
			ActionVersion: spec.Version,
			Options:       values.Map(),
		}
		for _, it := range items {
			op.Arguments = append(op.Arguments, item.Input{Path: it.StorePath, Fingerprint: it.Fingerprint()})
		}
		fp, err := op.Fingerprint()
		if err != nil {
			return nil, errs.Validation("params", "%v", err)
		}
		return &unit{inputs: items, op: op, fp: fp}, nil
	}

	if !spec.PerItem {
		u, err := newUnit(inputs)
		if err != nil {
			return nil, err
		}
		return []*unit{u}, nil
	}
	units := make([]*unit, len(inputs))
	for i, it := range inputs {
		u, err := newUnit([]*item.Item{it})
		if err != nil {
			return nil, err
		}
		units[i] = u
	}
	return units, nil
}

// lookup fills units that have recorded outputs. A consistency failure drops
// the stale record so a later run recomputes it, and is returned.
func (e *Engine) lookup(ctx context.Context, units []*unit) error {
	for _, u := range units {
		items, ok, err := e.store.LookupOperation(ctx, u.fp)
		if err != nil {
			if errs.KindOf(err) == errs.KindCacheConsistency {
				if ierr := e.store.InvalidateOperation(ctx, u.fp); ierr != nil {
					e.log.Warn().Ctx(ctx).Err(ierr).Str("operation", item.Short(u.fp)).Msg("invalidate stale operation")
				}
			}
			return err
		}
		if ok && !producedBy(items, u.op) {
			e.log.Warn().Ctx(ctx).Str("operation", item.Short(u.fp)).Msg("recorded outputs belong to a different operation, rerunning")
			ok = false
		}
		if ok {
			u.hit = true
			u.outputs = items
		}
	}
	return nil
}

// producedBy reports whether every item records op as its source. A
// fingerprint match alone is not trusted.
func producedBy(items []*item.Item, op item.Operation) bool {
	for _, it := range items {
		if it.Source == nil || !it.Source.Operation.Matches(op) {
			return false
		}
	}
	return true
}

// run executes every unit that missed the cache. Per-item units run
// concurrently, bounded by maxParallel; the first failure cancels the rest.
func (e *Engine) run(ctx context.Context, a action.Action, units []*unit, values param.Values, exec action.ExecContext) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)

	for _, u := range units {
		if u.hit {
			continue
		}
		g.Go(func() error {
			out, err := a.Run(gctx, action.Input{Items: u.inputs, Params: values, Exec: exec})
			if reason, ok := action.IsSkip(err); ok {
				u.skip = reason
				u.outputs = u.inputs
				return nil
			}
			if err != nil {
				return err
			}
			for i, it := range out.Items {
				if it == nil {
					return errs.Content(a.Spec().Name, "output %d is nil", i)
				}
			}
			u.outputs = out.Items
			u.pathOps = out.PathOps
			return nil
		})
	}
	return g.Wait()
}

// titleData is what title templates are rendered with.
type titleData struct {
	Title  string
	Titles []string
	Action string
	Input  *item.Item
}

// tag stamps provenance and defaults onto fresh outputs and validates them.
func (e *Engine) tag(inv *invocation, units []*unit) error {
	spec := inv.spec
	tpl := spec.TitleTemplate
	if override, ok := e.titles[spec.Name]; ok {
		tpl = override
	}

	for _, u := range units {
		if u.hit || u.skip != "" {
			continue
		}

		data := titleData{Action: spec.Name}
		for _, in := range u.inputs {
			data.Titles = append(data.Titles, in.DisplayTitle())
		}
		if len(u.inputs) > 0 {
			data.Input = u.inputs[0]
			data.Title = data.Titles[0]
		}

		for i, out := range u.outputs {
			if out.Type == "" {
				out.Type = spec.OutputType
			}
			if out.Format == "" {
				out.Format = spec.OutputFormat
			}
			out.StorePath = ""
			out.Source = &item.Source{
				Operation:   u.op.Clone(),
				OutputNum:   i,
				Cacheable:   spec.Cacheable,
				Fingerprint: u.fp,
			}
			if len(out.Relations.DerivedFrom) == 0 {
				out.Relations.DerivedFrom = storePaths(u.inputs)
			}
			if out.Title == "" && tpl != "" {
				title, err := tmpl.Render(tpl, data)
				if err != nil {
					return errs.Content(spec.Name, "title template: %v", err)
				}
				out.Title = strings.TrimSpace(title)
			}
			if err := out.Validate(); err != nil {
				return &errs.ContentError{Action: spec.Name, Item: fmt.Sprintf("output %d", i), Err: err}
			}
		}
	}
	return nil
}

// save persists the fresh, non-transient outputs of every unit in one call.
// Skipped units pass their inputs through untouched.
func (e *Engine) save(ctx context.Context, units []*unit) error {
	var pending []*item.Item
	for _, u := range units {
		if u.hit || u.skip != "" {
			continue
		}
		for _, out := range u.outputs {
			if out.State != item.StateTransient {
				pending = append(pending, out)
			}
		}
	}
	if len(pending) == 0 {
		return nil
	}

	paths, err := e.store.SaveAll(ctx, pending)
	if err != nil {
		return err
	}
	e.log.Info().Ctx(ctx).Int("items", len(pending)).Strs("paths", paths).Msg("outputs saved")
	return nil
}

// finish collects outputs, applies archiving and the selection, and ends the
// machine. Archiving only follows a fresh run; a cache hit changes nothing
// on disk.
func (e *Engine) finish(ctx context.Context, inv *invocation, units []*unit, locators []string, o invokeOptions, fresh bool) (*action.Result, error) {
	var (
		reasons []string
		pathOps []action.PathOp
	)
	for _, u := range units {
		inv.res.Items = append(inv.res.Items, u.outputs...)
		pathOps = append(pathOps, u.pathOps...)
		if u.skip != "" {
			reasons = append(reasons, u.skip)
		}
	}
	inv.res.Paths = storePaths(inv.res.Items)
	inv.res.SkipReason = strings.Join(reasons, "; ")

	if fresh && inv.spec.ReplacesInput {
		for _, p := range inv.res.Inputs {
			if slices.Contains(inv.res.Paths, p) {
				continue
			}
			if err := e.archive(ctx, inv, p); err != nil {
				return e.fail(ctx, inv, err)
			}
		}
	}

	selected := inv.res.Paths
	if fresh && len(pathOps) > 0 {
		selected = nil
		for _, op := range pathOps {
			if slices.Contains(inv.res.Archived, op.Path) {
				continue
			}
			switch op.Op {
			case action.PathArchive:
				if err := e.archive(ctx, inv, op.Path); err != nil {
					return e.fail(ctx, inv, err)
				}
			case action.PathSelect:
				if !slices.Contains(selected, op.Path) {
					selected = append(selected, op.Path)
				}
			default:
				return e.fail(ctx, inv, errs.Content(inv.spec.Name, "unknown path op %q for %s", op.Op, op.Path))
			}
		}
	}
	selected = slices.DeleteFunc(slices.Clone(selected), func(p string) bool {
		return slices.Contains(inv.res.Archived, p)
	})

	if !inv.spec.Query && !o.noSelect && len(selected) > 0 {
		if err := e.sel.Push(ctx, selected, commandString(inv.spec.Name, locators)); err != nil {
			e.log.Warn().Ctx(ctx).Err(err).Msg("update selection")
		}
	}

	e.advance(ctx, inv, action.StatusDone)
	return e.result(ctx, inv), nil
}

// archive moves p under archive/. An item that is already gone counts as
// archived.
func (e *Engine) archive(ctx context.Context, inv *invocation, p string) error {
	dst, err := e.store.Archive(ctx, p)
	if errors.Is(err, filestore.ErrNotFound) {
		e.log.Debug().Ctx(ctx).Str("path", p).Msg("archive target already gone")
		return nil
	}
	if err != nil {
		return err
	}
	inv.res.Archived = append(inv.res.Archived, p)
	e.log.Info().Ctx(ctx).Str("path", p).Str("to", dst).Msg("archived")
	return nil
}

func (e *Engine) result(ctx context.Context, inv *invocation) *action.Result {
	inv.res.Status = inv.tracker.Outcome()
	inv.res.Trace = inv.tracker.Trace()
	inv.res.Elapsed = time.Since(inv.start)
	e.log.Info().Ctx(ctx).
		Str("status", string(inv.res.Status)).
		Int("outputs", len(inv.res.Items)).
		Dur("elapsed", inv.res.Elapsed).
		Msg("action finished")
	return inv.res
}

func (e *Engine) fail(ctx context.Context, inv *invocation, err error) (*action.Result, error) {
	err = errs.Classify(err)
	inv.tracker.Fail()
	inv.res.SetError(err)
	inv.res.Trace = inv.tracker.Trace()
	inv.res.Elapsed = time.Since(inv.start)
	e.log.Warn().Ctx(ctx).Err(err).Str("kind", string(inv.res.ErrorKind)).Msg("action failed")
	return inv.res, err
}

func (e *Engine) advance(ctx context.Context, inv *invocation, next action.Status) {
	if err := inv.tracker.Advance(next); err != nil {
		e.log.Error().Ctx(ctx).Err(err).Msg("status")
		return
	}
	e.log.Debug().Ctx(ctx).Str("status", string(next)).Msg("status")
}

func allHit(units []*unit) bool {
	for _, u := range units {
		if !u.hit {
			return false
		}
	}
	return len(units) > 0
}

func countOutputs(units []*unit) int {
	n := 0
	for _, u := range units {
		n += len(u.outputs)
	}
	return n
}

func skipReasons(units []*unit) []string {
	var out []string
	for _, u := range units {
		if u.skip != "" {
			out = append(out, u.skip)
		}
	}
	return out
}

func storePaths(items []*item.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.StorePath != "" && !slices.Contains(out, it.StorePath) {
			out = append(out, it.StorePath)
		}
	}
	return out
}

func commandString(name string, locators []string) string {
	return strings.TrimSpace(name + " " + strings.Join(locators, " "))
}
