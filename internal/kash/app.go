package kash

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/kash/internal/actions"
	"github.com/colonyops/kash/internal/core/action"
	"github.com/colonyops/kash/internal/core/config"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/fetch"
	"github.com/colonyops/kash/internal/core/llm"
	"github.com/colonyops/kash/internal/core/logging"
	"github.com/colonyops/kash/internal/core/param"
	"github.com/colonyops/kash/internal/core/precondition"
	"github.com/colonyops/kash/internal/data/db"
	"github.com/colonyops/kash/internal/store/filestore"
	"github.com/colonyops/kash/internal/store/jsonfile"
)

const (
	selectionsFileName = "selections.json"
	llmTimeout         = 2 * time.Minute
)

// App is the entry point for workspace operations. Commands consume App
// instead of wiring collaborators themselves.
type App struct {
	Config        *config.Config
	Registry      *action.Registry
	Preconditions *precondition.Registry
	Store         *filestore.Store
	Selections    *Selections
	Engine        *Engine
	Doctor        *DoctorService

	log     zerolog.Logger
	watcher *jsonfile.ItemWatcher
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

type options struct {
	registry   *action.Registry
	llm        llm.Completer
	fetcher    fetch.Fetcher
	storeOpts  []filestore.Option
	logger     *zerolog.Logger
	configPath string
}

// Option customises Open.
type Option func(*options)

// WithRegistry replaces the default registry of built-in actions.
func WithRegistry(reg *action.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithLLM replaces the completer built from the llm config section.
func WithLLM(c llm.Completer) Option {
	return func(o *options) { o.llm = c }
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f fetch.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithStoreOptions passes options through to filestore.Open.
func WithStoreOptions(opts ...filestore.Option) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, opts...) }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithConfigPath records where cfg was loaded from, for doctor.
func WithConfigPath(p string) Option {
	return func(o *options) { o.configPath = p }
}

// Open opens the workspace named by cfg.Workspace and wires an App around
// it. The caller must Close the App.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := logging.Component("kash")
	if o.logger != nil {
		log = *o.logger
	}

	reg := o.registry
	if reg == nil {
		reg = action.NewRegistry()
		reg.AddLoader(actions.Register)
	}

	storeOpts := append([]filestore.Option{
		filestore.WithCatalogOptions(db.OpenOptions{BusyTimeout: cfg.Catalog.BusyTimeoutMS}),
	}, o.storeOpts...)
	store, err := filestore.Open(ctx, cfg.Workspace, storeOpts...)
	if err != nil {
		return nil, err
	}

	selPath := filepath.Join(store.StateDir(), selectionsFileName)
	sels := NewSelections(
		jsonfile.NewSelectionStore(selPath),
		cfg.Selection.MaxHistory,
		selPath+".lock",
	)

	completer := o.llm
	if completer == nil {
		completer = newCompleter(cfg)
	}
	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = &fetch.HTTP{
			Client:    &http.Client{Timeout: time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second},
			UserAgent: cfg.Fetch.UserAgent,
		}
	}

	app := &App{
		Config:        cfg,
		Registry:      reg,
		Preconditions: precondition.Builtins(),
		Store:         store,
		Selections:    sels,
		Engine: NewEngine(EngineConfig{
			Registry:     reg,
			Store:        store,
			Selections:   sels,
			LLM:          completer,
			Fetcher:      fetcher,
			GlobalParams: cfg.GlobalParams(),
			Titles:       cfg.Titles,
			MaxParallel:  cfg.Engine.MaxParallel,
			Logger:       logging.Component("engine"),
		}),
		Doctor: NewDoctorService(store, cfg, o.configPath),
		log:    log,
	}
	store.Params().SetValidator(app.validateParam)

	if cfg.Watcher.Enabled {
		if err := app.watch(); err != nil {
			log.Warn().Err(err).Msg("item watcher disabled")
		}
	}

	return app, nil
}

// newCompleter returns an OpenAI-compatible completer when an API key is
// available and llm.Unavailable otherwise.
func newCompleter(cfg *config.Config) llm.Completer {
	key := os.Getenv(cfg.LLM.APIKeyEnv)
	if cfg.LLM.APIKeyEnv == "" || key == "" {
		return llm.Unavailable{}
	}
	return llm.NewOpenAI(cfg.LLM.Endpoint, key, llmTimeout, logging.Component("llm"))
}

// watch starts the item watcher; each change re-reads the file into the
// index.
func (a *App) watch() error {
	w, err := jsonfile.NewItemWatcher(a.Store.Root(), a.Config.Watcher.Skip, logging.Component("watcher"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, err := w.Watch(ctx, "")
	if err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	a.watcher = w
	a.stop = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for ev := range events {
			if err := a.Store.Invalidate(ctx, ev.Path); err != nil {
				a.log.Warn().Err(err).Str("path", ev.Path).Msg("invalidate changed item")
			}
		}
	}()
	return nil
}

// Close stops the watcher and releases the workspace.
func (a *App) Close() error {
	var errList []error
	if a.stop != nil {
		a.stop()
	}
	if a.watcher != nil {
		errList = append(errList, a.watcher.Close())
	}
	a.wg.Wait()
	errList = append(errList, a.Store.Close())
	return errors.Join(errList...)
}

// validateParam checks a workspace param against the action that declares
// it.
func (a *App) validateParam(name string, v any) (any, error) {
	p, ok, err := a.declaredParam(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &errs.InvalidParameterError{Param: name, Value: v, Err: fmt.Errorf("no action declares this parameter")}
	}
	values, err := param.Resolve([]param.Param{p}, map[string]any{name: v}, nil, nil)
	if err != nil {
		return nil, err
	}
	return values[name], nil
}

// declaredParam finds the first declaration of name across the registered
// actions.
func (a *App) declaredParam(name string) (param.Param, bool, error) {
	if err := a.Registry.EnsureLoaded(); err != nil {
		return param.Param{}, false, err
	}
	for _, ac := range a.Registry.All() {
		for _, p := range ac.Spec().Params {
			if p.Name == name {
				return p, true, nil
			}
		}
	}
	return param.Param{}, false, nil
}

// Params lists every declared param with the actions that declare it.
func (a *App) Params() (map[string][]string, []param.Param, error) {
	if err := a.Registry.EnsureLoaded(); err != nil {
		return nil, nil, err
	}
	users := map[string][]string{}
	var decls []param.Param
	for _, ac := range a.Registry.All() {
		spec := ac.Spec()
		for _, p := range spec.Params {
			if _, seen := users[p.Name]; !seen {
				decls = append(decls, p)
			}
			users[p.Name] = append(users[p.Name], spec.Name)
		}
	}
	return users, decls, nil
}
