package kash

import (
	"context"
	"errors"

	"github.com/colonyops/kash/internal/core/action"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/internal/core/selection"
	"github.com/colonyops/kash/internal/store/filestore"
)

// Current loads the items in the current selection. Paths that no longer
// resolve are dropped from the history; a selection left empty yields
// selection.ErrNoCurrent.
func (e *Engine) Current(ctx context.Context) ([]*item.Item, error) {
	for {
		entry, err := e.sel.Current(ctx)
		if err != nil {
			return nil, err
		}
		items, missing, err := e.loadPaths(ctx, entry.Paths)
		if err != nil {
			return nil, err
		}
		if !missing {
			return items, nil
		}
		if err := e.refreshSelection(ctx); err != nil {
			return nil, err
		}
	}
}

// Previous moves the selection back one entry and loads it.
func (e *Engine) Previous(ctx context.Context) ([]*item.Item, error) {
	return e.step(ctx, e.sel.Previous)
}

// Next moves the selection forward one entry and loads it.
func (e *Engine) Next(ctx context.Context) ([]*item.Item, error) {
	return e.step(ctx, e.sel.Next)
}

func (e *Engine) step(ctx context.Context, move func(context.Context) (selection.Entry, error)) ([]*item.Item, error) {
	if _, err := move(ctx); err != nil {
		return nil, err
	}
	return e.Current(ctx)
}

// Select resolves locators and makes them the current selection.
func (e *Engine) Select(ctx context.Context, locators []string) ([]*item.Item, error) {
	items, err := e.Resolve(ctx, locators)
	if err != nil {
		return nil, err
	}
	if err := e.sel.Push(ctx, storePaths(items), commandString("select", locators)); err != nil {
		return nil, err
	}
	return items, nil
}

// SelectionHistory returns every selection entry and the cursor position.
func (e *Engine) SelectionHistory(ctx context.Context) ([]selection.Entry, int, error) {
	return e.sel.History(ctx)
}

// Suggest lists the actions applicable to the items locators resolve to, or
// to the current selection when there are none. With nothing selected it
// lists the actions that take no arguments.
func (e *Engine) Suggest(ctx context.Context, locators []string) ([]action.Action, error) {
	if err := e.reg.EnsureLoaded(); err != nil {
		return nil, err
	}
	items, err := e.resolveInputs(ctx, locators, false)
	if err != nil {
		return nil, err
	}
	return e.reg.Applicable(items), nil
}

// Inputs resolves locators, or the current selection when there are none.
// Nothing selected yields no items and no error.
func (e *Engine) Inputs(ctx context.Context, locators []string) ([]*item.Item, error) {
	return e.resolveInputs(ctx, locators, false)
}

// loadPaths loads store paths, reporting whether any were missing.
func (e *Engine) loadPaths(ctx context.Context, paths []string) ([]*item.Item, bool, error) {
	items := make([]*item.Item, 0, len(paths))
	missing := false
	for _, p := range paths {
		it, err := e.store.LoadPath(ctx, p)
		switch {
		case errors.Is(err, filestore.ErrNotFound):
			missing = true
			continue
		case err != nil:
			return nil, false, err
		}
		items = append(items, it)
	}
	return items, missing, nil
}

func (e *Engine) refreshSelection(ctx context.Context) error {
	return e.sel.Refresh(ctx, func(p string) bool {
		_, err := e.store.LoadPath(ctx, p)
		return !errors.Is(err, filestore.ErrNotFound)
	})
}
