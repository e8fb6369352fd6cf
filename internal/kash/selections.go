package kash

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/colonyops/kash/internal/core/selection"
)

const selectionLockRetry = 20 * time.Millisecond

// Selections serialises read-modify-write cycles over the persisted
// selection history, within the process and, when a lock file is given,
// across processes sharing the workspace.
type Selections struct {
	mu    sync.Mutex
	lock  *flock.Flock
	store selection.Store
	max   int
}

// NewSelections wraps store. lockPath names the advisory lock file guarding
// the history; "" limits exclusion to this process.
func NewSelections(store selection.Store, maxHistory int, lockPath string) *Selections {
	s := &Selections{store: store, max: maxHistory}
	if lockPath != "" {
		s.lock = flock.New(lockPath)
	}
	return s
}

// update loads the history, applies fn and saves the result when fn reports
// a change.
func (s *Selections) update(ctx context.Context, fn func(h *selection.History) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock != nil {
		ok, err := s.lock.TryLockContext(ctx, selectionLockRetry)
		if err != nil {
			return fmt.Errorf("lock selection history: %w", err)
		}
		if !ok {
			return fmt.Errorf("lock selection history: %s is held", s.lock.Path())
		}
		defer func() { _ = s.lock.Unlock() }()
	}

	snap, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	h := selection.FromSnapshot(snap, s.max)

	changed, err := fn(h)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.store.Save(ctx, h.Snapshot())
}

// Push records paths as the new current selection.
func (s *Selections) Push(ctx context.Context, paths []string, command string) error {
	return s.update(ctx, func(h *selection.History) (bool, error) {
		return h.Push(paths, command), nil
	})
}

func (s *Selections) Current(ctx context.Context) (selection.Entry, error) {
	var e selection.Entry
	err := s.update(ctx, func(h *selection.History) (bool, error) {
		var err error
		e, err = h.Current()
		return false, err
	})
	return e, err
}

// Previous moves the cursor back and returns the entry there.
func (s *Selections) Previous(ctx context.Context) (selection.Entry, error) {
	return s.move(ctx, (*selection.History).Previous)
}

// Next moves the cursor forward and returns the entry there.
func (s *Selections) Next(ctx context.Context) (selection.Entry, error) {
	return s.move(ctx, (*selection.History).Next)
}

func (s *Selections) move(ctx context.Context, step func(*selection.History) (selection.Entry, error)) (selection.Entry, error) {
	var e selection.Entry
	err := s.update(ctx, func(h *selection.History) (bool, error) {
		var err error
		e, err = step(h)
		return err == nil, err
	})
	return e, err
}

// History returns every entry, oldest first, and the cursor position.
func (s *Selections) History(ctx context.Context) ([]selection.Entry, int, error) {
	var (
		entries []selection.Entry
		cursor  int
	)
	err := s.update(ctx, func(h *selection.History) (bool, error) {
		entries = h.History()
		cursor = h.Cursor()
		return false, nil
	})
	return entries, cursor, err
}

// Refresh drops paths for which exists reports false.
func (s *Selections) Refresh(ctx context.Context, exists func(path string) bool) error {
	return s.update(ctx, func(h *selection.History) (bool, error) {
		return h.Refresh(exists), nil
	})
}

func (s *Selections) Clear(ctx context.Context) error {
	return s.update(ctx, func(h *selection.History) (bool, error) {
		h.Clear()
		return true, nil
	})
}

// Unselect removes paths from the current selection. An entry left empty is
// dropped and the one before it becomes current.
func (s *Selections) Unselect(ctx context.Context, paths []string) (selection.Entry, error) {
	var (
		e      selection.Entry
		curErr error
	)
	err := s.update(ctx, func(h *selection.History) (bool, error) {
		if _, err := h.Current(); err != nil {
			return false, err
		}
		e, curErr = h.UnselectCurrent(paths)
		if errors.Is(curErr, selection.ErrNoCurrent) {
			e, curErr = h.Current()
		}
		return true, nil
	})
	if err != nil {
		return selection.Entry{}, err
	}
	return e, curErr
}
