// Package selection tracks the navigable history of "current item set" in a
// workspace. History is append-only: moving back and forth moves a cursor.
package selection

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxHistory bounds the number of retained entries.
const DefaultMaxHistory = 50

var (
	ErrNoCurrent  = errors.New("no current selection")
	ErrNoPrevious = errors.New("no previous selection")
	ErrNoNext     = errors.New("no next selection")
)

// Entry is one selection: the store paths selected and the command that
// produced them, if any.
type Entry struct {
	ID        string    `json:"id"`
	Paths     []string  `json:"paths"`
	Command   string    `json:"command,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (e Entry) Clone() Entry {
	e.Paths = slices.Clone(e.Paths)
	return e
}

// Snapshot is the persisted form of a History.
type Snapshot struct {
	Entries []Entry `json:"entries"`
	Cursor  int     `json:"cursor"`
}

// Store persists selection history.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}

// History is an in-memory selection history. It is not safe for concurrent
// use; the engine serialises access.
type History struct {
	entries []Entry
	cursor  int
	max     int
	now     func() time.Time
}

// New returns an empty history keeping at most max entries (DefaultMaxHistory
// when max <= 0).
func New(max int) *History {
	if max <= 0 {
		max = DefaultMaxHistory
	}
	return &History{cursor: -1, max: max, now: time.Now}
}

// FromSnapshot restores a history, clamping a cursor that is out of range.
func FromSnapshot(s Snapshot, max int) *History {
	h := New(max)
	for _, e := range s.Entries {
		if len(e.Paths) > 0 {
			h.entries = append(h.entries, e.Clone())
		}
	}
	h.cursor = s.Cursor
	h.truncate()
	h.clampCursor()
	return h
}

func (h *History) Snapshot() Snapshot {
	entries := make([]Entry, len(h.entries))
	for i, e := range h.entries {
		entries[i] = e.Clone()
	}
	return Snapshot{Entries: entries, Cursor: h.cursor}
}

// Push records paths as the new current selection. Empty selections and
// selections equal to the current one are ignored; Push reports whether an
// entry was added.
func (h *History) Push(paths []string, command string) bool {
	paths = dedupe(paths)
	if len(paths) == 0 {
		return false
	}
	if cur, err := h.Current(); err == nil && slices.Equal(cur.Paths, paths) {
		return false
	}

	h.entries = append(h.entries, Entry{
		ID:        uuid.NewString(),
		Paths:     paths,
		Command:   command,
		CreatedAt: h.now().UTC(),
	})
	h.cursor = len(h.entries) - 1
	h.truncate()
	return true
}

func (h *History) truncate() {
	if over := len(h.entries) - h.max; over > 0 {
		h.entries = slices.Delete(h.entries, 0, over)
		h.cursor -= over
	}
}

func (h *History) clampCursor() {
	switch {
	case len(h.entries) == 0:
		h.cursor = -1
	case h.cursor < 0 || h.cursor >= len(h.entries):
		h.cursor = len(h.entries) - 1
	}
}

// Current returns the entry at the cursor.
func (h *History) Current() (Entry, error) {
	if h.cursor < 0 || h.cursor >= len(h.entries) {
		return Entry{}, ErrNoCurrent
	}
	return h.entries[h.cursor].Clone(), nil
}

// Previous moves the cursor back one entry and returns it.
func (h *History) Previous() (Entry, error) {
	if h.cursor <= 0 {
		return Entry{}, ErrNoPrevious
	}
	h.cursor--
	return h.entries[h.cursor].Clone(), nil
}

// Next moves the cursor forward one entry and returns it.
func (h *History) Next() (Entry, error) {
	if h.cursor < 0 || h.cursor >= len(h.entries)-1 {
		return Entry{}, ErrNoNext
	}
	h.cursor++
	return h.entries[h.cursor].Clone(), nil
}

// History returns every entry, oldest first.
func (h *History) History() []Entry {
	return h.Snapshot().Entries
}

// Cursor is the index of the current entry, or -1.
func (h *History) Cursor() int { return h.cursor }

func (h *History) Len() int { return len(h.entries) }

// Clear drops all entries.
func (h *History) Clear() {
	h.entries = nil
	h.cursor = -1
}

// UnselectCurrent removes paths from the current entry and returns what is
// left. An entry left empty is dropped.
func (h *History) UnselectCurrent(paths []string) (Entry, error) {
	if _, err := h.Current(); err != nil {
		return Entry{}, err
	}
	cur := &h.entries[h.cursor]
	cur.Paths = slices.DeleteFunc(cur.Paths, func(p string) bool {
		return slices.Contains(paths, p)
	})
	if len(cur.Paths) == 0 {
		h.entries = slices.Delete(h.entries, h.cursor, h.cursor+1)
		h.clampCursor()
		return Entry{}, ErrNoCurrent
	}
	return cur.Clone(), nil
}

// Refresh drops paths for which exists reports false, then drops entries left
// empty. It reports whether anything changed.
func (h *History) Refresh(exists func(path string) bool) bool {
	changed := false
	kept := h.entries[:0]
	for i, e := range h.entries {
		n := len(e.Paths)
		e.Paths = slices.DeleteFunc(e.Paths, func(p string) bool { return !exists(p) })
		if len(e.Paths) != n {
			changed = true
		}
		if len(e.Paths) == 0 {
			if i <= h.cursor {
				h.cursor--
			}
			continue
		}
		kept = append(kept, e)
	}
	h.entries = kept
	if h.cursor < 0 && len(h.entries) > 0 {
		h.cursor = 0
	}
	h.clampCursor()
	return changed
}

func dedupe(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
