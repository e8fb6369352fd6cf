package filestore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/colonyops/kash/internal/core/catalog"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type   item.ItemType
	Format item.Format
	// Prefix matches the start of the store path.
	Prefix string
}

func (f Filter) match(e catalog.Entry) bool {
	switch {
	case f.Type != "" && e.Type != string(f.Type):
		return false
	case f.Format != "" && e.Format != string(f.Format):
		return false
	case f.Prefix != "" && !strings.HasPrefix(e.Path, f.Prefix):
		return false
	}
	return true
}

// List returns indexed entries matching f, sorted by path.
func (s *Store) List(f Filter) []catalog.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []catalog.Entry
	for _, e := range s.idx.all() {
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Glob returns indexed paths matching a doublestar pattern, sorted.
func (s *Store) Glob(pattern string) ([]string, error) {
	pattern = filepath.ToSlash(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, errs.Validation("locator", "invalid pattern %q: %v", pattern, doublestar.ErrBadPattern)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, e := range s.idx.all() {
		if ok, _ := doublestar.Match(pattern, e.Path); ok {
			out = append(out, e.Path)
		}
	}
	return out, nil
}

// IsGlob reports whether a locator contains glob metacharacters.
func IsGlob(locator string) bool {
	return strings.ContainsAny(locator, "*?[{")
}

// Stats summarises the index.
type Stats struct {
	Items      int
	ByType     map[string]int
	Bytes      int64
	Operations int
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{ByType: map[string]int{}, Operations: s.idx.operationCount()}
	for _, e := range s.idx.all() {
		st.Items++
		st.ByType[e.Type]++
		st.Bytes += e.Size
	}
	return st
}

// Problem is a disagreement between the index and the files on disk.
type Problem struct {
	Path   string
	Reason string
}

// Verify compares every indexed entry with its file without changing the
// index.
func (s *Store) Verify(ctx context.Context) ([]Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var problems []Problem
	for _, e := range s.idx.all() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(s.abs(e.Path))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			problems = append(problems, Problem{Path: e.Path, Reason: "file is missing"})
			continue
		case err != nil:
			return nil, errs.Storage("verify", e.Path, err)
		}
		if item.HashBytes(raw) != e.FileHash {
			problems = append(problems, Problem{Path: e.Path, Reason: "file changed since it was indexed"})
		}
	}
	return problems, nil
}

// TempFiles lists leftover *.tmp files from interrupted writes.
func (s *Store) TempFiles() ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".tmp") {
			rel, _ := s.rel(p)
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Storage("walk", s.root, err)
	}
	sort.Strings(out)
	return out, nil
}

// RemoveTempFiles deletes the given leftover files, holding the workspace
// lock so no write is in flight.
func (s *Store) RemoveTempFiles(ctx context.Context, paths []string) error {
	return s.withLock(ctx, func() error {
		for _, p := range paths {
			if !strings.HasSuffix(p, ".tmp") {
				return errs.Validation("path", "%s is not a temp file", p)
			}
			if err := os.Remove(s.abs(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return errs.Storage("remove", p, err)
			}
		}
		return nil
	})
}

// CheckLock reports whether the workspace lock can be acquired. It gives up
// with ErrLocked after a short wait rather than blocking on another holder.
func (s *Store) CheckLock(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, lockCheckWait)
	defer cancel()
	return s.withLock(ctx, func() error { return nil })
}
