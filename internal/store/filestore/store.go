// Package filestore persists items as files in a workspace directory and
// keeps an in-memory index of them, backed by the catalog database.
//
// Layout:
//
//	<root>/<folder>/<slug>.<type>.<ext>   text items with YAML frontmatter
//	<root>/<folder>/<slug>.<type>.yml     sidecar for binary and url items
//	<root>/archive/...                    archived items, not indexed
//	<root>/.kash/                         lock, catalog, params, selections
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/colonyops/kash/internal/core/catalog"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/logging"
	"github.com/colonyops/kash/internal/data/db"
	"github.com/colonyops/kash/internal/data/stores"
)

const (
	// StateDirName is the hidden per-workspace state directory.
	StateDirName = ".kash"
	// ArchiveDirName holds archived items.
	ArchiveDirName = "archive"
	// IgnoreFileName lists doublestar patterns excluded from scans.
	IgnoreFileName = ".kashignore"

	lockFileName   = "lock"
	paramsFileName = "params.yml"
	lockRetryDelay = 50 * time.Millisecond
	// lockCheckWait bounds how long CheckLock waits for another holder.
	lockCheckWait = 2 * time.Second
)

// ErrNotFound is returned (wrapped in errs.StorageError) when a locator does
// not resolve to a file.
var ErrNotFound = errors.New("item not found")

// ErrLocked means the workspace lock was still held by another process when
// the caller's context ended.
var ErrLocked = errors.New("workspace is locked by another process")

// Store is a directory-backed item store. All mutations are serialised by an
// in-process mutex and a cross-process advisory lock on .kash/lock.
type Store struct {
	root     string
	stateDir string
	log      zerolog.Logger
	catalog  catalog.Store
	ownsCat  bool
	flock    *flock.Flock
	ignore   *ignoreList
	params   *ParamState
	now      func() time.Time
	catOpts  db.OpenOptions

	mu  sync.Mutex
	idx *index

	scanMu     sync.Mutex
	scanErrors []error
}

// Option customises Open.
type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithCatalog uses c instead of opening .kash/catalog.db. The store does not
// close a catalog it did not open.
func WithCatalog(c catalog.Store) Option {
	return func(s *Store) { s.catalog = c }
}

func WithCatalogOptions(opts db.OpenOptions) Option {
	return func(s *Store) { s.catOpts = opts }
}

// WithClock overrides the time source used for item timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the workspace at root and indexes it.
func Open(ctx context.Context, root string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.Storage("open", root, err)
	}

	s := &Store{
		root:     abs,
		stateDir: filepath.Join(abs, StateDirName),
		log:      logging.Component("filestore"),
		now:      time.Now,
		catOpts:  db.DefaultOpenOptions(),
		idx:      newIndex(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.stateDir, 0o755); err != nil {
		return nil, errs.Storage("open", s.stateDir, err)
	}
	s.flock = flock.New(filepath.Join(s.stateDir, lockFileName))
	s.params = newParamState(filepath.Join(s.stateDir, paramsFileName))

	if s.catalog == nil {
		cat, err := stores.OpenCatalog(s.stateDir, s.catOpts, s.log)
		if err != nil {
			return nil, errs.Storage("open catalog", s.stateDir, err)
		}
		s.catalog = cat
		s.ownsCat = true
	}

	ign, err := loadIgnore(filepath.Join(s.root, IgnoreFileName))
	if err != nil {
		s.closeCatalog()
		return nil, errs.Storage("read", IgnoreFileName, err)
	}
	s.ignore = ign

	err = s.withLock(ctx, func() error {
		return s.scan(ctx, true)
	})
	if err != nil {
		s.closeCatalog()
		return nil, err
	}

	return s, nil
}

// Root is the absolute workspace directory.
func (s *Store) Root() string { return s.root }

// StateDir is the absolute path of the hidden state directory.
func (s *Store) StateDir() string { return s.stateDir }

// Catalog exposes the catalog for health checks.
func (s *Store) Catalog() catalog.Store { return s.catalog }

// Params returns the workspace parameter defaults.
func (s *Store) Params() *ParamState { return s.params }

// ScanErrors returns the files the last scan could not index.
func (s *Store) ScanErrors() []error {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	return append([]error(nil), s.scanErrors...)
}

// Close releases the catalog.
func (s *Store) Close() error {
	return s.closeCatalog()
}

func (s *Store) closeCatalog() error {
	if !s.ownsCat || s.catalog == nil {
		return nil
	}
	err := s.catalog.Close()
	s.catalog = nil
	return err
}

// withLock runs fn holding both the process mutex and the workspace lock
// file. It waits for the lock until ctx ends; a deadline reached while
// waiting is reported as ErrLocked.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.flock.TryLockContext(ctx, lockRetryDelay)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Storage("lock", s.flock.Path(), fmt.Errorf("%w: %w", ErrLocked, err))
	case err != nil:
		return errs.Storage("lock", s.flock.Path(), err)
	case !ok:
		return errs.Storage("lock", s.flock.Path(), ErrLocked)
	}
	defer func() {
		if err := s.flock.Unlock(); err != nil {
			s.log.Warn().Err(err).Msg("release workspace lock")
		}
	}()

	return fn()
}

// abs converts a store-relative slash path to an absolute OS path.
func (s *Store) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// rel converts an absolute path inside the root to a store-relative slash
// path. ok is false for paths outside the root.
func (s *Store) rel(abs string) (string, bool) {
	r, err := filepath.Rel(s.root, abs)
	if err != nil || r == "." || r == ".." || len(r) > 2 && r[:3] == ".."+string(filepath.Separator) {
		return "", false
	}
	return filepath.ToSlash(r), true
}
