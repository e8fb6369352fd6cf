package filestore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/colonyops/kash/internal/core/catalog"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
)

// Load resolves a locator to an item. A locator is a store-relative path, an
// absolute path inside the workspace, an absolute path outside it (imported
// by copy) or a URL (matched by canonical URL, otherwise imported as a url
// resource).
//
// The file is always re-read. If it changed since it was indexed the entry is
// re-derived and the catalog updated.
func (s *Store) Load(ctx context.Context, locator string) (*item.Item, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, errs.Validation("locator", "empty locator")
	}

	if item.IsURL(locator) {
		var it *item.Item
		err := s.withLock(ctx, func() error {
			var err error
			it, err = s.loadURLLocked(ctx, locator)
			return err
		})
		return it, err
	}

	if filepath.IsAbs(locator) {
		if rel, ok := s.rel(filepath.Clean(locator)); ok {
			return s.LoadPath(ctx, rel)
		}
		return s.Import(ctx, locator)
	}

	return s.LoadPath(ctx, locator)
}

// LoadPath loads the item at a store-relative path.
func (s *Store) LoadPath(ctx context.Context, rel string) (*item.Item, error) {
	rel, err := cleanRel(rel)
	if err != nil {
		return nil, err
	}

	var it *item.Item
	err = s.withLock(ctx, func() error {
		var err error
		it, err = s.loadLocked(ctx, rel)
		return err
	})
	return it, err
}

func cleanRel(p string) (string, error) {
	rel := path.Clean(filepath.ToSlash(p))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", errs.Validation("locator", "%s is outside the workspace", p)
	}
	return rel, nil
}

func (s *Store) loadLocked(ctx context.Context, rel string) (*item.Item, error) {
	e, it, err := s.readEntry(rel)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.forget(ctx, rel)
		}
		return nil, err
	}

	if it.IsSidecar() && it.ExternalPath != "" && it.ExternalPath != rel {
		hash, err := item.HashFile(s.abs(it.ExternalPath))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, errs.Storage("read", it.ExternalPath, ErrNotFound)
		case err != nil:
			return nil, errs.Storage("read", it.ExternalPath, err)
		}
		if hash != it.ContentHash {
			s.log.Info().Str("path", rel).Msg("payload changed on disk")
			it.ContentHash = hash
			e.Fingerprint = it.Fingerprint()
		}
	}

	prev, indexed := s.idx.get(rel)
	if !indexed || prev.FileHash != e.FileHash || prev.Fingerprint != e.Fingerprint ||
		!prev.Unchanged(e.Size, e.ModTime) {
		if indexed && prev.Fingerprint != e.Fingerprint {
			s.log.Info().
				Str("path", rel).
				Str("old", item.Short(prev.Fingerprint)).
				Str("new", item.Short(e.Fingerprint)).
				Msg("item changed on disk")
		}
		// A changed file keeps the outputs recorded against its old
		// fingerprint so cache lookups can report the mismatch.
		if err := s.register(ctx, e, !indexed); err != nil {
			return nil, err
		}
	}

	return it, nil
}

// register stores e in the catalog and then the index. With withOutput, the
// operation output named in its frontmatter is recorded unless one is known.
func (s *Store) register(ctx context.Context, e catalog.Entry, withOutput bool) error {
	var outputs []catalog.Output
	if withOutput && e.OpFingerprint != "" && !s.idx.hasOutput(e.OpFingerprint, e.OutputNum) {
		outputs = append(outputs, outputFromEntry(e))
	}
	if err := s.catalog.PutEntries(ctx, []catalog.Entry{e}, outputs); err != nil {
		return errs.Storage("register", e.Path, err)
	}
	s.idx.put(e)
	for _, o := range outputs {
		s.idx.addOutput(o)
	}
	return nil
}

// forget drops a path that no longer exists from the index and catalog.
func (s *Store) forget(ctx context.Context, rel string) {
	_, indexed := s.idx.remove(rel)
	s.idx.dropOutputsFor(rel)
	if !indexed {
		return
	}
	if err := s.catalog.DeleteEntry(ctx, rel); err != nil {
		s.log.Warn().Err(err).Str("path", rel).Msg("remove catalog entry")
	}
}

// FindByFingerprint loads the item stored with fingerprint fp.
func (s *Store) FindByFingerprint(ctx context.Context, fp string) (*item.Item, error) {
	var it *item.Item
	err := s.withLock(ctx, func() error {
		found, ok := s.existingItem(ctx, fp)
		if !ok {
			return errs.Storage("find", item.Short(fp), ErrNotFound)
		}
		it = found
		return nil
	})
	return it, err
}

// FindByURL loads the first item whose canonical URL matches u.
func (s *Store) FindByURL(ctx context.Context, u string) (*item.Item, error) {
	var it *item.Item
	err := s.withLock(ctx, func() error {
		var err error
		it, err = s.findURLLocked(ctx, u)
		return err
	})
	return it, err
}

func (s *Store) findURLLocked(ctx context.Context, u string) (*item.Item, error) {
	for _, p := range s.idx.pathsForURL(u) {
		it, err := s.loadLocked(ctx, p)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return it, err
	}
	return nil, errs.Storage("find", u, ErrNotFound)
}

func (s *Store) loadURLLocked(ctx context.Context, u string) (*item.Item, error) {
	it, err := s.findURLLocked(ctx, u)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return it, err
	}
	return s.importLocked(ctx, urlResource(u))
}

func urlResource(u string) *item.Item {
	return &item.Item{
		Type:   item.TypeResource,
		Format: item.FormatURL,
		State:  item.StateDraft,
		URL:    item.CanonicalizeURL(u),
	}
}

// Import copies an external file or records a URL as a new item. Text files
// keep any frontmatter they carry; files with malformed frontmatter are
// imported as opaque binary resources.
func (s *Store) Import(ctx context.Context, src string) (*item.Item, error) {
	if item.IsURL(src) {
		var it *item.Item
		err := s.withLock(ctx, func() error {
			var err error
			it, err = s.loadURLLocked(ctx, src)
			return err
		})
		return it, err
	}

	abs, err := filepath.Abs(src)
	if err != nil {
		return nil, errs.Storage("import", src, err)
	}
	if rel, ok := s.rel(abs); ok {
		return s.LoadPath(ctx, rel)
	}

	it, err := importFile(abs)
	if err != nil {
		return nil, err
	}

	var out *item.Item
	err = s.withLock(ctx, func() error {
		var err error
		out, err = s.importLocked(ctx, it)
		return err
	})
	return out, err
}

func importFile(abs string) (*item.Item, error) {
	raw, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Storage("import", abs, ErrNotFound)
		}
		return nil, errs.Storage("import", abs, err)
	}

	base := filepath.Base(abs)
	f, known := item.FormatFromExt(filepath.Ext(base))
	text := utf8.Valid(raw) && (!known || f.IsText())

	if text {
		it, err := item.Parse(base, raw)
		var pe *errs.ParseError
		switch {
		case errors.As(err, &pe):
			opaque := item.Opaque(base, raw)
			opaque.Type = item.TypeResource
			opaque.ExternalPath = abs
			return opaque, nil
		case err != nil:
			return nil, err
		}
		it.StorePath = ""
		return it, nil
	}

	if !known {
		f = item.FormatBinary
	}
	name, _, _ := strings.Cut(base, ".")
	return &item.Item{
		Type:         item.TypeResource,
		Format:       f,
		State:        item.StateDraft,
		Title:        name,
		ExternalPath: abs,
	}, nil
}

// importLocked saves it, or returns the existing item with the same
// fingerprint.
func (s *Store) importLocked(ctx context.Context, it *item.Item) (*item.Item, error) {
	paths, err := s.saveAllLocked(ctx, []*item.Item{it})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("path", paths[0]).Msg("imported")
	return s.loadLocked(ctx, paths[0])
}
