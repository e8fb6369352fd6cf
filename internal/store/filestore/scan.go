package filestore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/colonyops/kash/internal/core/catalog"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
)

// scan rebuilds the in-memory index from disk and reconciles the catalog.
// With useCatalog, entries whose size and mtime match their catalog row are
// reused without reading the file. Callers hold the store lock.
func (s *Store) scan(ctx context.Context, useCatalog bool) error {
	cached := map[string]catalog.Entry{}
	var cachedOutputs []catalog.Output
	if useCatalog {
		entries, err := s.catalog.ListEntries(ctx)
		if err != nil {
			return errs.Storage("scan", s.stateDir, err)
		}
		for _, e := range entries {
			cached[e.Path] = e
		}
		if cachedOutputs, err = s.catalog.ListOutputs(ctx); err != nil {
			return errs.Storage("scan", s.stateDir, err)
		}
	}

	var (
		found    []catalog.Entry
		changed  []catalog.Entry
		scanErrs []error
		reused   int
	)

	for _, t := range item.ItemTypes() {
		dir := filepath.Join(s.root, t.Folder())
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			rel, ok := s.rel(p)
			if !ok || (p == dir && !d.IsDir()) {
				return nil
			}
			if d.IsDir() {
				if p != dir && (strings.HasPrefix(d.Name(), ".") || s.ignore.match(rel)) {
					return fs.SkipDir
				}
				return nil
			}
			if skipFile(rel) || s.ignore.match(rel) || isPayload(p) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			if prev, ok := cached[rel]; ok && prev.Unchanged(info.Size(), info.ModTime()) {
				found = append(found, prev)
				reused++
				return nil
			}

			e, _, err := s.readEntry(rel)
			if err != nil {
				s.log.Warn().Err(err).Str("path", rel).Msg("skipping unreadable item")
				scanErrs = append(scanErrs, err)
				return nil
			}
			found = append(found, e)
			changed = append(changed, e)
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errs.Storage("scan", dir, err)
		}
	}

	s.idx.reset()
	fps := make(map[string]string, len(found))
	for _, e := range found {
		s.idx.put(e)
		fps[e.Path] = e.Fingerprint
	}
	// The catalog remembers the fingerprint each output had when it was
	// recorded, so an output edited since then stays detectable. It is also
	// the only record of outputs that resolved to an existing item.
	for _, o := range cachedOutputs {
		if _, ok := fps[o.Path]; ok {
			s.idx.addOutput(o)
		}
	}
	var newOutputs []catalog.Output
	for _, e := range found {
		if e.OpFingerprint == "" || s.idx.hasOutput(e.OpFingerprint, e.OutputNum) {
			continue
		}
		o := outputFromEntry(e)
		s.idx.addOutput(o)
		newOutputs = append(newOutputs, o)
	}

	if len(changed) > 0 || len(newOutputs) > 0 {
		if err := s.catalog.PutEntries(ctx, changed, newOutputs); err != nil {
			return errs.Storage("scan", s.stateDir, err)
		}
	}
	for p := range cached {
		if _, ok := fps[p]; ok {
			continue
		}
		if err := s.catalog.DeleteEntry(ctx, p); err != nil {
			return errs.Storage("scan", s.stateDir, err)
		}
	}

	s.scanMu.Lock()
	s.scanErrors = scanErrs
	s.scanMu.Unlock()

	s.log.Debug().
		Int("items", len(found)).
		Int("reused", reused).
		Int("parsed", len(changed)).
		Int("errors", len(scanErrs)).
		Msg("workspace scanned")
	return nil
}

// readEntry reads and parses the item at rel.
func (s *Store) readEntry(rel string) (catalog.Entry, *item.Item, error) {
	p := s.abs(rel)
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return catalog.Entry{}, nil, errs.Storage("read", rel, ErrNotFound)
		}
		return catalog.Entry{}, nil, errs.Storage("read", rel, err)
	}
	info, err := os.Stat(p)
	if err != nil {
		return catalog.Entry{}, nil, errs.Storage("stat", rel, err)
	}

	it, err := item.Parse(rel, raw)
	if err != nil {
		return catalog.Entry{}, nil, err
	}
	return entryFor(it, raw, info), it, nil
}

func entryFor(it *item.Item, raw []byte, info fs.FileInfo) catalog.Entry {
	e := catalog.Entry{
		Path:        it.StorePath,
		Fingerprint: it.Fingerprint(),
		FileHash:    item.HashBytes(raw),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Type:        string(it.Type),
		Format:      string(it.Format),
		Title:       it.Title,
	}
	if it.URL != "" {
		e.URL = item.CanonicalizeURL(it.URL)
	}
	if src := it.Source; src != nil && src.Cacheable && src.Fingerprint != "" {
		e.OpFingerprint = src.Fingerprint
		e.OutputNum = src.OutputNum
	}
	return e
}

func outputFromEntry(e catalog.Entry) catalog.Output {
	return catalog.Output{
		OpFingerprint:     e.OpFingerprint,
		OutputNum:         e.OutputNum,
		Path:              e.Path,
		OutputFingerprint: e.Fingerprint,
		CreatedAt:         e.ModTime,
	}
}

// skipFile filters dotfiles and interrupted writes.
func skipFile(rel string) bool {
	base := path.Base(rel)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp")
}

// isPayload reports whether p is a binary payload described by a sibling
// sidecar, in which case the sidecar is the indexed item.
func isPayload(p string) bool {
	ext := filepath.Ext(p)
	if ext == ".yml" || ext == ".yaml" {
		return false
	}
	if f, ok := item.FormatFromExt(ext); ok && f.IsText() {
		return false
	}
	_, err := os.Stat(strings.TrimSuffix(p, ext) + ".yml")
	return err == nil
}

// inTypeFolder reports whether rel lives under a folder the scan indexes.
func inTypeFolder(rel string) bool {
	dir, _, ok := strings.Cut(rel, "/")
	if !ok {
		return false
	}
	_, ok = item.TypeForFolder(dir)
	return ok
}
