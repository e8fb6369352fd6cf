package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/colonyops/kash/internal/core/catalog"
	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
)

// Save persists a single item. See SaveAll.
func (s *Store) Save(ctx context.Context, it *item.Item) (string, error) {
	paths, err := s.SaveAll(ctx, []*item.Item{it})
	if err != nil {
		return "", err
	}
	return paths[0], nil
}

// SaveAll persists items as one unit. An item whose fingerprint is already
// stored resolves to the existing path without a write. Either every item is
// written and registered or none is: files written by a failed call are
// removed. On success each item's StorePath and timestamps are set.
//
// Cacheable items carrying a Source fingerprint are recorded as outputs of
// that operation, including items that resolved to an existing path.
func (s *Store) SaveAll(ctx context.Context, items []*item.Item) ([]string, error) {
	var paths []string
	err := s.withLock(ctx, func() error {
		var err error
		paths, err = s.saveAllLocked(ctx, items)
		return err
	})
	return paths, err
}

// pendingWrite is one item file planned by a save.
type pendingWrite struct {
	it      *item.Item
	fp      string
	payload string // absolute source path of a binary payload to copy
}

func (s *Store) saveAllLocked(ctx context.Context, items []*item.Item) ([]string, error) {
	now := s.now().UTC()
	paths := make([]string, len(items))
	clones := make([]*item.Item, len(items))
	planned := map[string]string{} // fingerprint -> path within this batch
	reserved := map[string]bool{}
	var writes []pendingWrite

	for i, orig := range items {
		if orig == nil {
			return nil, errs.Validation("item", "item %d is nil", i)
		}
		it := orig.Clone()
		it.StorePath = ""

		payload, err := s.preparePayload(it)
		if err != nil {
			return nil, err
		}
		if err := it.Validate(); err != nil {
			return nil, err
		}

		fp := it.Fingerprint()
		if p, ok := planned[fp]; ok {
			paths[i] = p
			clones[i] = it
			continue
		}
		if found, ok := s.existingItem(ctx, fp); ok {
			paths[i] = found.StorePath
			planned[fp] = found.StorePath
			clones[i] = it
			continue
		}

		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		it.ModifiedAt = now
		if it.State == "" {
			it.State = item.StateDraft
		}

		p, err := s.uniquePath(it, reserved)
		if err != nil {
			return nil, err
		}
		reserved[p] = true
		if it.IsSidecar() && payload != "" {
			it.ExternalPath = item.PayloadName(p, it.Format)
			reserved[it.ExternalPath] = true
		}
		it.StorePath = p

		paths[i] = p
		planned[fp] = p
		clones[i] = it
		writes = append(writes, pendingWrite{it: it, fp: fp, payload: payload})
	}

	if err := checkDerivation(writes); err != nil {
		return nil, err
	}

	var written []string
	rollback := func() {
		for i := len(written) - 1; i >= 0; i-- {
			if err := os.Remove(s.abs(written[i])); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.log.Warn().Err(err).Str("path", written[i]).Msg("rollback: remove written file")
			}
		}
	}

	entries := make([]catalog.Entry, 0, len(writes))
	for _, w := range writes {
		if w.payload != "" {
			if err := copyFileAtomic(w.payload, s.abs(w.it.ExternalPath)); err != nil {
				rollback()
				return nil, errs.Storage("write", w.it.ExternalPath, err)
			}
			written = append(written, w.it.ExternalPath)
		}

		raw, err := item.Render(w.it)
		if err != nil {
			rollback()
			return nil, errs.Storage("render", w.it.StorePath, err)
		}
		if err := writeFileAtomic(s.abs(w.it.StorePath), raw); err != nil {
			rollback()
			return nil, errs.Storage("write", w.it.StorePath, err)
		}
		written = append(written, w.it.StorePath)

		info, err := os.Stat(s.abs(w.it.StorePath))
		if err != nil {
			rollback()
			return nil, errs.Storage("stat", w.it.StorePath, err)
		}
		entries = append(entries, entryFor(w.it, raw, info))
	}

	var outputs []catalog.Output
	for i, it := range clones {
		if src := it.Source; src != nil && src.Cacheable && src.Fingerprint != "" {
			outputs = append(outputs, catalog.Output{
				OpFingerprint:     src.Fingerprint,
				OutputNum:         src.OutputNum,
				Path:              paths[i],
				OutputFingerprint: s.fingerprintAt(paths[i], it),
				CreatedAt:         now,
			})
		}
	}

	if err := ctx.Err(); err != nil {
		rollback()
		return nil, err
	}
	if err := s.catalog.PutEntries(ctx, entries, outputs); err != nil {
		rollback()
		return nil, errs.Storage("register", s.stateDir, err)
	}

	for _, e := range entries {
		s.idx.put(e)
	}
	for _, o := range outputs {
		s.idx.addOutput(o)
	}

	for i, orig := range items {
		orig.StorePath = paths[i]
		c := clones[i]
		if c.StorePath == "" {
			// deduplicated
			continue
		}
		orig.ExternalPath = c.ExternalPath
		orig.ContentHash = c.ContentHash
		orig.CreatedAt = c.CreatedAt
		orig.ModifiedAt = c.ModifiedAt
		orig.State = c.State
	}

	s.log.Debug().Int("items", len(items)).Int("written", len(writes)).Msg("saved items")
	return paths, nil
}

// fingerprintAt is the fingerprint recorded for an output stored at p: the
// indexed one when p was deduplicated, else that of it.
func (s *Store) fingerprintAt(p string, it *item.Item) string {
	if e, ok := s.idx.get(p); ok {
		return e.Fingerprint
	}
	return it.Fingerprint()
}

// existingItem returns an indexed item whose file currently holds fp. Each
// candidate is re-read: one edited behind the index is re-registered under
// its new fingerprint and passed over, and one that is gone is forgotten.
func (s *Store) existingItem(ctx context.Context, fp string) (*item.Item, bool) {
	for _, p := range s.idx.pathsForFingerprint(fp) {
		it, err := s.loadLocked(ctx, p)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				s.log.Warn().Err(err).Str("path", p).Msg("skip unreadable duplicate candidate")
			}
			continue
		}
		if it.Fingerprint() == fp {
			return it, true
		}
		s.log.Debug().Str("path", p).Str("fingerprint", item.Short(fp)).Msg("duplicate candidate drifted")
	}
	return nil, false
}

// preparePayload resolves a binary item's payload to an absolute source path
// and fills in its content hash. It returns "" when there is nothing to copy.
func (s *Store) preparePayload(it *item.Item) (string, error) {
	if !it.Format.IsBinary() || it.ExternalPath == "" {
		return "", nil
	}

	src := it.ExternalPath
	if !filepath.IsAbs(src) {
		src = s.abs(src)
	}
	hash, err := item.HashFile(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", errs.Storage("read", it.ExternalPath, ErrNotFound)
		}
		return "", errs.Storage("read", it.ExternalPath, err)
	}
	if it.ContentHash != "" && it.ContentHash != hash {
		return "", errs.Validation("content_hash", "payload %s does not match its content hash", it.ExternalPath)
	}
	it.ContentHash = hash
	return src, nil
}

// uniquePath picks a free store path for it, adding _1, _2 ... to the slug
// when the base name is taken.
func (s *Store) uniquePath(it *item.Item, reserved map[string]bool) (string, error) {
	folder := it.Type.Folder()
	slug, rest, _ := strings.Cut(item.BaseName(it), ".")

	for n := 0; n < 10000; n++ {
		name := slug + "." + rest
		if n > 0 {
			name = fmt.Sprintf("%s_%d.%s", slug, n, rest)
		}
		p := path.Join(folder, name)
		if s.taken(p, reserved) {
			continue
		}
		if it.IsSidecar() && it.Format.IsBinary() && s.taken(item.PayloadName(p, it.Format), reserved) {
			continue
		}
		return p, nil
	}
	return "", errs.Storage("name", folder, fmt.Errorf("no free name for %s", item.BaseName(it)))
}

func (s *Store) taken(p string, reserved map[string]bool) bool {
	if reserved[p] {
		return true
	}
	if _, ok := s.idx.get(p); ok {
		return true
	}
	_, err := os.Lstat(s.abs(p))
	return err == nil
}

// checkDerivation rejects derived_from cycles among newly written items.
func checkDerivation(writes []pendingWrite) error {
	parents := make(map[string][]string, len(writes))
	for _, w := range writes {
		parents[w.it.StorePath] = w.it.Relations.DerivedFrom
	}

	const (
		visiting = 1
		done     = 2
	)
	state := map[string]int{}
	var visit func(p string) error
	visit = func(p string) error {
		switch state[p] {
		case visiting:
			return errs.Validation("relations.derived_from", "derivation cycle through %s", p)
		case done:
			return nil
		}
		state[p] = visiting
		for _, parent := range parents[p] {
			if err := visit(parent); err != nil {
				return err
			}
		}
		state[p] = done
		return nil
	}

	for _, w := range writes {
		if err := visit(w.it.StorePath); err != nil {
			return err
		}
	}
	return nil
}

// copyFileAtomic copies src to dst through a .tmp sibling.
func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
