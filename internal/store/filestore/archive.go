package filestore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
)

// Archive moves the item at rel, and its payload, under archive/ keeping the
// relative layout. The item is dropped from the index. It returns the new
// store-relative path.
func (s *Store) Archive(ctx context.Context, rel string) (string, error) {
	rel, err := cleanRel(rel)
	if err != nil {
		return "", err
	}
	if isArchived(rel) {
		return "", errs.Validation("path", "%s is already archived", rel)
	}

	var dst string
	err = s.withLock(ctx, func() error {
		it, err := s.loadLocked(ctx, rel)
		if err != nil {
			return err
		}

		dst = path.Join(ArchiveDirName, rel)
		if err := s.move(it, rel, dst); err != nil {
			return err
		}
		s.forget(ctx, rel)
		s.log.Info().Str("from", rel).Str("to", dst).Msg("archived")
		return nil
	})
	return dst, err
}

// Unarchive moves an archived item back to its original location and
// indexes it.
func (s *Store) Unarchive(ctx context.Context, rel string) (string, error) {
	rel, err := cleanRel(rel)
	if err != nil {
		return "", err
	}
	if !isArchived(rel) {
		return "", errs.Validation("path", "%s is not archived", rel)
	}

	dst := strings.TrimPrefix(rel, ArchiveDirName+"/")
	err = s.withLock(ctx, func() error {
		if _, err := os.Lstat(s.abs(dst)); err == nil {
			return errs.Storage("unarchive", dst, fs.ErrExist)
		}

		raw, err := os.ReadFile(s.abs(rel))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return errs.Storage("unarchive", rel, ErrNotFound)
			}
			return errs.Storage("unarchive", rel, err)
		}
		it, err := item.Parse(rel, raw)
		if err != nil {
			return err
		}

		if err := s.move(it, rel, dst); err != nil {
			return err
		}
		_, err = s.loadLocked(ctx, dst)
		if err == nil {
			s.log.Info().Str("from", rel).Str("to", dst).Msg("unarchived")
		}
		return err
	})
	return dst, err
}

func isArchived(rel string) bool {
	return strings.HasPrefix(rel, ArchiveDirName+"/")
}

// move renames an item file and any payload that lives next to it. The
// payload reference in a sidecar is relative to the workspace, so it is
// rewritten to the new location.
func (s *Store) move(it *item.Item, from, to string) error {
	if err := os.MkdirAll(filepath.Dir(s.abs(to)), 0o755); err != nil {
		return errs.Storage("move", to, err)
	}

	payload := it.IsSidecar() && it.ExternalPath != "" && it.ExternalPath != from
	if payload {
		newPayload := item.PayloadName(to, it.Format)
		if err := os.Rename(s.abs(it.ExternalPath), s.abs(newPayload)); err != nil {
			return errs.Storage("move", it.ExternalPath, err)
		}
		it.ExternalPath = newPayload

		raw, err := item.Render(it)
		if err != nil {
			return errs.Storage("render", from, err)
		}
		if err := writeFileAtomic(s.abs(to), raw); err != nil {
			return errs.Storage("write", to, err)
		}
		if err := os.Remove(s.abs(from)); err != nil {
			return errs.Storage("move", from, err)
		}
		return nil
	}

	if err := os.Rename(s.abs(from), s.abs(to)); err != nil {
		return errs.Storage("move", from, err)
	}
	return nil
}
