package filestore

import (
	"context"
	"errors"

	"github.com/colonyops/kash/internal/core/errs"
	"github.com/colonyops/kash/internal/core/item"
)

// LookupOperation returns the recorded outputs of the operation with
// fingerprint opFP, in output order. ok is false when nothing is recorded.
// An output whose file is gone or no longer has its recorded fingerprint
// yields an errs.CacheConsistencyError.
func (s *Store) LookupOperation(ctx context.Context, opFP string) ([]*item.Item, bool, error) {
	var (
		items []*item.Item
		ok    bool
	)
	err := s.withLock(ctx, func() error {
		outs := s.idx.outputs(opFP)
		if len(outs) == 0 {
			return nil
		}

		items = make([]*item.Item, 0, len(outs))
		for _, o := range outs {
			it, err := s.loadLocked(ctx, o.Path)
			switch {
			case errors.Is(err, ErrNotFound):
				return &errs.CacheConsistencyError{Fingerprint: opFP, Path: o.Path, Reason: "output file is missing"}
			case err != nil:
				return err
			}
			if fp := it.Fingerprint(); fp != o.OutputFingerprint {
				return &errs.CacheConsistencyError{Fingerprint: opFP, Path: o.Path, Reason: "output changed since it was recorded"}
			}
			items = append(items, it)
		}
		ok = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return items, ok, nil
}

// InvalidateOperation forgets the recorded outputs of opFP. The output files
// are left in place.
func (s *Store) InvalidateOperation(ctx context.Context, opFP string) error {
	return s.withLock(ctx, func() error {
		s.idx.dropOperation(opFP)
		if err := s.catalog.DeleteOperation(ctx, opFP); err != nil {
			return errs.Storage("invalidate", item.Short(opFP), err)
		}
		s.log.Debug().Str("operation", item.Short(opFP)).Msg("operation invalidated")
		return nil
	})
}

// Invalidate re-reads a single path after an external change. Paths outside
// the indexed folders are ignored; a removed file is dropped from the index.
func (s *Store) Invalidate(ctx context.Context, rel string) error {
	rel, err := cleanRel(rel)
	if err != nil {
		return err
	}
	if !inTypeFolder(rel) || skipFile(rel) || s.ignore.match(rel) {
		return nil
	}

	return s.withLock(ctx, func() error {
		if isPayload(s.abs(rel)) {
			return nil
		}
		_, err := s.loadLocked(ctx, rel)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil
		case errs.KindOf(err) == errs.KindParse || errs.KindOf(err) == errs.KindValidation:
			s.log.Warn().Err(err).Str("path", rel).Msg("changed file could not be indexed")
			s.forget(ctx, rel)
			return nil
		}
		return err
	})
}

// Rebuild discards the catalog and re-indexes every file.
func (s *Store) Rebuild(ctx context.Context) error {
	return s.withLock(ctx, func() error {
		if err := s.catalog.Reset(ctx); err != nil {
			return errs.Storage("rebuild", s.stateDir, err)
		}
		if err := s.scan(ctx, false); err != nil {
			return err
		}
		s.log.Info().Int("items", s.idx.entries.Len()).Msg("workspace rebuilt")
		return nil
	})
}
