// Package stores implements persistence interfaces on top of the catalog
// database.
package stores

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/kash/internal/core/catalog"
	"github.com/colonyops/kash/internal/data/db"
)

// CatalogStore implements catalog.Store using SQLite.
type CatalogStore struct {
	db *db.DB
}

var _ catalog.Store = (*CatalogStore)(nil)

func NewCatalogStore(db *db.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// OpenCatalog opens the catalog in dataDir. A corrupted database, or one
// written by a newer schema, is moved aside and recreated empty.
func OpenCatalog(dataDir string, opts db.OpenOptions, log zerolog.Logger) (*CatalogStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	opts.Logger = log

	conn, err := db.Open(dataDir, opts)
	if err == nil {
		_, err = conn.Queries().ListOperations(context.Background())
		if err != nil {
			_ = conn.Close()
		}
	}
	if err != nil {
		if !IsCorruptionError(err) && !errors.Is(err, db.ErrSchemaNewer) {
			return nil, err
		}
		log.Warn().Err(err).Str("path", filepath.Join(dataDir, db.FileName)).Msg("catalog unusable, recreating")
		if rerr := RecoverFromCorruption(dataDir); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		conn, err = db.Open(dataDir, opts)
		if err != nil {
			return nil, err
		}
	}

	return NewCatalogStore(conn), nil
}

func (s *CatalogStore) DB() *db.DB { return s.db }

func (s *CatalogStore) Close() error { return s.db.Close() }

// ListEntries returns all entries sorted by path.
func (s *CatalogStore) ListEntries(ctx context.Context) ([]catalog.Entry, error) {
	rows, err := s.db.Queries().ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}

	entries := make([]catalog.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rowToEntry(row))
	}
	return entries, nil
}

// PutEntries upserts entries and records outputs in one transaction.
func (s *CatalogStore) PutEntries(ctx context.Context, entries []catalog.Entry, outputs []catalog.Output) error {
	return s.db.WithTx(ctx, func(q *db.Queries) error {
		for _, e := range entries {
			if err := q.UpsertItem(ctx, entryToRow(e)); err != nil {
				return fmt.Errorf("failed to upsert %s: %w", e.Path, err)
			}
		}
		for _, o := range outputs {
			created := o.CreatedAt
			if created.IsZero() {
				created = time.Now()
			}
			err := q.UpsertOperation(ctx, db.Operation{
				Fingerprint:       o.OpFingerprint,
				OutputNum:         int64(o.OutputNum),
				Path:              o.Path,
				OutputFingerprint: o.OutputFingerprint,
				CreatedAt:         created.UnixNano(),
			})
			if err != nil {
				return fmt.Errorf("failed to record operation output %s: %w", o.Path, err)
			}
		}
		return nil
	})
}

// DeleteEntry removes the entry and any operation outputs that point at it.
func (s *CatalogStore) DeleteEntry(ctx context.Context, path string) error {
	return s.db.WithTx(ctx, func(q *db.Queries) error {
		if err := q.DeleteItem(ctx, path); err != nil {
			return fmt.Errorf("failed to delete %s: %w", path, err)
		}
		if err := q.DeleteOperationsForPath(ctx, path); err != nil {
			return fmt.Errorf("failed to delete outputs for %s: %w", path, err)
		}
		return nil
	})
}

func (s *CatalogStore) ListOutputs(ctx context.Context) ([]catalog.Output, error) {
	rows, err := s.db.Queries().ListOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list operation outputs: %w", err)
	}

	out := make([]catalog.Output, 0, len(rows))
	for _, row := range rows {
		out = append(out, catalog.Output{
			OpFingerprint:     row.Fingerprint,
			OutputNum:         int(row.OutputNum),
			Path:              row.Path,
			OutputFingerprint: row.OutputFingerprint,
			CreatedAt:         time.Unix(0, row.CreatedAt),
		})
	}
	return out, nil
}

func (s *CatalogStore) DeleteOperation(ctx context.Context, opFingerprint string) error {
	if err := s.db.Queries().DeleteOperation(ctx, opFingerprint); err != nil {
		return fmt.Errorf("failed to delete operation %s: %w", opFingerprint, err)
	}
	return nil
}

func (s *CatalogStore) Reset(ctx context.Context) error {
	return s.db.WithTx(ctx, func(q *db.Queries) error {
		if err := q.DeleteAllItems(ctx); err != nil {
			return err
		}
		return q.DeleteAllOperations(ctx)
	})
}

// QuickCheck reports the result of SQLite's integrity quick check.
func (s *CatalogStore) QuickCheck(ctx context.Context) (string, error) {
	return s.db.QuickCheck(ctx)
}

func rowToEntry(row db.Item) catalog.Entry {
	return catalog.Entry{
		Path:          row.Path,
		Fingerprint:   row.Fingerprint,
		FileHash:      row.FileHash,
		Size:          row.Size,
		ModTime:       time.Unix(0, row.ModTime),
		Type:          row.ItemType,
		Format:        row.Format,
		Title:         row.Title,
		URL:           row.URL,
		OpFingerprint: row.OpFingerprint,
		OutputNum:     int(row.OutputNum),
	}
}

func entryToRow(e catalog.Entry) db.Item {
	return db.Item{
		Path:          e.Path,
		Fingerprint:   e.Fingerprint,
		FileHash:      e.FileHash,
		Size:          e.Size,
		ModTime:       e.ModTime.UnixNano(),
		ItemType:      e.Type,
		Format:        e.Format,
		Title:         e.Title,
		URL:           e.URL,
		OpFingerprint: e.OpFingerprint,
		OutputNum:     int64(e.OutputNum),
	}
}
