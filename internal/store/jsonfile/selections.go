// Package jsonfile persists small workspace state as JSON files and watches
// workspace folders for external edits.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/colonyops/kash/internal/core/selection"
)

// SelectionFile is the root JSON structure stored on disk.
type SelectionFile struct {
	Version int `json:"version"`
	selection.Snapshot
}

const selectionFileVersion = 1

// SelectionStore implements selection.Store using a JSON file.
type SelectionStore struct {
	path string
	mu   sync.RWMutex
}

// NewSelectionStore creates a store at path. The file is created on first
// save.
func NewSelectionStore(path string) *SelectionStore {
	return &SelectionStore{path: path}
}

func (s *SelectionStore) Path() string { return s.path }

// Load returns the persisted snapshot, or an empty one if the file does not
// exist yet.
func (s *SelectionStore) Load(ctx context.Context) (selection.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.load()
	if err != nil {
		return selection.Snapshot{}, err
	}
	return file.Snapshot, nil
}

// Save replaces the persisted snapshot.
func (s *SelectionStore) Save(ctx context.Context, snap selection.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Entries == nil {
		snap.Entries = []selection.Entry{}
	}
	return s.save(SelectionFile{Version: selectionFileVersion, Snapshot: snap})
}

// load reads the selection file from disk.
// Returns an empty file if it doesn't exist.
func (s *SelectionStore) load() (SelectionFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return SelectionFile{Snapshot: selection.Snapshot{Cursor: -1}}, nil
		}
		return SelectionFile{}, err
	}

	if len(data) == 0 {
		return SelectionFile{Snapshot: selection.Snapshot{Cursor: -1}}, nil
	}

	var file SelectionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return SelectionFile{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return file, nil
}

// save writes the selection file to disk atomically.
func (s *SelectionStore) save(file SelectionFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
