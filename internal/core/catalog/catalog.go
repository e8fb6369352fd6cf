// Package catalog defines the persisted snapshot of the workspace index and
// operation cache. The catalog is an accelerator: everything in it can be
// rebuilt from the item files.
package catalog

import (
	"context"
	"time"
)

// Entry describes one indexed item file.
type Entry struct {
	Path        string
	Fingerprint string
	// FileHash is the sha256 of the file bytes, used to detect external edits.
	FileHash string
	Size     int64
	ModTime  time.Time
	Type     string
	Format   string
	Title    string
	URL      string
	// OpFingerprint and OutputNum record the producing operation, if any.
	OpFingerprint string
	OutputNum     int
}

// Unchanged reports whether a stat of the file still matches the entry.
func (e Entry) Unchanged(size int64, modTime time.Time) bool {
	return e.Size == size && e.ModTime.Equal(modTime)
}

// Output is one recorded output of a cached operation.
type Output struct {
	OpFingerprint     string
	OutputNum         int
	Path              string
	OutputFingerprint string
	CreatedAt         time.Time
}

// Store persists catalog entries and operation outputs.
type Store interface {
	ListEntries(ctx context.Context) ([]Entry, error)
	// PutEntries upserts entries and records outputs in one transaction.
	PutEntries(ctx context.Context, entries []Entry, outputs []Output) error
	DeleteEntry(ctx context.Context, path string) error
	ListOutputs(ctx context.Context) ([]Output, error)
	DeleteOperation(ctx context.Context, opFingerprint string) error
	// Reset drops every entry and output.
	Reset(ctx context.Context) error
	Close() error
}
