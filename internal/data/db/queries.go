package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the catalog statements.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Item is a row of the items table. ModTime is unix nanoseconds.
type Item struct {
	Path          string
	Fingerprint   string
	FileHash      string
	Size          int64
	ModTime       int64
	ItemType      string
	Format        string
	Title         string
	URL           string
	OpFingerprint string
	OutputNum     int64
}

// Operation is a row of the operations table. CreatedAt is unix nanoseconds.
type Operation struct {
	Fingerprint       string
	OutputNum         int64
	Path              string
	OutputFingerprint string
	CreatedAt         int64
}

const upsertItem = `
INSERT INTO items (path, fingerprint, file_hash, size, mod_time, item_type, format, title, url, op_fingerprint, output_num)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (path) DO UPDATE SET
    fingerprint    = excluded.fingerprint,
    file_hash      = excluded.file_hash,
    size           = excluded.size,
    mod_time       = excluded.mod_time,
    item_type      = excluded.item_type,
    format         = excluded.format,
    title          = excluded.title,
    url            = excluded.url,
    op_fingerprint = excluded.op_fingerprint,
    output_num     = excluded.output_num`

func (q *Queries) UpsertItem(ctx context.Context, arg Item) error {
	_, err := q.db.ExecContext(ctx, upsertItem,
		arg.Path, arg.Fingerprint, arg.FileHash, arg.Size, arg.ModTime,
		arg.ItemType, arg.Format, arg.Title, arg.URL, arg.OpFingerprint, arg.OutputNum,
	)
	return err
}

const getItem = `
SELECT path, fingerprint, file_hash, size, mod_time, item_type, format, title, url, op_fingerprint, output_num
FROM items WHERE path = ?`

func (q *Queries) GetItem(ctx context.Context, path string) (Item, error) {
	var i Item
	err := q.db.QueryRowContext(ctx, getItem, path).Scan(
		&i.Path, &i.Fingerprint, &i.FileHash, &i.Size, &i.ModTime,
		&i.ItemType, &i.Format, &i.Title, &i.URL, &i.OpFingerprint, &i.OutputNum,
	)
	return i, err
}

const listItems = `
SELECT path, fingerprint, file_hash, size, mod_time, item_type, format, title, url, op_fingerprint, output_num
FROM items ORDER BY path`

func (q *Queries) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := q.db.QueryContext(ctx, listItems)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Item
	for rows.Next() {
		var i Item
		if err := rows.Scan(
			&i.Path, &i.Fingerprint, &i.FileHash, &i.Size, &i.ModTime,
			&i.ItemType, &i.Format, &i.Title, &i.URL, &i.OpFingerprint, &i.OutputNum,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (q *Queries) DeleteItem(ctx context.Context, path string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM items WHERE path = ?`, path)
	return err
}

func (q *Queries) DeleteAllItems(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM items`)
	return err
}

const upsertOperation = `
INSERT INTO operations (fingerprint, output_num, path, output_fingerprint, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (fingerprint, output_num) DO UPDATE SET
    path               = excluded.path,
    output_fingerprint = excluded.output_fingerprint,
    created_at         = excluded.created_at`

func (q *Queries) UpsertOperation(ctx context.Context, arg Operation) error {
	_, err := q.db.ExecContext(ctx, upsertOperation,
		arg.Fingerprint, arg.OutputNum, arg.Path, arg.OutputFingerprint, arg.CreatedAt,
	)
	return err
}

const listOperations = `
SELECT fingerprint, output_num, path, output_fingerprint, created_at
FROM operations ORDER BY fingerprint, output_num`

func (q *Queries) ListOperations(ctx context.Context) ([]Operation, error) {
	rows, err := q.db.QueryContext(ctx, listOperations)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ops []Operation
	for rows.Next() {
		var o Operation
		if err := rows.Scan(&o.Fingerprint, &o.OutputNum, &o.Path, &o.OutputFingerprint, &o.CreatedAt); err != nil {
			return nil, err
		}
		ops = append(ops, o)
	}
	return ops, rows.Err()
}

func (q *Queries) DeleteOperation(ctx context.Context, fingerprint string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM operations WHERE fingerprint = ?`, fingerprint)
	return err
}

func (q *Queries) DeleteOperationsForPath(ctx context.Context, path string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM operations WHERE path = ?`, path)
	return err
}

func (q *Queries) DeleteAllOperations(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM operations`)
	return err
}
