package db

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(t.TempDir(), DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func openRawConn(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), FileName)
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", dbPath))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func fakeMigrator(files map[string]string) *migrator {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys["m/"+name] = &fstest.MapFile{Data: []byte(body)}
	}
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return &migrator{fsys: fsys, dir: "m", now: func() time.Time { return fixed }, log: zerolog.Nop()}
}

func TestOpen_AppliesEmbeddedMigrations(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	migrations, err := newMigrator(zerolog.Nop()).load()
	require.NoError(t, err)

	applied, err := newMigrator(zerolog.Nop()).applied(ctx, database.Conn())
	require.NoError(t, err)
	require.Len(t, applied, len(migrations))
	for i, m := range migrations {
		assert.Equal(t, m.Version, applied[i])
	}

	for _, table := range []string{"items", "operations"} {
		_, err = database.Conn().ExecContext(ctx, "SELECT 1 FROM "+table+" LIMIT 0")
		assert.NoError(t, err, "%s table should exist", table)
	}

	// Reopening the same conn is a no-op.
	assert.NoError(t, newMigrator(zerolog.Nop()).up(ctx, database.Conn()))
}

func TestOpen_LogsToCallerLogger(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOpenOptions()
	opts.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)

	database, err := Open(t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	assert.Contains(t, buf.String(), "migrating catalog")
	assert.Contains(t, buf.String(), `"version":1`)
}

func TestMigrator_UpRecordsVersions(t *testing.T) {
	conn := openRawConn(t)
	ctx := context.Background()
	m := fakeMigrator(map[string]string{
		"0001_notes.up.sql":   "CREATE TABLE notes (id INTEGER)",
		"0001_notes.down.sql": "DROP TABLE notes",
		"0002_tags.up.sql":    "CREATE TABLE tags (id INTEGER)",
		"0002_tags.down.sql":  "DROP TABLE tags",
	})

	require.NoError(t, m.up(ctx, conn))

	var name, at string
	require.NoError(t, conn.QueryRowContext(ctx,
		"SELECT name, applied_at FROM "+schemaTable+" WHERE version = 2").Scan(&name, &at))
	assert.Equal(t, "tags", name)
	assert.Equal(t, "2025-01-02T03:04:05Z", at)
}

func TestMigrator_FailedStepLeavesNoRecord(t *testing.T) {
	conn := openRawConn(t)
	ctx := context.Background()
	m := fakeMigrator(map[string]string{
		"0001_ok.up.sql":    "CREATE TABLE ok (id INTEGER)",
		"0001_ok.down.sql":  "DROP TABLE ok",
		"0002_bad.up.sql":   "CREATE TABLE broken (",
		"0002_bad.down.sql": "SELECT 1",
	})

	err := m.up(ctx, conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0002_bad")

	applied, err := m.applied(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
}

func TestMigrator_RejectsNewerSchema(t *testing.T) {
	conn := openRawConn(t)
	ctx := context.Background()

	newer := fakeMigrator(map[string]string{
		"0001_a.up.sql": "SELECT 1", "0001_a.down.sql": "SELECT 1",
		"0002_b.up.sql": "SELECT 1", "0002_b.down.sql": "SELECT 1",
	})
	require.NoError(t, newer.up(ctx, conn))

	older := fakeMigrator(map[string]string{
		"0001_a.up.sql": "SELECT 1", "0001_a.down.sql": "SELECT 1",
	})
	assert.ErrorIs(t, older.up(ctx, conn), ErrSchemaNewer)
}

func TestMigrateDown(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	conn := database.Conn()

	require.NoError(t, database.Queries().UpsertItem(ctx, Item{
		Path: "docs/a.doc.md", Fingerprint: "fp", FileHash: "h", Size: 1, ModTime: 1, ItemType: "doc",
	}))

	require.NoError(t, MigrateDown(ctx, conn, 1))

	_, err := conn.ExecContext(ctx, "SELECT 1 FROM operations LIMIT 0")
	require.Error(t, err, "operations should not exist after down migration")

	var count int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count))
	assert.Equal(t, 1, count, "item row should be preserved")
}

func TestMigrateDown_Bounds(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	migrations, err := newMigrator(zerolog.Nop()).load()
	require.NoError(t, err)

	assert.Error(t, MigrateDown(ctx, database.Conn(), 0))
	assert.Error(t, MigrateDown(ctx, database.Conn(), len(migrations)+1))
}

func TestMigrator_LoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "missing down",
			files:   map[string]string{"0001_a.up.sql": "SELECT 1"},
			wantErr: "needs both",
		},
		{
			name:    "names disagree",
			files:   map[string]string{"0001_a.up.sql": "SELECT 1", "0001_b.down.sql": "SELECT 1"},
			wantErr: "disagree",
		},
		{
			name:    "bad filename",
			files:   map[string]string{"first.sql": "SELECT 1"},
			wantErr: "want NNNN_name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fakeMigrator(tt.files).load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion int
		wantName    string
		wantUp      bool
		wantErr     bool
	}{
		{"0001_items.up.sql", 1, "items", true, false},
		{"0002_operations.down.sql", 2, "operations", false, false},
		{"0100_big_version.up.sql", 100, "big_version", true, false},
		{"0001_items.sql", 0, "", false, true},
		{"0000_zero.up.sql", 0, "", false, true},
		{"1_short.up.sql", 0, "", false, true},
		{"0001_.up.sql", 0, "", false, true},
		{"0001_Upper.up.sql", 0, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, err := parseMigrationName(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantUp, up)
		})
	}
}
