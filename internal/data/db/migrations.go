package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrSchemaNewer means the catalog was written by a newer kash. The catalog
// is rebuildable from the item files, so callers recreate it.
var ErrSchemaNewer = errors.New("catalog schema is newer than this binary")

const schemaTable = "catalog_schema"

var migrationNameRe = regexp.MustCompile(`^(\d{4})_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration is one schema step. Down is kept so a step can be reverted
// during development; kash itself only migrates up.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// migrator applies the migrations found in fsys.
type migrator struct {
	fsys fs.FS
	dir  string
	now  func() time.Time
	log  zerolog.Logger
}

func newMigrator(log zerolog.Logger) *migrator {
	return &migrator{fsys: migrationsFS, dir: "migrations", now: time.Now, log: log}
}

// load reads NNNN_name.{up,down}.sql pairs in version order. Every version
// must have both halves.
func (m *migrator) load() ([]Migration, error) {
	names, err := fs.Glob(m.fsys, m.dir+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := map[int]*Migration{}
	for _, p := range names {
		base := path.Base(p)
		version, name, up, err := parseMigrationName(base)
		if err != nil {
			return nil, err
		}
		raw, err := fs.ReadFile(m.fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", base, err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: name}
			byVersion[version] = mig
		}
		if mig.Name != name {
			return nil, fmt.Errorf("migration %04d: names %q and %q disagree", version, mig.Name, name)
		}
		half := &mig.Down
		if up {
			half = &mig.Up
		}
		if *half != "" {
			return nil, fmt.Errorf("migration %04d: duplicate %s", version, base)
		}
		*half = string(raw)
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.Up == "" || mig.Down == "" {
			return nil, fmt.Errorf("migration %04d_%s: needs both up and down files", mig.Version, mig.Name)
		}
		out = append(out, *mig)
	}
	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

// parseMigrationName splits "0001_items.up.sql" into its parts.
func parseMigrationName(base string) (version int, name string, up bool, err error) {
	m := migrationNameRe.FindStringSubmatch(base)
	if m == nil {
		return 0, "", false, fmt.Errorf("migration file %q: want NNNN_name.up.sql or NNNN_name.down.sql", base)
	}
	version, _ = strconv.Atoi(m[1])
	if version == 0 {
		return 0, "", false, fmt.Errorf("migration file %q: version starts at 0001", base)
	}
	return version, m[2], m[3] == "up", nil
}

// up applies every pending migration, each in its own transaction.
func (m *migrator) up(ctx context.Context, conn *sql.DB) error {
	migrations, err := m.load()
	if err != nil {
		return err
	}
	applied, err := m.applied(ctx, conn)
	if err != nil {
		return err
	}
	if len(applied) > 0 && len(migrations) > 0 && slices.Max(applied) > migrations[len(migrations)-1].Version {
		return fmt.Errorf("%w: version %d", ErrSchemaNewer, slices.Max(applied))
	}

	for _, mig := range migrations {
		if slices.Contains(applied, mig.Version) {
			continue
		}
		m.log.Debug().Int("version", mig.Version).Str("name", mig.Name).Msg("migrating catalog")
		err := m.inTx(ctx, conn, mig.Up,
			`INSERT INTO `+schemaTable+` (version, name, applied_at) VALUES (?, ?, ?)`,
			mig.Version, mig.Name, m.now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

// down reverts the newest n applied migrations.
func (m *migrator) down(ctx context.Context, conn *sql.DB, n int) error {
	if n < 1 {
		return fmt.Errorf("revert count must be at least 1, got %d", n)
	}
	migrations, err := m.load()
	if err != nil {
		return err
	}
	applied, err := m.applied(ctx, conn)
	if err != nil {
		return err
	}
	if n > len(applied) {
		return fmt.Errorf("cannot revert %d migrations: %d applied", n, len(applied))
	}

	for i := len(migrations) - 1; i >= 0 && n > 0; i-- {
		mig := migrations[i]
		if !slices.Contains(applied, mig.Version) {
			continue
		}
		err := m.inTx(ctx, conn, mig.Down, `DELETE FROM `+schemaTable+` WHERE version = ?`, mig.Version)
		if err != nil {
			return fmt.Errorf("revert %04d_%s: %w", mig.Version, mig.Name, err)
		}
		n--
	}
	return nil
}

// applied lists recorded versions, creating the bookkeeping table on first
// use.
func (m *migrator) applied(ctx context.Context, conn *sql.DB) ([]int, error) {
	_, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+schemaTable+` (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", schemaTable, err)
	}

	rows, err := conn.QueryContext(ctx, `SELECT version FROM `+schemaTable+` ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", schemaTable, err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// inTx runs a migration body and its bookkeeping statement atomically.
func (m *migrator) inTx(ctx context.Context, conn *sql.DB, body, record string, args ...any) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return err
	}
	return tx.Commit()
}

// MigrateDown reverts the newest n catalog migrations.
func MigrateDown(ctx context.Context, conn *sql.DB, n int) error {
	return newMigrator(zerolog.Nop()).down(ctx, conn, n)
}
