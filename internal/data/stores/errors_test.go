package stores

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/kash/internal/data/db"
)

func TestRecoverFromCorruption_Success(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, db.FileName)

	require.NoError(t, os.WriteFile(dbPath, []byte("corrupted data"), 0o644))

	walPath := dbPath + "-wal"
	shmPath := dbPath + "-shm"
	require.NoError(t, os.WriteFile(walPath, []byte("wal data"), 0o644))
	require.NoError(t, os.WriteFile(shmPath, []byte("shm data"), 0o644))

	require.NoError(t, RecoverFromCorruption(tempDir))

	allFiles, err := filepath.Glob(filepath.Join(tempDir, db.FileName+".corrupt.*"))
	require.NoError(t, err)

	var dbBackups, walBackups, shmBackups []string
	for _, f := range allFiles {
		switch {
		case strings.HasSuffix(f, "-wal"):
			walBackups = append(walBackups, f)
		case strings.HasSuffix(f, "-shm"):
			shmBackups = append(shmBackups, f)
		default:
			dbBackups = append(dbBackups, f)
		}
	}

	assert.Len(t, dbBackups, 1, "expected 1 DB backup file: %v", dbBackups)
	assert.Len(t, walBackups, 1, "expected 1 WAL backup: %v", walBackups)
	assert.Len(t, shmBackups, 1, "expected 1 SHM backup: %v", shmBackups)

	for _, p := range []string{dbPath, walPath, shmPath} {
		_, err = os.Stat(p)
		assert.Error(t, err, "%s should not exist after recovery", filepath.Base(p))
	}
}

func TestRecoverFromCorruption_MissingFile(t *testing.T) {
	tempDir := t.TempDir()

	assert.NoError(t, RecoverFromCorruption(tempDir), "RecoverFromCorruption should not error on missing file")

	files, _ := filepath.Glob(filepath.Join(tempDir, "*.corrupt.*"))
	assert.Empty(t, files)
}

func TestRecoverFromCorruption_BackupNaming(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, db.FileName), []byte("corrupted"), 0o644))

	require.NoError(t, RecoverFromCorruption(tempDir))

	files, _ := filepath.Glob(filepath.Join(tempDir, db.FileName+".corrupt.*"))
	require.Len(t, files, 1)

	filename := filepath.Base(files[0])
	assert.GreaterOrEqual(t, len(filename), len(db.FileName+".corrupt.20060102-150405"), "backup filename too short: %s", filename)

	info, err := os.Stat(files[0])
	require.NoError(t, err)
	assert.Positive(t, info.Size(), "backup file should not be empty")
}

func TestRecoverFromCorruption_WALWithoutDatabase(t *testing.T) {
	tempDir := t.TempDir()
	walPath := filepath.Join(tempDir, db.FileName) + "-wal"
	require.NoError(t, os.WriteFile(walPath, []byte("wal data"), 0o644))

	require.NoError(t, RecoverFromCorruption(tempDir), "RecoverFromCorruption should handle missing DB")

	walBackups, _ := filepath.Glob(filepath.Join(tempDir, "*.corrupt.*-wal"))
	assert.Len(t, walBackups, 1)

	_, err := os.Stat(walPath)
	assert.Error(t, err, "original WAL file should not exist after recovery")
}

func TestIsCorruptionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("database disk image is malformed"), true},
		{fmt.Errorf("migrate: %w", errors.New("file is not a database (26)")), true},
		{errors.New("no such table: items"), false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, IsCorruptionError(tt.err))
		})
	}
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, IsNotFoundError(fmt.Errorf("get: %w", sql.ErrNoRows)))
	assert.False(t, IsNotFoundError(errors.New("other")))
}
