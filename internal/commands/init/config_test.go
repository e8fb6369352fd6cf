package initcmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/kash/internal/core/config"
)

func TestWriteConfig_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kash", "config.yaml")

	cfg := config.DefaultConfig()
	cfg.Workspace = filepath.Join(dir, "ws")
	cfg.Engine.MaxParallel = 7

	backup, err := WriteConfig(path, cfg, false)
	require.NoError(t, err)
	assert.Empty(t, backup)

	loaded, err := config.Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, cfg.Workspace, loaded.Workspace)
	assert.Equal(t, 7, loaded.Engine.MaxParallel)
	assert.Equal(t, cfg.LLM, loaded.LLM)
	assert.Equal(t, cfg.Theme, loaded.Theme)
}

func TestWriteConfig_Existing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workspace: /old\n"), 0o644))

	_, err := WriteConfig(path, config.DefaultConfig(), false)
	require.ErrorContains(t, err, "already exists")

	backup, err := WriteConfig(path, config.DefaultConfig(), true)
	require.NoError(t, err)
	assert.Equal(t, path+".bak", backup)

	old, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "workspace: /old\n", string(old))
}
