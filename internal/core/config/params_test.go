package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParamsFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeTestFile(filepath.Join(dir, "base.yaml"), "model: gpt-4o\nmax_words: 100\nstyle:\n  tone: formal\n  length: short\n"))
	require.NoError(t, writeTestFile(filepath.Join(dir, "override.yaml"), "max_words: 250\nstyle:\n  length: long\n"))
	abs := filepath.Join(t.TempDir(), "abs.yaml")
	require.NoError(t, writeTestFile(abs, "language: en\n"))

	got, err := loadParamsFiles(dir, []string{"base.yaml", "override.yaml", abs})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.Equal(t, 250, got["max_words"])
	assert.Equal(t, "en", got["language"])
	style := got["style"].(map[string]any)
	assert.Equal(t, "formal", style["tone"])
	assert.Equal(t, "long", style["length"])
}

func TestLoadParamsFiles_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeTestFile(filepath.Join(dir, "bad.yaml"), "model: [\n"))

	tests := []struct {
		name    string
		file    string
		wantErr string
	}{
		{name: "missing", file: "missing.yaml", wantErr: "read params file"},
		{name: "invalid yaml", file: "bad.yaml", wantErr: "parse params file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadParamsFiles(dir, []string{tt.file})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeMaps_LaterWins(t *testing.T) {
	dst := map[string]any{"model": "a", "nested": map[string]any{"x": 1, "y": 2}}
	mergeMaps(dst, map[string]any{"model": "b", "nested": map[string]any{"y": 3}})
	mergeMaps(dst, nil)

	assert.Equal(t, "b", dst["model"])
	assert.Equal(t, map[string]any{"x": 1, "y": 3}, dst["nested"])
}

func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
