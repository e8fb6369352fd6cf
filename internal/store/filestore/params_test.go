package filestore

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamState(t *testing.T) {
	p := newParamState(filepath.Join(t.TempDir(), ".kash", "params.yml"))

	all, err := p.All()
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, p.Set("model", "claude-3"))
	require.NoError(t, p.Set("max_words", 200))

	v, ok, err := p.Get("model")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "claude-3", v)

	reread := newParamState(p.Path())
	all, err = reread.All()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"model": "claude-3", "max_words": 200}, all)

	require.NoError(t, p.Unset("model"))
	require.NoError(t, p.Unset("never_set"))
	_, ok, err = p.Get("model")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParamState_Validator(t *testing.T) {
	p := newParamState(filepath.Join(t.TempDir(), "params.yml"))
	p.SetValidator(func(name string, v any) (any, error) {
		if name != "max_words" {
			return nil, fmt.Errorf("unknown parameter %q", name)
		}
		return 42, nil
	})

	require.Error(t, p.Set("modle", "x"))
	require.NoError(t, p.Set("max_words", "42"))

	v, _, err := p.Get("max_words")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
