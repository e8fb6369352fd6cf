package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreList(t *testing.T) {
	l, err := parseIgnore([]byte("# scratch files\n*.bak\n\n/docs/private/\nresources/**/*.mp4\n"))
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"docs/a.doc.md", false},
		{"docs/a.doc.md.bak", true},
		{"docs/nested/b.bak", true},
		{"docs/private", true},
		{"resources/video/clip.mp4", true},
		{"resources/clip.mp4", true},
		{"assets/clip.mp4", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, l.match(tt.path))
		})
	}

	var empty *ignoreList
	assert.False(t, empty.match("docs/a.md"))
}

func TestIgnoreList_BadPattern(t *testing.T) {
	_, err := parseIgnore([]byte("docs/[\n"))
	require.Error(t, err)
}
