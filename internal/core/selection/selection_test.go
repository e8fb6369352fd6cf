package selection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPush(t *testing.T) {
	h := New(0)

	_, err := h.Current()
	require.ErrorIs(t, err, ErrNoCurrent)

	assert.False(t, h.Push(nil, "noop"), "empty selections are ignored")
	assert.True(t, h.Push([]string{"docs/a.doc.md"}, "import a"))
	assert.False(t, h.Push([]string{"docs/a.doc.md"}, "again"), "duplicates of the current selection are ignored")
	assert.True(t, h.Push([]string{"docs/b.doc.md", "docs/b.doc.md"}, "strip_html"))

	cur, err := h.Current()
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/b.doc.md"}, cur.Paths)
	assert.Equal(t, "strip_html", cur.Command)
	assert.NotEmpty(t, cur.ID)
	assert.Equal(t, 2, h.Len())
}

func TestNavigation_IsAppendOnly(t *testing.T) {
	h := New(0)
	h.Push([]string{"a"}, "")
	h.Push([]string{"b"}, "")

	prev, err := h.Previous()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, prev.Paths)
	assert.Equal(t, 2, h.Len(), "going back deletes nothing")

	_, err = h.Previous()
	require.ErrorIs(t, err, ErrNoPrevious)

	next, err := h.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, next.Paths)

	_, err = h.Next()
	require.ErrorIs(t, err, ErrNoNext)

	h.Previous()
	h.Push([]string{"c"}, "")
	assert.Equal(t, 3, h.Len(), "pushing from the middle appends")
	assert.Equal(t, 2, h.Cursor())
}

func TestTruncation(t *testing.T) {
	h := New(3)
	for i := range 5 {
		h.Push([]string{fmt.Sprintf("%d.doc.md", i)}, "")
	}

	entries := h.History()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"2.doc.md"}, entries[0].Paths)
	assert.Equal(t, 2, h.Cursor())
}

func TestUnselectCurrent(t *testing.T) {
	h := New(0)
	h.Push([]string{"a", "b"}, "")

	left, err := h.UnselectCurrent([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, left.Paths)

	_, err = h.UnselectCurrent([]string{"b"})
	require.ErrorIs(t, err, ErrNoCurrent)
	assert.Equal(t, 0, h.Len())
}

func TestRefresh(t *testing.T) {
	h := New(0)
	h.Push([]string{"a", "gone"}, "")
	h.Push([]string{"gone"}, "")
	h.Push([]string{"b"}, "")

	changed := h.Refresh(func(p string) bool { return p != "gone" })
	assert.True(t, changed)

	entries := h.History()
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"a"}, entries[0].Paths)
	cur, err := h.Current()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, cur.Paths)

	assert.False(t, h.Refresh(func(string) bool { return true }))
}

func TestSnapshotRoundTrip(t *testing.T) {
	h := New(0)
	h.Push([]string{"a"}, "one")
	h.Push([]string{"b"}, "two")
	h.Previous()

	restored := FromSnapshot(h.Snapshot(), 0)
	cur, err := restored.Current()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, cur.Paths)
	assert.Equal(t, h.History(), restored.History())
}

func TestFromSnapshot_ClampsCursor(t *testing.T) {
	h := FromSnapshot(Snapshot{Entries: []Entry{{ID: "1", Paths: []string{"a"}}}, Cursor: 7}, 0)
	assert.Equal(t, 0, h.Cursor())

	empty := FromSnapshot(Snapshot{Cursor: 3}, 0)
	assert.Equal(t, -1, empty.Cursor())
}

func TestClear(t *testing.T) {
	h := New(0)
	h.Push([]string{"a"}, "")
	h.Clear()
	_, err := h.Current()
	require.ErrorIs(t, err, ErrNoCurrent)
	assert.Empty(t, h.History())
}
