package kv

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_GetSet(t *testing.T) {
	s := New[string, int]()

	// Set and get
	s.Set("foo", 42)
	val, ok := s.Get("foo")
	assert.True(t, ok)
	assert.Equal(t, 42, val)

	// Get non-existent
	_, ok = s.Get("bar")
	assert.False(t, ok)
}

func TestStore_Delete(t *testing.T) {
	s := New[string, string]()
	s.Set("key", "value")

	s.Delete("key")

	_, ok := s.Get("key")
	assert.False(t, ok)
}

func TestStore_SetBatch(t *testing.T) {
	s := New[string, int]()

	s.SetBatch(map[string]int{
		"a": 1,
		"b": 2,
		"c": 3,
	})

	assert.Equal(t, 3, s.Len())

	val, _ := s.Get("b")
	assert.Equal(t, 2, val)
}

func TestStore_Clear(t *testing.T) {
	s := New[string, int]()
	s.Set("a", 1)
	s.Set("b", 2)

	s.Clear()

	assert.Equal(t, 0, s.Len())
}

func TestStore_Keys(t *testing.T) {
	s := New[string, int]()
	s.Set("a", 1)
	s.Set("b", 2)

	keys := s.Keys()
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "a")
	assert.Contains(t, keys, "b")
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New[int, int]()
	var wg sync.WaitGroup

	// Concurrent writes
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Set(n, n*2)
		}(i)
	}

	// Concurrent reads
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Get(n)
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 100, s.Len())
}

func TestStore_Update(t *testing.T) {
	s := New[string, int]()

	s.Update("n", func(cur int, ok bool) (int, bool) {
		assert.False(t, ok)
		return cur + 1, true
	})
	s.Update("n", func(cur int, ok bool) (int, bool) {
		assert.True(t, ok)
		return cur + 1, true
	})
	val, _ := s.Get("n")
	assert.Equal(t, 2, val)

	s.Update("n", func(int, bool) (int, bool) { return 0, false })
	_, ok := s.Get("n")
	assert.False(t, ok)
}

func TestStore_Replace(t *testing.T) {
	s := New[string, int]()
	s.Set("old", 1)

	src := map[string]int{"a": 1, "b": 2}
	s.Replace(src)
	src["c"] = 3

	assert.Equal(t, 2, s.Len(), "replace copies its input")
	_, ok := s.Get("old")
	assert.False(t, ok)
	assert.ElementsMatch(t, []int{1, 2}, s.Values())
}

func TestMulti(t *testing.T) {
	m := NewMulti[string, string]()

	m.Add("fp", "docs/a.doc.md")
	m.Add("fp", "docs/a_1.doc.md")
	m.Add("fp", "docs/a.doc.md")
	assert.Equal(t, []string{"docs/a.doc.md", "docs/a_1.doc.md"}, m.Get("fp"))

	got := m.Get("fp")
	got[0] = "mutated"
	assert.Equal(t, "docs/a.doc.md", m.Get("fp")[0], "Get returns a copy")

	m.Remove("fp", "docs/a.doc.md")
	assert.Equal(t, []string{"docs/a_1.doc.md"}, m.Get("fp"))

	m.Remove("fp", "docs/a_1.doc.md")
	assert.Nil(t, m.Get("fp"))
	assert.Equal(t, 0, m.Len())

	m.Remove("missing", "x")
}
