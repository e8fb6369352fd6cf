// Package kv provides generic thread-safe in-memory maps.
package kv

import (
	"maps"
	"slices"
	"sync"
)

// Store is a thread-safe generic key-value store.
type Store[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

// New creates a new key-value store.
func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		data: make(map[K]V),
	}
}

// Get retrieves a value by key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok
}

// Set stores a value by key.
func (s *Store[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes a key from the store.
func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Update applies fn to the current value under the write lock. Returning
// keep=false deletes the key.
func (s *Store[K, V]) Update(key K, fn func(cur V, ok bool) (next V, keep bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[key]
	next, keep := fn(cur, ok)
	if keep {
		s.data[key] = next
	} else {
		delete(s.data, key)
	}
}

// SetBatch stores multiple key-value pairs at once.
func (s *Store[K, V]) SetBatch(items map[K]V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range items {
		s.data[k] = v
	}
}

// Replace swaps the whole contents for items.
func (s *Store[K, V]) Replace(items map[K]V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = maps.Clone(items)
	if s.data == nil {
		s.data = make(map[K]V)
	}
}

// Clear removes all entries from the store.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[K]V)
}

// Len returns the number of items in the store.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys returns all keys in the store.
func (s *Store[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]K, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Values returns all values in the store, in no particular order.
func (s *Store[K, V]) Values() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Collect(maps.Values(s.data))
}

// Multi maps a key to an ordered set of values.
type Multi[K, V comparable] struct {
	s *Store[K, []V]
}

func NewMulti[K, V comparable]() *Multi[K, V] {
	return &Multi[K, V]{s: New[K, []V]()}
}

// Add appends v under key unless already present.
func (m *Multi[K, V]) Add(key K, v V) {
	m.s.Update(key, func(cur []V, _ bool) ([]V, bool) {
		if slices.Contains(cur, v) {
			return cur, true
		}
		return append(slices.Clone(cur), v), true
	})
}

// Remove drops v from key, deleting the key when it has no values left.
func (m *Multi[K, V]) Remove(key K, v V) {
	m.s.Update(key, func(cur []V, ok bool) ([]V, bool) {
		if !ok {
			return nil, false
		}
		next := slices.DeleteFunc(slices.Clone(cur), func(x V) bool { return x == v })
		return next, len(next) > 0
	})
}

// Get returns a copy of the values under key.
func (m *Multi[K, V]) Get(key K) []V {
	vals, _ := m.s.Get(key)
	return slices.Clone(vals)
}

func (m *Multi[K, V]) Delete(key K) { m.s.Delete(key) }

func (m *Multi[K, V]) Clear() { m.s.Clear() }

func (m *Multi[K, V]) Len() int { return m.s.Len() }
