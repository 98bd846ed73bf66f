// Package keylock serializes work per key while letting different keys
// proceed in parallel.
package keylock

import "sync"

// Map hands out one mutex per key. An entry lives only while some caller
// holds or waits for it, together with a value those callers share.
type Map[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
}

type entry[V any] struct {
	mu   sync.Mutex
	refs int
	val  V
	has  bool
}

// Guard is a held key. Callers must Unlock it exactly once.
type Guard[K comparable, V any] struct {
	m *Map[K, V]
	k K
	e *entry[V]
}

// Lock blocks until k is free and returns the guard for it.
func (m *Map[K, V]) Lock(k K) *Guard[K, V] {
	m.mu.Lock()
	if m.entries == nil {
		m.entries = make(map[K]*entry[V])
	}
	e, ok := m.entries[k]
	if !ok {
		e = &entry[V]{}
		m.entries[k] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return &Guard[K, V]{m: m, k: k, e: e}
}

// Value returns the value left by a previous holder still in the same
// contention window, and whether one was set.
func (g *Guard[K, V]) Value() (V, bool) {
	return g.e.val, g.e.has
}

// SetValue stores v for the next holder of the key.
func (g *Guard[K, V]) SetValue(v V) {
	g.e.val = v
	g.e.has = true
}

// Unlock releases the key and drops the entry once nobody waits on it.
func (g *Guard[K, V]) Unlock() {
	g.e.mu.Unlock()
	g.m.mu.Lock()
	g.e.refs--
	if g.e.refs == 0 {
		delete(g.m.entries, g.k)
	}
	g.m.mu.Unlock()
}

// Len reports how many keys are currently held or awaited.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Holders reports how many callers hold or wait for k.
func (m *Map[K, V]) Holders(k K) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[k]; ok {
		return e.refs
	}
	return 0
}
