package shared

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/cowork/internal/ir"
)

// Map is an insertion-ordered map container of value records.
type Map[T any] struct {
	doc   *Doc
	name  string
	clone func(T) T
	obs   observerSet

	mu   sync.RWMutex
	keys []string
	vals map[string]T
}

func newMap[T any](d *Doc, name string, clone func(T) T) *Map[T] {
	if clone == nil {
		clone = identity[T]
	}
	return &Map[T]{doc: d, name: name, clone: clone, vals: make(map[string]T)}
}

func (m *Map[T]) kind() Kind              { return KindMap }
func (m *Map[T]) observers() *observerSet { return &m.obs }

// Name returns the container name.
func (m *Map[T]) Name() string {
	return m.name
}

// Get returns an independent copy of the value stored at key.
func (m *Map[T]) Get(key string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[key]
	if !ok {
		var zero T
		return zero, false
	}
	return m.clone(v), true
}

// Has reports whether key is present.
func (m *Map[T]) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vals[key]
	return ok
}

// Set stores a copy of v at key, replacing any previous value.
func (m *Map[T]) Set(key string, v T) {
	m.mu.Lock()
	m.setLocked(key, m.clone(v))
	m.mu.Unlock()
	m.doc.emit(Change{Container: m.name, Kind: KindMap, Op: OpSet, Key: key})
}

func (m *Map[T]) setLocked(key string, v T) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Delete removes key. Returns false when key was absent.
func (m *Map[T]) Delete(key string) bool {
	m.mu.Lock()
	if _, ok := m.vals[key]; !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.vals, key)
	if i := slices.Index(m.keys, key); i >= 0 {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
	m.mu.Unlock()
	m.doc.emit(Change{Container: m.name, Kind: KindMap, Op: OpDelete, Key: key})
	return true
}

// Update performs an atomic read-copy-modify-write of key.
//
// fn receives a copy of the current value (zero value and false when absent)
// and returns the replacement plus whether to write it. The container lock is
// held across fn, so concurrent updates of the same map never lose a write.
// fn must not call back into this map.
func (m *Map[T]) Update(key string, fn func(v T, ok bool) (T, bool)) bool {
	m.mu.Lock()
	cur, ok := m.vals[key]
	if ok {
		cur = m.clone(cur)
	}
	next, write := fn(cur, ok)
	if !write {
		m.mu.Unlock()
		return false
	}
	m.setLocked(key, m.clone(next))
	m.mu.Unlock()
	m.doc.emit(Change{Container: m.name, Kind: KindMap, Op: OpSet, Key: key})
	return true
}

// Keys returns keys in insertion order.
func (m *Map[T]) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.keys)
}

// Len returns the number of entries.
func (m *Map[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// ForEach calls fn with a copy of every entry in insertion order.
// Iteration works on a snapshot, so fn may write to the map.
func (m *Map[T]) ForEach(fn func(key string, v T)) {
	m.mu.RLock()
	keys := slices.Clone(m.keys)
	vals := make([]T, len(keys))
	for i, k := range keys {
		vals[i] = m.clone(m.vals[k])
	}
	m.mu.RUnlock()

	for i, k := range keys {
		fn(k, vals[i])
	}
}

// Observe registers fn for change batches touching this map.
func (m *Map[T]) Observe(fn func([]Change)) func() {
	return m.obs.add(fn)
}

func (m *Map[T]) snapshot() (ir.IRValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(ir.IRObject, len(m.vals))
	for k, v := range m.vals {
		iv, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = iv
	}
	return out, nil
}
