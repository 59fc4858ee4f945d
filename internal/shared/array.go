package shared

import (
	"fmt"
	"sync"

	"github.com/roach88/cowork/internal/ir"
)

// Array is an insertion-ordered list container of value records.
type Array[T any] struct {
	doc   *Doc
	name  string
	clone func(T) T
	obs   observerSet

	mu    sync.RWMutex
	items []T
}

func newArray[T any](d *Doc, name string, clone func(T) T) *Array[T] {
	if clone == nil {
		clone = identity[T]
	}
	return &Array[T]{doc: d, name: name, clone: clone}
}

func (a *Array[T]) kind() Kind              { return KindArray }
func (a *Array[T]) observers() *observerSet { return &a.obs }

// Name returns the container name.
func (a *Array[T]) Name() string {
	return a.name
}

// Push appends copies of vs.
func (a *Array[T]) Push(vs ...T) {
	if len(vs) == 0 {
		return
	}
	a.mu.Lock()
	start := len(a.items)
	for _, v := range vs {
		a.items = append(a.items, a.clone(v))
	}
	a.mu.Unlock()

	for i := range vs {
		a.doc.emit(Change{Container: a.name, Kind: KindArray, Op: OpInsert, Index: start + i})
	}
}

// Get returns a copy of the element at i.
func (a *Array[T]) Get(i int) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i < 0 || i >= len(a.items) {
		var zero T
		return zero, false
	}
	return a.clone(a.items[i]), true
}

// Set replaces the element at i. Returns false when i is out of range.
func (a *Array[T]) Set(i int, v T) bool {
	a.mu.Lock()
	if i < 0 || i >= len(a.items) {
		a.mu.Unlock()
		return false
	}
	a.items[i] = a.clone(v)
	a.mu.Unlock()
	a.doc.emit(Change{Container: a.name, Kind: KindArray, Op: OpSet, Index: i})
	return true
}

// Len returns the number of elements.
func (a *Array[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// ForEach calls fn with a copy of every element in order.
// Iteration works on a snapshot, so fn may write to the array.
func (a *Array[T]) ForEach(fn func(i int, v T)) {
	a.mu.RLock()
	items := make([]T, len(a.items))
	for i, v := range a.items {
		items[i] = a.clone(v)
	}
	a.mu.RUnlock()

	for i, v := range items {
		fn(i, v)
	}
}

// Delete removes n elements starting at i. Out-of-range spans are clipped.
// Returns the number of elements removed.
func (a *Array[T]) Delete(i, n int) int {
	a.mu.Lock()
	if i < 0 || i >= len(a.items) || n <= 0 {
		a.mu.Unlock()
		return 0
	}
	end := min(i+n, len(a.items))
	clear(a.items[i:end])
	a.items = append(a.items[:i], a.items[end:]...)
	a.mu.Unlock()

	removed := end - i
	for range removed {
		a.doc.emit(Change{Container: a.name, Kind: KindArray, Op: OpDelete, Index: i})
	}
	return removed
}

// DeleteMatching removes every element for which match returns true.
// Returns the number of elements removed.
func (a *Array[T]) DeleteMatching(match func(T) bool) int {
	a.mu.Lock()
	var removed []int
	kept := a.items[:0]
	for i, v := range a.items {
		if match(v) {
			removed = append(removed, i)
			continue
		}
		kept = append(kept, v)
	}
	clear(a.items[len(kept):])
	a.items = kept
	a.mu.Unlock()

	// Indices are reported against the shrinking array.
	for n, i := range removed {
		a.doc.emit(Change{Container: a.name, Kind: KindArray, Op: OpDelete, Index: i - n})
	}
	return len(removed)
}

// Observe registers fn for change batches touching this array.
func (a *Array[T]) Observe(fn func([]Change)) func() {
	return a.obs.add(fn)
}

func (a *Array[T]) snapshot() (ir.IRValue, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(ir.IRArray, len(a.items))
	for i, v := range a.items {
		iv, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = iv
	}
	return out, nil
}
