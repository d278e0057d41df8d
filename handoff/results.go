package handoff

import "sync"

// ResultList is a small shared list of derived results (detections, poses)
// written by the processing goroutine and drawn by the render goroutine.
//
// Both sides take a blocking lock, held only for a copy or a draw. Every
// mutation happens in one critical section, so readers never observe a
// partially inserted entry.
type ResultList[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewResultList creates an empty list with room for capacity entries.
func NewResultList[T any](capacity int) *ResultList[T] {
	return &ResultList[T]{items: make([]T, 0, capacity)}
}

// Replace resets the list and appends items, in one critical section.
// The backing array is reused across cycles.
func (l *ResultList[T]) Replace(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = append(l.items[:0], items...)
}

// Append adds one entry.
func (l *ResultList[T]) Append(item T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = append(l.items, item)
}

// Reset empties the list.
func (l *ResultList[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.items)
	l.items = l.items[:0]
}

// Snapshot returns a copy of the current entries.
func (l *ResultList[T]) Snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// View calls fn with the live entries while holding the lock.
// fn MUST NOT retain the slice.
func (l *ResultList[T]) View(fn func(items []T)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fn(l.items)
}

// Len returns the number of entries.
func (l *ResultList[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.items)
}
