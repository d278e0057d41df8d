package handoff

import (
	"sync"
	"sync/atomic"
)

// DoubleBuffer coordinates one producer and one consumer over two reusable
// buffers.
//
// Ownership:
//   - bufs[front] is readable only under mu (Read / TryRead)
//   - bufs[1-front] is writable only by the goroutine inside Write
//
// The swap flips front under mu. Writes themselves are unsynchronized because
// the writer never touches the front slot.
//
// Thread-safety: Write must be called from a single producer goroutine.
// Read, TryRead and Stats are safe from any goroutine.
type DoubleBuffer[T any] struct {
	mu    sync.Mutex    // Swap lock: guards front flips and front reads
	front atomic.Uint32 // Index of the front slot (0 or 1)
	bufs  [2]T

	writes  atomic.Uint64
	swaps   atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

// Stats is a snapshot of hand-off counters.
type Stats struct {
	// Writes counts completed fill calls (successful or not).
	Writes uint64

	// Swaps counts writes that became the new front.
	Swaps uint64

	// Skipped counts successful writes whose swap lost the TryLock.
	// The renderer kept showing the previous front for that cycle.
	Skipped uint64

	// Failed counts fill calls that returned an error (no swap attempted).
	Failed uint64
}

// New creates a DoubleBuffer over two caller-allocated buffers.
// front starts as the readable buffer, work as the first write target.
//
// The two buffers MUST NOT alias each other.
func New[T any](front, work T) *DoubleBuffer[T] {
	b := &DoubleBuffer[T]{}
	b.bufs[0] = front
	b.bufs[1] = work
	return b
}

// NewFunc creates a DoubleBuffer whose two buffers come from alloc.
func NewFunc[T any](alloc func() T) *DoubleBuffer[T] {
	return New(alloc(), alloc())
}

// Write gives fill exclusive access to the work buffer, then tries to publish
// it as the new front.
//
// Semantics:
//   - Never blocks: the swap uses TryLock
//   - fill error: no swap, error returned, front unchanged
//   - TryLock lost: swap skipped, front unchanged, work is overwritten next cycle
//
// Returns swapped=true when the written buffer became the front.
func (b *DoubleBuffer[T]) Write(fill func(work T) error) (bool, error) {
	work := b.bufs[1-b.front.Load()]

	err := fill(work)
	b.writes.Add(1)
	if err != nil {
		b.failed.Add(1)
		return false, err
	}

	if !b.mu.TryLock() {
		b.skipped.Add(1)
		return false, nil
	}
	b.front.Store(1 - b.front.Load())
	b.mu.Unlock()

	b.swaps.Add(1)
	return true, nil
}

// Read calls view with the current front buffer.
//
// The swap lock is held while view runs, so view MUST be short (a draw or a
// copy). A producer writing concurrently skips its swap instead of waiting.
func (b *DoubleBuffer[T]) Read(view func(front T)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	view(b.bufs[b.front.Load()])
}

// TryRead is the non-blocking Read: it returns false without calling view
// if a swap is in progress.
func (b *DoubleBuffer[T]) TryRead(view func(front T)) bool {
	if !b.mu.TryLock() {
		return false
	}
	defer b.mu.Unlock()

	view(b.bufs[b.front.Load()])
	return true
}

// Reconfigure applies fn to both buffers under the swap lock.
//
// Intended for resolution changes (reshape). It MUST NOT run concurrently
// with Write: call it from the producer goroutine, between writes.
func (b *DoubleBuffer[T]) Reconfigure(fn func(buf T)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fn(b.bufs[0])
	fn(b.bufs[1])
}

// Stats returns a snapshot of the hand-off counters.
func (b *DoubleBuffer[T]) Stats() Stats {
	return Stats{
		Writes:  b.writes.Load(),
		Swaps:   b.swaps.Load(),
		Skipped: b.skipped.Load(),
		Failed:  b.failed.Load(),
	}
}
