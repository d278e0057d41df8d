// Package mailbox implements a single-slot, latest-only mailbox between the
// capture goroutine and the processing goroutine.
//
// Philosophy: "Drop frames, never queue. Latency > Completeness."
package mailbox

import (
	"context"
	"sync"
	"sync/atomic"
)

// Mailbox holds at most one unconsumed value.
//
// Architecture:
//   - Single-slot buffer (full=false means consumed)
//   - Overwrite policy (new value replaces old, counted as a drop)
//   - Blocking consume (sync.Cond.Wait)
//
// Thread-safety: Publish is safe from any goroutine. Take is meant for a
// single consumer goroutine.
type Mailbox[T any] struct {
	mu     sync.Mutex // Protects slot, full, closed
	cond   *sync.Cond // Signals consumer
	slot   T
	full   bool
	closed bool

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

// Stats is a snapshot of mailbox counters.
type Stats struct {
	// Published counts Publish calls accepted before Close.
	Published uint64

	// Consumed counts values returned by Take.
	Consumed uint64

	// Dropped counts values overwritten before the consumer took them.
	// A steady increase means processing is slower than capture (expected).
	Dropped uint64
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	m := &Mailbox[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish stores v, overwriting an unconsumed value (non-blocking).
// After Close it is a no-op.
func (m *Mailbox[T]) Publish(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if m.full {
		m.dropped.Add(1)
	}

	m.slot = v
	m.full = true
	m.published.Add(1)

	m.cond.Signal()
}

// Take blocks until a value is available, the mailbox is closed, or ctx is
// done. ok is false on close or cancellation.
func (m *Mailbox[T]) Take(ctx context.Context) (v T, ok bool) {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.full && !m.closed && ctx.Err() == nil {
		m.cond.Wait()
	}

	if m.closed || ctx.Err() != nil {
		return v, false
	}

	v = m.slot
	var zero T
	m.slot = zero
	m.full = false
	m.consumed.Add(1)

	return v, true
}

// Close wakes a blocked Take and makes further Publish calls no-ops.
// Idempotent.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.cond.Broadcast()
}

// Reopen clears the closed flag and any stale value so the mailbox can be
// reused after a pause.
func (m *Mailbox[T]) Reopen() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	m.slot = zero
	m.full = false
	m.closed = false
}

// Stats returns a snapshot of the counters.
func (m *Mailbox[T]) Stats() Stats {
	return Stats{
		Published: m.published.Load(),
		Consumed:  m.consumed.Load(),
		Dropped:   m.dropped.Load(),
	}
}
