// Package resultbus fans processing results out to independent consumers
// (MQTT emitter, loggers, tests) without ever blocking the processor.
//
// Two delivery policies:
//   - DropNew: Subscribe with a buffered channel; when it is full the new
//     result is dropped and counted.
//   - DropOld: SubscribeLatest returns a latest-only mailbox; a new result
//     replaces the unconsumed one.
package resultbus

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/qrcam/internal/mailbox"
)

var (
	ErrBusClosed          = errors.New("resultbus: bus is closed")
	ErrSubscriberExists   = errors.New("resultbus: subscriber already exists")
	ErrSubscriberNotFound = errors.New("resultbus: subscriber not found")
	ErrNilChannel         = errors.New("resultbus: channel is nil")
)

// DropPolicy selects what happens when a subscriber is behind.
type DropPolicy int

const (
	DropNew DropPolicy = iota
	DropOld
)

func (p DropPolicy) String() string {
	if p == DropOld {
		return "drop_old"
	}
	return "drop_new"
}

// SubscriberStats counts deliveries to one subscriber.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

// Stats is a bus-wide snapshot.
type Stats struct {
	TotalPublished uint64
	TotalSent      uint64
	TotalDropped   uint64
	Subscribers    map[string]SubscriberStats
}

type subscriber[T any] struct {
	policy  DropPolicy
	sent    atomic.Uint64
	dropped atomic.Uint64

	ch     chan<- T             // DropNew
	latest *mailbox.Mailbox[T] // DropOld
}

// Bus distributes values of type T. Safe for concurrent use.
type Bus[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber[T]
	published   atomic.Uint64
	closed      bool
}

// New creates an empty bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subscribers: make(map[string]*subscriber[T])}
}

// Subscribe registers ch with the DropNew policy.
func (b *Bus[T]) Subscribe(id string, ch chan<- T) error {
	if ch == nil {
		return ErrNilChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkAdd(id); err != nil {
		return err
	}
	b.subscribers[id] = &subscriber[T]{policy: DropNew, ch: ch}
	return nil
}

// SubscribeLatest registers a DropOld subscriber and returns its mailbox.
func (b *Bus[T]) SubscribeLatest(id string) (*mailbox.Mailbox[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkAdd(id); err != nil {
		return nil, err
	}
	mb := mailbox.New[T]()
	b.subscribers[id] = &subscriber[T]{policy: DropOld, latest: mb}
	return mb, nil
}

func (b *Bus[T]) checkAdd(id string) error {
	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}
	return nil
}

// Publish delivers v to every subscriber without blocking. A no-op once the
// bus is closed.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	for _, s := range b.subscribers {
		switch s.policy {
		case DropNew:
			select {
			case s.ch <- v:
				s.sent.Add(1)
			default:
				s.dropped.Add(1)
			}
		case DropOld:
			s.latest.Publish(v)
		}
	}
}

// Unsubscribe removes a subscriber. DropOld mailboxes are closed; DropNew
// channels belong to the caller and are left open.
func (b *Bus[T]) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, exists := b.subscribers[id]
	if !exists {
		return ErrSubscriberNotFound
	}
	if s.latest != nil {
		s.latest.Close()
	}
	delete(b.subscribers, id)
	return nil
}

// Stats returns counters for the bus and each subscriber.
func (b *Bus[T]) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{
		TotalPublished: b.published.Load(),
		Subscribers:    make(map[string]SubscriberStats, len(b.subscribers)),
	}
	for id, s := range b.subscribers {
		ss := SubscriberStats{Sent: s.sent.Load(), Dropped: s.dropped.Load()}
		if s.latest != nil {
			// An overwritten value was delivered to the slot but never read.
			mst := s.latest.Stats()
			ss.Sent = mst.Published - mst.Dropped
			ss.Dropped = mst.Dropped
		}
		st.Subscribers[id] = ss
		st.TotalSent += ss.Sent
		st.TotalDropped += ss.Dropped
	}
	return st
}

// Close stops delivery and closes every DropOld mailbox. Idempotent.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subscribers {
		if s.latest != nil {
			s.latest.Close()
		}
	}
	b.subscribers = nil
}

// DropRate returns the bus-wide drop fraction (0.0 to 1.0).
func DropRate(st Stats) float64 {
	total := st.TotalSent + st.TotalDropped
	if total == 0 {
		return 0
	}
	return float64(st.TotalDropped) / float64(total)
}

// SubscriberDropRate returns the drop fraction for one subscriber, 0 when
// unknown.
func SubscriberDropRate(st Stats, id string) float64 {
	s, ok := st.Subscribers[id]
	if !ok {
		return 0
	}
	total := s.Sent + s.Dropped
	if total == 0 {
		return 0
	}
	return float64(s.Dropped) / float64(total)
}
