package handoff

import (
	"errors"
	"sync"
	"testing"
	"time"
)

const pixels = 64

func newGrid() []uint8 { return make([]uint8, pixels) }

func fillWith(v uint8) func(work []uint8) error {
	return func(work []uint8) error {
		for i := range work {
			work[i] = v
		}
		return nil
	}
}

func readAll(t *testing.T, b *DoubleBuffer[[]uint8]) uint8 {
	t.Helper()
	var got uint8
	b.Read(func(front []uint8) {
		got = front[0]
		for i, px := range front {
			if px != got {
				t.Fatalf("torn front buffer: pixel %d = %d, pixel 0 = %d", i, px, got)
			}
		}
	})
	return got
}

// TestSkippedSwapKeepsFront walks the A/B/C scenario: a swap that loses the
// lock is dropped, the next uncontended write becomes visible.
func TestSkippedSwapKeepsFront(t *testing.T) {
	b := NewFunc(newGrid)

	swapped, err := b.Write(fillWith(10))
	if err != nil || !swapped {
		t.Fatalf("write A: swapped=%v err=%v", swapped, err)
	}
	if got := readAll(t, b); got != 10 {
		t.Fatalf("after A: expected 10, got %d", got)
	}

	// Hold the swap lock from another goroutine while B is written.
	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		b.mu.Lock()
		close(held)
		<-release
		b.mu.Unlock()
	}()
	<-held

	done := make(chan bool, 1)
	go func() {
		swapped, _ := b.Write(fillWith(20))
		done <- swapped
	}()

	select {
	case swapped := <-done:
		if swapped {
			t.Fatal("write B swapped while the lock was held")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Write blocked on a held swap lock")
	}
	close(release)

	if got := readAll(t, b); got != 10 {
		t.Errorf("after skipped B: expected 10, got %d", got)
	}

	if _, err := b.Write(fillWith(30)); err != nil {
		t.Fatalf("write C: %v", err)
	}
	if got := readAll(t, b); got != 30 {
		t.Errorf("after C: expected 30, got %d", got)
	}

	stats := b.Stats()
	if stats.Writes != 3 || stats.Swaps != 2 || stats.Skipped != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

// TestEventualFreshness verifies the last uncontended write is what Read sees.
func TestEventualFreshness(t *testing.T) {
	b := NewFunc(newGrid)

	for v := uint8(1); v <= 25; v++ {
		if _, err := b.Write(fillWith(v)); err != nil {
			t.Fatalf("write %d: %v", v, err)
		}
	}

	if got := readAll(t, b); got != 25 {
		t.Errorf("expected 25, got %d", got)
	}
}

// TestFillErrorSkipsSwap verifies a failed fill never becomes front.
func TestFillErrorSkipsSwap(t *testing.T) {
	b := NewFunc(newGrid)
	b.Write(fillWith(7))

	boom := errors.New("boom")
	swapped, err := b.Write(func(work []uint8) error {
		work[0] = 99
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if swapped {
		t.Error("failed fill must not swap")
	}
	if got := readAll(t, b); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	if b.Stats().Failed != 1 {
		t.Errorf("expected 1 failed write, got %d", b.Stats().Failed)
	}
}

// TestNoTearingUnderConcurrency runs a writer and a reader flat out; every
// read must observe a uniformly filled buffer.
func TestNoTearingUnderConcurrency(t *testing.T) {
	b := NewFunc(newGrid)
	b.Write(fillWith(1))

	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v := uint8(1)
		for {
			select {
			case <-stop:
				return
			default:
			}
			v++
			b.Write(fillWith(v))
		}
	}()

	reads := 0
	deadline := time.After(200 * time.Millisecond)
loop:
	for {
		select {
		case <-deadline:
			break loop
		default:
			readAll(t, b)
			reads++
		}
	}
	close(stop)
	wg.Wait()

	stats := b.Stats()
	if stats.Swaps+stats.Skipped+stats.Failed != stats.Writes {
		t.Errorf("counter conservation violated: %+v", stats)
	}
	t.Logf("reads=%d writes=%d swaps=%d skipped=%d", reads, stats.Writes, stats.Swaps, stats.Skipped)
}

// TestTryReadContended verifies TryRead never waits.
func TestTryReadContended(t *testing.T) {
	b := NewFunc(newGrid)
	b.Write(fillWith(5))

	b.mu.Lock()
	called := b.TryRead(func([]uint8) {})
	b.mu.Unlock()
	if called {
		t.Error("TryRead ran view while the lock was held")
	}

	var got uint8
	if !b.TryRead(func(front []uint8) { got = front[0] }) {
		t.Fatal("TryRead failed on an idle buffer")
	}
	if got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
}

// TestReconfigureTouchesBothSlots verifies a reshape reaches front and work.
func TestReconfigureTouchesBothSlots(t *testing.T) {
	type grid struct{ w, h int }
	b := New(&grid{1, 1}, &grid{1, 1})

	b.Reconfigure(func(g *grid) { g.w, g.h = 640, 480 })

	b.Read(func(front *grid) {
		if front.w != 640 || front.h != 480 {
			t.Errorf("front not reshaped: %+v", *front)
		}
	})
	b.Write(func(work *grid) error {
		if work.w != 640 || work.h != 480 {
			t.Errorf("work not reshaped: %+v", *work)
		}
		return nil
	})
}
