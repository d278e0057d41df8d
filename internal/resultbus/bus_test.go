package resultbus_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/e7canasta/qrcam/internal/resultbus"
)

func TestSubscribeErrors(t *testing.T) {
	bus := resultbus.New[int]()

	if err := bus.Subscribe("a", nil); !errors.Is(err, resultbus.ErrNilChannel) {
		t.Errorf("expected ErrNilChannel, got %v", err)
	}
	if err := bus.Subscribe("a", make(chan int, 1)); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := bus.Subscribe("a", make(chan int, 1)); !errors.Is(err, resultbus.ErrSubscriberExists) {
		t.Errorf("expected ErrSubscriberExists, got %v", err)
	}
	if _, err := bus.SubscribeLatest("a"); !errors.Is(err, resultbus.ErrSubscriberExists) {
		t.Errorf("expected ErrSubscriberExists for latest, got %v", err)
	}
	if err := bus.Unsubscribe("missing"); !errors.Is(err, resultbus.ErrSubscriberNotFound) {
		t.Errorf("expected ErrSubscriberNotFound, got %v", err)
	}

	bus.Close()
	bus.Close()
	if err := bus.Subscribe("b", make(chan int, 1)); !errors.Is(err, resultbus.ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
}

func TestPublishDropNew(t *testing.T) {
	bus := resultbus.New[int]()
	fast := make(chan int, 10)
	slow := make(chan int, 1)
	_ = bus.Subscribe("fast", fast)
	_ = bus.Subscribe("slow", slow)

	for i := 1; i <= 5; i++ {
		bus.Publish(i)
	}

	st := bus.Stats()
	if st.TotalPublished != 5 {
		t.Errorf("expected 5 published, got %d", st.TotalPublished)
	}
	if s := st.Subscribers["fast"]; s.Sent != 5 || s.Dropped != 0 {
		t.Errorf("fast: unexpected %+v", s)
	}
	if s := st.Subscribers["slow"]; s.Sent != 1 || s.Dropped != 4 {
		t.Errorf("slow: unexpected %+v", s)
	}
	if got := <-slow; got != 1 {
		t.Errorf("DropNew should keep the oldest value, got %d", got)
	}

	if rate := resultbus.SubscriberDropRate(st, "slow"); rate != 0.8 {
		t.Errorf("expected slow drop rate 0.8, got %v", rate)
	}
	if rate := resultbus.DropRate(st); rate != 0.4 {
		t.Errorf("expected bus drop rate 0.4, got %v", rate)
	}
	if rate := resultbus.SubscriberDropRate(st, "nobody"); rate != 0 {
		t.Errorf("expected 0 for unknown subscriber, got %v", rate)
	}
}

func TestPublishDropOld(t *testing.T) {
	bus := resultbus.New[string]()
	latest, err := bus.SubscribeLatest("ui")
	if err != nil {
		t.Fatalf("SubscribeLatest: %v", err)
	}

	bus.Publish("a")
	bus.Publish("b")
	bus.Publish("c")

	got, ok := latest.Take(context.Background())
	if !ok || got != "c" {
		t.Fatalf("expected latest value c, got %q (ok=%v)", got, ok)
	}

	st := bus.Stats()
	if s := st.Subscribers["ui"]; s.Sent != 1 || s.Dropped != 2 {
		t.Errorf("unexpected DropOld stats %+v", s)
	}

	if err := bus.Unsubscribe("ui"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if _, ok := latest.Take(context.Background()); ok {
		t.Errorf("expected closed mailbox after Unsubscribe")
	}
}

func TestCloseWakesLatestSubscriber(t *testing.T) {
	bus := resultbus.New[int]()
	latest, _ := bus.SubscribeLatest("waiter")

	done := make(chan bool, 1)
	go func() {
		_, ok := latest.Take(context.Background())
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	bus.Close()

	select {
	case ok := <-done:
		if ok {
			t.Errorf("expected ok=false after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the waiting subscriber")
	}

	bus.Publish(1) // no-op after close
	if st := bus.Stats(); st.TotalPublished != 0 {
		t.Errorf("expected no publishes after close, got %d", st.TotalPublished)
	}
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := resultbus.New[int]()
	ch := make(chan int, 100)
	_ = bus.Subscribe("sub", ch)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				bus.Publish(i)
			}
		}()
	}
	time.Sleep(time.Millisecond)
	_ = bus.Unsubscribe("sub")
	wg.Wait()

	if st := bus.Stats(); st.TotalPublished != 800 {
		t.Errorf("expected 800 published, got %d", st.TotalPublished)
	}
}
