package capture

import (
	"context"
	"sync"
	"time"
)

// StopTimeout bounds how long a Source's Stop waits for its capture goroutine.
const StopTimeout = 3 * time.Second

// Runner owns the capture goroutine of a Source: its context, its frame
// channel and the join on Stop. The zero value is ready to use.
type Runner struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

// Start runs fn on its own goroutine with a fresh frame channel of the given
// buffer size. fn must return once ctx is done. The channel is closed when fn
// returns, so a consumer also sees a run that gave up on its own.
func (r *Runner) Start(ctx context.Context, buffer int, fn func(ctx context.Context, out chan<- Frame)) (<-chan Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return nil, ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	frames := make(chan Frame, buffer)
	r.cancel, r.done = cancel, done
	r.started = time.Now()

	go func() {
		defer close(done)
		defer close(frames)
		fn(runCtx, frames)
	}()
	return frames, nil
}

// Stop cancels the goroutine and waits up to timeout for it to return.
//
// On timeout ErrStopTimeout is returned and the old channel is closed later,
// whenever the goroutine gets out. Either way the runner can be started
// again. Stop on a runner that is not running returns ErrNotStarted.
func (r *Runner) Stop(timeout time.Duration) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// Started is when the current (or last) run began.
func (r *Runner) Started() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}
