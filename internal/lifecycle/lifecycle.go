// Package lifecycle models the life of a camera activity as an explicit
// state machine driven from outside (launcher, signal handler, window close).
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// State of an activity.
type State int

const (
	Uninitialized State = iota
	Running
	Paused
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition names an externally requested state change.
type Transition int

const (
	Start Transition = iota
	Pause
	Resume
	Destroy
)

func (t Transition) String() string {
	switch t {
	case Start:
		return "start"
	case Pause:
		return "pause"
	case Resume:
		return "resume"
	case Destroy:
		return "destroy"
	default:
		return fmt.Sprintf("transition(%d)", int(t))
	}
}

var ErrInvalidTransition = errors.New("lifecycle: invalid transition")

// Hook runs before a transition commits. Returning an error aborts the
// transition and leaves the state unchanged.
type Hook func(from, to State) error

// Machine is a goroutine-safe lifecycle state machine.
type Machine struct {
	mu    sync.Mutex
	name  string
	state State
	hooks map[Transition]Hook
}

// New creates a machine in the Uninitialized state.
func New(name string) *Machine {
	return &Machine{name: name, hooks: make(map[Transition]Hook)}
}

// On registers the hook for t, replacing any previous one.
func (m *Machine) On(t Transition, h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[t] = h
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire performs transition t. Hooks run with the machine locked, so they
// must not call back into the machine.
func (m *Machine) Fire(t Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	to, ok := next(from, t)
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, t, from)
	}

	if h := m.hooks[t]; h != nil {
		if err := h(from, to); err != nil {
			return fmt.Errorf("lifecycle: %s %s: %w", m.name, t, err)
		}
	}

	m.state = to
	slog.Debug("lifecycle: transition",
		"activity", m.name,
		"transition", t.String(),
		"from", from.String(),
		"to", to.String(),
	)
	return nil
}

func next(from State, t Transition) (State, bool) {
	switch {
	case t == Start && from == Uninitialized:
		return Running, true
	case t == Pause && from == Running:
		return Paused, true
	case t == Resume && from == Paused:
		return Running, true
	case t == Destroy && from != Destroyed:
		return Destroyed, true
	}
	return from, false
}
