// Package stats provides the timing statistics shown on screen and logged at
// shutdown: moving averages of per-frame work and FPS / jitter measurements.
package stats

import (
	"sync"
	"time"
)

// DefaultDecay weights the running average against a new sample.
const DefaultDecay = 0.95

// MovingAverage is an exponentially decaying average.
// The first sample initialises the average directly.
//
// Thread-safety: Update runs on the processing goroutine while Average is
// read by the render goroutine, so both lock.
type MovingAverage struct {
	mu      sync.Mutex
	decay   float64
	average float64
	first   bool
}

// NewMovingAverage creates an average with the given decay in (0, 1).
// Out of range values fall back to DefaultDecay.
func NewMovingAverage(decay float64) *MovingAverage {
	if decay <= 0 || decay >= 1 {
		decay = DefaultDecay
	}
	return &MovingAverage{decay: decay, first: true}
}

// Update folds sample into the average and returns the new value.
func (m *MovingAverage) Update(sample float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.first {
		m.average = sample
		m.first = false
	} else {
		m.average = m.average*m.decay + sample*(1.0-m.decay)
	}
	return m.average
}

// UpdateDuration records d in milliseconds.
func (m *MovingAverage) UpdateDuration(d time.Duration) float64 {
	return m.Update(float64(d.Nanoseconds()) * 1e-6)
}

// Average returns the current value (0 before the first sample).
func (m *MovingAverage) Average() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.average
}

// Reset forgets all samples.
func (m *MovingAverage) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.average = 0
	m.first = true
}

// Measure runs fn and records its wall time in milliseconds.
func (m *MovingAverage) Measure(fn func()) time.Duration {
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	m.UpdateDuration(elapsed)
	return elapsed
}
