// Package clock supplies the monotonic timestamps the address table ages by.
package clock

import "time"

// Clock returns a monotonic timestamp measured from an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// Monotonic measures elapsed time since its creation using the runtime's
// monotonic clock reading, so wall-clock steps do not affect it.
type Monotonic struct {
	origin time.Time
}

func NewMonotonic() *Monotonic {
	return &Monotonic{origin: time.Now()}
}

func (m *Monotonic) Now() time.Duration {
	return time.Since(m.origin)
}

// Manual is a clock that only moves when told to. Replay drives it from
// capture timestamps; tests drive it tick by tick.
type Manual struct {
	now time.Duration
}

func NewManual(start time.Duration) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Duration {
	return m.now
}

// Set moves the clock to t. Moving backwards is ignored.
func (m *Manual) Set(t time.Duration) {
	if t > m.now {
		m.now = t
	}
}

// Advance moves the clock forward by d and returns the new reading.
func (m *Manual) Advance(d time.Duration) time.Duration {
	if d > 0 {
		m.now += d
	}
	return m.now
}
