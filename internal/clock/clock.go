package clock

import "time"

// Clock provides a testable time source.
//
// Core components must not call time.Now directly; timestamps flow in through
// a Clock so tests stay deterministic.
type Clock interface {
	Now() time.Time
}

// RealClock is a production Clock implementation backed by time.Now.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }
