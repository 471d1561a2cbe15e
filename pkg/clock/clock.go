// Package clock isolates wall-clock reads so calendar rules can be tested with fixed dates.
package clock

import "time"

// Clock reports the current instant in the organisation calendar.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock and converts it to a fixed location.
type System struct {
	Location *time.Location
}

// NewSystem returns a system clock bound to loc (UTC when nil).
func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.UTC
	}
	return System{Location: loc}
}

// Now implements Clock.
func (s System) Now() time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

// Fixed always returns the same instant.
type Fixed time.Time

// Now implements Clock.
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
