// Package system provides a real clock implementation.
package system

import "time"

// Clock implements insight.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time. Stored timestamps are always UTC so
// records compare consistently across processes.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
