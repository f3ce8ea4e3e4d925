// Package reactor defines the event loop primitives a session is driven by, and
// provides an epoll based single threaded implementation of them.
package reactor

import (
	"time"
)

// PollEvents is a set of readiness conditions to wait for.
type PollEvents int

const (
	PollReadable PollEvents = 1 << iota
	PollWritable
)

// IOCallback is invoked on the loop goroutine when a watched fd is ready. err is
// set when the fd reported an error condition.
type IOCallback func(readable, writable bool, err error)

// Reactor hands out pollers and timers bound to one event loop. Apart from what
// an implementation documents otherwise, its methods and the methods of the
// pollers and timers it creates must only be called from the loop goroutine.
type Reactor interface {
	NewPoller(cb IOCallback) Poller
	NewTimer(cb func()) Timer
	// Now returns the current time as seen by the loop.
	Now() time.Time
}

// Poller watches one fd at a time.
type Poller interface {
	// Start watches fd for events, replacing whatever the poller watched before.
	Start(fd int, events PollEvents) error
	Stop()
	Active() bool
}

// Timer fires its callback once after delay, then every repeat if repeat is not
// zero.
type Timer interface {
	Start(delay, repeat time.Duration)
	Stop()
	Active() bool
}
