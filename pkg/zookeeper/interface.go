package zookeeper

import (
	"time"
)

// WatcherFunc is called by the protocol library for session events and for watch
// notifications. h is the handle the event belongs to.
type WatcherFunc func(h Handle, eventType EventType, state State, path string)

// Library is the entry point of a ZooKeeper protocol implementation. It is driven
// entirely from a single event loop: nothing here blocks except Handle.Delete.
type Library interface {
	// SetDebugLevel sets the process wide verbosity of the library.
	SetDebugLevel(level LogLevel)
	// SetDeterministicConnOrder makes the library try the hosts in the order given
	// in the connect string instead of shuffling them.
	SetDeterministicConnOrder(deterministic bool)
	// Init creates a handle for a new session, or resumes the session identified by
	// id when it is not zero. watcher receives every session event as well as the
	// watches that were set without a dedicated watcher.
	Init(hosts string, timeout time.Duration, id ClientID, watcher WatcherFunc) (Handle, error)
}

// Handle is one session inside the protocol library.
type Handle interface {
	// Interest reports the fd, read/write interest and the timeout after which
	// Process must be called even if the fd never becomes ready.
	Interest() (Interest, error)
	// Process performs whatever I/O the events allow and invokes completions and
	// watchers for the results that are ready.
	Process(events IOEvents) error
	// Submit queues a request. A non-Ok status means the request was rejected and its
	// completion will never be called.
	Submit(op Op) ResultCode
	// Delete removes a node synchronously.
	Delete(path string, version int32) ResultCode
	State() State
	ClientID() ClientID
	// RecvTimeout is the session timeout negotiated with the server.
	RecvTimeout() time.Duration
	IsUnrecoverable() bool
	// Close ends the session. Completions of requests that are still queued are
	// invoked before Close returns.
	Close() error
}
