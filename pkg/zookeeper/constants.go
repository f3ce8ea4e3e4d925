package zookeeper

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shopify/zk"
)

// State is the session state as reported by the protocol library. The values match
// the ZooKeeper C client so they can be exposed to callers unchanged.
type State int32

const (
	// StateClosed is reported when there is no protocol handle.
	StateClosed      State = 0
	StateConnecting  State = 1
	StateAssociating State = 2
	StateConnected   State = 3
	// StateExpired and StateAuthFailed are unrecoverable. A session in either state
	// must be closed and a new one created.
	StateExpired    State = -112
	StateAuthFailed State = -113
)

var stateNames = map[State]string{
	StateClosed:      "closed",
	StateConnecting:  "connecting",
	StateAssociating: "associating",
	StateConnected:   "connected",
	StateExpired:     "expired",
	StateAuthFailed:  "auth-failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Unrecoverable reports whether the session can never be used again.
func (s State) Unrecoverable() bool {
	return s == StateExpired || s == StateAuthFailed
}

// EventType is the type of a watcher event.
type EventType int32

const (
	EventCreated     EventType = EventType(zk.EventNodeCreated)
	EventDeleted     EventType = EventType(zk.EventNodeDeleted)
	EventChanged     EventType = EventType(zk.EventNodeDataChanged)
	EventChild       EventType = EventType(zk.EventNodeChildrenChanged)
	EventSession     EventType = EventType(zk.EventSession)
	EventNotWatching EventType = EventType(zk.EventNotWatching)
)

var eventNames = map[EventType]string{
	EventCreated:     "created",
	EventDeleted:     "deleted",
	EventChanged:     "changed",
	EventChild:       "child",
	EventSession:     "session",
	EventNotWatching: "notwatching",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EventType(%d)", int32(t))
}

// Flag is a bitmask of node creation flags.
type Flag int32

const (
	// FlagEphemeral indicates that the ZNode to be created should be automatically destroyed once the session
	// has been terminated (either intentionally or on failure).
	FlagEphemeral Flag = zk.FlagEphemeral
	// FlagSequence indicates that the node to be created should have a monotonically increasing counter appended
	// to the end of the provided name.
	FlagSequence Flag = zk.FlagSequence
)

// Permission bits used in ACL entries.
const (
	PermRead   int32 = zk.PermRead
	PermWrite  int32 = zk.PermWrite
	PermCreate int32 = zk.PermCreate
	PermDelete int32 = zk.PermDelete
	PermAdmin  int32 = zk.PermAdmin
	PermAll    int32 = zk.PermAll
)

// IOEvents is the read/write interest of the protocol library, and also the set of
// readiness events fed back into it.
type IOEvents int

const (
	IOWrite IOEvents = 1 << iota
	IORead
)

// NoFd is reported as the interest fd while there is no socket to watch.
const NoFd = -1

// Interest describes what the protocol library needs the reactor to watch.
type Interest struct {
	Fd      int
	Events  IOEvents
	Timeout time.Duration
}

// LogLevel controls the verbosity of the protocol library.
type LogLevel int

const (
	LogLevelError LogLevel = iota + 1
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

var logLevelNames = map[LogLevel]string{
	LogLevelError: "error",
	LogLevelWarn:  "warn",
	LogLevelInfo:  "info",
	LogLevelDebug: "debug",
}

func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// ParseLogLevel parses one of "error", "warn", "info" or "debug". An empty string
// selects LogLevelError.
func ParseLogLevel(s string) (LogLevel, error) {
	if s == "" {
		return LogLevelError, nil
	}
	for level, name := range logLevelNames {
		if strings.EqualFold(s, name) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown debug level %q", s)
}
