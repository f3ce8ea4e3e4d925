package session

import (
	"github.com/google/uuid"

	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

// WatchEvent is delivered to a watcher registered through one of the W* operations.
type WatchEvent struct {
	Type  zookeeper.EventType
	State zookeeper.State
	Path  string
	// Handback is the value given at registration, nil if there was none.
	Handback any
}

type WatchFunc func(WatchEvent)

type watchRegistration struct {
	session  *Session
	callback WatchFunc
	handback any
}

// watcherDispatch keeps the watchers set through the session. A watcher receives
// every session event until it is retired, and is retired by the first node event
// or not-watching event it receives, since the server side watch is consumed by
// then.
type watcherDispatch struct {
	watches map[uuid.UUID]*watchRegistration
}

func newWatcherDispatch() *watcherDispatch {
	return &watcherDispatch{watches: make(map[uuid.UUID]*watchRegistration)}
}

func (d *watcherDispatch) register(s *Session, cb WatchFunc, handback any) uuid.UUID {
	id := uuid.New()
	d.watches[id] = &watchRegistration{session: s, callback: cb, handback: handback}
	return id
}

func (d *watcherDispatch) discard(id uuid.UUID) {
	delete(d.watches, id)
}

// clear drops every registration. Nothing registered before is invoked again.
func (d *watcherDispatch) clear() {
	clear(d.watches)
}

func (d *watcherDispatch) len() int {
	return len(d.watches)
}

func (d *watcherDispatch) trampoline(id uuid.UUID) zookeeper.WatcherFunc {
	return func(h zookeeper.Handle, eventType zookeeper.EventType, state zookeeper.State, path string) {
		if h.State() == zookeeper.StateExpired {
			return
		}
		reg, ok := d.watches[id]
		if !ok {
			// Retired, or dropped when the session was closed.
			return
		}
		if reg.session == nil {
			panic("session: watch registration without a session")
		}
		if reg.session.closed {
			return
		}
		if reg.session.handle != h {
			panic("session: watch delivered by a foreign handle")
		}
		if eventType != zookeeper.EventSession {
			delete(d.watches, id)
		}
		reg.callback(WatchEvent{
			Type:     eventType,
			State:    state,
			Path:     path,
			Handback: reg.handback,
		})
	}
}
