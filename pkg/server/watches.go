//go:build linux

package server

import (
	"sync"

	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

type watchKind int

const (
	dataWatch watchKind = iota
	existWatch
	childWatch
)

// watch is one registration. A nil fn means the session watcher of h.
type watch struct {
	h  *Handle
	fn zookeeper.WatcherFunc
}

// watchTable holds the one-shot watches of every handle, keyed by kind and path.
type watchTable struct {
	mu    sync.Mutex
	kinds [3]map[string][]*watch
}

func newWatchTable() *watchTable {
	t := &watchTable{}
	for i := range t.kinds {
		t.kinds[i] = map[string][]*watch{}
	}
	return t
}

func (t *watchTable) add(kind watchKind, path string, h *Handle, fn zookeeper.WatcherFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fn == nil {
		// The session watcher is notified at most once per path and kind.
		for _, w := range t.kinds[kind][path] {
			if w.h == h && w.fn == nil {
				return
			}
		}
	}
	t.kinds[kind][path] = append(t.kinds[kind][path], &watch{h: h, fn: fn})
}

// fire removes the watches of the given kinds on path and queues the event on
// their handles. A handle's session watcher gets a single event even when it
// watched the path through several kinds.
func (t *watchTable) fire(path string, eventType zookeeper.EventType, kinds ...watchKind) {
	var triggered []*watch
	t.mu.Lock()
	for _, kind := range kinds {
		triggered = append(triggered, t.kinds[kind][path]...)
		delete(t.kinds[kind], path)
	}
	t.mu.Unlock()

	notified := map[*Handle]bool{}
	for _, w := range triggered {
		if w.fn == nil {
			if notified[w.h] {
				continue
			}
			notified[w.h] = true
		}
		w.h.queueEvent(event{eventType: eventType, state: zookeeper.StateConnected, path: path, fn: w.fn})
	}
}

// remove drops every watch that belongs to h.
func (t *watchTable) remove(h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, paths := range t.kinds {
		for path, watches := range paths {
			kept := watches[:0]
			for _, w := range watches {
				if w.h != h {
					kept = append(kept, w)
				}
			}
			if len(kept) == 0 {
				delete(paths, path)
			} else {
				paths[path] = kept
			}
		}
	}
}

func (t *watchTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, paths := range t.kinds {
		for _, watches := range paths {
			n += len(watches)
		}
	}
	return n
}
