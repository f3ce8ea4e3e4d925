//go:build linux

package server

import (
	"errors"
	"sync"
	"time"

	"github.com/Shopify/zk"
	"github.com/go-logr/logr"

	"github.com/xstory/node-zookeeper/pkg/utils"
	"github.com/xstory/node-zookeeper/pkg/znode"
	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

var ErrClosed = errors.New("handle is closed")

type event struct {
	eventType zookeeper.EventType
	state     zookeeper.State
	path      string
	fn        zookeeper.WatcherFunc
}

// Handle is one session of a Server. It is driven by its owner calling Process
// whenever the notifier fd is readable. Watchers and completions only ever run from
// inside Process or Close.
type Handle struct {
	srv      *Server
	log      logr.Logger
	notifier *utils.Notifier
	watcher  zookeeper.WatcherFunc

	mu         sync.Mutex
	id         zookeeper.ClientID
	requested  time.Duration
	timeout    time.Duration
	state      zookeeper.State
	handshaken bool
	closed     bool
	requests   []zookeeper.Op
	events     []event
	auth       []authID
}

func newHandle(srv *Server, server string, timeout time.Duration, id zookeeper.ClientID, watcher zookeeper.WatcherFunc) (*Handle, error) {
	notifier, err := utils.NewNotifier()
	if err != nil {
		return nil, err
	}
	h := &Handle{
		srv:       srv,
		log:       srv.log.WithValues("server", server),
		notifier:  notifier,
		watcher:   watcher,
		id:        id,
		requested: timeout,
		timeout:   timeout,
		state:     zookeeper.StateConnecting,
	}
	// The handshake runs on the first Process.
	if err := notifier.Notify(); err != nil {
		notifier.Close()
		return nil, err
	}
	return h, nil
}

func (h *Handle) Interest() (zookeeper.Interest, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return zookeeper.Interest{Fd: zookeeper.NoFd}, ErrClosed
	}
	return zookeeper.Interest{
		Fd:      h.notifier.Fd(),
		Events:  zookeeper.IORead,
		Timeout: h.timeout / 3,
	}, nil
}

func (h *Handle) Process(events zookeeper.IOEvents) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	handshaken := h.handshaken
	h.handshaken = true
	h.mu.Unlock()

	if _, err := h.notifier.Drain(); err != nil {
		return err
	}
	if !handshaken {
		h.handshake()
	}
	h.deliverEvents()
	h.runRequests()
	return nil
}

func (h *Handle) handshake() {
	h.mu.Lock()
	requested := h.id
	h.mu.Unlock()

	id, err := h.srv.openSession(h, requested)
	if err != nil {
		h.log.Info("Session rejected", "sessionID", requested.String(), "err", err)
		h.setState(zookeeper.StateExpired)
		return
	}

	h.mu.Lock()
	h.id = id
	h.timeout = min(max(h.requested, minTimeout), maxTimeout)
	h.mu.Unlock()
	h.srv.debug("Session established", "sessionID", id.String(), "timeout", h.timeout)
	h.setState(zookeeper.StateConnected)
}

// setState changes the state and queues the session event for it.
func (h *Handle) setState(state zookeeper.State) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
	h.queueEvent(event{eventType: zookeeper.EventSession, state: state})
}

func (h *Handle) queueEvent(e event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.events = append(h.events, e)
	if err := h.notifier.Notify(); err != nil {
		h.log.Error(err, "Failed to wake handle")
	}
}

func (h *Handle) deliverEvents() {
	for {
		h.mu.Lock()
		if h.closed || len(h.events) == 0 {
			h.mu.Unlock()
			return
		}
		e := h.events[0]
		h.events = h.events[1:]
		h.mu.Unlock()

		fn := e.fn
		if fn == nil {
			fn = h.watcher
		}
		if fn != nil {
			fn(h, e.eventType, e.state, e.path)
		}
	}
}

// runRequests answers the requests that were queued when it was called. Watch
// events triggered by a request are delivered before its completion.
func (h *Handle) runRequests() {
	h.mu.Lock()
	n := len(h.requests)
	h.mu.Unlock()

	for i := 0; i < n; i++ {
		h.mu.Lock()
		if h.closed || len(h.requests) == 0 {
			h.mu.Unlock()
			return
		}
		op := h.requests[0]
		h.requests = h.requests[1:]
		state := h.state
		h.mu.Unlock()

		var done func()
		if state == zookeeper.StateExpired {
			done = failed(op, zookeeper.SessionExpired)
		} else {
			done = h.execute(op)
		}
		h.deliverEvents()
		done()
	}
}

func (h *Handle) Submit(op zookeeper.Op) zookeeper.ResultCode {
	if rc := zookeeper.CheckOp(op); rc != zookeeper.Ok {
		return rc
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.state.Unrecoverable() {
		return zookeeper.InvalidState
	}
	h.requests = append(h.requests, op)
	if err := h.notifier.Notify(); err != nil {
		h.log.Error(err, "Failed to wake handle")
	}
	return zookeeper.Ok
}

// Delete removes a node right away. It needs an established session.
func (h *Handle) Delete(path string, version int32) zookeeper.ResultCode {
	if err := zookeeper.ValidatePath(path); err != nil {
		return zookeeper.BadArguments
	}
	h.mu.Lock()
	closed, state := h.closed, h.state
	h.mu.Unlock()

	switch {
	case closed || state.Unrecoverable():
		return zookeeper.InvalidState
	case state != zookeeper.StateConnected:
		return zookeeper.ConnectionLoss
	}
	return h.delete(path, version)
}

func (h *Handle) State() zookeeper.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) ClientID() zookeeper.ClientID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

func (h *Handle) RecvTimeout() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timeout
}

func (h *Handle) IsUnrecoverable() bool {
	return h.State().Unrecoverable()
}

// Close ends the session. Requests that were still queued complete with Closing
// before it returns. It is safe to call from a watcher or a completion.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	requests := h.requests
	h.requests = nil
	h.events = nil
	id, handshaken := h.id, h.handshaken
	h.mu.Unlock()

	for _, op := range requests {
		failed(op, zookeeper.Closing)()
	}
	h.srv.watches.remove(h)
	if handshaken && !id.IsZero() {
		h.srv.closeSession(id.ID, h)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.notifier.Close()
}

// moved is called when another handle resumes this handle's session.
func (h *Handle) moved() {
	h.srv.watches.remove(h)
	h.setState(zookeeper.StateConnecting)
}

// expire is called when the server expires the session.
func (h *Handle) expire() {
	h.srv.watches.remove(h)
	h.setState(zookeeper.StateExpired)
}

func (h *Handle) authIDs() []authID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]authID(nil), h.auth...)
}

// check answers NoAuth unless the node at path grants perm to this session. A
// missing node is left for the tree to report.
func (h *Handle) check(path string, perm int32) zookeeper.ResultCode {
	node := h.srv.db.Get(path)
	if node == nil || permitted(node.ACL, perm, h.authIDs()) {
		return zookeeper.Ok
	}
	return zookeeper.NoAuth
}

func (h *Handle) execute(op zookeeper.Op) func() {
	switch op := op.(type) {
	case *zookeeper.CreateReq:
		rc, path := h.create(op)
		return func() { op.Done(rc, path) }
	case *zookeeper.DeleteReq:
		rc := h.delete(op.Path, op.Version)
		return func() { op.Done(rc) }
	case *zookeeper.ExistsReq:
		rc, stat := h.exists(op)
		return func() { op.Done(rc, stat) }
	case *zookeeper.GetDataReq:
		rc, node := h.read(op.Path, zookeeper.PermRead)
		if rc != zookeeper.Ok {
			return func() { op.Done(rc, nil, nil) }
		}
		h.watch(dataWatch, op.Path, op.Watch, op.Watcher)
		return func() { op.Done(rc, node.Data, node.Stat()) }
	case *zookeeper.SetDataReq:
		rc, stat := h.setData(op)
		return func() { op.Done(rc, stat) }
	case *zookeeper.GetChildrenReq:
		rc, node := h.read(op.Path, zookeeper.PermRead)
		if rc != zookeeper.Ok {
			return func() { op.Done(rc, nil) }
		}
		h.watch(childWatch, op.Path, op.Watch, op.Watcher)
		return func() { op.Done(rc, node.ChildNames()) }
	case *zookeeper.GetChildren2Req:
		rc, node := h.read(op.Path, zookeeper.PermRead)
		if rc != zookeeper.Ok {
			return func() { op.Done(rc, nil, nil) }
		}
		h.watch(childWatch, op.Path, op.Watch, op.Watcher)
		return func() { op.Done(rc, node.ChildNames(), node.Stat()) }
	case *zookeeper.GetACLReq:
		node := h.srv.db.Get(op.Path)
		if node == nil {
			return func() { op.Done(zookeeper.NoNode, nil, nil) }
		}
		return func() { op.Done(zookeeper.Ok, node.ACL, node.Stat()) }
	case *zookeeper.SetACLReq:
		rc := h.setACL(op)
		return func() { op.Done(rc) }
	case *zookeeper.AddAuthReq:
		rc := h.addAuth(op)
		return func() { op.Done(rc) }
	}
	return func() {}
}

func (h *Handle) create(op *zookeeper.CreateReq) (zookeeper.ResultCode, *string) {
	parent, _ := zookeeper.SplitPath(op.Path)
	if rc := h.check(parent, zookeeper.PermCreate); rc != zookeeper.Ok {
		return rc, nil
	}
	acl, rc := resolveACL(op.ACL, h.authIDs())
	if rc != zookeeper.Ok {
		return rc, nil
	}
	node, err := h.srv.db.Create(op.Path, op.Data, acl, op.Flags, h.ClientID().ID)
	if err != nil {
		return codeOf(err), nil
	}
	h.srv.triggerCreate(node.Name)
	return zookeeper.Ok, &node.Name
}

func (h *Handle) delete(path string, version int32) zookeeper.ResultCode {
	parent, _ := zookeeper.SplitPath(path)
	if rc := h.check(parent, zookeeper.PermDelete); rc != zookeeper.Ok {
		return rc
	}
	if err := h.srv.db.Delete(path, version); err != nil {
		return codeOf(err)
	}
	h.srv.triggerDelete(path)
	return zookeeper.Ok
}

func (h *Handle) exists(op *zookeeper.ExistsReq) (zookeeper.ResultCode, *zk.Stat) {
	stat := h.srv.db.Stat(op.Path)
	if stat == nil {
		h.watch(existWatch, op.Path, op.Watch, op.Watcher)
		return zookeeper.NoNode, nil
	}
	h.watch(dataWatch, op.Path, op.Watch, op.Watcher)
	return zookeeper.Ok, stat
}

func (h *Handle) read(path string, perm int32) (zookeeper.ResultCode, *znode.ZNode) {
	node := h.srv.db.Get(path)
	if node == nil {
		return zookeeper.NoNode, nil
	}
	if !permitted(node.ACL, perm, h.authIDs()) {
		return zookeeper.NoAuth, nil
	}
	return zookeeper.Ok, node
}

func (h *Handle) setData(op *zookeeper.SetDataReq) (zookeeper.ResultCode, *zk.Stat) {
	if rc := h.check(op.Path, zookeeper.PermWrite); rc != zookeeper.Ok {
		return rc, nil
	}
	stat, err := h.srv.db.SetData(op.Path, op.Data, op.Version)
	if err != nil {
		return codeOf(err), nil
	}
	h.srv.triggerChange(op.Path)
	return zookeeper.Ok, stat
}

func (h *Handle) setACL(op *zookeeper.SetACLReq) zookeeper.ResultCode {
	if rc := h.check(op.Path, zookeeper.PermAdmin); rc != zookeeper.Ok {
		return rc
	}
	acl, rc := resolveACL(op.ACL, h.authIDs())
	if rc != zookeeper.Ok {
		return rc
	}
	if _, err := h.srv.db.SetACL(op.Path, acl, op.Version); err != nil {
		return codeOf(err)
	}
	return zookeeper.Ok
}

func (h *Handle) addAuth(op *zookeeper.AddAuthReq) zookeeper.ResultCode {
	id, ok := "", false
	if op.Scheme == "digest" {
		id, ok = digestID(op.Cert)
	}
	if !ok {
		h.log.Info("Authentication failed", "scheme", op.Scheme)
		h.setState(zookeeper.StateAuthFailed)
		return zookeeper.AuthFailed
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, a := range h.auth {
		if a.scheme == op.Scheme && a.id == id {
			return zookeeper.Ok
		}
	}
	h.auth = append(h.auth, authID{scheme: op.Scheme, id: id})
	return zookeeper.Ok
}

// watch registers a watch when the request asked for one.
func (h *Handle) watch(kind watchKind, path string, watch bool, fn zookeeper.WatcherFunc) {
	if fn == nil && !watch {
		return
	}
	h.srv.watches.add(kind, path, h, fn)
}

// failed returns a completion that reports rc for op.
func failed(op zookeeper.Op, rc zookeeper.ResultCode) func() {
	return func() { zookeeper.FailOp(op, rc) }
}
