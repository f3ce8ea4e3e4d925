// Package session drives one ZooKeeper session from a single threaded event loop.
//
// A Session owns the protocol handle, keeps the reactor armed according to the
// handle's interest, and dispatches completions and watch events to the callbacks
// given by the caller. All methods must be called from the loop goroutine, and all
// callbacks are invoked there.
package session

import (
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/xstory/node-zookeeper/pkg/reactor"
	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

var (
	ErrAlreadyInitialized = errors.New("session is already initialized")
	ErrClosed             = errors.New("session is closed")
)

// NotificationType names a session notification.
type NotificationType string

const (
	NotifyConnecting  NotificationType = "connecting"
	NotifyConnect     NotificationType = "connect"
	NotifyCreated     NotificationType = "created"
	NotifyDeleted     NotificationType = "deleted"
	NotifyChanged     NotificationType = "changed"
	NotifyChild       NotificationType = "child"
	NotifyNotWatching NotificationType = "notwatching"
	NotifyClose       NotificationType = "close"
)

var nodeEventNotifications = map[zookeeper.EventType]NotificationType{
	zookeeper.EventCreated:     NotifyCreated,
	zookeeper.EventDeleted:     NotifyDeleted,
	zookeeper.EventChanged:     NotifyChanged,
	zookeeper.EventChild:       NotifyChild,
	zookeeper.EventNotWatching: NotifyNotWatching,
}

// Notification is emitted for session state changes and for events of the watches
// set with the watch flag. Code is only set for NotifyClose.
type Notification struct {
	Type NotificationType
	Path string
	Code int32
}

type Listener func(s *Session, n Notification)

type Option func(*Session)

func WithLogger(log logr.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

func WithListener(l Listener) Option {
	return func(s *Session) {
		s.listener = l
	}
}

// Session is one logical session to a ZooKeeper ensemble.
type Session struct {
	lib      zookeeper.Library
	reactor  reactor.Reactor
	log      logr.Logger
	listener Listener

	// handle is nil before Init and after close.
	handle zookeeper.Handle
	// myid is the identity of the session as last seen on the handle.
	myid   zookeeper.ClientID
	closed bool
	// refs counts the owners keeping the session alive: the caller, and the handle
	// while there is one.
	refs int

	sched       *scheduler
	completions *completionRegistry
	watches     *watcherDispatch
}

func New(lib zookeeper.Library, r reactor.Reactor, opts ...Option) *Session {
	s := &Session{
		lib:         lib,
		reactor:     r,
		log:         klog.Background().WithName("session"),
		refs:        1,
		completions: newCompletionRegistry(),
		watches:     newWatcherDispatch(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sched = newScheduler(r, s.log)
	return s
}

// Init validates cfg and starts connecting. Configuration errors are reported
// before the protocol library is used.
func (s *Session) Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.closed {
		return ErrClosed
	}
	if s.handle != nil {
		return ErrAlreadyInitialized
	}
	cfg = cfg.WithDefaults()

	level, _ := zookeeper.ParseLogLevel(cfg.DebugLevel)
	s.lib.SetDebugLevel(level)
	s.lib.SetDeterministicConnOrder(cfg.HostOrderDeterministic)

	s.myid = cfg.clientID()
	h, err := s.lib.Init(cfg.Connect, cfg.timeout(), s.myid, s.mainWatcher)
	if err != nil {
		s.log.Error(err, "Failed to create the protocol handle", "connect", cfg.Connect)
		return errors.Wrapf(err, "zookeeper init: %s", zookeeper.SystemError.Message())
	}
	s.handle = h
	s.refs++
	s.sched.attach(h)
	s.sched.reconcile()
	return nil
}

func (s *Session) mainWatcher(h zookeeper.Handle, eventType zookeeper.EventType, state zookeeper.State, path string) {
	s.log.V(4).Info("Main watcher event", "type", eventType, "state", state, "path", path)
	if s.closed {
		return
	}

	if eventType == zookeeper.EventSession {
		switch state {
		case zookeeper.StateConnected:
			s.myid = h.ClientID()
			s.emit(Notification{Type: NotifyConnect, Path: path})
		case zookeeper.StateConnecting, zookeeper.StateAssociating:
			s.emit(Notification{Type: NotifyConnecting, Path: path})
		case zookeeper.StateAuthFailed:
			s.log.Error(nil, "Authentication failure. Shutting down")
			s.close(int32(zookeeper.StateAuthFailed))
		case zookeeper.StateExpired:
			s.log.Error(nil, "Session expired. Shutting down")
			s.close(int32(zookeeper.StateExpired))
		}
		return
	}

	if typ, ok := nodeEventNotifications[eventType]; ok {
		s.emit(Notification{Type: typ, Path: path})
		return
	}
	s.log.Info("Unknown watcher event type", "type", eventType)
}

func (s *Session) emit(n Notification) {
	if s.listener != nil {
		s.listener(s, n)
	}
}

// Close ends the session. Closing a session twice is a no-op.
func (s *Session) Close() {
	s.close(0)
}

func (s *Session) close(code int32) {
	if s.closed {
		return
	}
	s.closed = true
	s.sched.stopTimer()
	if s.handle == nil {
		return
	}

	h := s.handle
	s.myid = h.ClientID()
	s.handle = nil
	s.sched.handle = nil
	if err := h.Close(); err != nil {
		s.log.Error(err, "Failed to close the protocol handle")
	}
	s.sched.stopPoller()
	s.watches.clear()
	s.unref()
	s.emit(Notification{Type: NotifyClose, Code: code})
}

// Release drops the caller's reference. The session is finalized once the handle
// is closed as well.
func (s *Session) Release() {
	s.unref()
}

// Released reports whether every owner has let go of the session.
func (s *Session) Released() bool {
	return s.refs == 0
}

func (s *Session) unref() {
	if s.refs == 0 {
		panic("session: reference count underflow")
	}
	s.refs--
	if s.refs == 0 {
		s.log.V(4).Info("Session finalized", "sessionID", s.SessionID(),
			"pendingCompletions", s.completions.len())
	}
}

// State is the state reported by the handle, StateClosed without one.
func (s *Session) State() zookeeper.State {
	if s.handle == nil {
		return zookeeper.StateClosed
	}
	return s.handle.State()
}

// ClientID is the identity reported by the handle, or the last one seen if the
// session is closed.
func (s *Session) ClientID() zookeeper.ClientID {
	if s.handle != nil {
		return s.handle.ClientID()
	}
	return s.myid
}

func (s *Session) SessionID() string {
	return zookeeper.FormatSessionID(s.ClientID().ID)
}

func (s *Session) Password() string {
	return zookeeper.FormatPassword(s.ClientID().Passwd)
}

// Timeout is the negotiated session timeout in milliseconds, -1 without a handle.
func (s *Session) Timeout() int32 {
	if s.handle == nil {
		return -1
	}
	return int32(s.handle.RecvTimeout().Milliseconds())
}

func (s *Session) IsUnrecoverable() bool {
	if s.handle == nil {
		return false
	}
	return s.handle.IsUnrecoverable()
}

var openACL = buildACLVector(OpenACLUnsafe).entries

// submit hands op to the handle. Rejected operations never complete, so their
// registrations are dropped here.
func (s *Session) submit(op zookeeper.Op, opID, watchID uuid.UUID) zookeeper.ResultCode {
	rc := zookeeper.InvalidState
	if s.handle != nil {
		rc = s.handle.Submit(op)
	}
	if rc != zookeeper.Ok {
		s.log.V(4).Info("Operation rejected", "op", op.Type(), "rc", rc.Message())
		s.completions.discard(opID)
		if watchID != uuid.Nil {
			s.watches.discard(watchID)
		}
	}
	return rc
}

// keepWatch drops the watcher of an operation whose failure means the server did
// not set a watch.
func (s *Session) keepWatch(watchID uuid.UUID, exists bool, cb CompletionFunc) CompletionFunc {
	return func(r Result) {
		set := r.Code == zookeeper.Ok || (exists && r.Code == zookeeper.NoNode)
		if !set {
			s.watches.discard(watchID)
		}
		if cb != nil {
			cb(r)
		}
	}
}

// Create creates a node readable and writable by everyone. The completion receives
// the path of the new node, which differs from path for sequential nodes.
func (s *Session) Create(path string, data []byte, flags zookeeper.Flag, cb CompletionFunc) zookeeper.ResultCode {
	id := s.completions.register(s, zookeeper.OpCreate, cb, nil)
	return s.submit(&zookeeper.CreateReq{
		Path:  path,
		Data:  data,
		ACL:   openACL,
		Flags: flags,
		Done:  s.completions.stringCompletion(id),
	}, id, uuid.Nil)
}

func (s *Session) Delete(path string, version int32, cb CompletionFunc) zookeeper.ResultCode {
	id := s.completions.register(s, zookeeper.OpDelete, cb, nil)
	return s.submit(&zookeeper.DeleteReq{
		Path:    path,
		Version: version,
		Done:    s.completions.voidCompletion(id),
	}, id, uuid.Nil)
}

// DeleteSync deletes a node and blocks until the server has answered.
func (s *Session) DeleteSync(path string, version int32) zookeeper.ResultCode {
	if s.handle == nil {
		return zookeeper.InvalidState
	}
	return s.handle.Delete(path, version)
}

// Exists gets the stat of a node. With watch set, the next change of the node is
// reported to the listener.
func (s *Session) Exists(path string, watch bool, cb CompletionFunc) zookeeper.ResultCode {
	id := s.completions.register(s, zookeeper.OpExists, cb, nil)
	return s.submit(&zookeeper.ExistsReq{
		Path:  path,
		Watch: watch,
		Done:  s.completions.statCompletion(id),
	}, id, uuid.Nil)
}

// WExists is Exists with the change reported to watcher instead of the listener.
func (s *Session) WExists(path string, watcher WatchFunc, handback any, cb CompletionFunc) zookeeper.ResultCode {
	wid := s.watches.register(s, watcher, handback)
	id := s.completions.register(s, zookeeper.OpExists, s.keepWatch(wid, true, cb), nil)
	return s.submit(&zookeeper.ExistsReq{
		Path:    path,
		Watcher: s.watches.trampoline(wid),
		Done:    s.completions.statCompletion(id),
	}, id, wid)
}

func (s *Session) Get(path string, watch bool, cb CompletionFunc) zookeeper.ResultCode {
	id := s.completions.register(s, zookeeper.OpGetData, cb, nil)
	return s.submit(&zookeeper.GetDataReq{
		Path:  path,
		Watch: watch,
		Done:  s.completions.dataCompletion(id),
	}, id, uuid.Nil)
}

func (s *Session) WGet(path string, watcher WatchFunc, handback any, cb CompletionFunc) zookeeper.ResultCode {
	wid := s.watches.register(s, watcher, handback)
	id := s.completions.register(s, zookeeper.OpGetData, s.keepWatch(wid, false, cb), nil)
	return s.submit(&zookeeper.GetDataReq{
		Path:    path,
		Watcher: s.watches.trampoline(wid),
		Done:    s.completions.dataCompletion(id),
	}, id, wid)
}

func (s *Session) Set(path string, data []byte, version int32, cb CompletionFunc) zookeeper.ResultCode {
	id := s.completions.register(s, zookeeper.OpSetData, cb, nil)
	return s.submit(&zookeeper.SetDataReq{
		Path:    path,
		Data:    data,
		Version: version,
		Done:    s.completions.statCompletion(id),
	}, id, uuid.Nil)
}

func (s *Session) GetChildren(path string, watch bool, cb CompletionFunc) zookeeper.ResultCode {
	id := s.completions.register(s, zookeeper.OpGetChildren, cb, nil)
	return s.submit(&zookeeper.GetChildrenReq{
		Path:  path,
		Watch: watch,
		Done:  s.completions.stringsCompletion(id),
	}, id, uuid.Nil)
}

func (s *Session) WGetChildren(path string, watcher WatchFunc, handback any, cb CompletionFunc) zookeeper.ResultCode {
	wid := s.watches.register(s, watcher, handback)
	id := s.completions.register(s, zookeeper.OpGetChildren, s.keepWatch(wid, false, cb), nil)
	return s.submit(&zookeeper.GetChildrenReq{
		Path:    path,
		Watcher: s.watches.trampoline(wid),
		Done:    s.completions.stringsCompletion(id),
	}, id, wid)
}

// GetChildren2 is GetChildren with the stat of the parent.
func (s *Session) GetChildren2(path string, watch bool, cb CompletionFunc) zookeeper.ResultCode {
	id := s.completions.register(s, zookeeper.OpGetChildren2, cb, nil)
	return s.submit(&zookeeper.GetChildren2Req{
		Path:  path,
		Watch: watch,
		Done:  s.completions.stringsStatCompletion(id),
	}, id, uuid.Nil)
}

func (s *Session) WGetChildren2(path string, watcher WatchFunc, handback any, cb CompletionFunc) zookeeper.ResultCode {
	wid := s.watches.register(s, watcher, handback)
	id := s.completions.register(s, zookeeper.OpGetChildren2, s.keepWatch(wid, false, cb), nil)
	return s.submit(&zookeeper.GetChildren2Req{
		Path:    path,
		Watcher: s.watches.trampoline(wid),
		Done:    s.completions.stringsStatCompletion(id),
	}, id, wid)
}

func (s *Session) GetACL(path string, cb CompletionFunc) zookeeper.ResultCode {
	id := s.completions.register(s, zookeeper.OpGetACL, cb, nil)
	return s.submit(&zookeeper.GetACLReq{
		Path: path,
		Done: s.completions.aclCompletion(id),
	}, id, uuid.Nil)
}

func (s *Session) SetACL(path string, version int32, acl []ACLEntry, cb CompletionFunc) zookeeper.ResultCode {
	v := buildACLVector(acl)
	id := s.completions.register(s, zookeeper.OpSetACL, cb, v)
	return s.submit(&zookeeper.SetACLReq{
		Path:    path,
		Version: version,
		ACL:     v.entries,
		Done:    s.completions.voidCompletion(id),
	}, id, uuid.Nil)
}

// AddAuth adds credentials to the session, e.g. scheme "digest" with "user:password".
func (s *Session) AddAuth(scheme string, cert []byte, cb CompletionFunc) zookeeper.ResultCode {
	id := s.completions.register(s, zookeeper.OpSetAuth, cb, nil)
	return s.submit(&zookeeper.AddAuthReq{
		Scheme: scheme,
		Cert:   cert,
		Done:   s.completions.voidCompletion(id),
	}, id, uuid.Nil)
}
