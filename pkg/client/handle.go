//go:build linux

package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Shopify/zk"
	"github.com/go-logr/logr"

	"github.com/xstory/node-zookeeper/pkg/utils"
	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

var ErrClosed = errors.New("handle is closed")

// slot is a submitted request. Slots complete in submission order.
type slot struct {
	op    zookeeper.Op
	done  func()
	ready bool
}

type event struct {
	eventType zookeeper.EventType
	state     zookeeper.State
	path      string
	fn        zookeeper.WatcherFunc
}

// delivery is either an event or a request whose result is ready.
type delivery struct {
	event event
	slot  *slot
}

// outcome is what running a request produced. watch is the channel of the watch the
// request set, if any.
type outcome struct {
	done    func()
	watch   <-chan zk.Event
	watcher zookeeper.WatcherFunc
}

// Handle runs requests against a zk.Conn on a worker goroutine and hands the
// results back to the event loop through a notifier. Events and finished requests
// share one queue, so Process delivers them in the order they happened. Completions
// and watchers only run from Process and Close.
type Handle struct {
	log      logr.Logger
	notifier *utils.Notifier
	watcher  zookeeper.WatcherFunc
	timeout  time.Duration

	conn   conn
	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   zookeeper.State
	closed  bool
	slots   []*slot
	pending []*slot
	queue   []delivery
}

func newHandle(log logr.Logger, notifier *utils.Notifier, timeout time.Duration, watcher zookeeper.WatcherFunc) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		log:      log,
		notifier: notifier,
		watcher:  watcher,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		state:    zookeeper.StateConnecting,
	}
}

func (h *Handle) start(c conn) {
	h.mu.Lock()
	h.conn = c
	h.mu.Unlock()

	h.wg.Add(1)
	go h.work()
}

// mapState translates the connection state of zk.Conn. ok is false for states that
// are not reported to the session watcher.
func mapState(state zk.State) (zookeeper.State, bool) {
	switch state {
	case zk.StateConnecting, zk.StateDisconnected:
		return zookeeper.StateConnecting, true
	case zk.StateConnected:
		return zookeeper.StateAssociating, true
	case zk.StateHasSession, zk.StateConnectedReadOnly:
		return zookeeper.StateConnected, true
	case zk.StateExpired:
		return zookeeper.StateExpired, true
	case zk.StateAuthFailed:
		return zookeeper.StateAuthFailed, true
	}
	return 0, false
}

// onEvent is called by zk.Conn from its own goroutines.
func (h *Handle) onEvent(ev zk.Event) {
	if ev.Type != zk.EventSession {
		return
	}
	state, ok := mapState(ev.State)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.state == state {
		return
	}
	h.state = state
	h.queue = append(h.queue, delivery{event: event{eventType: zookeeper.EventSession, state: state}})
	h.notify()
}

// forward waits for the single event of a watch and queues it.
func (h *Handle) forward(ch <-chan zk.Event, fn zookeeper.WatcherFunc) {
	ev, ok := <-ch
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.queue = append(h.queue, delivery{event: event{
		eventType: zookeeper.EventType(ev.Type),
		state:     zookeeper.StateConnected,
		path:      ev.Path,
		fn:        fn,
	}})
	h.notify()
}

// notify must be called with mu held.
func (h *Handle) notify() {
	if err := h.notifier.Notify(); err != nil {
		h.log.Error(err, "Failed to wake handle")
	}
}

// work runs pending requests one at a time, so results are ready in submission
// order.
func (h *Handle) work() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.wake:
		}

		for {
			h.mu.Lock()
			if len(h.pending) == 0 {
				h.mu.Unlock()
				break
			}
			s := h.pending[0]
			h.pending = h.pending[1:]
			h.mu.Unlock()

			out := h.run(s.op)

			h.mu.Lock()
			s.done, s.ready = out.done, true
			if !h.closed {
				h.queue = append(h.queue, delivery{slot: s})
				h.notify()
			}
			h.mu.Unlock()

			// Started after the result is queued, so a watch event never overtakes the
			// completion of the request that set it.
			if out.watch != nil {
				go h.forward(out.watch, out.watcher)
			}
		}
	}
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
	h.mu.Unlock()

	if _, err := h.notifier.Drain(); err != nil {
		return err
	}

	for {
		h.mu.Lock()
		if h.closed || len(h.queue) == 0 {
			h.mu.Unlock()
			return nil
		}
		d := h.queue[0]
		h.queue = h.queue[1:]
		if d.slot != nil {
			// The worker finishes requests in submission order, so d.slot is the oldest.
			h.slots = h.slots[1:]
		}
		h.mu.Unlock()

		if d.slot != nil {
			d.slot.done()
			continue
		}
		fn := d.event.fn
		if fn == nil {
			fn = h.watcher
		}
		if fn != nil {
			fn(h, d.event.eventType, d.event.state, d.event.path)
		}
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
	s := &slot{op: op}
	h.slots = append(h.slots, s)
	h.pending = append(h.pending, s)
	select {
	case h.wake <- struct{}{}:
	default:
	}
	return zookeeper.Ok
}

// Delete blocks until the server answers or the session timeout passes.
func (h *Handle) Delete(path string, version int32) zookeeper.ResultCode {
	if zookeeper.ValidatePath(path) != nil {
		return zookeeper.BadArguments
	}
	h.mu.Lock()
	closed, state := h.closed, h.state
	h.mu.Unlock()
	if closed || state.Unrecoverable() {
		return zookeeper.InvalidState
	}

	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()
	return codeOf(h.conn.DeleteCtx(ctx, path, version))
}

func (h *Handle) State() zookeeper.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// ClientID carries the session id only. zk.Conn does not expose the password.
func (h *Handle) ClientID() zookeeper.ClientID {
	h.mu.Lock()
	c := h.conn
	h.mu.Unlock()
	if c == nil {
		return zookeeper.ClientID{}
	}
	return zookeeper.ClientID{ID: c.SessionID()}
}

// RecvTimeout is the requested timeout. zk.Conn does not expose the negotiated one.
func (h *Handle) RecvTimeout() time.Duration {
	return h.timeout
}

func (h *Handle) IsUnrecoverable() bool {
	return h.State().Unrecoverable()
}

// Close cancels the request in flight, closes the connection and then completes
// every outstanding request: finished ones with their result, the rest with
// Closing. It is safe to call from a watcher or a completion.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
	if h.conn != nil {
		h.conn.Close()
	}

	h.mu.Lock()
	slots := h.slots
	h.slots, h.pending, h.queue = nil, nil, nil
	h.mu.Unlock()

	for _, s := range slots {
		if s.ready {
			s.done()
		} else {
			zookeeper.FailOp(s.op, zookeeper.Closing)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.notifier.Close()
}

func (h *Handle) run(op zookeeper.Op) outcome {
	ctx := h.ctx
	switch op := op.(type) {
	case *zookeeper.CreateReq:
		path, err := h.conn.CreateCtx(ctx, op.Path, op.Data, int32(op.Flags), op.ACL)
		if err != nil {
			return failed(op, codeOf(err))
		}
		return outcome{done: func() { op.Done(zookeeper.Ok, &path) }}
	case *zookeeper.DeleteReq:
		rc := codeOf(h.conn.DeleteCtx(ctx, op.Path, op.Version))
		return outcome{done: func() { op.Done(rc) }}
	case *zookeeper.ExistsReq:
		var exists bool
		var stat *zk.Stat
		var ch <-chan zk.Event
		var err error
		if op.Watch || op.Watcher != nil {
			exists, stat, ch, err = h.conn.ExistsWCtx(ctx, op.Path)
		} else {
			exists, stat, err = h.conn.ExistsCtx(ctx, op.Path)
		}
		out := outcome{watch: ch, watcher: op.Watcher}
		switch {
		case err != nil:
			out.done = failed(op, codeOf(err)).done
		case !exists:
			out.done = failed(op, zookeeper.NoNode).done
		default:
			out.done = func() { op.Done(zookeeper.Ok, stat) }
		}
		return out
	case *zookeeper.GetDataReq:
		var data []byte
		var stat *zk.Stat
		var ch <-chan zk.Event
		var err error
		if op.Watch || op.Watcher != nil {
			data, stat, ch, err = h.conn.GetWCtx(ctx, op.Path)
		} else {
			data, stat, err = h.conn.GetCtx(ctx, op.Path)
		}
		if err != nil {
			return outcome{done: failed(op, codeOf(err)).done, watch: ch, watcher: op.Watcher}
		}
		return outcome{done: func() { op.Done(zookeeper.Ok, data, stat) }, watch: ch, watcher: op.Watcher}
	case *zookeeper.SetDataReq:
		stat, err := h.conn.SetCtx(ctx, op.Path, op.Data, op.Version)
		if err != nil {
			return failed(op, codeOf(err))
		}
		return outcome{done: func() { op.Done(zookeeper.Ok, stat) }}
	case *zookeeper.GetChildrenReq:
		children, _, ch, err := h.children(ctx, op.Path, op.Watch, op.Watcher)
		if err != nil {
			return outcome{done: failed(op, codeOf(err)).done, watch: ch, watcher: op.Watcher}
		}
		return outcome{done: func() { op.Done(zookeeper.Ok, children) }, watch: ch, watcher: op.Watcher}
	case *zookeeper.GetChildren2Req:
		children, stat, ch, err := h.children(ctx, op.Path, op.Watch, op.Watcher)
		if err != nil {
			return outcome{done: failed(op, codeOf(err)).done, watch: ch, watcher: op.Watcher}
		}
		return outcome{done: func() { op.Done(zookeeper.Ok, children, stat) }, watch: ch, watcher: op.Watcher}
	case *zookeeper.GetACLReq:
		acl, stat, err := h.conn.GetACLCtx(ctx, op.Path)
		if err != nil {
			return failed(op, codeOf(err))
		}
		return outcome{done: func() { op.Done(zookeeper.Ok, acl, stat) }}
	case *zookeeper.SetACLReq:
		_, err := h.conn.SetACLCtx(ctx, op.Path, op.ACL, op.Version)
		rc := codeOf(err)
		return outcome{done: func() { op.Done(rc) }}
	case *zookeeper.AddAuthReq:
		rc := codeOf(h.conn.AddAuthCtx(ctx, op.Scheme, op.Cert))
		return outcome{done: func() { op.Done(rc) }}
	}
	return outcome{done: func() {}}
}

func (h *Handle) children(ctx context.Context, path string, watch bool, fn zookeeper.WatcherFunc) ([]string, *zk.Stat, <-chan zk.Event, error) {
	if !watch && fn == nil {
		children, stat, err := h.conn.ChildrenCtx(ctx, path)
		return children, stat, nil, err
	}
	return h.conn.ChildrenWCtx(ctx, path)
}

// failed is the outcome of a request that completes with rc and no payload.
func failed(op zookeeper.Op, rc zookeeper.ResultCode) outcome {
	return outcome{done: func() { zookeeper.FailOp(op, rc) }}
}
