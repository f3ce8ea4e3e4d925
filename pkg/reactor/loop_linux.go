package reactor

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"

	"github.com/xstory/node-zookeeper/pkg/utils"
)

const maxEvents = 64

// Loop is a Reactor backed by epoll. All callbacks run on the goroutine that
// calls Run.
type Loop struct {
	epfd int
	wake *utils.Notifier
	log  logr.Logger

	mu     sync.Mutex
	posted []func()

	stopped atomic.Bool

	pollers map[int]*poller
	timers  timerHeap
}

type Option func(*Loop)

func WithLogger(log logr.Logger) Option {
	return func(l *Loop) {
		l.log = log
	}
}

func New(opts ...Option) (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	wake, err := utils.NewNotifier()
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wake.Fd())}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wake.Fd(), &ev); err != nil {
		wake.Close()
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll_ctl: %w", err)
	}

	l := &Loop{
		epfd:    epfd,
		wake:    wake,
		log:     klog.Background().WithName("reactor"),
		pollers: make(map[int]*poller),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post schedules fn to run on the loop goroutine. It is safe to call from any
// goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	if err := l.wake.Notify(); err != nil {
		l.log.Error(err, "Failed to wake up the loop")
	}
}

// Stop makes Run return after the callbacks currently running. It is safe to call
// from any goroutine.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	if err := l.wake.Notify(); err != nil {
		l.log.Error(err, "Failed to wake up the loop")
	}
}

// Run dispatches events until Stop is called or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	cancel := context.AfterFunc(ctx, l.Stop)
	defer cancel()

	events := make([]unix.EpollEvent, maxEvents)
	for {
		l.runPosted()
		l.runTimers()
		if l.stopped.Load() {
			break
		}

		n, err := unix.EpollWait(l.epfd, events, l.waitTimeout())
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			l.dispatch(&events[i])
		}
	}
	return ctx.Err()
}

// Close releases the epoll instance. Pollers still active are forgotten.
func (l *Loop) Close() error {
	l.pollers = map[int]*poller{}
	if err := l.wake.Close(); err != nil {
		return err
	}
	return unix.Close(l.epfd)
}

func (l *Loop) dispatch(ev *unix.EpollEvent) {
	fd := int(ev.Fd)
	if fd == l.wake.Fd() {
		if _, err := l.wake.Drain(); err != nil {
			l.log.Error(err, "Failed to drain the wakeup fd")
		}
		return
	}
	p, ok := l.pollers[fd]
	if !ok {
		// Stopped by an earlier callback of the same batch.
		return
	}
	readable := ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0
	writable := ev.Events&unix.EPOLLOUT != 0
	var err error
	if ev.Events&unix.EPOLLERR != 0 {
		err = socketError(fd)
	}
	p.cb(readable, writable, err)
}

func socketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err == nil && errno != 0 {
		return fmt.Errorf("fd %d: %w", fd, unix.Errno(errno))
	}
	return fmt.Errorf("fd %d: poll error", fd)
}

func (l *Loop) runPosted() {
	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()
	for _, fn := range posted {
		fn()
	}
}

type dueTimer struct {
	t   *timer
	gen uint64
}

func (l *Loop) runTimers() {
	now := l.Now()
	var due []dueTimer
	for len(l.timers) > 0 && !l.timers[0].when.After(now) {
		t := heap.Pop(&l.timers).(*timer)
		due = append(due, dueTimer{t: t, gen: t.gen})
		if t.repeat > 0 {
			t.when = now.Add(t.repeat)
			heap.Push(&l.timers, t)
		}
	}
	for _, d := range due {
		// A callback that ran before may have stopped or restarted this timer.
		if d.t.gen != d.gen {
			continue
		}
		d.t.cb()
	}
}

// waitTimeout is the epoll_wait timeout in milliseconds, rounded up so that a
// timer is never found not yet due after the wait.
func (l *Loop) waitTimeout() int {
	l.mu.Lock()
	pending := len(l.posted) > 0
	l.mu.Unlock()
	if pending || l.stopped.Load() {
		return 0
	}
	if len(l.timers) == 0 {
		return -1
	}
	d := l.timers[0].when.Sub(l.Now())
	if d <= 0 {
		return 0
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}

func (l *Loop) NewPoller(cb IOCallback) Poller {
	return &poller{loop: l, fd: -1, cb: cb}
}

func (l *Loop) NewTimer(cb func()) Timer {
	return &timer{loop: l, index: -1, cb: cb}
}

type poller struct {
	loop   *Loop
	fd     int
	events uint32
	cb     IOCallback
}

func epollEvents(events PollEvents) uint32 {
	var ev uint32
	if events&PollReadable != 0 {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if events&PollWritable != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *poller) Start(fd int, events PollEvents) error {
	if p.Active() && p.fd != fd {
		p.Stop()
	}
	if other, ok := p.loop.pollers[fd]; ok && other != p {
		return fmt.Errorf("fd %d is already watched by another poller", fd)
	}

	ev := unix.EpollEvent{Events: epollEvents(events), Fd: int32(fd)}
	op := unix.EPOLL_CTL_ADD
	if p.Active() {
		op = unix.EPOLL_CTL_MOD
	}
	err := unix.EpollCtl(p.loop.epfd, op, fd, &ev)
	if err == unix.EEXIST {
		err = unix.EpollCtl(p.loop.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	}
	if err != nil {
		return fmt.Errorf("epoll_ctl fd %d: %w", fd, err)
	}
	p.fd = fd
	p.events = ev.Events
	p.loop.pollers[fd] = p
	return nil
}

func (p *poller) Stop() {
	if !p.Active() {
		return
	}
	// The fd may already be closed, which removes it from the epoll set.
	err := unix.EpollCtl(p.loop.epfd, unix.EPOLL_CTL_DEL, p.fd, nil)
	if err != nil && err != unix.ENOENT && err != unix.EBADF {
		p.loop.log.Error(err, "Failed to stop polling", "fd", p.fd)
	}
	delete(p.loop.pollers, p.fd)
	p.fd = -1
}

func (p *poller) Active() bool {
	return p.fd >= 0 && p.loop.pollers[p.fd] == p
}

type timer struct {
	loop   *Loop
	when   time.Time
	repeat time.Duration
	cb     func()
	// index in the heap, -1 when not scheduled.
	index int
	gen   uint64
}

func (t *timer) Start(delay, repeat time.Duration) {
	t.Stop()
	t.when = t.loop.Now().Add(delay)
	t.repeat = repeat
	heap.Push(&t.loop.timers, t)
}

func (t *timer) Stop() {
	t.gen++
	if t.index >= 0 {
		heap.Remove(&t.loop.timers, t.index)
	}
}

func (t *timer) Active() bool {
	return t.index >= 0
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
