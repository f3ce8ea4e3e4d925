package session

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/xstory/node-zookeeper/pkg/reactor"
	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

// scheduler keeps the reactor's poller and timer in line with the interest of the
// protocol handle, and feeds readiness back into the handle.
type scheduler struct {
	handle  zookeeper.Handle
	reactor reactor.Reactor
	poller  reactor.Poller
	timer   reactor.Timer
	log     logr.Logger

	// interest is the result of the last successful query.
	interest     zookeeper.Interest
	lastActivity time.Time
}

func newScheduler(r reactor.Reactor, log logr.Logger) *scheduler {
	return &scheduler{reactor: r, log: log}
}

// attach binds the scheduler to a new handle.
func (s *scheduler) attach(h zookeeper.Handle) {
	s.handle = h
	if s.poller == nil {
		s.poller = s.reactor.NewPoller(s.onIOReady)
	}
	if s.timer == nil {
		s.timer = s.reactor.NewTimer(s.onTimer)
	}
}

// reconcile arms the poller and the timer with the current interest of the handle.
func (s *scheduler) reconcile() {
	if s.handle == nil {
		return
	}
	s.lastActivity = s.reactor.Now()

	interest, err := s.handle.Interest()
	if s.poller.Active() {
		s.poller.Stop()
	}
	if err != nil {
		s.log.Error(err, "Failed to query the protocol interest")
		return
	}
	s.interest = interest
	if interest.Fd == zookeeper.NoFd {
		return
	}

	delay := interest.Timeout.Truncate(time.Millisecond)
	var events reactor.PollEvents
	if interest.Events&zookeeper.IORead != 0 {
		events |= reactor.PollReadable
	}
	if interest.Events&zookeeper.IOWrite != 0 {
		events |= reactor.PollWritable
	}
	s.log.V(4).Info("Interest", "fd", interest.Fd,
		"read", events&reactor.PollReadable != 0,
		"write", events&reactor.PollWritable != 0,
		"timeout", delay)

	if err := s.poller.Start(interest.Fd, events); err != nil {
		s.log.Error(err, "Failed to poll the protocol fd", "fd", interest.Fd)
	}
	s.timer.Start(delay, delay)
}

func (s *scheduler) onIOReady(readable, writable bool, err error) {
	if s.handle == nil {
		return
	}
	var events zookeeper.IOEvents
	if err != nil {
		// Let the protocol library run into the error itself.
		events = zookeeper.IORead | zookeeper.IOWrite
	} else {
		if readable {
			events |= zookeeper.IORead
		}
		if writable {
			events |= zookeeper.IOWrite
		}
	}
	if err := s.handle.Process(events); err != nil {
		s.log.Error(err, "Failed to process protocol events")
	}
	s.reconcile()
}

func (s *scheduler) onTimer() {
	if s.handle == nil {
		return
	}
	now := s.reactor.Now()
	deadline := s.lastActivity.Add(s.interest.Timeout.Truncate(time.Millisecond))
	if !now.Before(deadline) {
		s.log.V(4).Info("Protocol timeout elapsed")
		s.reconcile()
		return
	}
	// There was activity since the timer was armed.
	delay := deadline.Sub(now).Truncate(time.Millisecond) + time.Millisecond
	s.timer.Start(delay, delay)
	s.log.V(4).Info("Delaying protocol timer", "delay", delay)
}

func (s *scheduler) stopTimer() {
	if s.timer != nil && s.timer.Active() {
		s.timer.Stop()
	}
}

func (s *scheduler) stopPoller() {
	if s.poller != nil && s.poller.Active() {
		s.poller.Stop()
	}
}
