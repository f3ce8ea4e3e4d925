package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xstory/node-zookeeper/pkg/utils"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := New(WithLogger(testr.New(t)))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func runLoop(t *testing.T, l *Loop) <-chan error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	return done
}

func TestLoop_PostAndStop(t *testing.T) {
	l := newTestLoop(t)
	done := runLoop(t, l)

	ran := make(chan struct{})
	l.Post(func() {
		close(ran)
		l.Stop()
	})
	<-ran
	assert.NoError(t, <-done)
}

func TestLoop_ContextCancel(t *testing.T) {
	l := newTestLoop(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestLoop_RepeatingTimer(t *testing.T) {
	l := newTestLoop(t)

	var fired []time.Time
	var tm Timer
	l.Post(func() {
		tm = l.NewTimer(func() {
			fired = append(fired, time.Now())
			if len(fired) == 3 {
				tm.Stop()
				l.Stop()
			}
		})
		tm.Start(5*time.Millisecond, 5*time.Millisecond)
		assert.True(t, tm.Active())
	})
	require.NoError(t, <-runLoop(t, l))

	assert.Len(t, fired, 3)
	assert.False(t, tm.Active())
}

func TestLoop_TimerStoppedByEarlierCallback(t *testing.T) {
	l := newTestLoop(t)

	secondFired := false
	var second Timer
	l.Post(func() {
		first := l.NewTimer(func() {
			second.Stop()
		})
		second = l.NewTimer(func() {
			secondFired = true
		})
		first.Start(0, 0)
		second.Start(time.Millisecond, 0)
		l.NewTimer(l.Stop).Start(20*time.Millisecond, 0)
	})
	require.NoError(t, <-runLoop(t, l))
	assert.False(t, secondFired)
}

func TestLoop_Poller(t *testing.T) {
	l := newTestLoop(t)
	n, err := utils.NewNotifier()
	require.NoError(t, err)
	defer n.Close()

	var calls int
	var p Poller
	l.Post(func() {
		p = l.NewPoller(func(readable, writable bool, err error) {
			calls++
			assert.True(t, readable)
			assert.False(t, writable)
			assert.NoError(t, err)
			_, err = n.Drain()
			assert.NoError(t, err)
			p.Stop()
			l.Stop()
		})
		assert.NoError(t, p.Start(n.Fd(), PollReadable))
		assert.True(t, p.Active())
		assert.NoError(t, n.Notify())
	})
	require.NoError(t, <-runLoop(t, l))
	assert.Equal(t, 1, calls)
	assert.False(t, p.Active())
}

func TestLoop_PollerConflict(t *testing.T) {
	l := newTestLoop(t)
	n, err := utils.NewNotifier()
	require.NoError(t, err)
	defer n.Close()

	first := l.NewPoller(func(bool, bool, error) {})
	second := l.NewPoller(func(bool, bool, error) {})
	require.NoError(t, first.Start(n.Fd(), PollReadable))
	assert.Error(t, second.Start(n.Fd(), PollReadable))

	// Restarting the same poller modifies the registration.
	require.NoError(t, first.Start(n.Fd(), PollReadable|PollWritable))
	first.Stop()
	require.NoError(t, second.Start(n.Fd(), PollReadable))
}
