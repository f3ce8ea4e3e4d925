package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/suite"

	"github.com/xstory/node-zookeeper/pkg/reactor"
	"github.com/xstory/node-zookeeper/pkg/server"
	"github.com/xstory/node-zookeeper/pkg/session"
	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

const waitTimeout = 5 * time.Second

type integrationTestSuite struct {
	suite.Suite
	srv    *server.Server
	loop   *reactor.Loop
	cancel context.CancelFunc
	done   chan error
}

func TestIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping event loop tests in short mode")
	}
	suite.Run(t, new(integrationTestSuite))
}

func (i *integrationTestSuite) SetupTest() {
	log := testr.New(i.T())
	i.srv = server.NewServer(server.WithLogger(log.WithName("server")))

	loop, err := reactor.New(reactor.WithLogger(log.WithName("reactor")))
	i.Require().NoError(err)
	i.loop = loop

	ctx, cancel := context.WithCancel(context.Background())
	i.cancel = cancel
	i.done = make(chan error, 1)
	go func() {
		i.done <- loop.Run(ctx)
	}()
}

func (i *integrationTestSuite) TearDownTest() {
	i.cancel()
	<-i.done
	i.NoError(i.loop.Close())
}

// run calls fn on the loop goroutine and waits for it.
func (i *integrationTestSuite) run(fn func()) {
	finished := make(chan struct{})
	i.loop.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
	case <-time.After(waitTimeout):
		i.FailNow("timed out waiting for the event loop")
	}
}

func receive[T any](i *integrationTestSuite, ch <-chan T) T {
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		i.FailNow("timed out waiting for a callback")
	}
	var zero T
	return zero
}

type testSession struct {
	*session.Session
	notes chan session.Notification
}

// open starts a session and waits until it is connected.
func (i *integrationTestSuite) open(cfg session.Config) *testSession {
	ts := &testSession{notes: make(chan session.Notification, 32)}
	var err error
	i.run(func() {
		ts.Session = session.New(i.srv, i.loop,
			session.WithLogger(testr.New(i.T()).WithName("session")),
			session.WithListener(func(_ *session.Session, n session.Notification) { ts.notes <- n }),
		)
		err = ts.Init(cfg)
	})
	i.Require().NoError(err)
	i.Equal(session.NotifyConnect, receive(i, ts.notes).Type)
	return ts
}

func (i *integrationTestSuite) openNew() *testSession {
	return i.open(session.Config{Connect: "localhost:2181", Timeout: 10000})
}

func results() (chan session.Result, session.CompletionFunc) {
	ch := make(chan session.Result, 8)
	return ch, func(r session.Result) { ch <- r }
}

// roundTrip waits for a request on s to complete, so that every event queued for
// s before it has been delivered.
func (i *integrationTestSuite) roundTrip(s *testSession) {
	ch, cb := results()
	i.run(func() {
		i.Equal(zookeeper.Ok, s.Exists("/", false, cb))
	})
	receive(i, ch)
}

func (i *integrationTestSuite) TestCreateEphemeral() {
	s := i.openNew()
	ch, cb := results()

	var rc zookeeper.ResultCode
	i.run(func() { rc = s.Create("/a", []byte("hello"), zookeeper.FlagEphemeral, cb) })
	i.Equal(zookeeper.Ok, rc)

	res := receive(i, ch)
	i.Equal(zookeeper.Ok, res.Code)
	i.Equal("ok", res.Message)
	i.Equal("/a", res.Path)

	i.run(func() { s.Get("/a", false, cb) })
	res = receive(i, ch)
	i.Equal([]byte("hello"), res.Data)
	i.True(res.Stat.CreatedInThisSession)

	// Closing the session removes its ephemeral node.
	i.run(func() { s.Close() })
	i.Equal(session.NotifyClose, receive(i, s.notes).Type)
	i.Nil(i.srv.DB().Get("/a"))
}

func (i *integrationTestSuite) TestExistsWatchFiresOnce() {
	s := i.openNew()
	other := i.openNew()
	ch, cb := results()

	i.run(func() { s.Exists("/missing", true, cb) })
	res := receive(i, ch)
	i.Equal(zookeeper.NoNode, res.Code)
	i.Equal("no node", res.Message)
	i.Nil(res.Stat)

	i.run(func() { other.Create("/missing", nil, 0, cb) })
	i.Equal(zookeeper.Ok, receive(i, ch).Code)

	n := receive(i, s.notes)
	i.Equal(session.Notification{Type: session.NotifyCreated, Path: "/missing"}, n)

	i.run(func() { other.Delete("/missing", -1, cb) })
	i.Equal(zookeeper.Ok, receive(i, ch).Code)
	i.run(func() { other.Create("/missing", nil, 0, cb) })
	i.Equal(zookeeper.Ok, receive(i, ch).Code)

	i.roundTrip(s)
	i.Empty(s.notes)
}

func (i *integrationTestSuite) TestGetACLOfDefaultNode() {
	s := i.openNew()
	ch, cb := results()

	i.run(func() { s.Create("/a", []byte("hello"), 0, cb) })
	i.Equal(zookeeper.Ok, receive(i, ch).Code)

	i.run(func() { s.GetACL("/a", cb) })
	res := receive(i, ch)
	i.Equal(zookeeper.Ok, res.Code)
	i.Equal([]session.ACLEntry{{Perms: zookeeper.PermAll, Scheme: "world", Auth: "anyone"}}, res.ACL)
	i.Require().NotNil(res.Stat)
	i.Equal(int32(0), res.Stat.Version)
}

func (i *integrationTestSuite) TestSetWithBadVersion() {
	s := i.openNew()
	ch, cb := results()

	i.run(func() { s.Create("/a", []byte("hello"), 0, cb) })
	i.Equal(zookeeper.Ok, receive(i, ch).Code)

	i.run(func() { s.Set("/a", []byte("new"), 5, cb) })
	res := receive(i, ch)
	i.Equal(zookeeper.BadVersion, res.Code)
	i.Nil(res.Stat)

	i.run(func() { s.Get("/a", false, cb) })
	res = receive(i, ch)
	i.Equal([]byte("hello"), res.Data)
	i.Equal(int32(0), res.Stat.Version)
}

func (i *integrationTestSuite) TestAuthFailureClosesSession() {
	s := i.openNew()
	ch, cb := results()

	i.run(func() { s.AddAuth("ip", []byte("127.0.0.1"), cb) })
	n := receive(i, s.notes)
	i.Equal(session.NotifyClose, n.Type)
	i.Equal(int32(zookeeper.StateAuthFailed), n.Code)
	i.Equal(zookeeper.AuthFailed, receive(i, ch).Code)

	i.run(func() {
		s.Close()
		i.Equal(zookeeper.StateClosed, s.State())
		i.Equal(zookeeper.InvalidState, s.Exists("/", false, cb))
	})
	i.Empty(s.notes)
}

func (i *integrationTestSuite) TestWatcherWithHandback() {
	s := i.openNew()
	other := i.openNew()
	ch, cb := results()
	events := make(chan session.WatchEvent, 4)

	i.run(func() { s.Create("/a", []byte("v1"), 0, cb) })
	i.Equal(zookeeper.Ok, receive(i, ch).Code)

	i.run(func() {
		s.WGet("/a", func(ev session.WatchEvent) { events <- ev }, "handback", cb)
	})
	i.Equal([]byte("v1"), receive(i, ch).Data)

	i.run(func() { other.Set("/a", []byte("v2"), -1, cb) })
	res := receive(i, ch)
	i.Equal(zookeeper.Ok, res.Code)
	i.Equal(int32(1), res.Stat.Version)

	ev := receive(i, events)
	i.Equal(session.WatchEvent{
		Type:     zookeeper.EventChanged,
		State:    zookeeper.StateConnected,
		Path:     "/a",
		Handback: "handback",
	}, ev)
}

func (i *integrationTestSuite) TestSessionExpiry() {
	s := i.openNew()
	var id int64
	i.run(func() { id = s.ClientID().ID })

	i.True(i.srv.ExpireSession(id))
	n := receive(i, s.notes)
	i.Equal(session.NotifyClose, n.Type)
	i.Equal(int32(zookeeper.StateExpired), n.Code)
}

func (i *integrationTestSuite) TestResumeSession() {
	s := i.openNew()
	var sessionID, password string
	i.run(func() { sessionID, password = s.SessionID(), s.Password() })

	resumed := i.open(session.Config{
		Connect:        "localhost:2181",
		ClientID:       &sessionID,
		ClientPassword: &password,
	})
	i.run(func() {
		i.Equal(sessionID, resumed.SessionID())
		i.Equal(password, resumed.Password())
	})
	i.Equal(session.NotifyConnecting, receive(i, s.notes).Type)
}

func (i *integrationTestSuite) TestChildrenInCreationOrder() {
	s := i.openNew()
	ch, cb := results()

	for _, path := range []string{"/p", "/p/c", "/p/a", "/p/b"} {
		i.run(func() { s.Create(path, nil, 0, cb) })
		i.Equal(zookeeper.Ok, receive(i, ch).Code)
	}

	i.run(func() { s.GetChildren2("/p", false, cb) })
	res := receive(i, ch)
	i.Equal([]string{"c", "a", "b"}, res.Children)
	i.Equal(int32(3), res.Stat.NumChildren)

	i.run(func() { s.GetChildren("/p/a", false, cb) })
	res = receive(i, ch)
	i.Equal(zookeeper.Ok, res.Code)
	i.NotNil(res.Children)
	i.Empty(res.Children)
}
