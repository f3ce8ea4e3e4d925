package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Shopify/zk"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_reactor "github.com/xstory/node-zookeeper/pkg/reactor/mocks"
	"github.com/xstory/node-zookeeper/pkg/zookeeper"
	mock_zookeeper "github.com/xstory/node-zookeeper/pkg/zookeeper/mocks"
)

const testConnect = "127.0.0.1:2181"

var testID = zookeeper.ClientID{ID: 0x1234abcd, Passwd: [16]byte{0xde, 0xad, 0xbe, 0xef}}

type fixture struct {
	lib     *mock_zookeeper.MockLibrary
	handle  *mock_zookeeper.MockHandle
	reactor *mock_reactor.MockReactor
	poller  *mock_reactor.MockPoller
	timer   *mock_reactor.MockTimer

	session       *Session
	watcher       zookeeper.WatcherFunc
	notifications []Notification
	ops           []zookeeper.Op
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		lib:     mock_zookeeper.NewMockLibrary(ctrl),
		handle:  mock_zookeeper.NewMockHandle(ctrl),
		reactor: mock_reactor.NewMockReactor(ctrl),
		poller:  mock_reactor.NewMockPoller(ctrl),
		timer:   mock_reactor.NewMockTimer(ctrl),
	}
	f.reactor.EXPECT().NewPoller(gomock.Any()).Return(f.poller).AnyTimes()
	f.reactor.EXPECT().NewTimer(gomock.Any()).Return(f.timer).AnyTimes()
	f.reactor.EXPECT().Now().Return(time.UnixMilli(1000)).AnyTimes()
	f.poller.EXPECT().Active().Return(false).AnyTimes()
	f.timer.EXPECT().Active().Return(false).AnyTimes()
	f.handle.EXPECT().Interest().Return(zookeeper.Interest{Fd: zookeeper.NoFd}, nil).AnyTimes()
	f.handle.EXPECT().ClientID().Return(testID).AnyTimes()
	f.handle.EXPECT().State().Return(zookeeper.StateConnected).AnyTimes()

	f.session = New(f.lib, f.reactor,
		WithLogger(testr.New(t)),
		WithListener(func(_ *Session, n Notification) {
			f.notifications = append(f.notifications, n)
		}))
	return f
}

// init opens the session with a default config.
func (f *fixture) init(t *testing.T) {
	f.lib.EXPECT().SetDebugLevel(zookeeper.LogLevelError)
	f.lib.EXPECT().SetDeterministicConnOrder(false)
	f.lib.EXPECT().Init(testConnect, 20*time.Second, zookeeper.ClientID{}, gomock.Any()).
		DoAndReturn(func(_ string, _ time.Duration, _ zookeeper.ClientID, w zookeeper.WatcherFunc) (zookeeper.Handle, error) {
			f.watcher = w
			return f.handle, nil
		})
	require.NoError(t, f.session.Init(Config{Connect: testConnect}))
}

// acceptAll makes the handle accept every submission and records it.
func (f *fixture) acceptAll() {
	f.handle.EXPECT().Submit(gomock.Any()).DoAndReturn(func(op zookeeper.Op) zookeeper.ResultCode {
		f.ops = append(f.ops, op)
		return zookeeper.Ok
	}).AnyTimes()
}

func (f *fixture) expectClose() {
	f.handle.EXPECT().Close().Return(nil)
}

func ptr[T any](v T) *T {
	return &v
}

func TestSession_InitValidation(t *testing.T) {
	password := strings.Repeat("0A", 16)
	tests := []struct {
		name string
		cfg  Config
		err  error
	}{
		{name: "no connect string", cfg: Config{}, err: ErrNoConnectString},
		{name: "id without password", cfg: Config{Connect: testConnect, ClientID: ptr("1f")}, err: ErrIncompleteIdentity},
		{name: "password without id", cfg: Config{Connect: testConnect, ClientPassword: &password}, err: ErrIncompleteIdentity},
		{name: "short password", cfg: Config{Connect: testConnect, ClientID: ptr("1f"), ClientPassword: ptr("0A0A")}},
		{name: "long password", cfg: Config{Connect: testConnect, ClientID: ptr("1f"), ClientPassword: ptr(password + "00")}},
		{name: "bad debug level", cfg: Config{Connect: testConnect, DebugLevel: "loud"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture(t)
			// The library is never touched, any call would fail the test.
			err := f.session.Init(test.cfg)
			require.Error(t, err)
			if test.err != nil {
				assert.ErrorIs(t, err, test.err)
			}
			assert.Equal(t, zookeeper.InvalidState, f.session.Create("/a", nil, 0, nil))
		})
	}
}

func TestSession_Init(t *testing.T) {
	f := newFixture(t)
	f.lib.EXPECT().SetDebugLevel(zookeeper.LogLevelDebug)
	f.lib.EXPECT().SetDeterministicConnOrder(true)
	f.lib.EXPECT().Init(testConnect, 5*time.Second, testID, gomock.Any()).Return(f.handle, nil)
	f.handle.EXPECT().RecvTimeout().Return(4 * time.Second)

	err := f.session.Init(Config{
		Connect:                testConnect,
		Timeout:                5000,
		DebugLevel:             "debug",
		HostOrderDeterministic: true,
		ClientID:               ptr(zookeeper.FormatSessionID(testID.ID)),
		ClientPassword:         ptr(strings.ToLower(zookeeper.FormatPassword(testID.Passwd))),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.session.refs)
	assert.Equal(t, int32(4000), f.session.Timeout())
	assert.Equal(t, zookeeper.StateConnected, f.session.State())

	assert.ErrorIs(t, f.session.Init(Config{Connect: testConnect}), ErrAlreadyInitialized)
}

func TestSession_InitFailure(t *testing.T) {
	f := newFixture(t)
	f.lib.EXPECT().SetDebugLevel(gomock.Any())
	f.lib.EXPECT().SetDeterministicConnOrder(gomock.Any())
	f.lib.EXPECT().Init(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("no hosts"))

	err := f.session.Init(Config{Connect: testConnect})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system error")

	called := false
	assert.Equal(t, zookeeper.InvalidState, f.session.Exists("/a", false, func(Result) { called = true }))
	assert.Equal(t, zookeeper.InvalidState, f.session.DeleteSync("/a", -1))
	assert.False(t, called)
	assert.Equal(t, 0, f.session.completions.len())
	assert.Equal(t, zookeeper.StateClosed, f.session.State())
	assert.Equal(t, int32(-1), f.session.Timeout())
	assert.Equal(t, 1, f.session.refs)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.expectClose()

	f.session.Close()
	f.session.Close()

	assert.Equal(t, []Notification{{Type: NotifyClose, Code: 0}}, f.notifications)
	assert.Equal(t, zookeeper.StateClosed, f.session.State())
	assert.Equal(t, int32(-1), f.session.Timeout())
	// The identity outlives the handle.
	assert.Equal(t, "1234abcd", f.session.SessionID())
	assert.Equal(t, "DEADBEEF"+strings.Repeat("0", 24), f.session.Password())

	assert.False(t, f.session.Released())
	f.session.Release()
	assert.True(t, f.session.Released())
}

func TestSession_CloseBeforeInit(t *testing.T) {
	f := newFixture(t)
	f.session.Close()
	assert.Empty(t, f.notifications)
	assert.ErrorIs(t, f.session.Init(Config{Connect: testConnect}), ErrClosed)
}

func TestSession_MainWatcher(t *testing.T) {
	f := newFixture(t)
	f.init(t)

	f.watcher(f.handle, zookeeper.EventSession, zookeeper.StateConnecting, "")
	f.watcher(f.handle, zookeeper.EventSession, zookeeper.StateAssociating, "")
	f.watcher(f.handle, zookeeper.EventSession, zookeeper.StateConnected, "")
	f.watcher(f.handle, zookeeper.EventCreated, zookeeper.StateConnected, "/a")
	f.watcher(f.handle, zookeeper.EventDeleted, zookeeper.StateConnected, "/b")
	f.watcher(f.handle, zookeeper.EventChanged, zookeeper.StateConnected, "/c")
	f.watcher(f.handle, zookeeper.EventChild, zookeeper.StateConnected, "/d")
	f.watcher(f.handle, zookeeper.EventNotWatching, zookeeper.StateConnected, "/e")
	f.watcher(f.handle, zookeeper.EventType(42), zookeeper.StateConnected, "/f")

	assert.Equal(t, []Notification{
		{Type: NotifyConnecting},
		{Type: NotifyConnecting},
		{Type: NotifyConnect},
		{Type: NotifyCreated, Path: "/a"},
		{Type: NotifyDeleted, Path: "/b"},
		{Type: NotifyChanged, Path: "/c"},
		{Type: NotifyChild, Path: "/d"},
		{Type: NotifyNotWatching, Path: "/e"},
	}, f.notifications)
	assert.Equal(t, testID, f.session.myid)
}

func TestSession_UnrecoverableStateCloses(t *testing.T) {
	tests := []struct {
		name  string
		state zookeeper.State
	}{
		{name: "auth failed", state: zookeeper.StateAuthFailed},
		{name: "expired", state: zookeeper.StateExpired},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture(t)
			f.init(t)
			f.expectClose()

			f.watcher(f.handle, zookeeper.EventSession, test.state, "")
			f.session.Close()

			assert.Equal(t, []Notification{{Type: NotifyClose, Code: int32(test.state)}}, f.notifications)
			assert.Equal(t, 1, f.session.refs)
		})
	}
}

func TestSession_SubmitRejected(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.handle.EXPECT().Submit(gomock.Any()).Return(zookeeper.MarshallingError).Times(3)

	called := false
	cb := func(Result) { called = true }
	assert.Equal(t, zookeeper.MarshallingError, f.session.Create("/a", nil, 0, cb))
	assert.Equal(t, zookeeper.MarshallingError, f.session.SetACL("/a", -1, OpenACLUnsafe, cb))
	assert.Equal(t, zookeeper.MarshallingError, f.session.WExists("/a", func(WatchEvent) { called = true }, nil, cb))

	assert.False(t, called)
	assert.Equal(t, 0, f.session.completions.len())
	assert.Equal(t, 0, f.session.watches.len())
}

func TestSession_CompletionsFireExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.acceptAll()

	counts := map[string]int{}
	results := map[string]Result{}
	record := func(name string) CompletionFunc {
		return func(r Result) {
			counts[name]++
			results[name] = r
		}
	}

	stat := &zk.Stat{Version: 3, EphemeralOwner: testID.ID, Ctime: 1500, Mtime: 2500}
	require.Equal(t, zookeeper.Ok, f.session.Create("/a", []byte("x"), zookeeper.FlagEphemeral, record("create")))
	require.Equal(t, zookeeper.Ok, f.session.Delete("/a", 1, record("delete")))
	require.Equal(t, zookeeper.Ok, f.session.Exists("/a", true, record("exists")))
	require.Equal(t, zookeeper.Ok, f.session.Get("/a", false, record("get")))
	require.Equal(t, zookeeper.Ok, f.session.Set("/a", []byte("y"), 5, record("set")))
	require.Equal(t, zookeeper.Ok, f.session.GetChildren("/a", false, record("children")))
	require.Equal(t, zookeeper.Ok, f.session.GetChildren2("/a", false, record("children2")))
	require.Equal(t, zookeeper.Ok, f.session.GetACL("/a", record("getacl")))
	require.Equal(t, zookeeper.Ok, f.session.SetACL("/a", 0, ReadACLUnsafe, record("setacl")))
	require.Equal(t, zookeeper.Ok, f.session.AddAuth("digest", []byte("u:p"), record("auth")))
	require.Len(t, f.ops, 10)
	require.Equal(t, 10, f.session.completions.len())

	var acl *aclVector
	for _, p := range f.session.completions.pending {
		if p.op == zookeeper.OpSetACL {
			acl = p.acl
		}
	}
	require.NotNil(t, acl)

	create := f.ops[0].(*zookeeper.CreateReq)
	assert.Equal(t, zookeeper.FlagEphemeral, create.Flags)
	assert.Equal(t, []zk.ACL{{Perms: zookeeper.PermAll, Scheme: "world", ID: "anyone"}}, create.ACL)
	assert.True(t, f.ops[2].(*zookeeper.ExistsReq).Watch)
	assert.Equal(t, []zk.ACL{{Perms: zookeeper.PermRead, Scheme: "world", ID: "anyone"}}, f.ops[8].(*zookeeper.SetACLReq).ACL)

	create.Done(zookeeper.Ok, ptr("/a"))
	f.ops[1].(*zookeeper.DeleteReq).Done(zookeeper.NoNode)
	f.ops[2].(*zookeeper.ExistsReq).Done(zookeeper.NoNode, nil)
	f.ops[3].(*zookeeper.GetDataReq).Done(zookeeper.Ok, []byte("x"), stat)
	f.ops[4].(*zookeeper.SetDataReq).Done(zookeeper.BadVersion, nil)
	f.ops[5].(*zookeeper.GetChildrenReq).Done(zookeeper.Ok, nil)
	f.ops[6].(*zookeeper.GetChildren2Req).Done(zookeeper.Ok, []string{"b", "a"}, stat)
	f.ops[7].(*zookeeper.GetACLReq).Done(zookeeper.Ok, []zk.ACL{{Perms: 31, Scheme: "world", ID: "anyone"}}, stat)
	f.ops[8].(*zookeeper.SetACLReq).Done(zookeeper.NoAuth)
	f.ops[9].(*zookeeper.AddAuthReq).Done(zookeeper.Ok)

	for name, n := range counts {
		assert.Equal(t, 1, n, name)
	}
	assert.Len(t, counts, 10)
	assert.Equal(t, 0, f.session.completions.len())
	assert.True(t, acl.released)

	assert.Equal(t, Result{Code: zookeeper.Ok, Message: "ok", Path: "/a"}, results["create"])
	assert.Equal(t, Result{Code: zookeeper.NoNode, Message: "no node"}, results["delete"])
	assert.Equal(t, Result{Code: zookeeper.NoNode, Message: "no node"}, results["exists"])
	assert.Equal(t, Result{Code: zookeeper.BadVersion, Message: "bad version"}, results["set"])
	assert.Equal(t, []string{}, results["children"].Children)
	assert.Equal(t, []string{"b", "a"}, results["children2"].Children)
	assert.Equal(t, []ACLEntry{{Perms: 31, Scheme: "world", Auth: "anyone"}}, results["getacl"].ACL)
	assert.Equal(t, zookeeper.NoAuth, results["setacl"].Code)

	get := results["get"]
	assert.Equal(t, []byte("x"), get.Data)
	require.NotNil(t, get.Stat)
	assert.True(t, get.Stat.CreatedInThisSession)
	assert.Equal(t, int32(3), get.Stat.Version)
	assert.Equal(t, time.UnixMilli(1500), get.Stat.Ctime)

	// A second delivery is a programming error in the protocol library.
	assert.Panics(t, func() { f.ops[9].(*zookeeper.AddAuthReq).Done(zookeeper.Ok) })
}

func TestSession_LateCompletionAfterClose(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.acceptAll()

	var got []Result
	require.Equal(t, zookeeper.Ok, f.session.Get("/a", false, func(r Result) { got = append(got, r) }))
	f.expectClose()
	f.session.Close()

	f.ops[0].(*zookeeper.GetDataReq).Done(zookeeper.Closing, nil, nil)
	assert.Equal(t, []Result{{Code: zookeeper.Closing, Message: "zookeeper is closing"}}, got)
	assert.Equal(t, zookeeper.InvalidState, f.session.Get("/a", false, nil))
}

func TestSession_Watchers(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.acceptAll()

	var events []WatchEvent
	watch := func(e WatchEvent) { events = append(events, e) }
	require.Equal(t, zookeeper.Ok, f.session.WExists("/a", watch, "hb", nil))
	req := f.ops[0].(*zookeeper.ExistsReq)
	require.NotNil(t, req.Watcher)
	assert.False(t, req.Watch)

	// A missing node still gets an exists watch.
	req.Done(zookeeper.NoNode, nil)
	assert.Equal(t, 1, f.session.watches.len())

	req.Watcher(f.handle, zookeeper.EventSession, zookeeper.StateConnecting, "")
	req.Watcher(f.handle, zookeeper.EventCreated, zookeeper.StateConnected, "/a")
	req.Watcher(f.handle, zookeeper.EventCreated, zookeeper.StateConnected, "/a")

	assert.Equal(t, []WatchEvent{
		{Type: zookeeper.EventSession, State: zookeeper.StateConnecting, Handback: "hb"},
		{Type: zookeeper.EventCreated, State: zookeeper.StateConnected, Path: "/a", Handback: "hb"},
	}, events)
	assert.Equal(t, 0, f.session.watches.len())
}

func TestSession_WatcherWithoutHandback(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.acceptAll()

	var events []WatchEvent
	require.Equal(t, zookeeper.Ok, f.session.WGetChildren2("/a", func(e WatchEvent) { events = append(events, e) }, nil, nil))
	req := f.ops[0].(*zookeeper.GetChildren2Req)
	req.Done(zookeeper.Ok, []string{}, &zk.Stat{})
	req.Watcher(f.handle, zookeeper.EventChild, zookeeper.StateConnected, "/a")

	require.Len(t, events, 1)
	assert.Nil(t, events[0].Handback)
}

func TestSession_WatcherDroppedWhenNotSet(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.acceptAll()

	require.Equal(t, zookeeper.Ok, f.session.WGet("/missing", func(WatchEvent) {}, nil, nil))
	require.Equal(t, zookeeper.Ok, f.session.WGetChildren("/missing", func(WatchEvent) {}, nil, nil))
	assert.Equal(t, 2, f.session.watches.len())

	f.ops[0].(*zookeeper.GetDataReq).Done(zookeeper.NoNode, nil, nil)
	f.ops[1].(*zookeeper.GetChildrenReq).Done(zookeeper.NoNode, nil)
	assert.Equal(t, 0, f.session.watches.len())
}

func TestSession_WatcherAfterExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	expired := mock_zookeeper.NewMockHandle(ctrl)
	expired.EXPECT().State().Return(zookeeper.StateExpired).AnyTimes()

	f := newFixture(t)
	f.init(t)
	f.acceptAll()

	called := false
	require.Equal(t, zookeeper.Ok, f.session.WGet("/a", func(WatchEvent) { called = true }, nil, nil))
	w := f.ops[0].(*zookeeper.GetDataReq).Watcher
	w(expired, zookeeper.EventDeleted, zookeeper.StateExpired, "/a")
	w(expired, zookeeper.EventSession, zookeeper.StateExpired, "")
	assert.False(t, called)
}

func TestSession_WatcherAfterClose(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.acceptAll()

	called := false
	require.Equal(t, zookeeper.Ok, f.session.WGet("/a", func(WatchEvent) { called = true }, nil, nil))
	f.expectClose()
	f.session.Close()
	assert.Equal(t, 0, f.session.watches.len())

	f.ops[0].(*zookeeper.GetDataReq).Watcher(f.handle, zookeeper.EventChanged, zookeeper.StateConnected, "/a")
	assert.False(t, called)
}

func TestSession_WatcherForeignHandle(t *testing.T) {
	ctrl := gomock.NewController(t)
	other := mock_zookeeper.NewMockHandle(ctrl)
	other.EXPECT().State().Return(zookeeper.StateConnected).AnyTimes()

	f := newFixture(t)
	f.init(t)
	f.acceptAll()

	require.Equal(t, zookeeper.Ok, f.session.WGet("/a", func(WatchEvent) {}, nil, nil))
	w := f.ops[0].(*zookeeper.GetDataReq).Watcher
	assert.Panics(t, func() { w(other, zookeeper.EventChanged, zookeeper.StateConnected, "/a") })
}

func TestSession_DeleteSync(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	f.handle.EXPECT().Delete("/a", int32(2)).Return(zookeeper.BadVersion)
	assert.Equal(t, zookeeper.BadVersion, f.session.DeleteSync("/a", 2))
}
