//go:build linux

// Package client implements zookeeper.Library on top of github.com/Shopify/zk, so a
// session can talk to a real ensemble.
package client

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Shopify/zk"
	"github.com/go-logr/logr"
	"k8s.io/klog/v2"

	"github.com/xstory/node-zookeeper/pkg/utils"
	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

// conn is the part of *zk.Conn used by a Handle.
type conn interface {
	CreateCtx(ctx context.Context, path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	DeleteCtx(ctx context.Context, path string, version int32) error
	ExistsCtx(ctx context.Context, path string) (bool, *zk.Stat, error)
	ExistsWCtx(ctx context.Context, path string) (bool, *zk.Stat, <-chan zk.Event, error)
	GetCtx(ctx context.Context, path string) ([]byte, *zk.Stat, error)
	GetWCtx(ctx context.Context, path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
	SetCtx(ctx context.Context, path string, data []byte, version int32) (*zk.Stat, error)
	ChildrenCtx(ctx context.Context, path string) ([]string, *zk.Stat, error)
	ChildrenWCtx(ctx context.Context, path string) ([]string, *zk.Stat, <-chan zk.Event, error)
	GetACLCtx(ctx context.Context, path string) ([]zk.ACL, *zk.Stat, error)
	SetACLCtx(ctx context.Context, path string, acl []zk.ACL, version int32) (*zk.Stat, error)
	AddAuthCtx(ctx context.Context, scheme string, auth []byte) error
	SessionID() int64
	Close()
}

// connectParams is everything needed to open a zk.Conn.
type connectParams struct {
	servers  []string
	timeout  time.Duration
	hosts    zk.HostProvider
	dialer   zk.Dialer
	logger   zk.Logger
	logInfo  bool
	callback zk.EventCallback
}

type connectFunc func(p connectParams) (conn, error)

func connectZK(p connectParams) (conn, error) {
	c, _, err := zk.Connect(p.servers, p.timeout,
		zk.WithHostProvider(p.hosts),
		zk.WithDialer(p.dialer),
		zk.WithLogger(p.logger),
		zk.WithLogInfo(p.logInfo),
		zk.WithEventCallback(p.callback),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type Library struct {
	log     logr.Logger
	dialer  zk.Dialer
	connect connectFunc

	mu            sync.Mutex
	level         zookeeper.LogLevel
	deterministic bool
}

type Option func(*Library)

func WithLogger(log logr.Logger) Option {
	return func(l *Library) {
		l.log = log
	}
}

// WithDialer replaces the dialer used to reach the servers.
func WithDialer(dialer zk.Dialer) Option {
	return func(l *Library) {
		l.dialer = dialer
	}
}

func New(opts ...Option) *Library {
	l := &Library{
		log:     klog.Background().WithName("zk"),
		dialer:  net.DialTimeout,
		connect: connectZK,
		level:   zookeeper.LogLevelError,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Library) SetDebugLevel(level zookeeper.LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Library) SetDeterministicConnOrder(deterministic bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deterministic = deterministic
}

func (l *Library) Init(hosts string, timeout time.Duration, id zookeeper.ClientID, watcher zookeeper.WatcherFunc) (zookeeper.Handle, error) {
	servers := splitHosts(hosts)
	if len(servers) == 0 {
		return nil, fmt.Errorf("no hosts in connect string %q", hosts)
	}
	if !id.IsZero() {
		// zk.Conn always starts a new session.
		l.log.Info("Session resumption is not supported, starting a new session", "sessionID", id.String())
	}

	l.mu.Lock()
	level, deterministic := l.level, l.deterministic
	l.mu.Unlock()

	notifier, err := utils.NewNotifier()
	if err != nil {
		return nil, err
	}
	h := newHandle(l.log.WithValues("hosts", hosts), notifier, timeout, watcher)
	c, err := l.connect(connectParams{
		servers:  servers,
		timeout:  timeout,
		hosts:    newHostProvider(servers, deterministic),
		dialer:   l.dialer,
		logger:   zkLogger{log: l.log, level: level},
		logInfo:  level >= zookeeper.LogLevelInfo,
		callback: h.onEvent,
	})
	if err != nil {
		notifier.Close()
		return nil, err
	}
	h.start(c)
	return h, nil
}

// splitHosts splits a connect string into host:port pairs, adding the default port
// where it is missing.
func splitHosts(hosts string) []string {
	var servers []string
	for _, host := range strings.Split(hosts, ",") {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(host); err != nil {
			host = net.JoinHostPort(host, strconv.Itoa(zk.DefaultPort))
		}
		servers = append(servers, host)
	}
	return servers
}

// zkLogger forwards the messages of zk.Conn to logr.
type zkLogger struct {
	log   logr.Logger
	level zookeeper.LogLevel
}

func (z zkLogger) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if z.level >= zookeeper.LogLevelDebug {
		z.log.Info(msg)
		return
	}
	z.log.V(2).Info(msg)
}
