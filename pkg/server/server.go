//go:build linux

// Package server is an in-memory ZooKeeper that implements zookeeper.Library. Every
// handle created from one Server sees the same tree, so several sessions can
// observe each other's changes and watches. Handles are driven through an eventfd,
// which makes them usable with any reactor.
package server

import (
	"crypto/rand"
	"errors"
	"fmt"
	mathrand "math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Shopify/zk"
	"github.com/go-logr/logr"
	"k8s.io/klog/v2"

	"github.com/xstory/node-zookeeper/pkg/znode"
	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

const (
	// tickTime bounds the negotiated session timeout to [2, 20] ticks.
	tickTime   = 2 * time.Second
	minTimeout = 2 * tickTime
	maxTimeout = 20 * tickTime

	firstSessionID int64 = 0x100000000
)

type sessionEntry struct {
	passwd  [zookeeper.PasswordLen]byte
	handle  *Handle
	expired bool
}

type Server struct {
	mu  sync.Mutex
	db  *znode.DB
	log logr.Logger

	debugLevel    zookeeper.LogLevel
	deterministic bool

	nextID   int64
	sessions map[int64]*sessionEntry
	watches  *watchTable
}

type Option func(*Server)

func WithLogger(log logr.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		db:         znode.NewDB(),
		log:        klog.Background().WithName("server"),
		debugLevel: zookeeper.LogLevelError,
		nextID:     firstSessionID,
		sessions:   map[int64]*sessionEntry{},
		watches:    newWatchTable(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) SetDebugLevel(level zookeeper.LogLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugLevel = level
}

func (s *Server) SetDeterministicConnOrder(deterministic bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deterministic = deterministic
}

// Init creates a handle. The handshake happens on the first call to Process.
func (s *Server) Init(hosts string, timeout time.Duration, id zookeeper.ClientID, watcher zookeeper.WatcherFunc) (zookeeper.Handle, error) {
	servers, err := parseHosts(hosts)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if !s.deterministic {
		mathrand.Shuffle(len(servers), func(i, j int) { servers[i], servers[j] = servers[j], servers[i] })
	}
	s.mu.Unlock()

	h, err := newHandle(s, servers[0], timeout, id, watcher)
	if err != nil {
		return nil, err
	}
	s.debug("Created handle", "server", servers[0], "timeout", timeout, "resume", !id.IsZero())
	return h, nil
}

// parseHosts splits a connect string into host:port pairs, adding the default port
// where it is missing.
func parseHosts(hosts string) ([]string, error) {
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
	if len(servers) == 0 {
		return nil, fmt.Errorf("no hosts in connect string %q", hosts)
	}
	return servers, nil
}

func (s *Server) debug(msg string, keysAndValues ...any) {
	s.mu.Lock()
	level := s.debugLevel
	s.mu.Unlock()
	if level >= zookeeper.LogLevelDebug {
		s.log.Info(msg, keysAndValues...)
	}
}

// DB exposes the tree, e.g. to seed it in tests.
func (s *Server) DB() *znode.DB {
	return s.db
}

// openSession registers a new session, or validates the one being resumed.
func (s *Server) openSession(h *Handle, id zookeeper.ClientID) (zookeeper.ClientID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !id.IsZero() {
		e, ok := s.sessions[id.ID]
		if !ok || e.expired || e.passwd != id.Passwd {
			return id, zookeeper.SessionExpired
		}
		if e.handle != nil {
			e.handle.moved()
		}
		e.handle = h
		return id, nil
	}

	id = zookeeper.ClientID{ID: s.nextID}
	s.nextID++
	if _, err := rand.Read(id.Passwd[:]); err != nil {
		return id, fmt.Errorf("generating password: %w", err)
	}
	s.sessions[id.ID] = &sessionEntry{passwd: id.Passwd, handle: h}
	return id, nil
}

// ExpireSession expires a session as if the server had stopped hearing from it.
func (s *Server) ExpireSession(id int64) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		e.expired = true
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	s.endSession(id)
	if e.handle != nil {
		e.handle.expire()
	}
	return true
}

// closeSession ends a session that was closed by its client.
func (s *Server) closeSession(id int64, h *Handle) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok && e.handle == h {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if ok && e.handle == h {
		s.endSession(id)
	}
}

func (s *Server) endSession(id int64) {
	for _, path := range s.db.EphemeralsOf(id) {
		if err := s.db.Delete(path, -1); err != nil {
			s.log.Error(err, "Failed to delete ephemeral node", "path", path)
			continue
		}
		s.triggerDelete(path)
	}
}

// Sessions returns the number of live sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) triggerCreate(path string) {
	s.watches.fire(path, zookeeper.EventCreated, existWatch)
	parent, _ := zookeeper.SplitPath(path)
	s.watches.fire(parent, zookeeper.EventChild, childWatch)
}

func (s *Server) triggerDelete(path string) {
	s.watches.fire(path, zookeeper.EventDeleted, dataWatch, existWatch, childWatch)
	parent, _ := zookeeper.SplitPath(path)
	s.watches.fire(parent, zookeeper.EventChild, childWatch)
}

func (s *Server) triggerChange(path string) {
	s.watches.fire(path, zookeeper.EventChanged, dataWatch, existWatch)
}

// codeOf extracts the result code from an error returned by the tree.
func codeOf(err error) zookeeper.ResultCode {
	if err == nil {
		return zookeeper.Ok
	}
	var rc zookeeper.ResultCode
	if errors.As(err, &rc) {
		return rc
	}
	return zookeeper.SystemError
}
