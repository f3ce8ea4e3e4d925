package client

import (
	"errors"
	"sync"
)

// hostProvider walks the servers in a fixed order. zk.Connect shuffles the list it
// passes to Init, so when the order must be deterministic the list given at
// construction is kept instead.
type hostProvider struct {
	mu            sync.Mutex
	servers       []string
	deterministic bool
	curr          int
	last          int
}

func newHostProvider(servers []string, deterministic bool) *hostProvider {
	return &hostProvider{
		servers:       append([]string(nil), servers...),
		deterministic: deterministic,
		curr:          -1,
		last:          -1,
	}
}

func (p *hostProvider) Init(servers []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.deterministic {
		p.servers = append([]string(nil), servers...)
	}
	if len(p.servers) == 0 {
		return errors.New("no hosts found")
	}
	return nil
}

func (p *hostProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.servers)
}

// Next returns the next server. retryStart is true once every server has been
// tried since the last successful connection.
func (p *hostProvider) Next() (server string, retryStart bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.curr = (p.curr + 1) % len(p.servers)
	retryStart = p.curr == p.last
	if p.last == -1 {
		p.last = 0
	}
	return p.servers[p.curr], retryStart
}

func (p *hostProvider) Connected() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = p.curr
}
