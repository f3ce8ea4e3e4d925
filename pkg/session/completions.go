package session

import (
	"github.com/Shopify/zk"
	"github.com/google/uuid"

	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

// Result is what a completion callback receives. Only the payload fields of the
// operation's result shape are set, and only when the operation succeeded.
type Result struct {
	Code    zookeeper.ResultCode
	Message string
	// Path is the name of the node that was created.
	Path     string
	Data     []byte
	Stat     *NodeMetadata
	Children []string
	ACL      []ACLEntry
}

// CompletionFunc is invoked exactly once for each accepted operation.
type CompletionFunc func(Result)

type pendingOperation struct {
	session  *Session
	callback CompletionFunc
	op       zookeeper.OpType
	// acl is owned by the operation when it mutates an ACL.
	acl *aclVector
}

// completionRegistry keeps the callbacks of the operations that were accepted by
// the protocol library and have not completed yet.
type completionRegistry struct {
	pending map[uuid.UUID]*pendingOperation
}

func newCompletionRegistry() *completionRegistry {
	return &completionRegistry{pending: make(map[uuid.UUID]*pendingOperation)}
}

func (r *completionRegistry) register(s *Session, op zookeeper.OpType, cb CompletionFunc, acl *aclVector) uuid.UUID {
	id := uuid.New()
	r.pending[id] = &pendingOperation{session: s, callback: cb, op: op, acl: acl}
	return id
}

// discard drops an operation that the protocol library rejected. Its callback is
// never invoked.
func (r *completionRegistry) discard(id uuid.UUID) {
	p, ok := r.pending[id]
	if !ok {
		return
	}
	delete(r.pending, id)
	if p.acl != nil {
		p.acl.release()
	}
}

func (r *completionRegistry) len() int {
	return len(r.pending)
}

func (r *completionRegistry) fire(id uuid.UUID, rc zookeeper.ResultCode, build func(s *Session, res *Result)) {
	p, ok := r.pending[id]
	if !ok {
		panic("session: completion fired for an unknown operation")
	}
	if p.session == nil {
		panic("session: completion fired for an operation without a session")
	}
	delete(r.pending, id)

	res := Result{Code: rc, Message: rc.Message()}
	if build != nil {
		build(p.session, &res)
	}
	if p.callback != nil {
		p.callback(res)
	}

	if p.acl != nil {
		p.acl.release()
	}
}

func (r *completionRegistry) voidCompletion(id uuid.UUID) zookeeper.VoidCompletion {
	return func(rc zookeeper.ResultCode) {
		r.fire(id, rc, nil)
	}
}

func (r *completionRegistry) stringCompletion(id uuid.UUID) zookeeper.StringCompletion {
	return func(rc zookeeper.ResultCode, value *string) {
		r.fire(id, rc, func(_ *Session, res *Result) {
			if value != nil {
				res.Path = *value
			}
		})
	}
}

func (r *completionRegistry) statCompletion(id uuid.UUID) zookeeper.StatCompletion {
	return func(rc zookeeper.ResultCode, stat *zk.Stat) {
		r.fire(id, rc, func(s *Session, res *Result) {
			if rc == zookeeper.Ok {
				res.Stat = marshalStat(stat, s.ClientID().ID)
			}
		})
	}
}

func (r *completionRegistry) dataCompletion(id uuid.UUID) zookeeper.DataCompletion {
	return func(rc zookeeper.ResultCode, data []byte, stat *zk.Stat) {
		r.fire(id, rc, func(s *Session, res *Result) {
			if rc != zookeeper.Ok {
				return
			}
			res.Data = append([]byte{}, data...)
			res.Stat = marshalStat(stat, s.ClientID().ID)
		})
	}
}

func (r *completionRegistry) stringsCompletion(id uuid.UUID) zookeeper.StringsCompletion {
	return func(rc zookeeper.ResultCode, children []string) {
		r.fire(id, rc, func(_ *Session, res *Result) {
			if rc == zookeeper.Ok {
				res.Children = marshalChildren(nonNil(children))
			}
		})
	}
}

func (r *completionRegistry) stringsStatCompletion(id uuid.UUID) zookeeper.StringsStatCompletion {
	return func(rc zookeeper.ResultCode, children []string, stat *zk.Stat) {
		r.fire(id, rc, func(s *Session, res *Result) {
			if rc != zookeeper.Ok {
				return
			}
			res.Children = marshalChildren(nonNil(children))
			res.Stat = marshalStat(stat, s.ClientID().ID)
		})
	}
}

func (r *completionRegistry) aclCompletion(id uuid.UUID) zookeeper.ACLCompletion {
	return func(rc zookeeper.ResultCode, acl []zk.ACL, stat *zk.Stat) {
		r.fire(id, rc, func(s *Session, res *Result) {
			if rc != zookeeper.Ok {
				return
			}
			res.ACL = marshalACL(acl)
			if res.ACL == nil {
				res.ACL = []ACLEntry{}
			}
			res.Stat = marshalStat(stat, s.ClientID().ID)
		})
	}
}

// nonNil makes a successful empty listing distinguishable from a failed one.
func nonNil(children []string) []string {
	if children == nil {
		return []string{}
	}
	return children
}
