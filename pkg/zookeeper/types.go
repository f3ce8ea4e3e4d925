package zookeeper

import (
	"github.com/Shopify/zk"
)

// OpType identifies the kind of a submitted request. The values follow the
// ZooKeeper wire opcodes.
type OpType int32

const (
	OpCreate       OpType = 1
	OpDelete       OpType = 2
	OpExists       OpType = 3
	OpGetData      OpType = 4
	OpSetData      OpType = 5
	OpGetACL       OpType = 6
	OpSetACL       OpType = 7
	OpGetChildren  OpType = 8
	OpGetChildren2 OpType = 12
	OpSetAuth      OpType = 100
)

/*
Completion callbacks. The protocol library invokes exactly one of these per
accepted request, with one callback type per result shape. Payload pointers and
slices are nil when the request failed.
*/

type VoidCompletion func(rc ResultCode)

type StringCompletion func(rc ResultCode, value *string)

type StatCompletion func(rc ResultCode, stat *zk.Stat)

type DataCompletion func(rc ResultCode, data []byte, stat *zk.Stat)

type StringsCompletion func(rc ResultCode, strings []string)

type StringsStatCompletion func(rc ResultCode, strings []string, stat *zk.Stat)

type ACLCompletion func(rc ResultCode, acl []zk.ACL, stat *zk.Stat)

// Op is a request that can be handed to Handle.Submit.
type Op interface {
	Type() OpType
}

type CreateReq struct {
	Path  string
	Data  []byte
	ACL   []zk.ACL
	Flags Flag
	Done  StringCompletion
}

type DeleteReq struct {
	Path    string
	Version int32
	Done    VoidCompletion
}

// ExistsReq checks for a node. If Watcher is set the watch is delivered to it,
// otherwise Watch selects delivery to the session watcher.
type ExistsReq struct {
	Path    string
	Watch   bool
	Watcher WatcherFunc
	Done    StatCompletion
}

type GetDataReq struct {
	Path    string
	Watch   bool
	Watcher WatcherFunc
	Done    DataCompletion
}

type SetDataReq struct {
	Path    string
	Data    []byte
	Version int32
	Done    StatCompletion
}

type GetChildrenReq struct {
	Path    string
	Watch   bool
	Watcher WatcherFunc
	Done    StringsCompletion
}

type GetChildren2Req struct {
	Path    string
	Watch   bool
	Watcher WatcherFunc
	Done    StringsStatCompletion
}

type GetACLReq struct {
	Path string
	Done ACLCompletion
}

// SetACLReq replaces the ACL of a node. The library may keep a reference to ACL
// until Done has been invoked.
type SetACLReq struct {
	Path    string
	Version int32
	ACL     []zk.ACL
	Done    VoidCompletion
}

type AddAuthReq struct {
	Scheme string
	Cert   []byte
	Done   VoidCompletion
}

func (*CreateReq) Type() OpType       { return OpCreate }
func (*DeleteReq) Type() OpType       { return OpDelete }
func (*ExistsReq) Type() OpType       { return OpExists }
func (*GetDataReq) Type() OpType      { return OpGetData }
func (*SetDataReq) Type() OpType      { return OpSetData }
func (*GetChildrenReq) Type() OpType  { return OpGetChildren }
func (*GetChildren2Req) Type() OpType { return OpGetChildren2 }
func (*GetACLReq) Type() OpType       { return OpGetACL }
func (*SetACLReq) Type() OpType       { return OpSetACL }
func (*AddAuthReq) Type() OpType      { return OpSetAuth }
