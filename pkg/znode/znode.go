package znode

import (
	"slices"

	"github.com/Shopify/zk"

	"github.com/xstory/node-zookeeper/pkg/zxid"
)

type ZNodeType int

const (
	ZNodeType_STANDARD ZNodeType = iota
	ZNodeType_EPHEMERAL
)

type ZNode struct {
	// Name is the full path of the node.
	Name     string
	NodeType ZNodeType
	// Owner is the session that created an ephemeral node, 0 otherwise.
	Owner int64
	ACL   []zk.ACL
	// Data is the data stored here by the client.
	Data []byte

	Czxid    zxid.ZXID
	Mzxid    zxid.ZXID
	Pzxid    zxid.ZXID
	Ctime    int64
	Mtime    int64
	Version  int32
	Cversion int32
	Aversion int32

	Children map[string]*ZNode
	// childOrder keeps the names of the children in creation order.
	childOrder         []string
	NextSequentialNode int32
}

func NewZNode(name string, nodeType ZNodeType, owner int64, data []byte, acl []zk.ACL) *ZNode {
	return &ZNode{
		Name:     name,
		NodeType: nodeType,
		Owner:    owner,
		Data:     slices.Clone(data),
		ACL:      slices.Clone(acl),
		// Init the children to an empty map instead of nil to avoid panics when writing to
		// a nil map.
		Children: map[string]*ZNode{},
	}
}

// Stat returns the node metadata in wire form.
func (z *ZNode) Stat() *zk.Stat {
	return &zk.Stat{
		Czxid:          int64(z.Czxid),
		Mzxid:          int64(z.Mzxid),
		Ctime:          z.Ctime,
		Mtime:          z.Mtime,
		Version:        z.Version,
		Cversion:       z.Cversion,
		Aversion:       z.Aversion,
		EphemeralOwner: z.Owner,
		DataLength:     int32(len(z.Data)),
		NumChildren:    int32(len(z.Children)),
		Pzxid:          int64(z.Pzxid),
	}
}

// ChildNames returns the names of the children in the order they were created.
func (z *ZNode) ChildNames() []string {
	return slices.Clone(z.childOrder)
}

func (z *ZNode) addChild(name string, child *ZNode) {
	z.Children[name] = child
	z.childOrder = append(z.childOrder, name)
}

func (z *ZNode) removeChild(name string) {
	delete(z.Children, name)
	z.childOrder = slices.DeleteFunc(z.childOrder, func(n string) bool { return n == name })
}
