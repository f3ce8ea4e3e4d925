package znode

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Shopify/zk"

	"github.com/xstory/node-zookeeper/pkg/zookeeper"
	"github.com/xstory/node-zookeeper/pkg/zxid"
)

// DB is the tree of nodes. It also controls the locking mechanism, so it can be
// abstracted away from the caller. Errors returned by its methods wrap the
// zookeeper.ResultCode a server would answer with.
type DB struct {
	root  *ZNode
	mu    *sync.RWMutex
	zxids *zxid.Generator
	now   func() time.Time
}

func NewDB() *DB {
	root := NewZNode("/", ZNodeType_STANDARD, 0, nil, []zk.ACL{{Perms: zookeeper.PermAll, Scheme: "world", ID: "anyone"}})
	return &DB{
		root:  root,
		mu:    &sync.RWMutex{},
		zxids: zxid.NewGenerator(1),
		now:   time.Now,
	}
}

// Get returns a snapshot of the node at path, or nil if there is none.
func (d *DB) Get(path string) *ZNode {
	d.mu.RLock()
	defer d.mu.RUnlock()

	node := findZNode(d.root, splitPathIntoNodeNames(path))
	if node == nil {
		return nil
	}
	return node.snapshot()
}

// Stat returns the stat of the node at path, or nil if there is none.
func (d *DB) Stat(path string) *zk.Stat {
	d.mu.RLock()
	defer d.mu.RUnlock()

	node := findZNode(d.root, splitPathIntoNodeNames(path))
	if node == nil {
		return nil
	}
	return node.Stat()
}

func (z *ZNode) snapshot() *ZNode {
	c := *z
	c.Data = slices.Clone(z.Data)
	c.ACL = slices.Clone(z.ACL)
	c.childOrder = slices.Clone(z.childOrder)
	c.Children = make(map[string]*ZNode, len(z.Children))
	for name, child := range z.Children {
		c.Children[name] = child
	}
	return &c
}

// findZNode will search down to the tree and return the node specified by the names.
// If the node could not be found, then we will return nil.
func findZNode(start *ZNode, names []string) *ZNode {
	node := start
	for _, name := range names {
		z, ok := node.Children[name]
		if !ok {
			return nil
		}
		node = z
	}
	return node
}

func splitPathIntoNodeNames(path string) []string {
	if path == "/" {
		return nil
	}
	// Since we have a leading /, then we expect the first name to be empty.
	return strings.Split(path, "/")[1:]
}

// Create adds a node and returns its final name, which has a counter appended
// when flags contain FlagSequence.
func (d *DB) Create(path string, data []byte, acl []zk.ACL, flags zookeeper.Flag, owner int64) (*ZNode, error) {
	if err := zookeeper.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("%w: %w", zookeeper.BadArguments, err)
	}
	if path == "/" {
		return nil, fmt.Errorf("root already exists: %w", zookeeper.NodeExists)
	}
	if len(acl) == 0 {
		return nil, fmt.Errorf("empty acl: %w", zookeeper.InvalidACL)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	names := splitPathIntoNodeNames(path)
	// Search down the tree until we hit the parent where we'll be creating this new node.
	parent := findZNode(d.root, names[:len(names)-1])
	if parent == nil {
		return nil, fmt.Errorf("at least one of the ancestors of [%s] is missing: %w", path, zookeeper.NoNode)
	}
	if parent.NodeType == ZNodeType_EPHEMERAL {
		return nil, fmt.Errorf("ephemeral nodes cannot have children: %w", zookeeper.NoChildrenForEphemerals)
	}

	newName := names[len(names)-1]
	if flags&zookeeper.FlagSequence != 0 {
		newName = fmt.Sprintf("%s%010d", newName, parent.NextSequentialNode)
	}
	if _, ok := parent.Children[newName]; ok {
		return nil, fmt.Errorf("node [%s] already exists at path [%s]: %w", newName, path, zookeeper.NodeExists)
	}

	nodeType := ZNodeType_STANDARD
	if flags&zookeeper.FlagEphemeral != 0 {
		nodeType = ZNodeType_EPHEMERAL
	} else {
		owner = 0
	}

	z := d.zxids.Next()
	now := d.now().UnixMilli()
	newNode := NewZNode(newFullName(newName, names[:len(names)-1]), nodeType, owner, data, acl)
	newNode.Czxid, newNode.Mzxid, newNode.Pzxid = z, z, z
	newNode.Ctime, newNode.Mtime = now, now

	parent.addChild(newName, newNode)
	parent.Cversion++
	parent.Pzxid = z
	// Make sure to increment the counter so the next sequential node will have the next number.
	parent.NextSequentialNode++
	return newNode.snapshot(), nil
}

func newFullName(nodeName string, ancestorsNames []string) string {
	nodePath := "/" + nodeName
	if len(ancestorsNames) > 0 {
		return "/" + strings.Join(ancestorsNames, "/") + nodePath
	}
	return nodePath
}

// Delete removes a leaf node if it is at the expected version.
func (d *DB) Delete(path string, version int32) error {
	if err := zookeeper.ValidatePath(path); err != nil {
		return fmt.Errorf("%w: %w", zookeeper.BadArguments, err)
	}
	if path == "/" {
		return fmt.Errorf("the root cannot be deleted: %w", zookeeper.BadArguments)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	names := splitPathIntoNodeNames(path)
	parent := findZNode(d.root, names[:len(names)-1])
	if parent == nil {
		return fmt.Errorf("at least one of the ancestors of [%s] is missing: %w", path, zookeeper.NoNode)
	}
	nameToDelete := names[len(names)-1]
	node, ok := parent.Children[nameToDelete]
	if !ok {
		return fmt.Errorf("node [%s] does not exist: %w", path, zookeeper.NoNode)
	}
	if !isValidVersion(version, node.Version) {
		return fmt.Errorf("invalid version: expected [%d], actual [%d]: %w", version, node.Version, zookeeper.BadVersion)
	}
	if len(node.Children) > 0 {
		return fmt.Errorf("only leaf nodes can be deleted: %w", zookeeper.NotEmpty)
	}

	parent.removeChild(nameToDelete)
	parent.Cversion++
	parent.Pzxid = d.zxids.Next()
	return nil
}

// SetData replaces the data of a node if it is at the expected version.
func (d *DB) SetData(path string, data []byte, version int32) (*zk.Stat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	node := findZNode(d.root, splitPathIntoNodeNames(path))
	if node == nil {
		return nil, fmt.Errorf("node [%s] does not exist: %w", path, zookeeper.NoNode)
	}
	if !isValidVersion(version, node.Version) {
		return nil, fmt.Errorf("invalid version: expected [%d], actual [%d]: %w", version, node.Version, zookeeper.BadVersion)
	}
	node.Data = slices.Clone(data)
	node.Version++
	node.Mzxid = d.zxids.Next()
	node.Mtime = d.now().UnixMilli()
	return node.Stat(), nil
}

// SetACL replaces the ACL of a node if its ACL is at the expected version.
func (d *DB) SetACL(path string, acl []zk.ACL, version int32) (*zk.Stat, error) {
	if len(acl) == 0 {
		return nil, fmt.Errorf("empty acl: %w", zookeeper.InvalidACL)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	node := findZNode(d.root, splitPathIntoNodeNames(path))
	if node == nil {
		return nil, fmt.Errorf("node [%s] does not exist: %w", path, zookeeper.NoNode)
	}
	if !isValidVersion(version, node.Aversion) {
		return nil, fmt.Errorf("invalid acl version: expected [%d], actual [%d]: %w", version, node.Aversion, zookeeper.BadVersion)
	}
	node.ACL = slices.Clone(acl)
	node.Aversion++
	return node.Stat(), nil
}

// EphemeralsOf returns the paths of the ephemeral nodes owned by a session, deepest
// first.
func (d *DB) EphemeralsOf(owner int64) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var paths []string
	var walk func(n *ZNode)
	walk = func(n *ZNode) {
		for _, name := range n.childOrder {
			child := n.Children[name]
			walk(child)
			if child.NodeType == ZNodeType_EPHEMERAL && child.Owner == owner {
				paths = append(paths, child.Name)
			}
		}
	}
	walk(d.root)
	return paths
}

// isValidVersion is used for conditional checks for update/delete operations. If the passed in version
// is -1, then skip the version check. Otherwise, make sure the versions are equal.
func isValidVersion(expected, actual int32) bool {
	return expected == -1 || expected == actual
}
