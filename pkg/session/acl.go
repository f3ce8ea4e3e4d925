package session

import (
	"strings"

	"github.com/Shopify/zk"

	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

// ACLEntry grants Perms to the identity Auth under the authentication Scheme.
type ACLEntry struct {
	Perms  int32
	Scheme string
	Auth   string
}

var (
	// OpenACLUnsafe gives everyone every permission.
	OpenACLUnsafe = []ACLEntry{{Perms: zookeeper.PermAll, Scheme: "world", Auth: "anyone"}}
	// ReadACLUnsafe gives everyone read access.
	ReadACLUnsafe = []ACLEntry{{Perms: zookeeper.PermRead, Scheme: "world", Auth: "anyone"}}
	// CreatorAllACL gives every permission to the identities the creator authenticated as.
	CreatorAllACL = []ACLEntry{{Perms: zookeeper.PermAll, Scheme: "auth", Auth: ""}}
)

// aclVector is an ACL in the shape the protocol library takes. It belongs to the
// pending operation it was built for and is released once that operation has
// completed.
type aclVector struct {
	entries  []zk.ACL
	released bool
}

func buildACLVector(entries []ACLEntry) *aclVector {
	v := &aclVector{entries: make([]zk.ACL, len(entries))}
	for i, e := range entries {
		v.entries[i] = zk.ACL{
			Perms:  e.Perms,
			Scheme: strings.Clone(e.Scheme),
			ID:     strings.Clone(e.Auth),
		}
	}
	return v
}

func (v *aclVector) release() {
	if v.released {
		panic("session: ACL vector released twice")
	}
	v.released = true
	v.entries = nil
}
