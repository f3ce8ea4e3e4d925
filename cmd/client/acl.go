package main

import (
	"fmt"
	"strings"

	"github.com/xstory/node-zookeeper/pkg/session"
	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

var permLetters = map[rune]int32{
	'c': zookeeper.PermCreate,
	'd': zookeeper.PermDelete,
	'r': zookeeper.PermRead,
	'w': zookeeper.PermWrite,
	'a': zookeeper.PermAdmin,
}

// parseACL reads a comma separated list of scheme:id:perms entries, e.g.
// "world:anyone:r,digest:bob:xyz=:cdrwa". The id may itself contain colons.
func parseACL(s string) ([]session.ACLEntry, error) {
	var acl []session.ACLEntry
	for _, entry := range strings.Split(s, ",") {
		scheme, rest, ok := strings.Cut(entry, ":")
		i := strings.LastIndex(rest, ":")
		if !ok || i < 0 {
			return nil, fmt.Errorf("acl entry %q is not scheme:id:perms", entry)
		}
		perms, err := parsePerms(rest[i+1:])
		if err != nil {
			return nil, err
		}
		acl = append(acl, session.ACLEntry{Perms: perms, Scheme: scheme, Auth: rest[:i]})
	}
	return acl, nil
}

func parsePerms(s string) (int32, error) {
	var perms int32
	for _, c := range s {
		p, ok := permLetters[c]
		if !ok {
			return 0, fmt.Errorf("unknown permission %q", c)
		}
		perms |= p
	}
	return perms, nil
}
