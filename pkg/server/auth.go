//go:build linux

package server

import (
	"crypto/sha1"
	"encoding/base64"
	"strings"

	"github.com/Shopify/zk"

	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

// authID is an identity a session has proven with AddAuth.
type authID struct {
	scheme string
	id     string
}

// digestID turns "user:password" into the id used by digest ACLs,
// "user:base64(sha1(user:password))".
func digestID(cert []byte) (string, bool) {
	user, _, ok := strings.Cut(string(cert), ":")
	if !ok || user == "" {
		return "", false
	}
	sum := sha1.Sum(cert)
	return user + ":" + base64.StdEncoding.EncodeToString(sum[:]), true
}

// permitted reports whether acl grants perm to a session holding ids.
func permitted(acl []zk.ACL, perm int32, ids []authID) bool {
	for _, entry := range acl {
		if entry.Perms&perm == 0 {
			continue
		}
		if entry.Scheme == "world" && entry.ID == "anyone" {
			return true
		}
		for _, id := range ids {
			if entry.Scheme == id.scheme && entry.ID == id.id {
				return true
			}
		}
	}
	return false
}

// resolveACL validates an ACL and expands the "auth" scheme into the identities of
// the session.
func resolveACL(acl []zk.ACL, ids []authID) ([]zk.ACL, zookeeper.ResultCode) {
	if len(acl) == 0 {
		return nil, zookeeper.InvalidACL
	}
	resolved := make([]zk.ACL, 0, len(acl))
	for _, entry := range acl {
		if entry.Perms&^zookeeper.PermAll != 0 {
			return nil, zookeeper.InvalidACL
		}
		switch entry.Scheme {
		case "world":
			if entry.ID != "anyone" {
				return nil, zookeeper.InvalidACL
			}
			resolved = append(resolved, entry)
		case "auth":
			if len(ids) == 0 {
				return nil, zookeeper.InvalidACL
			}
			for _, id := range ids {
				resolved = append(resolved, zk.ACL{Perms: entry.Perms, Scheme: id.scheme, ID: id.id})
			}
		case "digest":
			if !strings.Contains(entry.ID, ":") {
				return nil, zookeeper.InvalidACL
			}
			resolved = append(resolved, entry)
		default:
			return nil, zookeeper.InvalidACL
		}
	}
	return resolved, zookeeper.Ok
}
