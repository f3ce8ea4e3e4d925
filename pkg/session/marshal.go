package session

import (
	"encoding/base64"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Shopify/zk"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

// NodeMetadata is the stat of a node.
type NodeMetadata struct {
	Czxid       int64
	Mzxid       int64
	Pzxid       int64
	DataLength  int32
	NumChildren int32
	Version     int32
	Cversion    int32
	Aversion    int32
	Ctime       time.Time
	Mtime       time.Time
	// EphemeralOwner is the hex id of the session owning an ephemeral node, "0" for
	// other nodes.
	EphemeralOwner       string
	CreatedInThisSession bool
}

func marshalStat(stat *zk.Stat, sessionID int64) *NodeMetadata {
	if stat == nil {
		return nil
	}
	return &NodeMetadata{
		Czxid:                stat.Czxid,
		Mzxid:                stat.Mzxid,
		Pzxid:                stat.Pzxid,
		DataLength:           stat.DataLength,
		NumChildren:          stat.NumChildren,
		Version:              stat.Version,
		Cversion:             stat.Cversion,
		Aversion:             stat.Aversion,
		Ctime:                time.UnixMilli(stat.Ctime),
		Mtime:                time.UnixMilli(stat.Mtime),
		EphemeralOwner:       zookeeper.FormatSessionID(stat.EphemeralOwner),
		CreatedInThisSession: stat.EphemeralOwner == sessionID,
	}
}

func marshalChildren(children []string) []string {
	if children == nil {
		return nil
	}
	out := make([]string, len(children))
	for i, c := range children {
		out[i] = strings.Clone(c)
	}
	return out
}

func marshalACL(acl []zk.ACL) []ACLEntry {
	if acl == nil {
		return nil
	}
	out := make([]ACLEntry, len(acl))
	for i, a := range acl {
		out[i] = ACLEntry{
			Perms:  a.Perms,
			Scheme: strings.Clone(a.Scheme),
			Auth:   strings.Clone(a.ID),
		}
	}
	return out
}

// AsStruct converts the metadata to a generic value, e.g. for JSON output.
func (m *NodeMetadata) AsStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"czxid":                m.Czxid,
		"mzxid":                m.Mzxid,
		"pzxid":                m.Pzxid,
		"dataLength":           m.DataLength,
		"numChildren":          m.NumChildren,
		"version":              m.Version,
		"cversion":             m.Cversion,
		"aversion":             m.Aversion,
		"ctime":                m.Ctime.UTC().Format(time.RFC3339Nano),
		"mtime":                m.Mtime.UTC().Format(time.RFC3339Nano),
		"ephemeralOwner":       m.EphemeralOwner,
		"createdInThisSession": m.CreatedInThisSession,
	})
}

// ACLValue converts an ACL to a generic list value, keeping its order.
func ACLValue(acl []ACLEntry) *structpb.ListValue {
	values := make([]*structpb.Value, len(acl))
	for i, a := range acl {
		values[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"perms":  structpb.NewNumberValue(float64(a.Perms)),
			"scheme": structpb.NewStringValue(a.Scheme),
			"auth":   structpb.NewStringValue(a.Auth),
		}})
	}
	return &structpb.ListValue{Values: values}
}

// ChildrenValue converts a children list to a generic list value, keeping its
// order.
func ChildrenValue(children []string) *structpb.ListValue {
	values := make([]*structpb.Value, len(children))
	for i, c := range children {
		values[i] = structpb.NewStringValue(c)
	}
	return &structpb.ListValue{Values: values}
}

// AsStruct converts the result to a generic value. Payload fields are only present
// when the operation produced them.
func (r Result) AsStruct() (*structpb.Struct, error) {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		"code":    structpb.NewNumberValue(float64(r.Code)),
		"message": structpb.NewStringValue(r.Message),
	}}
	if r.Path != "" {
		s.Fields["path"] = structpb.NewStringValue(r.Path)
	}
	if r.Data != nil {
		// Binary payloads are carried base64 encoded, like protojson does for bytes.
		if utf8.Valid(r.Data) {
			s.Fields["data"] = structpb.NewStringValue(string(r.Data))
		} else {
			s.Fields["data"] = structpb.NewStringValue(base64.StdEncoding.EncodeToString(r.Data))
		}
	}
	if r.Stat != nil {
		stat, err := r.Stat.AsStruct()
		if err != nil {
			return nil, err
		}
		s.Fields["stat"] = structpb.NewStructValue(stat)
	}
	if r.Children != nil {
		s.Fields["children"] = structpb.NewListValue(ChildrenValue(r.Children))
	}
	if r.ACL != nil {
		s.Fields["acl"] = structpb.NewListValue(ACLValue(r.ACL))
	}
	return s, nil
}
