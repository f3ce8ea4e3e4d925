package client

import (
	"context"
	"errors"

	"github.com/Shopify/zk"

	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

var errorCodes = []struct {
	err  error
	code zookeeper.ResultCode
}{
	{zk.ErrConnectionClosed, zookeeper.ConnectionLoss},
	{zk.ErrAPIError, zookeeper.APIError},
	{zk.ErrNoNode, zookeeper.NoNode},
	{zk.ErrNoAuth, zookeeper.NoAuth},
	{zk.ErrBadVersion, zookeeper.BadVersion},
	{zk.ErrNoChildrenForEphemerals, zookeeper.NoChildrenForEphemerals},
	{zk.ErrNodeExists, zookeeper.NodeExists},
	{zk.ErrNotEmpty, zookeeper.NotEmpty},
	{zk.ErrSessionExpired, zookeeper.SessionExpired},
	{zk.ErrInvalidCallback, zookeeper.InvalidCallback},
	{zk.ErrInvalidACL, zookeeper.InvalidACL},
	{zk.ErrInvalidFlags, zookeeper.BadArguments},
	{zk.ErrBadArguments, zookeeper.BadArguments},
	{zk.ErrAuthFailed, zookeeper.AuthFailed},
	{zk.ErrClosing, zookeeper.Closing},
	{zk.ErrNothing, zookeeper.Nothing},
	{zk.ErrSessionMoved, zookeeper.SessionMoved},
	{context.Canceled, zookeeper.Closing},
	{context.DeadlineExceeded, zookeeper.OperationTimeout},
}

// codeOf maps an error returned by zk.Conn to the result code of the C client.
func codeOf(err error) zookeeper.ResultCode {
	if err == nil {
		return zookeeper.Ok
	}
	var rc zookeeper.ResultCode
	if errors.As(err, &rc) {
		return rc
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return zookeeper.SystemError
}
