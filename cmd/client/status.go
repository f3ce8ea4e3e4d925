package main

import (
	"google.golang.org/grpc/status"

	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

// exitBase is added to the gRPC code of a failed operation to form the exit status,
// so scripts can tell a missing node (69) from a lost connection (78).
const exitBase = 64

// exitStatus returns the process exit status for the result of an operation.
func exitStatus(rc zookeeper.ResultCode) int {
	if rc == zookeeper.Ok {
		return 0
	}
	return exitBase + int(status.Convert(rc).Code())
}
