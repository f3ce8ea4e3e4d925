package zookeeper

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ResultCode is the status of a request, either returned immediately from a
// submission or delivered later to its completion. The values are the ones used by
// the ZooKeeper C client.
type ResultCode int32

const (
	Ok ResultCode = 0

	// SystemError is not returned by itself. Codes in (APIError, SystemError] are
	// system errors.
	SystemError          ResultCode = -1
	RuntimeInconsistency ResultCode = -2
	DataInconsistency    ResultCode = -3
	ConnectionLoss       ResultCode = -4
	MarshallingError     ResultCode = -5
	Unimplemented        ResultCode = -6
	OperationTimeout     ResultCode = -7
	BadArguments         ResultCode = -8
	InvalidState         ResultCode = -9

	// APIError is not returned by itself. Codes at or below it are errors reported
	// by the server.
	APIError                ResultCode = -100
	NoNode                  ResultCode = -101
	NoAuth                  ResultCode = -102
	BadVersion              ResultCode = -103
	NoChildrenForEphemerals ResultCode = -108
	NodeExists              ResultCode = -110
	NotEmpty                ResultCode = -111
	SessionExpired          ResultCode = -112
	InvalidCallback         ResultCode = -113
	InvalidACL              ResultCode = -114
	AuthFailed              ResultCode = -115
	Closing                 ResultCode = -116
	Nothing                 ResultCode = -117
	SessionMoved            ResultCode = -118
)

var codeMessages = map[ResultCode]string{
	Ok:                      "ok",
	SystemError:             "system error",
	RuntimeInconsistency:    "run time inconsistency",
	DataInconsistency:       "data inconsistency",
	ConnectionLoss:          "connection loss",
	MarshallingError:        "marshalling error",
	Unimplemented:           "unimplemented",
	OperationTimeout:        "operation timeout",
	BadArguments:            "bad arguments",
	InvalidState:            "invalid zhandle state",
	APIError:                "api error",
	NoNode:                  "no node",
	NoAuth:                  "not authenticated",
	BadVersion:              "bad version",
	NoChildrenForEphemerals: "no children for ephemerals",
	NodeExists:              "node exists",
	NotEmpty:                "not empty",
	SessionExpired:          "session expired",
	InvalidCallback:         "invalid callback",
	InvalidACL:              "invalid acl",
	AuthFailed:              "authentication failed",
	Closing:                 "zookeeper is closing",
	Nothing:                 "(not error) no server responses to process",
	SessionMoved:            "session moved to another server, so operation is ignored",
}

// Message returns the human readable text for the code.
func (c ResultCode) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "unknown error"
}

func (c ResultCode) Error() string {
	return fmt.Sprintf("zookeeper: %s (%d)", c.Message(), int32(c))
}

func (c ResultCode) IsSystemError() bool {
	return c < Ok && c > APIError
}

func (c ResultCode) IsAPIError() bool {
	return c <= APIError
}

var grpcCodes = map[ResultCode]codes.Code{
	Ok:                      codes.OK,
	RuntimeInconsistency:    codes.Internal,
	DataInconsistency:       codes.DataLoss,
	ConnectionLoss:          codes.Unavailable,
	MarshallingError:        codes.Internal,
	Unimplemented:           codes.Unimplemented,
	OperationTimeout:        codes.DeadlineExceeded,
	BadArguments:            codes.InvalidArgument,
	InvalidState:            codes.FailedPrecondition,
	NoNode:                  codes.NotFound,
	NoAuth:                  codes.PermissionDenied,
	BadVersion:              codes.Aborted,
	NoChildrenForEphemerals: codes.FailedPrecondition,
	NodeExists:              codes.AlreadyExists,
	NotEmpty:                codes.FailedPrecondition,
	SessionExpired:          codes.Unavailable,
	InvalidCallback:         codes.InvalidArgument,
	InvalidACL:              codes.InvalidArgument,
	AuthFailed:              codes.Unauthenticated,
	Closing:                 codes.Unavailable,
	SessionMoved:            codes.Unavailable,
}

// GRPCStatus lets a ResultCode cross a gRPC boundary, so that status.FromError and
// status.Code understand it.
func (c ResultCode) GRPCStatus() *status.Status {
	code, ok := grpcCodes[c]
	if !ok {
		code = codes.Unknown
	}
	return status.New(code, c.Message())
}
