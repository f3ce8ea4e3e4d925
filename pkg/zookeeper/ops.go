package zookeeper

// CheckOp rejects a request that cannot be queued: InvalidCallback when it has no
// completion, BadArguments when its path is not valid.
func CheckOp(op Op) ResultCode {
	var path string
	var hasDone bool
	switch op := op.(type) {
	case *CreateReq:
		path, hasDone = op.Path, op.Done != nil
	case *DeleteReq:
		path, hasDone = op.Path, op.Done != nil
	case *ExistsReq:
		path, hasDone = op.Path, op.Done != nil
	case *GetDataReq:
		path, hasDone = op.Path, op.Done != nil
	case *SetDataReq:
		path, hasDone = op.Path, op.Done != nil
	case *GetChildrenReq:
		path, hasDone = op.Path, op.Done != nil
	case *GetChildren2Req:
		path, hasDone = op.Path, op.Done != nil
	case *GetACLReq:
		path, hasDone = op.Path, op.Done != nil
	case *SetACLReq:
		path, hasDone = op.Path, op.Done != nil
	case *AddAuthReq:
		if op.Done == nil {
			return InvalidCallback
		}
		return Ok
	default:
		return Unimplemented
	}
	if !hasDone {
		return InvalidCallback
	}
	if ValidatePath(path) != nil {
		return BadArguments
	}
	return Ok
}

// FailOp invokes the completion of op with rc and no payload.
func FailOp(op Op, rc ResultCode) {
	switch op := op.(type) {
	case *CreateReq:
		op.Done(rc, nil)
	case *DeleteReq:
		op.Done(rc)
	case *ExistsReq:
		op.Done(rc, nil)
	case *GetDataReq:
		op.Done(rc, nil, nil)
	case *SetDataReq:
		op.Done(rc, nil)
	case *GetChildrenReq:
		op.Done(rc, nil)
	case *GetChildren2Req:
		op.Done(rc, nil, nil)
	case *GetACLReq:
		op.Done(rc, nil, nil)
	case *SetACLReq:
		op.Done(rc)
	case *AddAuthReq:
		op.Done(rc)
	}
}
