package connpool

import "errors"

// ErrAcquireTimeout is returned by Acquire when no connection became available
// within Config.AcquireTimeout. Callers may retry.
var ErrAcquireTimeout = errors.New("connpool: timed out waiting for a connection")

// ErrPoolClosed is returned to callers that were waiting in Acquire when the
// pool was shut down underneath them.
var ErrPoolClosed = errors.New("connpool: pool is shut down")
