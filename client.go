package connpool

import "context"

// StoreClient is a live connection to the backing store. The pool only needs
// a liveness probe and a way to hang up; everything else (queries, commands)
// is between the caller and the concrete client type.
//
// Implementations must tolerate Close being called more than once.
type StoreClient interface {
	// Ping performs a cheap round trip against the store. A nil return means
	// the connection is usable.
	Ping(ctx context.Context) error

	// Close tears the connection down.
	Close(ctx context.Context) error
}

// Factory opens a new connection to the backing store. The pool calls it for
// the eager MinSize connections at Initialize and lazily from Acquire while
// below MaxSize.
type Factory func(ctx context.Context) (StoreClient, error)
