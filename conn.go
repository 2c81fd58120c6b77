package connpool

import (
	"time"

	"github.com/google/uuid"
)

// Conn is a connection lent out by the pool. It must be returned with
// Pool.Release (or used through Pool.WithConn, which releases for you).
type Conn struct {
	// id identifies the connection inside the pool's bookkeeping. It is never
	// exposed to callers.
	id string

	client    StoreClient
	createdAt time.Time

	// idleSince is meaningful only while the connection sits in the idle
	// stack; the pool reads and writes it under its mutex.
	idleSince time.Time

	// inUse is true between Acquire and Release, guarded by the pool mutex.
	inUse bool

	// releasing is true while a Release is probing the connection outside
	// the pool mutex, so a concurrent Release of the same handle is a
	// no-op. Guarded by the pool mutex.
	releasing bool
}

func newConn(client StoreClient) *Conn {
	return &Conn{
		id:        uuid.NewString(),
		client:    client,
		createdAt: time.Now(),
	}
}

// Client returns the underlying store client for issuing queries or commands.
// The caller must not Close it; the pool owns the connection lifecycle.
func (c *Conn) Client() StoreClient {
	return c.client
}

// CreatedAt reports when the underlying connection was opened.
func (c *Conn) CreatedAt() time.Time {
	return c.createdAt
}
