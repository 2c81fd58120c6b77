package connpool

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PGClient is a StoreClient backed by a single PostgreSQL connection.
type PGClient struct {
	conn *pgx.Conn
}

// Conn returns the underlying pgx connection for issuing queries.
func (c *PGClient) Conn() *pgx.Conn {
	return c.conn
}

// Ping performs an empty round trip against the server.
func (c *PGClient) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the connection. Closing an already-closed connection is a
// no-op.
func (c *PGClient) Close(ctx context.Context) error {
	if c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close(ctx)
}

// NewPGFactory returns a Factory that opens PostgreSQL connections using the
// given connection string (URL or keyword/value DSN).
func NewPGFactory(connString string) Factory {
	return func(ctx context.Context) (StoreClient, error) {
		conn, err := pgx.Connect(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return &PGClient{conn: conn}, nil
	}
}

// NewPGFactoryFromConfig returns a Factory that opens PostgreSQL connections
// from an already-parsed pgx configuration. The config is copied per
// connection, so the caller may keep mutating the original.
func NewPGFactoryFromConfig(config *pgx.ConnConfig) Factory {
	return func(ctx context.Context) (StoreClient, error) {
		conn, err := pgx.ConnectConfig(ctx, config.Copy())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return &PGClient{conn: conn}, nil
	}
}
