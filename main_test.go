package connpool_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/yuku/connpool"
	"github.com/yuku/connpool/internal/fakestore"
)

// newTestPool returns a pool backed by a fresh fake store with quiet logging.
// The returned config has already been applied; tests that need different
// sizing should mutate cfg before calling this and pass it in.
func newTestPool(t *testing.T, cfg *connpool.Config) (*connpool.Pool, *fakestore.Store) {
	t.Helper()

	store := fakestore.NewStore()
	if cfg == nil {
		cfg = connpool.DefaultConfig()
	}
	cfg.Factory = store.Factory()
	cfg.Logger = quietLogger()

	pool, err := connpool.New(cfg)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	return pool, store
}

// quietLogger discards pool log output so test output stays readable.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// breakConn makes every future probe of the connection fail.
func breakConn(t *testing.T, c *connpool.Conn) {
	t.Helper()
	c.Client().(*fakestore.Client).FailPings(errors.New("connection reset"))
}
