package connpool_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/yuku/connpool"
	"github.com/yuku/connpool/internal/testhelper"
)

// TestPostgresPool exercises the pool against a real PostgreSQL server. It
// is skipped in short mode and when no server is reachable (see
// internal/testhelper).
func TestPostgresPool(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	testhelper.RequirePostgres(t)

	ctx := context.Background()

	cfg := connpool.DefaultConfig()
	cfg.MinSize = 1
	cfg.MaxSize = 3
	cfg.AcquireTimeout = 5 * time.Second
	cfg.Logger = quietLogger()
	cfg.Factory = connpool.NewPGFactory(testhelper.ConnString())

	pool, err := connpool.New(cfg)
	require.NoError(t, err)
	require.NoError(t, pool.Initialize(ctx))
	t.Cleanup(func() {
		require.NoError(t, pool.Shutdown(context.Background()))
	})

	t.Run("acquired connections can query", func(t *testing.T) {
		conn, err := pool.Acquire(ctx)
		require.NoError(t, err)
		defer pool.Release(ctx, conn)

		pg := conn.Client().(*connpool.PGClient)
		var result int
		require.NoError(t, pg.Conn().QueryRow(ctx, "SELECT 1").Scan(&result))
		require.Equal(t, 1, result)
	})

	t.Run("WithConn runs against the store", func(t *testing.T) {
		err := pool.WithConn(ctx, func(ctx context.Context, client connpool.StoreClient) error {
			pg := client.(*connpool.PGClient)
			var now time.Time
			return pg.Conn().QueryRow(ctx, "SELECT now()").Scan(&now)
		})
		require.NoError(t, err)
	})

	t.Run("health probe round trips", func(t *testing.T) {
		status := pool.CheckHealth(ctx)
		require.True(t, status.Healthy, "probe failed: %s", status.Err)
		require.Greater(t, status.Latency, time.Duration(0))
	})

	t.Run("connections are reused", func(t *testing.T) {
		first, err := pool.Acquire(ctx)
		require.NoError(t, err)
		pool.Release(ctx, first)

		second, err := pool.Acquire(ctx)
		require.NoError(t, err)
		defer pool.Release(ctx, second)

		require.Same(t, first, second)
	})
}

// TestPGFactoryFromConfig checks the parsed-config factory variant.
func TestPGFactoryFromConfig(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	testhelper.RequirePostgres(t)

	ctx := context.Background()

	connConfig, err := pgx.ParseConfig(testhelper.ConnString())
	require.NoError(t, err)

	cfg := connpool.DefaultConfig()
	cfg.MinSize = 1
	cfg.MaxSize = 2
	cfg.Logger = quietLogger()
	cfg.Factory = connpool.NewPGFactoryFromConfig(connConfig)

	pool, err := connpool.New(cfg)
	require.NoError(t, err)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Client().Ping(ctx))
	pool.Release(ctx, conn)

	require.NoError(t, pool.Shutdown(ctx))
}
