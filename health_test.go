package connpool_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yuku/connpool"
)

func TestCheckHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy store", func(t *testing.T) {
		cfg := connpool.DefaultConfig()
		cfg.MinSize = 1
		pool, _ := newTestPool(t, cfg)
		require.NoError(t, pool.Initialize(ctx))

		status := pool.CheckHealth(ctx)
		require.True(t, status.Healthy)
		require.Empty(t, status.Err)
		require.False(t, status.Timestamp.IsZero())

		// The probed connection goes back into the pool.
		require.Equal(t, 1, pool.Stats().Idle)
	})

	t.Run("probes through a temporary connection when nothing is idle", func(t *testing.T) {
		cfg := connpool.DefaultConfig()
		cfg.MinSize = 0
		pool, store := newTestPool(t, cfg)
		require.NoError(t, pool.Initialize(ctx))

		status := pool.CheckHealth(ctx)
		require.True(t, status.Healthy)
		require.Equal(t, 1, store.Dials())
		require.Zero(t, store.OpenClients(), "probe connection must be closed again")
		require.Zero(t, pool.Stats().Total)
	})

	t.Run("reports dial failures as data", func(t *testing.T) {
		cfg := connpool.DefaultConfig()
		cfg.MinSize = 0
		pool, store := newTestPool(t, cfg)
		require.NoError(t, pool.Initialize(ctx))
		store.FailDials(errors.New("store down"))

		status := pool.CheckHealth(ctx)
		require.False(t, status.Healthy)
		require.Contains(t, status.Err, "store down")
	})

	t.Run("destroys an idle connection that fails its probe", func(t *testing.T) {
		cfg := connpool.DefaultConfig()
		cfg.MinSize = 0
		cfg.MaxSize = 2
		pool, _ := newTestPool(t, cfg)

		conn, err := pool.Acquire(ctx)
		require.NoError(t, err)
		pool.Release(ctx, conn)
		breakConn(t, conn) // break it in place while idle

		status := pool.CheckHealth(ctx)
		require.False(t, status.Healthy)
		require.Zero(t, pool.Stats().Total, "broken idle connection must be destroyed")
	})
}

// TestHealthSweep drives the background sweep with short intervals: once the
// pool probe fails, every broken idle connection is destroyed.
func TestHealthSweep(t *testing.T) {
	ctx := context.Background()

	cfg := connpool.DefaultConfig()
	cfg.MinSize = 2
	cfg.MaxSize = 4
	cfg.HealthCheckInterval = 10 * time.Millisecond
	cfg.ReapInterval = time.Hour // keep the reaper out of this test
	pool, store := newTestPool(t, cfg)
	require.NoError(t, pool.Initialize(ctx))
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	store.FailDials(errors.New("store down")) // the fallback probe fails too
	for _, client := range store.Clients() {
		client.FailPings(errors.New("connection reset"))
	}

	require.Eventually(t, func() bool {
		return pool.Stats().Total == 0
	}, 2*time.Second, 5*time.Millisecond, "sweep should destroy all broken idle connections")
	require.Zero(t, store.OpenClients())
}

// TestIdleReaper drives the background reaper with short timeouts: idle
// connections past IdleTimeout are trimmed down to MinSize.
func TestIdleReaper(t *testing.T) {
	ctx := context.Background()

	cfg := connpool.DefaultConfig()
	cfg.MinSize = 1
	cfg.MaxSize = 4
	cfg.IdleTimeout = 20 * time.Millisecond
	cfg.ReapInterval = 10 * time.Millisecond
	cfg.HealthCheckInterval = time.Hour // keep the sweep out of this test
	pool, _ := newTestPool(t, cfg)

	// Grow the pool to three idle connections.
	var conns []*connpool.Conn
	for i := 0; i < 3; i++ {
		conn, err := pool.Acquire(ctx)
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	for _, conn := range conns {
		pool.Release(ctx, conn)
	}
	require.Equal(t, 3, pool.Stats().Idle)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	require.Eventually(t, func() bool {
		s := pool.Stats()
		return s.Total == cfg.MinSize && s.Idle == cfg.MinSize
	}, 2*time.Second, 5*time.Millisecond, "reaper should trim idle connections to MinSize")

	// The survivor stays: it is protected by the MinSize floor.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, pool.Stats().Total)
}
