package connpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pool manages a bounded set of reusable store connections.
type Pool struct {
	config *Config
	log    *slog.Logger

	// initMu serializes Initialize so concurrent first-acquires cannot seed
	// the pool twice.
	initMu sync.Mutex

	mu          sync.Mutex
	initialized bool
	conns       map[string]*Conn // all live connections by id
	idle        []*Conn          // LIFO stack, most recently released on top
	waiters     []chan *Conn
	waiting     int
	dialing     int   // slots reserved by in-flight Factory calls
	shared      *Conn // single-connection mode only
	stop        chan struct{}

	maintenance sync.WaitGroup
}

// New creates a pool from the given configuration. No connections are opened
// until Initialize (or the first Acquire).
func New(config *Config) (*Pool, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg := config.withDefaults()
	return &Pool{
		config: cfg,
		log:    cfg.Logger,
		conns:  make(map[string]*Conn),
	}, nil
}

// Initialize opens the MinSize seed connections and starts background
// maintenance. It is idempotent: a second call on an initialized pool is a
// no-op. If any seed connection fails to open, the ones that did open are
// closed again and the error is returned, so a retry starts from a clean
// slate.
func (p *Pool) Initialize(ctx context.Context) error {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	p.mu.Lock()
	if p.initialized {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if p.config.SingleConnection {
		client, err := p.config.Factory(ctx)
		if err != nil {
			return fmt.Errorf("failed to open shared connection: %w", err)
		}
		shared := newConn(client)
		shared.inUse = true

		p.mu.Lock()
		p.shared = shared
		p.initialized = true
		p.mu.Unlock()

		p.log.Info("connection pool initialized", "mode", "single-connection")
		return nil
	}

	seeds := make([]*Conn, p.config.MinSize)
	g, gctx := errgroup.WithContext(ctx)
	for i := range seeds {
		i := i
		g.Go(func() error {
			client, err := p.config.Factory(gctx)
			if err != nil {
				return fmt.Errorf("failed to open seed connection: %w", err)
			}
			seeds[i] = newConn(client)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, c := range seeds {
			if c != nil {
				p.closeClient(ctx, c.client)
			}
		}
		return err
	}

	now := time.Now()
	p.mu.Lock()
	for _, c := range seeds {
		c.idleSince = now
		p.conns[c.id] = c
		p.idle = append(p.idle, c)
	}
	p.stop = make(chan struct{})
	stop := p.stop
	p.initialized = true
	p.mu.Unlock()

	p.maintenance.Add(2)
	go p.healthLoop(stop)
	go p.reapLoop(stop)

	p.log.Info("connection pool initialized",
		"min_size", p.config.MinSize, "max_size", p.config.MaxSize)
	return nil
}

// Acquire obtains a connection from the pool, initializing it first if
// needed. Idle connections are reused most-recently-released first; below
// MaxSize a fresh connection is opened; at MaxSize the caller waits until a
// connection frees up, bounded by Config.AcquireTimeout (ErrAcquireTimeout)
// and by ctx.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}

	if p.config.SingleConnection {
		p.mu.Lock()
		c := p.shared
		p.mu.Unlock()
		if c == nil {
			return nil, ErrPoolClosed
		}
		return c, nil
	}

	deadline := time.Now().Add(p.config.AcquireTimeout)
	for {
		conn, wait, err := p.tryAcquire(ctx)
		if err != nil {
			return nil, err
		}
		if conn != nil {
			return conn, nil
		}

		conn, err = p.await(ctx, wait, deadline)
		if err != nil {
			return nil, err
		}
		if conn != nil {
			return conn, nil
		}
		// Woken without a connection: a slot freed up, try again.
	}
}

// tryAcquire returns a connection immediately when one is idle or the pool
// can still grow. Otherwise it registers and returns a wait channel for the
// caller to block on.
func (p *Pool) tryAcquire(ctx context.Context) (*Conn, chan *Conn, error) {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return nil, nil, ErrPoolClosed
	}

	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		c.inUse = true
		p.mu.Unlock()
		return c, nil, nil
	}

	if len(p.conns)+p.dialing < p.config.MaxSize {
		// Reserve the slot before dialing so concurrent acquires cannot
		// overshoot MaxSize.
		p.dialing++
		p.mu.Unlock()

		client, err := p.config.Factory(ctx)

		p.mu.Lock()
		p.dialing--
		if err != nil {
			p.wakeLocked(nil)
			p.mu.Unlock()
			return nil, nil, fmt.Errorf("failed to open connection: %w", err)
		}
		if !p.initialized {
			// Shut down while dialing.
			p.mu.Unlock()
			p.closeClient(ctx, client)
			return nil, nil, ErrPoolClosed
		}
		c := newConn(client)
		c.inUse = true
		p.conns[c.id] = c
		p.mu.Unlock()
		return c, nil, nil
	}

	wait := make(chan *Conn, 1)
	p.waiters = append(p.waiters, wait)
	p.waiting++
	p.mu.Unlock()
	return nil, wait, nil
}

// await blocks on a registered wait channel. A nil connection received means
// a slot freed up and the caller should retry tryAcquire.
func (p *Pool) await(ctx context.Context, wait chan *Conn, deadline time.Time) (*Conn, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case c := <-wait:
		p.mu.Lock()
		p.waiting--
		p.mu.Unlock()
		return c, nil
	case <-timer.C:
		return nil, p.abandon(wait, ErrAcquireTimeout)
	case <-ctx.Done():
		return nil, p.abandon(wait, ctx.Err())
	}
}

// abandon withdraws a waiter that timed out or was cancelled. A connection
// handed off concurrently is put back instead of leaked.
func (p *Pool) abandon(wait chan *Conn, cause error) error {
	p.mu.Lock()
	p.waiting--
	for i, w := range p.waiters {
		if w == wait {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	select {
	case c := <-wait:
		if c != nil {
			p.requeue(c)
		}
	default:
	}
	return cause
}

// Release returns an acquired connection to the pool. The connection is
// probed first and destroyed instead of pooled when the probe fails, so a
// broken connection is never handed out again. Releasing a handle the pool
// does not know about (or one already released) is a no-op. In
// single-connection mode Release does nothing.
func (p *Pool) Release(ctx context.Context, c *Conn) {
	if c == nil {
		return
	}

	p.mu.Lock()
	if p.config.SingleConnection {
		p.mu.Unlock()
		return
	}
	known, ok := p.conns[c.id]
	if !ok || known != c || !c.inUse || c.releasing {
		p.mu.Unlock()
		p.log.Debug("ignoring release of connection unknown to the pool")
		return
	}
	c.releasing = true
	p.mu.Unlock()

	if err := c.client.Ping(ctx); err != nil {
		p.log.Warn("destroying unhealthy connection on release", "error", err)
		p.destroy(ctx, c)
		return
	}

	p.requeue(c)
}

// requeue puts a healthy in-use connection back into circulation: handed
// straight to a waiter when one is blocked, pushed onto the idle stack when
// there is room, destroyed otherwise.
func (p *Pool) requeue(c *Conn) {
	p.mu.Lock()
	c.releasing = false
	if !p.initialized {
		p.mu.Unlock()
		p.closeClient(context.Background(), c.client)
		return
	}
	if p.wakeLocked(c) {
		p.mu.Unlock()
		return
	}
	if len(p.idle) < p.config.MaxSize {
		c.inUse = false
		c.idleSince = time.Now()
		p.idle = append(p.idle, c)
		p.mu.Unlock()
		return
	}
	delete(p.conns, c.id)
	p.mu.Unlock()
	p.closeClient(context.Background(), c.client)
}

// wakeLocked hands c (or a retry signal when c is nil) to the waiter that has
// been blocked longest. It reports whether a waiter took the hand-off. The
// pool mutex must be held.
func (p *Pool) wakeLocked(c *Conn) bool {
	if len(p.waiters) == 0 {
		return false
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	if c != nil {
		c.inUse = true
	}
	w <- c
	return true
}

// destroy removes c from the pool bookkeeping and closes it. The freed slot
// wakes one waiting acquirer so it can open a fresh connection.
func (p *Pool) destroy(ctx context.Context, c *Conn) {
	p.mu.Lock()
	c.releasing = false
	delete(p.conns, c.id)
	p.wakeLocked(nil)
	p.mu.Unlock()

	p.closeClient(ctx, c.client)
}

func (p *Pool) closeClient(ctx context.Context, client StoreClient) {
	if err := client.Close(ctx); err != nil {
		p.log.Warn("failed to close store connection", "error", err)
	}
}

// WithConn acquires a connection, invokes fn with its client, and releases
// the connection again whether or not fn returned an error.
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, client StoreClient) error) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(ctx, c)
	return fn(ctx, c.Client())
}

// Shutdown stops background maintenance and closes every connection the pool
// knows about, idle or lent out. Individual close failures are logged and do
// not stop the remaining cleanup; the first one is returned. Callers blocked
// in Acquire receive ErrPoolClosed. The pool is reusable afterwards: the next
// Initialize or Acquire seeds it from scratch.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return nil
	}
	p.initialized = false

	stop := p.stop
	p.stop = nil

	conns := make([]*Conn, 0, len(p.conns)+1)
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	if p.shared != nil {
		conns = append(conns, p.shared)
		p.shared = nil
	}
	p.conns = make(map[string]*Conn)
	p.idle = nil

	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
		p.maintenance.Wait()
	}

	for _, w := range waiters {
		w <- nil
	}

	var firstErr error
	for _, c := range conns {
		if err := c.client.Close(ctx); err != nil {
			p.log.Warn("failed to close connection during shutdown", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close connection: %w", err)
			}
		}
	}

	p.log.Info("connection pool shut down", "closed", len(conns))
	return firstErr
}

// Cleanup closes the pool. It is equivalent to Shutdown.
func (p *Pool) Cleanup(ctx context.Context) error {
	return p.Shutdown(ctx)
}
