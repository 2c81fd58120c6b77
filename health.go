package connpool

import (
	"context"
	"time"
)

// HealthStatus is the result of a pool health probe. Probe failures are
// reported as data; CheckHealth never returns a Go error.
type HealthStatus struct {
	// Healthy is true when the probe round trip succeeded.
	Healthy bool

	// Latency is how long the probe round trip took.
	Latency time.Duration

	// Err holds the probe failure message when Healthy is false.
	Err string

	// Timestamp is when the probe started.
	Timestamp time.Time
}

// CheckHealth runs a liveness probe against the backing store and measures
// the round-trip time. It probes through an idle pooled connection when one
// is available and otherwise opens a temporary connection just for the probe.
// An idle connection that fails its probe is destroyed on the spot.
func (p *Pool) CheckHealth(ctx context.Context) HealthStatus {
	status := HealthStatus{Timestamp: time.Now()}

	p.mu.Lock()
	var probe *Conn
	pooled := false
	if p.config.SingleConnection {
		probe = p.shared
	} else if n := len(p.idle); n > 0 {
		probe = p.idle[n-1]
		p.idle = p.idle[:n-1]
		probe.inUse = true
		pooled = true
	}
	p.mu.Unlock()

	if probe != nil {
		start := time.Now()
		err := probe.client.Ping(ctx)
		status.Latency = time.Since(start)
		if err != nil {
			status.Err = err.Error()
			if pooled {
				p.log.Warn("destroying connection that failed its health probe", "error", err)
				p.destroy(ctx, probe)
			}
			return status
		}
		status.Healthy = true
		if pooled {
			p.requeue(probe)
		}
		return status
	}

	client, err := p.config.Factory(ctx)
	if err != nil {
		status.Err = err.Error()
		return status
	}
	start := time.Now()
	err = client.Ping(ctx)
	status.Latency = time.Since(start)
	p.closeClient(ctx, client)
	if err != nil {
		status.Err = err.Error()
		return status
	}
	status.Healthy = true
	return status
}

// healthLoop periodically probes the pool and, when the probe fails, sweeps
// the idle connections individually.
func (p *Pool) healthLoop(stop chan struct{}) {
	defer p.maintenance.Done()

	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx := context.Background()
			if status := p.CheckHealth(ctx); !status.Healthy {
				p.log.Warn("pool health probe failed, sweeping idle connections", "error", status.Err)
				p.sweepIdle(ctx)
			}
		}
	}
}

// sweepIdle probes every idle connection and destroys the ones that fail.
// Connections are pulled off the idle stack for the duration of their probe
// so a concurrent Acquire cannot be handed a connection mid-probe.
func (p *Pool) sweepIdle(ctx context.Context) {
	p.mu.Lock()
	pulled := p.idle
	p.idle = nil
	for _, c := range pulled {
		c.inUse = true
	}
	p.mu.Unlock()

	for _, c := range pulled {
		if err := c.client.Ping(ctx); err != nil {
			p.log.Warn("destroying unhealthy idle connection", "error", err)
			p.destroy(ctx, c)
			continue
		}
		p.requeue(c)
	}
}

// reapLoop periodically trims connections that have been idle past
// IdleTimeout.
func (p *Pool) reapLoop(stop chan struct{}) {
	defer p.maintenance.Done()

	ticker := time.NewTicker(p.config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.reapIdle(context.Background())
		}
	}
}

// reapIdle destroys connections idle past IdleTimeout, oldest first, keeping
// at least MinSize idle connections alive.
func (p *Pool) reapIdle(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.IdleTimeout)

	p.mu.Lock()
	var victims []*Conn
	for len(p.idle) > p.config.MinSize {
		oldest := p.idle[0]
		if oldest.idleSince.After(cutoff) {
			break
		}
		p.idle = p.idle[1:]
		victims = append(victims, oldest)
	}
	p.mu.Unlock()

	for _, c := range victims {
		p.log.Info("reaping idle connection", "idle_for", time.Since(c.idleSince).String())
		p.destroy(ctx, c)
	}
}
