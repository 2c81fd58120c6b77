package connpool

import (
	"fmt"
	"log/slog"
	"time"
)

// Default configuration values used by DefaultConfig and applied by Validate
// where a zero value has a sensible stand-in.
const (
	DefaultMinSize             = 2
	DefaultMaxSize             = 10
	DefaultAcquireTimeout      = 30 * time.Second
	DefaultIdleTimeout         = 5 * time.Minute
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultReapInterval        = 60 * time.Second
)

// Config holds the configuration for creating a connection pool.
type Config struct {
	// MinSize is the number of connections opened eagerly by Initialize and
	// the floor the idle reaper will not trim below. May be zero.
	MinSize int

	// MaxSize is the hard cap on live connections. Must be at least 1 and at
	// least MinSize.
	MaxSize int

	// AcquireTimeout bounds how long Acquire waits for a free connection once
	// the pool is at MaxSize.
	AcquireTimeout time.Duration

	// IdleTimeout is how long a connection may sit idle before the reaper may
	// destroy it (never going below MinSize).
	IdleTimeout time.Duration

	// HealthCheckInterval is how often the background sweep probes the pool.
	HealthCheckInterval time.Duration

	// ReapInterval is how often the background reaper looks for idle
	// connections past IdleTimeout.
	ReapInterval time.Duration

	// SingleConnection switches the pool into serverless mode: one shared
	// connection handed to every caller, no pooling, no background
	// maintenance.
	SingleConnection bool

	// Factory opens connections to the backing store. Required.
	Factory Factory

	// Logger receives pool lifecycle and maintenance events. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults. Factory must still
// be set before the config is usable.
func DefaultConfig() *Config {
	return &Config{
		MinSize:             DefaultMinSize,
		MaxSize:             DefaultMaxSize,
		AcquireTimeout:      DefaultAcquireTimeout,
		IdleTimeout:         DefaultIdleTimeout,
		HealthCheckInterval: DefaultHealthCheckInterval,
		ReapInterval:        DefaultReapInterval,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Factory == nil {
		return fmt.Errorf("Factory is required")
	}

	if c.MinSize < 0 {
		return fmt.Errorf("MinSize must not be negative, got %d", c.MinSize)
	}

	if c.MaxSize < 1 {
		return fmt.Errorf("MaxSize must be at least 1, got %d", c.MaxSize)
	}

	if c.MaxSize < c.MinSize {
		return fmt.Errorf("MaxSize must be at least MinSize (%d), got %d", c.MinSize, c.MaxSize)
	}

	if c.AcquireTimeout < 0 {
		return fmt.Errorf("AcquireTimeout must not be negative, got %s", c.AcquireTimeout)
	}

	if c.IdleTimeout < 0 {
		return fmt.Errorf("IdleTimeout must not be negative, got %s", c.IdleTimeout)
	}

	return nil
}

// withDefaults returns a copy of c with zero durations replaced by the
// package defaults, so New can rely on every interval being positive.
func (c *Config) withDefaults() *Config {
	out := *c
	if out.AcquireTimeout == 0 {
		out.AcquireTimeout = DefaultAcquireTimeout
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = DefaultIdleTimeout
	}
	if out.HealthCheckInterval == 0 {
		out.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if out.ReapInterval == 0 {
		out.ReapInterval = DefaultReapInterval
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}
