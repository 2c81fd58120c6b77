// Package fakestore provides an in-memory StoreClient implementation for
// exercising the pool without a real backing store.
package fakestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yuku/connpool"
)

// Client is a fake store connection. Its probe and close behavior can be
// changed at any time to simulate failures.
type Client struct {
	mu      sync.Mutex
	closed  bool
	pingErr error
	pings   int
}

// Ping returns the configured probe error, or an error if the client has
// been closed.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	if c.closed {
		return fmt.Errorf("fakestore: ping on closed client")
	}
	return c.pingErr
}

// Close marks the client closed. Closing twice is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// FailPings makes every subsequent Ping return err. Pass nil to heal the
// client again.
func (c *Client) FailPings(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = err
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Pings reports how many times Ping has been called.
func (c *Client) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

// Store hands out fake clients and records every dial, so tests can assert
// how often the pool opened connections and inspect each one.
type Store struct {
	mu           sync.Mutex
	clients      []*Client
	dials        int
	dialErr      error
	dialDelay    time.Duration
	failAfter    int
	failAfterErr error
}

// NewStore returns an empty fake store.
func NewStore() *Store {
	return &Store{}
}

// Factory returns a connpool.Factory that dials this store.
func (s *Store) Factory() connpool.Factory {
	return func(ctx context.Context) (connpool.StoreClient, error) {
		s.mu.Lock()
		s.dials++
		err := s.dialErr
		if err == nil && s.failAfterErr != nil && s.dials > s.failAfter {
			err = s.failAfterErr
		}
		delay := s.dialDelay
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err != nil {
			return nil, err
		}

		c := &Client{}
		s.mu.Lock()
		s.clients = append(s.clients, c)
		s.mu.Unlock()
		return c, nil
	}
}

// FailDials makes every subsequent dial return err. Pass nil to heal the
// store again.
func (s *Store) FailDials(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialErr = err
}

// FailDialsAfter lets the first n dials succeed and fails every later one
// with err.
func (s *Store) FailDialsAfter(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = n
	s.failAfterErr = err
}

// DelayDials makes every subsequent dial sleep for d before returning.
func (s *Store) DelayDials(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialDelay = d
}

// Dials reports how many times the factory has been invoked, including
// failed dials.
func (s *Store) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Clients returns every client the store has handed out, in dial order.
func (s *Store) Clients() []*Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Client, len(s.clients))
	copy(out, s.clients)
	return out
}

// OpenClients reports how many handed-out clients have not been closed.
func (s *Store) OpenClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	open := 0
	for _, c := range s.clients {
		if !c.Closed() {
			open++
		}
	}
	return open
}
