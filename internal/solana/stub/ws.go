package stub

import (
	"context"
	"sync"

	"solana-pool-sniper/internal/solana"
)

// WSClient implements solana.WSClient over an in-memory channel.
type WSClient struct {
	mu        sync.Mutex
	ch        chan solana.LogNotification
	err       error
	closed    bool
	SubErr    error // returned by SubscribeLogs when set
	Filters   []solana.LogsFilter
	CloseHits int
}

var _ solana.WSClient = (*WSClient)(nil)

// NewWSClient creates a stub whose subscription delivers the given notifications.
func NewWSClient(buffer int) *WSClient {
	return &WSClient{ch: make(chan solana.LogNotification, buffer)}
}

// Push queues a notification for the subscriber.
func (c *WSClient) Push(n solana.LogNotification) {
	c.ch <- n
}

// Drop simulates a connection loss with the given cause.
func (c *WSClient) Drop(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.err = cause
	c.closed = true
	close(c.ch)
}

// SubscribeLogs returns the stub channel.
func (c *WSClient) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Filters = append(c.Filters, filter)
	if c.SubErr != nil {
		return nil, c.SubErr
	}
	return c.ch, nil
}

// Err returns the drop cause.
func (c *WSClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the stub channel.
func (c *WSClient) Close() error {
	c.mu.Lock()
	c.CloseHits++
	c.mu.Unlock()
	c.Drop(solana.ErrClientClosed)
	return nil
}
