//go:build unix

package ipc

import (
	"context"
	"errors"
	"sync"
)

// Client is the controller end of the exchange.
type Client struct {
	mu     sync.Mutex
	region *Region
	sem    *Semaphore
	closed bool
}

// Dial attaches to a running service's region and semaphore. It fails with
// an error wrapping os.ErrNotExist when no service has created them.
func Dial(opts Options) (*Client, error) {
	opts = opts.withDefaults()

	region, err := OpenRegion(opts.Dir, opts.ShmName, opts.Size, false)
	if err != nil {
		return nil, err
	}
	sem, err := OpenSemaphore(opts.Dir, opts.SemaphoreName, false)
	if err != nil {
		region.Close()
		return nil, err
	}
	return &Client{region: region, sem: sem}, nil
}

// Wait blocks until the service posts the semaphore.
func (c *Client) Wait(ctx context.Context) error {
	c.mu.Lock()
	sem := c.sem
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	return sem.Wait(ctx)
}

// Snapshot returns the document currently in the outbound half without
// waiting.
func (c *Client) Snapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	return readString(c.region.Outbound()), nil
}

// ReadStatus waits for the next post and returns the outbound document.
func (c *Client) ReadStatus(ctx context.Context) ([]byte, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}
	return c.Snapshot()
}

// SendCommand stores cmd in the inbound half for the service's next ingest.
func (c *Client) SendCommand(cmd []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return writeString(c.region.Inbound(), cmd)
}

// Pending reports whether a command is still waiting to be ingested.
func (c *Client) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return !c.closed && c.region.Inbound()[0] != 0
}

// Close detaches without removing anything.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return errors.Join(c.region.Close(), c.sem.Close())
}
