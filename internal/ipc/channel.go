//go:build unix

package ipc

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

const (
	// DefaultShmName is the shared memory segment name.
	DefaultShmName = "/mem"
	// DefaultSemaphoreName is the semaphore name.
	DefaultSemaphoreName = "sem"
	// DefaultRegionSize covers both halves.
	DefaultRegionSize = 64 * 1024
)

var (
	// ErrClosed is returned by operations on a closed channel or client.
	ErrClosed = errors.New("ipc channel is closed")
	// ErrPayloadTooLarge is returned when a payload and its NUL terminator
	// do not fit into its half of the region.
	ErrPayloadTooLarge = errors.New("payload does not fit in shared region")
)

// Options names the region and semaphore.
type Options struct {
	// Dir holds both objects. Empty selects DefaultDir().
	Dir           string
	ShmName       string
	SemaphoreName string
	Size          int
}

// DefaultOptions returns the standard names and sizing.
func DefaultOptions() Options {
	return Options{
		ShmName:       DefaultShmName,
		SemaphoreName: DefaultSemaphoreName,
		Size:          DefaultRegionSize,
	}
}

// DefaultDir is where shm_open and sem_open keep their objects.
func DefaultDir() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = DefaultDir()
	}
	if o.ShmName == "" {
		o.ShmName = DefaultShmName
	}
	if o.SemaphoreName == "" {
		o.SemaphoreName = DefaultSemaphoreName
	}
	if o.Size == 0 {
		o.Size = DefaultRegionSize
	}
	return o
}

// Channel is the service end of the status/command exchange. It is used
// from one goroutine at a time.
type Channel struct {
	mu     sync.Mutex
	region *Region
	sem    *Semaphore
	closed bool
}

// Open creates or reuses the region and semaphore. Any command left in the
// inbound half by an earlier run is discarded.
func Open(opts Options) (*Channel, error) {
	opts = opts.withDefaults()

	region, err := OpenRegion(opts.Dir, opts.ShmName, opts.Size, true)
	if err != nil {
		return nil, err
	}
	sem, err := OpenSemaphore(opts.Dir, opts.SemaphoreName, true)
	if err != nil {
		region.Close()
		return nil, err
	}

	clear(region.Inbound())
	return &Channel{region: region, sem: sem}, nil
}

// OutboundCapacity is the largest document Publish accepts.
func (c *Channel) OutboundCapacity() int {
	return len(c.region.Outbound()) - 1
}

// Publish writes doc into the outbound half and posts the semaphore.
func (c *Channel) Publish(doc []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := writeString(c.region.Outbound(), doc); err != nil {
		return err
	}
	if err := c.sem.Post(); err != nil {
		return fmt.Errorf("sem_post: %w", err)
	}
	return nil
}

// Ingest takes whatever command the controller left in the inbound half,
// clears the bytes it consumed and posts the semaphore. An empty result
// means no command was pending, and the half is left untouched so a write
// still in progress keeps its tail.
func (c *Channel) Ingest() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	in := c.region.Inbound()
	cmd := readString(in)
	if len(cmd) > 0 {
		clear(in[:min(len(cmd)+1, len(in))])
	}
	if err := c.sem.Post(); err != nil {
		return cmd, fmt.Errorf("sem_post: %w", err)
	}
	return cmd, nil
}

// Close unmaps both objects and unlinks their names.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	return errors.Join(
		c.region.Close(),
		c.sem.Close(),
		c.region.Unlink(),
		c.sem.Unlink(),
	)
}
