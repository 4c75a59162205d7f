package ingestion

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/poiesic/datumload/core"
)

// DefaultQueueCapacity is the default number of in-flight records.
const DefaultQueueCapacity = 128

// Channel is a bounded FIFO queue of records between one producer and one
// consumer. It never drops items: a full channel back-pressures the producer.
//
// The producer calls Finish after its last push. The consumer keeps popping
// until Pop reports the channel both finished and drained.
type Channel struct {
	items    chan core.Record
	finished atomic.Bool
	once     sync.Once
}

// NewChannel creates a channel holding at most capacity records.
// Capacities below 1 are raised to 1.
func NewChannel(capacity int) *Channel {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel{items: make(chan core.Record, capacity)}
}

// TryPush enqueues r without blocking. It returns false if the channel is
// full or finished; the caller must retry rather than drop the record.
func (c *Channel) TryPush(r core.Record) bool {
	if c.finished.Load() {
		return false
	}
	select {
	case c.items <- r:
		return true
	default:
		return false
	}
}

// Push enqueues r, blocking while the channel is full.
// Must only be called from the producer goroutine.
func (c *Channel) Push(ctx context.Context, r core.Record) error {
	if c.finished.Load() {
		return ErrChannelClosed
	}
	select {
	case c.items <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPop dequeues a record without blocking.
// It returns false when nothing is available right now.
func (c *Channel) TryPop() (core.Record, bool) {
	select {
	case r, ok := <-c.items:
		return r, ok
	default:
		return core.Record{}, false
	}
}

// Pop dequeues the next record, blocking until one is available.
// ok is false once the producer has finished and every record was drained.
func (c *Channel) Pop(ctx context.Context) (r core.Record, ok bool, err error) {
	select {
	case r, ok = <-c.items:
		return r, ok, nil
	case <-ctx.Done():
		return core.Record{}, false, ctx.Err()
	}
}

// Finish signals that no more records will be pushed. Safe to call more than once.
// Must only be called from the producer goroutine.
func (c *Channel) Finish() {
	c.once.Do(func() {
		c.finished.Store(true)
		close(c.items)
	})
}

// Finished reports whether Finish has been called.
func (c *Channel) Finished() bool {
	return c.finished.Load()
}

// Len returns the number of queued records.
func (c *Channel) Len() int {
	return len(c.items)
}

// Cap returns the channel capacity.
func (c *Channel) Cap() int {
	return cap(c.items)
}
