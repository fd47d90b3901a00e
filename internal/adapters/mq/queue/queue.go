// Package queue buffers inbound host messages ahead of the dispatcher.
package queue

import (
	"context"
	"sync"

	"github.com/okian/deathlog/internal/domain/model"
	"github.com/okian/deathlog/pkg/metrics"
)

const defaultQueueCapacity = 4096

// Message is the payload type flowing through the queue.
type Message = model.Message

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a message. It returns ErrFull or ErrClosed without blocking.
	Enqueue(ctx context.Context, m Message) error

	// Dequeue returns the channel messages are delivered on, in enqueue
	// order. It is closed once the queue is closed and drained.
	Dequeue() <-chan Message

	// Len returns the current number of queued messages.
	Len() int

	// Cap returns the queue bound.
	Cap() int

	// Close stops accepting messages.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	messages chan Message
	capacity int
	mu       sync.RWMutex
	closed   bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.messages = make(chan Message, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a message to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, m Message) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejection("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueRejection("context_cancelled")
		return err
	}

	select {
	case q.messages <- m:
		metrics.UpdateQueueSize(len(q.messages))
		return nil
	default:
		metrics.RecordQueueRejection("queue_full")
		return ErrFull
	}
}

// Dequeue returns the delivery channel.
func (q *InMemoryQueue) Dequeue() <-chan Message {
	return q.messages
}

// Len returns the current number of queued messages.
func (q *InMemoryQueue) Len() int {
	size := len(q.messages)
	metrics.UpdateQueueSize(size)
	return size
}

// Cap returns the queue bound.
func (q *InMemoryQueue) Cap() int {
	return q.capacity
}

// Close gracefully shuts down the queue. Already queued messages are still
// delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.messages)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
