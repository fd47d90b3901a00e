// Package worker drains the message queue into a single dispatcher.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/deathlog/internal/adapters/mq/queue"
	"github.com/okian/deathlog/pkg/logger"
	"github.com/okian/deathlog/pkg/metrics"
)

// Handler processes one message. Calls never overlap.
type Handler interface {
	Dispatch(ctx context.Context, m queue.Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, m queue.Message) error

// Dispatch implements Handler.
func (f HandlerFunc) Dispatch(ctx context.Context, m queue.Message) error { //nolint:gocritic // hugeParam: Message is passed by value
	return f(ctx, m)
}

// Queue defines how the worker receives messages.
type Queue interface {
	Dequeue() <-chan queue.Message
}

// Worker is the only consumer of the queue, so messages are handled one at
// a time in enqueue order.
type Worker struct {
	queue   Queue
	handler Handler
	name    string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// New creates a worker with configuration options.
func New(q Queue, h Handler, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		handler:  h,
		name:     "dispatcher",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run handles messages until ctx is canceled, Shutdown is called or the
// queue is closed and drained.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	messages := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(ctx, messages)
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			w.process(ctx, m)
		}
	}
}

// drain handles what is already buffered without waiting for more.
func (w *Worker) drain(ctx context.Context, messages <-chan queue.Message) {
	for {
		select {
		case m, ok := <-messages:
			if !ok {
				return
			}
			w.process(ctx, m)
		default:
			return
		}
	}
}

func (w *Worker) process(ctx context.Context, m queue.Message) { //nolint:gocritic // hugeParam: Message is passed by value
	metrics.RecordDispatched(m.Kind.String())
	if err := w.handler.Dispatch(ctx, m); err != nil {
		w.logger.Error(ctx, "error dispatching message",
			logger.String("kind", m.Kind.String()),
			logger.Error(err),
		)
	}
}

// Shutdown stops the worker after the buffered messages are handled.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}
