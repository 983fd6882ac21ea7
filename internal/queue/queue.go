// Package queue provides an unbounded FIFO used to hand values from any
// number of producers to a single consumer without ever blocking the producer.
package queue

import (
	"context"
	"sync"
)

// Queue is a thread-safe unbounded FIFO. Push never blocks; Pop blocks until a
// value is available, the queue is closed and drained, or the context ends.
type Queue[T any] struct {
	notify chan struct{}

	mu     sync.Mutex
	closed bool
	items  []T
}

func New[T any]() *Queue[T] {
	return &Queue[T]{
		notify: make(chan struct{}, 1),
	}
}

// Push appends v. It reports false, and drops v, once the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, v)
	q.wake()
	return true
}

// Pop removes the oldest value. ok is false when the queue has been closed and
// drained, or when ctx is done first.
func (q *Queue[T]) Pop(ctx context.Context) (v T, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v = q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return v, false
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return v, false
		}
	}
}

// Close stops accepting values. Values already queued can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.wake()
}

func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// wake must be called with mu held.
func (q *Queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
