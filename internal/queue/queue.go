// Package queue holds rows waiting for the next batch write.
package queue

import "sync"

// Queue is a thread-safe FIFO of pending rows. A writer drains it in one go
// and requeues the batch at the front when the write fails, so rows keep
// the order they were recorded in.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
	drops int
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// NewBounded creates a queue holding at most limit rows. Pushing past the
// limit drops the oldest rows.
func NewBounded[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

// Push appends items at the back.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	q.trim()
}

// Requeue puts a failed batch back in front of anything pushed since.
func (q *Queue[T]) Requeue(batch []T) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(batch[:len(batch):len(batch)], q.items...)
	q.trim()
}

func (q *Queue[T]) trim() {
	if q.limit <= 0 || len(q.items) <= q.limit {
		return
	}
	over := len(q.items) - q.limit
	q.drops += over
	q.items = append(q.items[:0:0], q.items[over:]...)
}

// Drain returns every queued row and leaves the queue empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Empty reports whether nothing is queued.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Len returns the number of queued rows.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many rows a bounded queue has discarded so far.
func (q *Queue[T]) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drops
}
