// Package offline holds requests issued while the API is unreachable and
// tracks connectivity so they can be replayed once it returns.
package offline

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// DefaultCapacity bounds the queue; the oldest item is evicted on overflow
	DefaultCapacity = 50
	// DefaultMaxReplays is how many failed replays an item survives
	DefaultMaxReplays = 3
)

// DropReason says why an item left the queue without succeeding
type DropReason string

const (
	DropOverflow  DropReason = "overflow"
	DropExhausted DropReason = "replays_exhausted"
)

// Item is one queued request
type Item[T any] struct {
	ID         ulid.ULID
	Request    T
	EnqueuedAt time.Time
	RetryCount int
}

// Queue is a bounded FIFO safe for concurrent use
type Queue[T any] struct {
	mu         sync.Mutex
	items      []Item[T]
	capacity   int
	maxReplays int
	now        func() time.Time
	entropy    *ulid.MonotonicEntropy
}

// NewQueue creates a queue. A non-positive capacity or a negative maxReplays
// selects the default; maxReplays 0 drops an item on its first failed replay.
func NewQueue[T any](capacity, maxReplays int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxReplays < 0 {
		maxReplays = DefaultMaxReplays
	}
	return &Queue[T]{
		capacity:   capacity,
		maxReplays: maxReplays,
		now:        time.Now,
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
}

// Enqueue appends req. When the queue is full the oldest item is evicted and
// returned; evicted is nil otherwise.
func (q *Queue[T]) Enqueue(req T) (added Item[T], evicted *Item[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	added = Item[T]{
		ID:         ulid.MustNew(ulid.Timestamp(now), q.entropy),
		Request:    req,
		EnqueuedAt: now,
	}
	return added, q.push(added)
}

// Drain returns every queued item in FIFO order and empties the queue.
// Items enqueued after Drain returns belong to the next drain.
func (q *Queue[T]) Drain() []Item[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	snapshot := q.items
	q.items = nil
	return snapshot
}

// Requeue puts back an item whose replay failed with its retry count
// incremented. ok is false, leaving the queue unchanged, when the item has
// used up its replays; the caller should treat it as dropped.
func (q *Queue[T]) Requeue(item Item[T]) (requeued Item[T], evicted *Item[T], ok bool) {
	if item.RetryCount >= q.maxReplays {
		return item, nil, false
	}
	item.RetryCount++

	q.mu.Lock()
	defer q.mu.Unlock()
	return item, q.push(item), true
}

// push must be called with mu held
func (q *Queue[T]) push(item Item[T]) *Item[T] {
	var evicted *Item[T]
	if len(q.items) >= q.capacity {
		oldest := q.items[0]
		evicted = &oldest
		q.items = append(q.items[:0:0], q.items[1:]...)
	}
	q.items = append(q.items, item)
	return evicted
}

// MaxReplays reports the replay cap
func (q *Queue[T]) MaxReplays() int { return q.maxReplays }

// Len reports the number of queued items
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the queued items
func (q *Queue[T]) Items() []Item[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Item[T](nil), q.items...)
}
