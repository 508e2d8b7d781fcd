// Package commitq relays committed placements from the engine worker to a
// consumer such as the renderer.
package commitq

import (
	"sync"
	"sync/atomic"

	"coral/internal/core"
)

// Item is one committed placement.
type Item struct {
	Pos   core.Position
	Color core.Color
}

// Queue is a mutex guarded double buffer with a single producer and a single
// consumer. The producer appends to the front buffer; Swap hands the filled
// buffer to the consumer and gives the producer the other one.
type Queue struct {
	mu    sync.Mutex
	front []Item
	back  []Item
	total atomic.Uint64
}

// New returns a queue whose buffers start with room for capacity items.
func New(capacity int) *Queue {
	return &Queue{
		front: make([]Item, 0, capacity),
		back:  make([]Item, 0, capacity),
	}
}

// Enqueue appends a placement. Producer only.
func (q *Queue) Enqueue(pos core.Position, color core.Color) {
	q.mu.Lock()
	q.front = append(q.front, Item{Pos: pos, Color: color})
	q.mu.Unlock()
	q.total.Add(1)
}

// Swap exchanges the buffers and returns everything enqueued since the
// previous Swap, in append order. The returned slice is only valid until the
// next Swap. Consumer only.
func (q *Queue) Swap() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.front, q.back = q.back[:0], q.front
	return q.back
}

// TotalCount returns the number of Enqueue calls ever made. Safe to call from
// any goroutine; it is not synchronised with Swap.
func (q *Queue) TotalCount() uint64 { return q.total.Load() }
