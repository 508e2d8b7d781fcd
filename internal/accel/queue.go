package accel

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
)

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("accel: queue closed")

type submission struct {
	cb    *CommandBuffer
	fence *Fence
}

// QueueStats counts queue activity.
type QueueStats struct {
	Submitted  uint64
	Completed  uint64
	Dispatches uint64
	Copies     uint64
}

// Queue executes command buffers in submission order on a single executor
// goroutine. Workgroups of a dispatch are spread over a bounded worker pool.
type Queue struct {
	workers int
	work    chan submission
	done    chan struct{}

	mu     sync.Mutex
	closed bool

	submitted  atomic.Uint64
	completed  atomic.Uint64
	dispatches atomic.Uint64
	copies     atomic.Uint64
}

// NewQueue starts a queue. depth bounds the number of submissions waiting to
// execute; Submit blocks once it is reached.
func NewQueue(workers, depth int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if depth <= 0 {
		depth = 1
	}
	q := &Queue{
		workers: workers,
		work:    make(chan submission, depth),
		done:    make(chan struct{}),
	}
	go q.loop()
	return q
}

// Submit validates cb and queues it. fence, if non-nil, is signaled once
// every command has executed. A buffer that fails validation is not queued
// and its fence is left untouched.
func (q *Queue) Submit(cb *CommandBuffer, fence *Fence) error {
	if err := cb.validate(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.submitted.Add(1)
	q.work <- submission{cb: cb, fence: fence}
	return nil
}

// Close stops accepting work, lets queued submissions finish and joins the
// executor.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("accel: queue already closed")
	}
	q.closed = true
	close(q.work)
	q.mu.Unlock()
	<-q.done
	return nil
}

// Stats returns the queue counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Submitted:  q.submitted.Load(),
		Completed:  q.completed.Load(),
		Dispatches: q.dispatches.Load(),
		Copies:     q.copies.Load(),
	}
}

func (q *Queue) loop() {
	defer close(q.done)
	for sub := range q.work {
		q.execute(sub.cb)
		q.completed.Add(1)
		if sub.fence != nil {
			sub.fence.Signal()
		}
	}
}

func (q *Queue) execute(cb *CommandBuffer) {
	for _, c := range cb.cmds {
		switch c.kind {
		case cmdCopy:
			q.copies.Add(1)
			copy(c.dst.words()[c.dstOff:c.dstOff+c.n], c.src.words()[c.srcOff:c.srcOff+c.n])
		case cmdBarrier:
			// execution is already serial
		case cmdDispatch:
			q.dispatches.Add(1)
			q.dispatch(c)
		}
	}
}

func (q *Queue) dispatch(c command) {
	total := c.groupsX * c.groupsY
	if total == 0 {
		return
	}
	data := make([][]uint32, len(c.bindings))
	for i, b := range c.bindings {
		data[i] = b.Resource.words()
	}
	run := func(lo, hi int) {
		for g := lo; g < hi; g++ {
			c.kernel.Execute(Workgroup{X: g % c.groupsX, Y: g / c.groupsX, Push: c.push, Data: data})
		}
	}

	parts := min(q.workers, total)
	if parts == 1 {
		run(0, total)
		return
	}
	p := pool.New().WithMaxGoroutines(parts)
	step := (total + parts - 1) / parts
	for lo := 0; lo < total; lo += step {
		lo, hi := lo, min(lo+step, total)
		p.Go(func() { run(lo, hi) })
	}
	p.Wait()
}
