package accel

import "sync"

// Fence is a binary completion signal set by the queue when a submission
// finishes. Safe for concurrent use.
type Fence struct {
	mu       sync.Mutex
	cond     *sync.Cond
	signaled bool
}

// NewFence creates a fence, optionally already signaled so the first wait
// returns immediately.
func NewFence(signaled bool) *Fence {
	f := &Fence{signaled: signaled}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Wait blocks until the fence is signaled.
func (f *Fence) Wait() {
	f.mu.Lock()
	for !f.signaled {
		f.cond.Wait()
	}
	f.mu.Unlock()
}

// Reset clears the signal.
func (f *Fence) Reset() {
	f.mu.Lock()
	f.signaled = false
	f.mu.Unlock()
}

// Signal sets the signal and wakes every waiter.
func (f *Fence) Signal() {
	f.mu.Lock()
	f.signaled = true
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Signaled reports the current state without blocking.
func (f *Fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}
