package core

import (
	"slices"
	"sync"
)

// ResizeFunc receives the new surface dimensions.
type ResizeFunc func(w, h int)

type resizeEntry struct {
	id int
	fn ResizeFunc
}

// ResizeObservers is an explicit observer list for surface resize events.
// Notify runs the callbacks synchronously on the caller's goroutine, in
// registration order.
type ResizeObservers struct {
	mu      sync.Mutex
	nextID  int
	entries []resizeEntry
}

// Register adds fn and returns a function that removes it again.
func (o *ResizeObservers) Register(fn ResizeFunc) func() {
	if fn == nil {
		return func() {}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.entries = append(o.entries, resizeEntry{id: id, fn: fn})
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.entries = slices.DeleteFunc(o.entries, func(e resizeEntry) bool { return e.id == id })
	}
}

// Notify invokes every registered observer. Callbacks may register or
// unregister observers; such changes apply to the next Notify.
func (o *ResizeObservers) Notify(w, h int) {
	o.mu.Lock()
	entries := slices.Clone(o.entries)
	o.mu.Unlock()
	for _, e := range entries {
		e.fn(w, h)
	}
}

// Len returns the number of registered observers.
func (o *ResizeObservers) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}
