// Package accel is a software compute accelerator. It models the pieces of a
// GPU API the placement engine depends on (memory types and a page allocator,
// buffers and images, staging uploads, command buffers with barriers, a FIFO
// queue and fences) and executes kernels on worker goroutines.
package accel

import (
	"fmt"
	"runtime"

	"coral/internal/core"
)

// DefaultPageWords is the allocator page size, 16 MiB of words.
const DefaultPageWords = 4 << 20

// Options configure a Device.
type Options struct {
	// MemoryTypes defaults to DefaultMemoryTypes(1 GiB).
	MemoryTypes []MemoryType
	PageWords   int
	// Workers bounds the goroutines running workgroups of one dispatch.
	Workers int
	// QueueDepth bounds submissions waiting to execute.
	QueueDepth int
}

// Device owns the allocator and the queue.
type Device struct {
	alloc *Allocator
	queue *Queue
}

// NewDevice starts a device.
func NewDevice(opts Options) (*Device, error) {
	types := opts.MemoryTypes
	if len(types) == 0 {
		types = DefaultMemoryTypes(1 << 30)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depth := opts.QueueDepth
	if depth <= 0 {
		depth = 4
	}
	return &Device{
		alloc: NewAllocator(types, opts.PageWords),
		queue: NewQueue(workers, depth),
	}, nil
}

// Allocator returns the device allocator.
func (d *Device) Allocator() *Allocator { return d.alloc }

// Queue returns the device queue.
func (d *Device) Queue() *Queue { return d.queue }

// CreateBuffer allocates a buffer of words.
func (d *Device) CreateBuffer(label string, words int, usage Usage, preferred, required MemoryFlags) (*Buffer, error) {
	alloc, err := d.alloc.Allocate(words, preferred, required)
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", label, err)
	}
	return &Buffer{resource{label: label, use: usage, alloc: alloc}}, nil
}

// CreateImage allocates a zeroed device-local RGBA8 image.
func (d *Device) CreateImage(label string, size core.Size) (*Image, error) {
	alloc, err := d.alloc.Allocate(size.Cells(), MemoryDeviceLocal, 0)
	if err != nil {
		return nil, fmt.Errorf("create image %q: %w", label, err)
	}
	return &Image{resource: resource{label: label, use: imageUsage, alloc: alloc}, size: size}, nil
}

// CreateStaging allocates a host-visible upload buffer of words.
func (d *Device) CreateStaging(label string, words int) (*Staging, error) {
	buf, err := d.CreateBuffer(label, words, UsageTransferSrc, MemoryHostCoherent, MemoryHostVisible)
	if err != nil {
		return nil, err
	}
	return newStaging(buf)
}

// Destroy frees the memory of r. r must not be used by an in-flight
// submission. Destroying twice is a no-op.
func (d *Device) Destroy(r Resource) {
	var res *resource
	switch v := r.(type) {
	case *Buffer:
		res = &v.resource
	case *Image:
		res = &v.resource
	default:
		return
	}
	if res.dead {
		return
	}
	res.dead = true
	d.alloc.Free(res.alloc)
}

// NewFence creates a fence.
func (d *Device) NewFence(signaled bool) *Fence { return NewFence(signaled) }

// Submit queues cb, signaling fence when it completes.
func (d *Device) Submit(cb *CommandBuffer, fence *Fence) error { return d.queue.Submit(cb, fence) }

// Close drains the queue and stops its executor.
func (d *Device) Close() error { return d.queue.Close() }
