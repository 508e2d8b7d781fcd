package accel

import (
	"errors"
	"fmt"

	"coral/internal/core"
)

// Usage declares how a buffer may be used.
type Usage uint32

const (
	UsageStorage Usage = 1 << iota
	UsageTransferSrc
	UsageTransferDst
	// UsageMapRead marks a buffer the host reads back after a submission.
	// Device writes to it must be made visible with a barrier to StageHost.
	UsageMapRead
)

// Has reports whether every flag in o is set in u.
func (u Usage) Has(o Usage) bool { return u&o == o }

var (
	// ErrNotMappable is returned by Map for memory the host cannot see.
	ErrNotMappable = errors.New("accel: buffer memory is not host visible")
	// ErrDestroyed is returned when a destroyed resource is used.
	ErrDestroyed = errors.New("accel: resource destroyed")
)

// Resource is anything a command can bind: a Buffer or an Image.
type Resource interface {
	Label() string
	// Len returns the size in 32-bit words.
	Len() int
	usage() Usage
	words() []uint32
	destroyed() bool
}

type resource struct {
	label string
	use   Usage
	alloc Allocation
	dead  bool
}

func (r *resource) Label() string   { return r.label }
func (r *resource) Len() int        { return r.alloc.Words }
func (r *resource) usage() Usage    { return r.use }
func (r *resource) words() []uint32 { return r.alloc.Data() }
func (r *resource) destroyed() bool { return r.dead }

// Buffer is a linear array of 32-bit words.
type Buffer struct {
	resource
}

// Usage returns the buffer's declared usage.
func (b *Buffer) Usage() Usage { return b.use }

// Memory returns the flags of the memory type backing the buffer.
func (b *Buffer) Memory() MemoryFlags { return b.alloc.Flags }

// Map returns the host view of the buffer. The slice aliases device memory; it
// must not be touched while a submission using the buffer is in flight.
func (b *Buffer) Map() ([]uint32, error) {
	if b.dead {
		return nil, fmt.Errorf("%w: %s", ErrDestroyed, b.label)
	}
	if !b.alloc.Flags.Has(MemoryHostVisible) {
		return nil, fmt.Errorf("%w: %s (%v)", ErrNotMappable, b.label, b.alloc.Flags)
	}
	return b.alloc.Data(), nil
}

// Image is a 2D array of packed RGBA8 texels in row-major order.
type Image struct {
	resource
	size core.Size
}

// Size returns the image dimensions.
func (i *Image) Size() core.Size { return i.size }

const imageUsage = UsageStorage | UsageTransferSrc | UsageTransferDst
