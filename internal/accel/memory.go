package accel

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// MemoryFlags describe the properties of a memory type.
type MemoryFlags uint32

const (
	MemoryDeviceLocal MemoryFlags = 1 << iota
	MemoryHostVisible
	MemoryHostCoherent
	MemoryHostCached
)

// Has reports whether every flag in o is set in f.
func (f MemoryFlags) Has(o MemoryFlags) bool { return f&o == o }

func (f MemoryFlags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, n := range []struct {
		flag MemoryFlags
		name string
	}{
		{MemoryDeviceLocal, "device-local"},
		{MemoryHostVisible, "host-visible"},
		{MemoryHostCoherent, "host-coherent"},
		{MemoryHostCached, "host-cached"},
	} {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

var (
	// ErrNoMemoryType is returned when no memory type carries the required flags.
	ErrNoMemoryType = errors.New("accel: no memory type satisfies the required flags")
	// ErrOutOfMemory is returned when every matching heap is exhausted.
	ErrOutOfMemory = errors.New("accel: out of device memory")
)

// MemoryType is one allocatable kind of memory with a heap budget in bytes.
type MemoryType struct {
	Flags     MemoryFlags
	HeapBytes uint64
}

// DefaultMemoryTypes mirrors a discrete GPU: a device-local heap plus two
// host-visible heaps, each with heapBytes of budget.
func DefaultMemoryTypes(heapBytes uint64) []MemoryType {
	return []MemoryType{
		{Flags: MemoryDeviceLocal, HeapBytes: heapBytes},
		{Flags: MemoryHostVisible | MemoryHostCoherent, HeapBytes: heapBytes},
		{Flags: MemoryHostVisible | MemoryHostCoherent | MemoryHostCached, HeapBytes: heapBytes},
	}
}

const wordBytes = 4

type page struct {
	typ       int
	data      []uint32
	offset    int
	live      int
	dedicated bool
}

type memoryType struct {
	MemoryType
	used  uint64
	pages []*page
}

// Allocation is a word range inside an allocator page.
type Allocation struct {
	page   *page
	Offset int
	Words  int
	Flags  MemoryFlags
}

// Data returns the words backing the allocation.
func (a Allocation) Data() []uint32 {
	if a.page == nil {
		return nil
	}
	return a.page.data[a.Offset : a.Offset+a.Words]
}

// Valid reports whether a refers to live memory.
func (a Allocation) Valid() bool { return a.page != nil }

// AllocatorStats summarises allocator usage.
type AllocatorStats struct {
	Pages         int
	Live          int
	ReservedBytes uint64
}

// Allocator hands out sub-ranges of large pages, bump allocating within a page.
// A page rewinds once its last allocation is freed. Requests larger than a page
// get a dedicated page that is released on free. Safe for concurrent use.
type Allocator struct {
	mu        sync.Mutex
	pageWords int
	types     []*memoryType
}

// NewAllocator builds an allocator over the given memory types.
func NewAllocator(types []MemoryType, pageWords int) *Allocator {
	if pageWords <= 0 {
		pageWords = DefaultPageWords
	}
	a := &Allocator{pageWords: pageWords}
	for _, t := range types {
		a.types = append(a.types, &memoryType{MemoryType: t})
	}
	return a
}

// Allocate reserves words from a memory type carrying preferred|required,
// falling back to any type carrying required. The returned memory is zeroed.
func (a *Allocator) Allocate(words int, preferred, required MemoryFlags) (Allocation, error) {
	if words <= 0 {
		return Allocation{}, fmt.Errorf("accel: invalid allocation size %d", words)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	want := preferred | required
	matched := false
	for _, flags := range []MemoryFlags{want, required} {
		for i, t := range a.types {
			if !t.Flags.Has(flags) {
				continue
			}
			matched = true
			if alloc, ok := a.allocateFrom(i, words); ok {
				clear(alloc.Data())
				return alloc, nil
			}
		}
	}
	if !matched {
		return Allocation{}, fmt.Errorf("%w: %v", ErrNoMemoryType, required)
	}
	return Allocation{}, fmt.Errorf("%w: %d words of %v", ErrOutOfMemory, words, required)
}

func (a *Allocator) allocateFrom(typ, words int) (Allocation, bool) {
	t := a.types[typ]
	if words <= a.pageWords {
		for _, p := range t.pages {
			if p.dedicated || p.offset+words > len(p.data) {
				continue
			}
			return a.bump(p, words), true
		}
	}

	n := a.pageWords
	dedicated := words > a.pageWords
	if dedicated {
		n = words
	}
	bytes := uint64(n) * wordBytes
	if t.used+bytes > t.HeapBytes {
		return Allocation{}, false
	}
	t.used += bytes
	p := &page{typ: typ, data: make([]uint32, n), dedicated: dedicated}
	t.pages = append(t.pages, p)
	return a.bump(p, words), true
}

func (a *Allocator) bump(p *page, words int) Allocation {
	alloc := Allocation{page: p, Offset: p.offset, Words: words, Flags: a.types[p.typ].Flags}
	p.offset += words
	p.live++
	return alloc
}

// Free releases alloc. Freeing an invalid allocation is a no-op.
func (a *Allocator) Free(alloc Allocation) {
	p := alloc.page
	if p == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	p.live--
	if p.live > 0 {
		return
	}
	p.offset = 0
	if !p.dedicated {
		return
	}
	t := a.types[p.typ]
	t.used -= uint64(len(p.data)) * wordBytes
	for i, q := range t.pages {
		if q == p {
			t.pages = append(t.pages[:i], t.pages[i+1:]...)
			break
		}
	}
}

// Stats reports allocator usage.
func (a *Allocator) Stats() AllocatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	var s AllocatorStats
	for _, t := range a.types {
		s.Pages += len(t.pages)
		s.ReservedBytes += t.used
		for _, p := range t.pages {
			s.Live += p.live
		}
	}
	return s
}
