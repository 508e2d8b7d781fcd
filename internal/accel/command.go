package accel

import (
	"errors"
	"fmt"
)

// Stage is a pipeline stage used to scope barriers.
type Stage int

const (
	StageHost Stage = iota
	StageTransfer
	StageCompute
)

func (s Stage) String() string {
	switch s {
	case StageHost:
		return "host"
	case StageTransfer:
		return "transfer"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Access is how a dispatch uses a binding.
type Access int

const (
	AccessRead Access = 1 << iota
	AccessWrite
	AccessReadWrite = AccessRead | AccessWrite
)

// Binding attaches a resource to a kernel slot.
type Binding struct {
	Resource Resource
	Access   Access
}

// Read binds r read-only.
func Read(r Resource) Binding { return Binding{Resource: r, Access: AccessRead} }

// Write binds r write-only.
func Write(r Resource) Binding { return Binding{Resource: r, Access: AccessWrite} }

var (
	// ErrMissingBarrier is returned by Submit when a command would observe a
	// write that no barrier has made visible.
	ErrMissingBarrier = errors.New("accel: missing barrier")
	// ErrUsage is returned when a resource is used against its declared usage.
	ErrUsage = errors.New("accel: resource usage violation")
	// ErrOutOfRange is returned when a command addresses words past the end
	// of a resource.
	ErrOutOfRange = errors.New("accel: range out of bounds")
)

type commandKind int

const (
	cmdCopy commandKind = iota
	cmdBarrier
	cmdDispatch
)

func (k commandKind) String() string {
	switch k {
	case cmdCopy:
		return "copy"
	case cmdBarrier:
		return "barrier"
	default:
		return "dispatch"
	}
}

type command struct {
	kind commandKind

	// copy
	src, dst       Resource
	srcOff, dstOff int
	n              int

	// barrier
	from, to  Stage
	resources []Resource

	// dispatch
	kernel   Kernel
	groupsX  int
	groupsY  int
	push     []uint32
	bindings []Binding
}

// CommandBuffer records work for a single submission. It is not safe for
// concurrent use and must not be modified after Submit.
type CommandBuffer struct {
	cmds []command
}

// NewCommandBuffer returns an empty command buffer.
func NewCommandBuffer() *CommandBuffer { return &CommandBuffer{} }

// Len returns the number of recorded commands.
func (cb *CommandBuffer) Len() int { return len(cb.cmds) }

// Reset clears the buffer for reuse.
func (cb *CommandBuffer) Reset() { cb.cmds = cb.cmds[:0] }

// Copy copies n words from src[srcOff:] to dst[dstOff:].
func (cb *CommandBuffer) Copy(src Resource, srcOff int, dst Resource, dstOff, n int) {
	cb.cmds = append(cb.cmds, command{kind: cmdCopy, src: src, srcOff: srcOff, dst: dst, dstOff: dstOff, n: n})
}

// Barrier makes writes from stage from visible to stage to. With no resources
// it covers everything.
func (cb *CommandBuffer) Barrier(from, to Stage, resources ...Resource) {
	cb.cmds = append(cb.cmds, command{kind: cmdBarrier, from: from, to: to, resources: resources})
}

// Dispatch runs kernel over a groupsX by groupsY grid of workgroups. push is
// copied.
func (cb *CommandBuffer) Dispatch(kernel Kernel, groupsX, groupsY int, push []uint32, bindings ...Binding) {
	cb.cmds = append(cb.cmds, command{
		kind:     cmdDispatch,
		kernel:   kernel,
		groupsX:  groupsX,
		groupsY:  groupsY,
		push:     append([]uint32(nil), push...),
		bindings: bindings,
	})
}

// pendingWrite remembers the stage of the last unbarriered write.
type pendingWrite struct {
	stage Stage
	index int
	copy  bool
}

// validate checks the recorded commands for usage, bounds and ordering
// errors. Submissions are ordered relative to each other, so hazards are only
// tracked within one buffer.
func (cb *CommandBuffer) validate() error {
	dirty := map[Resource]pendingWrite{}
	hostRead := map[Resource]int{}

	read := func(i int, c command, r Resource) error {
		if w, ok := dirty[r]; ok {
			return fmt.Errorf("%w: %s %d reads %q written by command %d at %v",
				ErrMissingBarrier, c.kind, i, r.Label(), w.index, w.stage)
		}
		return nil
	}
	write := func(i int, c command, r Resource, stage Stage) error {
		// copies into disjoint ranges of one resource may be batched
		if w, ok := dirty[r]; ok && !(w.copy && c.kind == cmdCopy) {
			return fmt.Errorf("%w: %s %d overwrites %q written by command %d at %v",
				ErrMissingBarrier, c.kind, i, r.Label(), w.index, w.stage)
		}
		dirty[r] = pendingWrite{stage: stage, index: i, copy: c.kind == cmdCopy}
		if r.usage().Has(UsageMapRead) {
			hostRead[r] = i
		}
		return nil
	}

	for i, c := range cb.cmds {
		switch c.kind {
		case cmdCopy:
			if err := checkLive(c.src, c.dst); err != nil {
				return err
			}
			if !c.src.usage().Has(UsageTransferSrc) || !c.dst.usage().Has(UsageTransferDst) {
				return fmt.Errorf("%w: copy %d from %q to %q", ErrUsage, i, c.src.Label(), c.dst.Label())
			}
			if c.n < 0 || c.srcOff < 0 || c.dstOff < 0 || c.srcOff+c.n > c.src.Len() || c.dstOff+c.n > c.dst.Len() {
				return fmt.Errorf("%w: copy %d of %d words from %q+%d to %q+%d",
					ErrOutOfRange, i, c.n, c.src.Label(), c.srcOff, c.dst.Label(), c.dstOff)
			}
			if err := read(i, c, c.src); err != nil {
				return err
			}
			if err := write(i, c, c.dst, StageTransfer); err != nil {
				return err
			}

		case cmdBarrier:
			covered := c.resources
			if len(covered) == 0 {
				for r := range dirty {
					covered = append(covered, r)
				}
				for r := range hostRead {
					covered = append(covered, r)
				}
			}
			for _, r := range covered {
				if c.to == StageHost {
					delete(hostRead, r)
				}
				w, ok := dirty[r]
				if !ok {
					continue
				}
				if w.stage != c.from {
					return fmt.Errorf("%w: barrier %d from %v does not cover %q written at %v",
						ErrMissingBarrier, i, c.from, r.Label(), w.stage)
				}
				delete(dirty, r)
			}

		case cmdDispatch:
			if c.kernel == nil || c.groupsX < 0 || c.groupsY < 0 {
				return fmt.Errorf("accel: dispatch %d is malformed", i)
			}
			for _, b := range c.bindings {
				if err := checkLive(b.Resource); err != nil {
					return err
				}
				if !b.Resource.usage().Has(UsageStorage) {
					return fmt.Errorf("%w: dispatch %d binds %q without storage usage", ErrUsage, i, b.Resource.Label())
				}
				if b.Access&AccessRead != 0 {
					if err := read(i, c, b.Resource); err != nil {
						return err
					}
				}
			}
			for _, b := range c.bindings {
				if b.Access&AccessWrite != 0 {
					if err := write(i, c, b.Resource, StageCompute); err != nil {
						return err
					}
				}
			}
		}
	}

	var unseen Resource
	first := len(cb.cmds)
	for r, i := range hostRead {
		if i < first {
			unseen, first = r, i
		}
	}
	if unseen != nil {
		return fmt.Errorf("%w: %q written by command %d is never made visible to the host",
			ErrMissingBarrier, unseen.Label(), first)
	}
	return nil
}

func checkLive(rs ...Resource) error {
	for _, r := range rs {
		if r == nil {
			return fmt.Errorf("accel: nil resource")
		}
		if r.destroyed() {
			return fmt.Errorf("%w: %s", ErrDestroyed, r.Label())
		}
	}
	return nil
}
