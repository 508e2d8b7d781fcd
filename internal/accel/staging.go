package accel

import (
	"errors"
	"fmt"
)

// ErrStagingFull is returned when a transfer does not fit the staging buffer.
var ErrStagingFull = errors.New("accel: staging buffer full")

type stagedCopy struct {
	dst    Resource
	srcOff int
	dstOff int
	n      int
}

// Staging is a host-visible bump buffer for uploads. Transfer writes the data
// immediately and queues a device copy; Flush records the queued copies.
// The host must not transfer while a flushed submission may still read the
// buffer.
type Staging struct {
	buf     *Buffer
	host    []uint32
	used    int
	pending []stagedCopy
}

func newStaging(buf *Buffer) (*Staging, error) {
	host, err := buf.Map()
	if err != nil {
		return nil, err
	}
	return &Staging{buf: buf, host: host}, nil
}

// Buffer returns the backing buffer.
func (s *Staging) Buffer() *Buffer { return s.buf }

// Cap returns the capacity in words.
func (s *Staging) Cap() int { return len(s.host) }

// Used returns the words written since the last Flush.
func (s *Staging) Used() int { return s.used }

// Transfer stages data for a copy into dst at dstOffset words.
func (s *Staging) Transfer(data []uint32, dst Resource, dstOffset int) error {
	if len(data) == 0 {
		return nil
	}
	if s.used+len(data) > len(s.host) {
		return fmt.Errorf("%w: %d of %d words used, %d requested for %q",
			ErrStagingFull, s.used, len(s.host), len(data), dst.Label())
	}
	copy(s.host[s.used:], data)
	s.pending = append(s.pending, stagedCopy{dst: dst, srcOff: s.used, dstOff: dstOffset, n: len(data)})
	s.used += len(data)
	return nil
}

// Flush records every pending copy into cb and rewinds the buffer. It
// returns the destinations written so the caller can barrier them.
func (s *Staging) Flush(cb *CommandBuffer) []Resource {
	var dsts []Resource
	for _, c := range s.pending {
		cb.Copy(s.buf, c.srcOff, c.dst, c.dstOff, c.n)
		dsts = append(dsts, c.dst)
	}
	s.pending = s.pending[:0]
	s.used = 0
	return dsts
}
