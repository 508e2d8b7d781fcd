// Package frontier tracks the open set: unplaced cells that touch at least one
// placed cell.
package frontier

import "coral/internal/core"

const absent = -1

// Set is the open set over a fixed canvas size. Members live in a dense slice
// and a per-cell table maps each cell to its slot, so insert, remove and
// membership are O(1) and a snapshot is a single copy.
type Set struct {
	size    core.Size
	members []core.Position
	slot    []int32
}

// New creates an empty set for a canvas of the given size.
func New(size core.Size) *Set {
	slot := make([]int32, size.Cells())
	for i := range slot {
		slot[i] = absent
	}
	return &Set{size: size, slot: slot}
}

// Len returns the number of members.
func (s *Set) Len() int { return len(s.members) }

// Empty reports whether the set has no members.
func (s *Set) Empty() bool { return len(s.members) == 0 }

// Contains reports whether p is a member.
func (s *Set) Contains(p core.Position) bool {
	return s.size.Contains(p) && s.slot[s.size.Index(p)] != absent
}

// Add inserts p. It is a no-op for members and out of bounds positions.
func (s *Set) Add(p core.Position) {
	if !s.size.Contains(p) {
		return
	}
	i := s.size.Index(p)
	if s.slot[i] != absent {
		return
	}
	s.slot[i] = int32(len(s.members))
	s.members = append(s.members, p)
}

// AddNeighbors inserts every in-bounds 8-neighbor of p that is still unplaced
// on canvas.
func (s *Set) AddNeighbors(canvas *core.Canvas, p core.Position) {
	for _, d := range core.Neighbors8 {
		n := p.Add(d)
		if !s.size.Contains(n) || canvas.Placed(n) {
			continue
		}
		s.Add(n)
	}
}

// Remove deletes p by moving the last member into its slot.
func (s *Set) Remove(p core.Position) {
	if !s.size.Contains(p) {
		return
	}
	i := s.size.Index(p)
	at := s.slot[i]
	if at == absent {
		return
	}
	last := len(s.members) - 1
	moved := s.members[last]
	s.members[at] = moved
	s.slot[s.size.Index(moved)] = at
	s.members = s.members[:last]
	s.slot[i] = absent
}

// Snapshot appends every member to dst[:0] and returns it. The order is
// unspecified and changes as members are removed.
func (s *Set) Snapshot(dst []core.Position) []core.Position {
	return append(dst[:0], s.members...)
}

// Members exposes the live member slice. It is invalidated by Add and Remove.
func (s *Set) Members() []core.Position { return s.members }
