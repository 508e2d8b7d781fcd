// Package colorsrc provides the finite color sequences the placement engines
// consume.
package colorsrc

import (
	"errors"
	"fmt"

	"github.com/emirpasic/gods/stacks/arraystack"

	"coral/internal/core"
)

// MaxBitDepth is the largest supported bit depth (the full 24-bit cube).
const MaxBitDepth = 8

// ErrBitDepth reports a bit depth outside 1..MaxBitDepth.
var ErrBitDepth = errors.New("colorsrc: bit depth out of range")

// Source is an ordered, exhaustible color sequence. It has a single consumer
// and does no locking.
type Source interface {
	// HasNext reports whether Next would return a color.
	HasNext() bool
	// Next removes and returns the next color. It panics when exhausted.
	Next() core.Color
	// Resubmit returns a previously retrieved, unused color to the front of
	// the sequence.
	Resubmit(c core.Color)
	// Len returns the number of colors still deliverable.
	Len() int
	// Stats reports delivery counters.
	Stats() Stats
}

// Stats counts colors through a source. At any point
// Total == Retrieved - Resubmitted + Len() holds, and Pending is the number of
// resubmitted colors that have not been handed out again.
type Stats struct {
	Total       int
	Retrieved   int
	Resubmitted int
	Pending     int
}

// Kind selects one of the built-in orderings.
type Kind int

const (
	// KindShuffle delivers the color cube in a seeded random order.
	KindShuffle Kind = iota
	// KindHue delivers the color cube sorted by hue angle.
	KindHue
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindShuffle:
		return "shuffle"
	case KindHue:
		return "hue"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a configuration name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "shuffle":
		return KindShuffle, nil
	case "hue":
		return KindHue, nil
	default:
		return 0, fmt.Errorf("colorsrc: unknown source %q (want shuffle or hue)", name)
	}
}

// New builds the source for kind over the full cube at bitDepth. The seed only
// affects KindShuffle.
func New(kind Kind, bitDepth int, seed int64) (Source, error) {
	switch kind {
	case KindShuffle:
		return NewShuffle(bitDepth, seed)
	case KindHue:
		return NewHue(bitDepth)
	default:
		return nil, fmt.Errorf("colorsrc: unsupported kind %v", kind)
	}
}

// sequence is the shared delivery mechanism: a fixed backing list read from a
// cursor plus a LIFO stack of resubmitted colors consulted first.
type sequence struct {
	colors   []core.Color
	next     int
	returned *arraystack.Stack

	retrieved   int
	resubmitted int
}

func newSequence(colors []core.Color) *sequence {
	return &sequence{colors: colors, returned: arraystack.New()}
}

func (s *sequence) HasNext() bool {
	return !s.returned.Empty() || s.next < len(s.colors)
}

func (s *sequence) Next() core.Color {
	s.retrieved++
	if v, ok := s.returned.Pop(); ok {
		return v.(core.Color)
	}
	if s.next >= len(s.colors) {
		panic("colorsrc: Next called on an exhausted source")
	}
	c := s.colors[s.next]
	s.next++
	return c
}

func (s *sequence) Resubmit(c core.Color) {
	s.resubmitted++
	s.returned.Push(c)
}

func (s *sequence) Len() int { return s.returned.Size() + len(s.colors) - s.next }

func (s *sequence) Stats() Stats {
	return Stats{
		Total:       len(s.colors),
		Retrieved:   s.retrieved,
		Resubmitted: s.resubmitted,
		Pending:     s.returned.Size(),
	}
}

// Slice is a source over an explicit color list, delivered in order.
type Slice struct{ *sequence }

// NewSlice wraps colors. The slice is not copied.
func NewSlice(colors []core.Color) *Slice { return &Slice{newSequence(colors)} }
