// Package score measures how well a color fits an empty canvas position.
package score

import (
	"fmt"
	"math"

	"coral/internal/core"
)

// Excluded is the score of a candidate with no placed neighbours. It compares
// greater than every real score so such a candidate never wins.
const Excluded uint32 = math.MaxUint32

// Aggregation folds the per-neighbour squared distances into one score.
type Aggregation int

const (
	// Mean uses the integer floor of sum/count.
	Mean Aggregation = iota
	// Min uses the closest neighbour.
	Min
	// Average compares against the per-channel integer mean of the
	// neighbour colors.
	Average
)

func (a Aggregation) String() string {
	switch a {
	case Mean:
		return "mean"
	case Min:
		return "min"
	case Average:
		return "average"
	default:
		return fmt.Sprintf("aggregation(%d)", int(a))
	}
}

// ParseAggregation maps a configuration name to an Aggregation.
func ParseAggregation(name string) (Aggregation, error) {
	switch name {
	case "mean":
		return Mean, nil
	case "min":
		return Min, nil
	case "average":
		return Average, nil
	default:
		return 0, fmt.Errorf("score: unknown aggregation %q (want mean, min or average)", name)
	}
}

// Grid is the read side of a canvas. Both core.Canvas and Words satisfy it.
type Grid interface {
	Size() core.Size
	At(p core.Position) core.Color
}

// Words adapts a packed RGBA8 mirror, as kept on the accelerator, to Grid.
type Words struct {
	Dims core.Size
	Data []uint32
}

// Size returns the mirror dimensions.
func (w Words) Size() core.Size { return w.Dims }

// At unpacks the word for p.
func (w Words) At(p core.Position) core.Color { return core.UnpackColor(w.Data[w.Dims.Index(p)]) }

// Score returns the aggregated squared distance between c and the placed
// 8-neighbours of p, or Excluded when p has none.
func Score(g Grid, p core.Position, c core.Color, agg Aggregation) uint32 {
	size := g.Size()
	var sum, sr, sg, sb uint64
	count := 0
	best := Excluded
	for _, d := range core.Neighbors8 {
		n := p.Add(d)
		if !size.Contains(n) {
			continue
		}
		nc := g.At(n)
		if !nc.IsPlaced() {
			continue
		}
		sr, sg, sb = sr+uint64(nc.R), sg+uint64(nc.G), sb+uint64(nc.B)
		dist := core.DistanceSq(nc, c)
		sum += uint64(dist)
		count++
		if dist < best {
			best = dist
		}
	}
	if count == 0 {
		return Excluded
	}
	n := uint64(count)
	switch agg {
	case Min:
		return best
	case Average:
		avg := core.Color{R: uint8(sr / n), G: uint8(sg / n), B: uint8(sb / n)}
		return core.DistanceSq(avg, c)
	}
	return uint32(sum / n)
}
