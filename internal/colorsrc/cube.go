package colorsrc

import (
	"fmt"
	"math"
	"slices"

	"coral/internal/core"
	pkgcore "coral/pkg/core"
)

// Count returns the number of distinct colors at bitDepth, 2^(3*bitDepth).
func Count(bitDepth int) int { return 1 << (3 * bitDepth) }

// channel scales a channel step n in [0, 2^bitDepth) onto 0..255, so the
// highest step always maps to 255.
func channel(n, bitDepth int) uint8 {
	return uint8(((n + 1) << (8 - bitDepth)) - 1)
}

// Cube enumerates every color at bitDepth in r, g, b loop order.
func Cube(bitDepth int) ([]core.Color, error) {
	if bitDepth < 1 || bitDepth > MaxBitDepth {
		return nil, fmt.Errorf("%w: %d", ErrBitDepth, bitDepth)
	}
	steps := 1 << bitDepth
	colors := make([]core.Color, 0, Count(bitDepth))
	for r := 0; r < steps; r++ {
		for g := 0; g < steps; g++ {
			for b := 0; b < steps; b++ {
				colors = append(colors, core.Color{
					R: channel(r, bitDepth),
					G: channel(g, bitDepth),
					B: channel(b, bitDepth),
					A: core.Placed,
				})
			}
		}
	}
	return colors, nil
}

// Shuffle delivers the color cube in a Fisher-Yates order fixed by its seed.
type Shuffle struct{ *sequence }

// NewShuffle builds a shuffled cube. The same seed replays the same order.
func NewShuffle(bitDepth int, seed int64) (*Shuffle, error) {
	colors, err := Cube(bitDepth)
	if err != nil {
		return nil, err
	}
	pkgcore.Shuffle(pkgcore.NewRNG(seed).Source(), colors)
	return &Shuffle{newSequence(colors)}, nil
}

// Hue delivers the color cube sorted by descending hue angle, producing
// banded gradients.
type Hue struct{ *sequence }

// NewHue builds the hue-ordered cube.
func NewHue(bitDepth int) (*Hue, error) {
	colors, err := Cube(bitDepth)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(colors, func(a, b core.Color) int {
		return HueOf(b) - HueOf(a)
	})
	return &Hue{newSequence(colors)}, nil
}

// HueOf returns the hue angle of c in whole degrees, 0..360. Greys have hue 0.
func HueOf(c core.Color) int {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	lo := math.Min(math.Min(r, g), b)
	hi := math.Max(math.Max(r, g), b)
	if lo == hi {
		return 0
	}

	var h float64
	switch hi {
	case r:
		h = (g - b) / (hi - lo)
	case g:
		h = 2 + (b-r)/(hi-lo)
	default:
		h = 4 + (r-g)/(hi-lo)
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return int(math.Round(h))
}
