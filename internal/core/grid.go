package core

// Canvas stores a 2D grid of colors in row-major order. It is owned by the
// engine worker; other goroutines only ever see snapshots.
type Canvas struct {
	size  Size
	data  []Color
	count int
}

// NewCanvas allocates an empty canvas with the given dimensions.
func NewCanvas(w, h int) *Canvas {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return &Canvas{size: Size{W: w, H: h}, data: make([]Color, w*h)}
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() Size { return c.size }

// Cells exposes the backing slice so callers can read values directly.
func (c *Canvas) Cells() []Color { return c.data }

// At returns the color stored at p. p must be in bounds.
func (c *Canvas) At(p Position) Color { return c.data[c.size.Index(p)] }

// Placed reports whether p is in bounds and holds a placed color.
func (c *Canvas) Placed(p Position) bool {
	return c.size.Contains(p) && c.data[c.size.Index(p)].A == Placed
}

// Set writes col at p and marks the cell placed.
func (c *Canvas) Set(p Position, col Color) {
	i := c.size.Index(p)
	if c.data[i].A != Placed {
		c.count++
	}
	col.A = Placed
	c.data[i] = col
}

// PlacedNeighbors calls fn for each in-bounds placed 8-neighbor of p.
func (c *Canvas) PlacedNeighbors(p Position, fn func(Color)) {
	for _, d := range Neighbors8 {
		n := p.Add(d)
		if !c.size.Contains(n) {
			continue
		}
		if col := c.data[c.size.Index(n)]; col.A == Placed {
			fn(col)
		}
	}
}

// Count returns the number of placed cells.
func (c *Canvas) Count() int { return c.count }

// Full reports whether every cell has been placed.
func (c *Canvas) Full() bool { return c.count == len(c.data) }

// Snapshot returns a copy of the cells.
func (c *Canvas) Snapshot() []Color { return append([]Color(nil), c.data...) }
