package core

// Alpha sentinels. A canvas cell only ever holds one of these two values in
// its alpha channel.
const (
	Unplaced uint8 = 0
	Placed   uint8 = 255
)

// Position addresses a single canvas cell.
type Position struct {
	X, Y int
}

// Add returns p offset by d.
func (p Position) Add(d Position) Position { return Position{X: p.X + d.X, Y: p.Y + d.Y} }

// Neighbors8 lists the offsets of the eight surrounding cells.
var Neighbors8 = [8]Position{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Color is an 8-bit RGBA value. A doubles as the placed flag.
type Color struct {
	R, G, B, A uint8
}

// IsPlaced reports whether the alpha channel carries the Placed sentinel.
func (c Color) IsPlaced() bool { return c.A == Placed }

// Pack encodes the color as a little-endian RGBA8 word.
func (c Color) Pack() uint32 {
	return uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16 | uint32(c.A)<<24
}

// UnpackColor decodes a word produced by Pack.
func UnpackColor(v uint32) Color {
	return Color{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: uint8(v >> 24)}
}

// DistanceSq returns the squared RGB distance between a and b. Alpha is
// ignored.
func DistanceSq(a, b Color) uint32 {
	dr := int32(a.R) - int32(b.R)
	dg := int32(a.G) - int32(b.G)
	db := int32(a.B) - int32(b.B)
	return uint32(dr*dr + dg*dg + db*db)
}

// Size describes the dimensions of a canvas.
type Size struct {
	W int
	H int
}

// Cells returns the number of cells W*H.
func (s Size) Cells() int { return s.W * s.H }

// Contains reports whether p lies inside the canvas bounds.
func (s Size) Contains(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < s.W && p.Y < s.H
}

// Index returns the row-major cell index of p.
func (s Size) Index(p Position) int { return p.Y*s.W + p.X }

// PositionOf is the inverse of Index.
func (s Size) PositionOf(i int) Position { return Position{X: i % s.W, Y: i / s.W} }

// Center returns the seed position used by every engine.
func (s Size) Center() Position { return Position{X: s.W / 2, Y: s.H / 2} }
