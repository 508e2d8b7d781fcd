package render

import (
	"image"
	"image/color"

	"coral/internal/commitq"
	"coral/internal/core"
)

// Pixels is the host-side RGBA8 copy of the canvas the viewer uploads each
// frame. Cells that have not been placed show the background color.
type Pixels struct {
	size  core.Size
	buf   []byte
	bg    [4]uint8
	dirty bool
}

// NewPixels allocates a buffer for a canvas of the given size filled with bg.
func NewPixels(size core.Size, bg color.Color) *Pixels {
	p := &Pixels{size: size, buf: make([]byte, 4*size.Cells())}
	p.Clear(bg)
	return p
}

// Size returns the canvas dimensions.
func (p *Pixels) Size() core.Size { return p.size }

// Bytes returns the live RGBA8 buffer, row-major.
func (p *Pixels) Bytes() []byte { return p.buf }

// Dirty reports whether the buffer changed since the last MarkClean.
func (p *Pixels) Dirty() bool { return p.dirty }

func (p *Pixels) MarkClean() { p.dirty = false }

// Clear resets every pixel to bg and makes it the background for Fill.
func (p *Pixels) Clear(bg color.Color) {
	r, g, b, a := bg.RGBA()
	p.bg = [4]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
	for i := 0; i < len(p.buf); i += 4 {
		copy(p.buf[i:i+4], p.bg[:])
	}
	p.dirty = true
}

// Put writes one placed color. Positions outside the canvas are ignored.
func (p *Pixels) Put(pos core.Position, c core.Color) {
	if !p.size.Contains(pos) {
		return
	}
	base := 4 * p.size.Index(pos)
	p.buf[base+0] = c.R
	p.buf[base+1] = c.G
	p.buf[base+2] = c.B
	p.buf[base+3] = 0xff
	p.dirty = true
}

// Apply writes a drained batch of commit events and returns how many it
// applied.
func (p *Pixels) Apply(items []commitq.Item) int {
	for _, it := range items {
		p.Put(it.Pos, it.Color)
	}
	return len(items)
}

// Fill paints a full canvas snapshot. It is a no-op when the snapshot does not
// match the buffer size.
func (p *Pixels) Fill(cells []core.Color) {
	if len(cells) != p.size.Cells() {
		return
	}
	for i, c := range cells {
		base := i * 4
		if !c.IsPlaced() {
			copy(p.buf[base:base+4], p.bg[:])
			continue
		}
		p.buf[base+0] = c.R
		p.buf[base+1] = c.G
		p.buf[base+2] = c.B
		p.buf[base+3] = 0xff
	}
	p.dirty = true
}

// Image wraps the buffer as an image.RGBA without copying.
func (p *Pixels) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    p.buf,
		Stride: 4 * p.size.W,
		Rect:   image.Rect(0, 0, p.size.W, p.size.H),
	}
}
