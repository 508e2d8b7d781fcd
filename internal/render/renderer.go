//go:build ebiten

package render

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// CanvasPainter keeps an ebiten image in sync with a Pixels buffer.
type CanvasPainter struct {
	pix *Pixels
	img *ebiten.Image
}

// NewCanvasPainter allocates the GPU image for pix.
func NewCanvasPainter(pix *Pixels) *CanvasPainter {
	s := pix.Size()
	return &CanvasPainter{pix: pix, img: ebiten.NewImage(s.W, s.H)}
}

// Blit uploads the pixels if they changed and draws them scaled.
func (cp *CanvasPainter) Blit(dst *ebiten.Image, scale int) {
	if cp.pix.Dirty() {
		cp.img.WritePixels(cp.pix.Bytes())
		cp.pix.MarkClean()
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(scale), float64(scale))
	dst.DrawImage(cp.img, op)
}

// Pixels returns the backing buffer.
func (cp *CanvasPainter) Pixels() *Pixels { return cp.pix }
