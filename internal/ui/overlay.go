//go:build ebiten

package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Overlay draws a progress bar along the bottom edge of the canvas view.
type Overlay struct {
	show     bool
	width    int
	progress float64
	done     bool
	pixel    *ebiten.Image
}

// NewOverlay constructs a new overlay instance.
func NewOverlay() *Overlay {
	o := &Overlay{show: true}
	o.pixel = ebiten.NewImage(1, 1)
	o.pixel.Fill(color.White)
	return o
}

// Resize tracks the width of the canvas view; canvasWidth excludes the HUD.
func (o *Overlay) Resize(canvasWidth, _ int) { o.width = canvasWidth }

// Update toggles the bar with P and records the current progress.
func (o *Overlay) Update(s Status) {
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		o.show = !o.show
	}
	o.progress = s.Progress()
	o.done = s.Finished
}

// Draw paints the bar on top of the canvas.
func (o *Overlay) Draw(screen *ebiten.Image) {
	if !o.show || o.width <= 0 {
		return
	}
	h := screen.Bounds().Dy()
	fill := color.RGBA{R: 90, G: 200, B: 140, A: 200}
	if o.done {
		fill = color.RGBA{R: 140, G: 140, B: 150, A: 200}
	}
	o.bar(screen, 0, h-barHeight, o.width, barHeight, color.RGBA{R: 0, G: 0, B: 0, A: 120})
	o.bar(screen, 0, h-barHeight, int(float64(o.width)*o.progress), barHeight, fill)
}

func (o *Overlay) bar(screen *ebiten.Image, x, y, w, h int, c color.RGBA) {
	if w <= 0 || h <= 0 {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(w), float64(h))
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(c)
	screen.DrawImage(o.pixel, op)
}

const barHeight = 4
