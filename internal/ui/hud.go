//go:build ebiten

package ui

import (
	"image/color"

	"coral/internal/core"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"
)

// HUD renders the status panel to the right of the canvas view.
type HUD struct {
	width   int
	height  int
	visible bool
	panel   *ebiten.Image

	params []string
	status Status
}

// NewHUD constructs a HUD showing the run parameters and live status.
func NewHUD(params core.ParameterSnapshot, width int, visible bool) *HUD {
	if width < 0 {
		width = 0
	}
	return &HUD{width: width, visible: visible, params: ParameterLines(params)}
}

// Toggle shows or hides the panel.
func (h *HUD) Toggle() {
	if h == nil {
		return
	}
	h.visible = !h.visible
}

// Width is the horizontal space the panel occupies, zero when hidden.
func (h *HUD) Width() int {
	if h == nil || !h.visible {
		return 0
	}
	return h.width
}

// Resize is registered as a layout observer.
func (h *HUD) Resize(_, height int) {
	if h == nil {
		return
	}
	h.height = height
}

// Update stores the status drawn next frame.
func (h *HUD) Update(s Status) {
	if h == nil {
		return
	}
	h.status = s
}

// Draw paints the panel at offsetX.
func (h *HUD) Draw(screen *ebiten.Image, offsetX int) {
	if h.Width() == 0 || h.height <= 0 {
		return
	}
	if h.panel == nil || h.panel.Bounds().Dy() != h.height {
		h.panel = ebiten.NewImage(h.width, h.height)
	}
	h.panel.Fill(color.RGBA{R: 16, G: 16, B: 20, A: 255})

	face := basicfont.Face7x13
	y := panelPadding + headerBaseline
	text.Draw(h.panel, "coral", face, panelPadding, y, color.RGBA{R: 200, G: 200, B: 210, A: 255})
	y += sectionGap
	for _, line := range h.status.Lines() {
		text.Draw(h.panel, line, face, panelPadding, y, color.RGBA{R: 220, G: 220, B: 230, A: 255})
		y += lineHeight
	}
	y += sectionGap
	for _, line := range h.params {
		if y > h.height-panelPadding {
			break
		}
		text.Draw(h.panel, line, face, panelPadding, y, color.RGBA{R: 160, G: 160, B: 170, A: 255})
		y += lineHeight
	}
	text.Draw(h.panel, "H hud  P bar  Q quit", face, panelPadding, h.height-panelPadding, color.RGBA{R: 120, G: 120, B: 130, A: 255})

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(offsetX), 0)
	screen.DrawImage(h.panel, op)
}

const (
	panelPadding   = 12
	lineHeight     = 16
	headerBaseline = 18
	sectionGap     = 10
)
